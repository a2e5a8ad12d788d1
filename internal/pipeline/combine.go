package pipeline

import (
	"sort"

	"github.com/dvloznov/finance-intake/internal/domain"
)

// Combine merges per-file results into one dataset. Every result is kept in
// RawData; recognized statements are appended to their type's collection in
// input order; each detected year appears once in YearsDetected, newest first.
// Statements of the same type and year are never merged.
func Combine(results []domain.FileResult, options domain.UploadOptions) domain.CombinedFinancialDataset {
	structure := domain.NewDataStructure()
	raw := make([]domain.FileResult, 0, len(results))
	seen := make(map[int]struct{})
	years := []int{}

	for _, r := range results {
		raw = append(raw, r)
		if r.Data == nil {
			continue
		}

		stmt := *r.Data
		switch stmt.Type {
		case domain.StatementBalanceSheet:
			structure.BalanceSheets = append(structure.BalanceSheets, stmt)
		case domain.StatementIncome:
			structure.IncomeStatements = append(structure.IncomeStatements, stmt)
		case domain.StatementCashFlow:
			structure.CashFlows = append(structure.CashFlows, stmt)
		case domain.StatementTrialBalance:
			structure.TrialBalances = append(structure.TrialBalances, stmt)
		case domain.StatementBudget:
			structure.Budgets = append(structure.Budgets, stmt)
		}

		if stmt.Year != nil {
			if _, ok := seen[*stmt.Year]; !ok {
				seen[*stmt.Year] = struct{}{}
				years = append(years, *stmt.Year)
			}
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	return domain.CombinedFinancialDataset{
		Structure: structure,
		Metadata: domain.DatasetMetadata{
			CompanyName:        options.CompanyName,
			Sector:             options.Sector,
			Activity:           options.Activity,
			LegalEntity:        options.LegalEntity,
			YearsDetected:      years,
			Currency:           domain.DefaultCurrency,
			AccountingStandard: domain.DefaultAccountingStandard,
		},
		RawData: raw,
	}
}
