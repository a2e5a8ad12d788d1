package domain

import (
	"strings"
)

// StatementType classifies an extracted financial statement.
type StatementType string

const (
	StatementBalanceSheet StatementType = "balance_sheet"
	StatementIncome       StatementType = "income_statement"
	StatementCashFlow     StatementType = "cash_flow"
	StatementTrialBalance StatementType = "trial_balance"
	StatementBudget       StatementType = "budget"
	StatementUnrecognized StatementType = "unrecognized"
)

// statementAliases maps lower-cased labels the model or a document may use
// to the canonical statement type.
var statementAliases = map[string]StatementType{
	"balance_sheet":                     StatementBalanceSheet,
	"balance sheet":                     StatementBalanceSheet,
	"balancesheet":                      StatementBalanceSheet,
	"statement of financial position":   StatementBalanceSheet,
	"financial position":                StatementBalanceSheet,
	"الميزانية العمومية":                StatementBalanceSheet,
	"قائمة المركز المالي":               StatementBalanceSheet,
	"income_statement":                  StatementIncome,
	"income statement":                  StatementIncome,
	"incomestatement":                   StatementIncome,
	"profit and loss":                   StatementIncome,
	"profit & loss":                     StatementIncome,
	"p&l":                               StatementIncome,
	"pnl":                               StatementIncome,
	"statement of comprehensive income": StatementIncome,
	"قائمة الدخل":                       StatementIncome,
	"قائمة الأرباح والخسائر":            StatementIncome,
	"cash_flow":                         StatementCashFlow,
	"cash flow":                         StatementCashFlow,
	"cash flows":                        StatementCashFlow,
	"cashflow":                          StatementCashFlow,
	"cash flow statement":               StatementCashFlow,
	"statement of cash flows":           StatementCashFlow,
	"قائمة التدفقات النقدية":            StatementCashFlow,
	"trial_balance":                     StatementTrialBalance,
	"trial balance":                     StatementTrialBalance,
	"trialbalance":                      StatementTrialBalance,
	"ميزان المراجعة":                    StatementTrialBalance,
	"budget":                            StatementBudget,
	"budgets":                           StatementBudget,
	"الموازنة":                          StatementBudget,
	"الميزانية التقديرية":               StatementBudget,
}

// ParseStatementType maps a free-form label to a StatementType.
// Unknown labels yield StatementUnrecognized.
func ParseStatementType(label string) StatementType {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.Join(strings.Fields(key), " ")
	if t, ok := statementAliases[key]; ok {
		return t
	}
	if t, ok := statementAliases[strings.ReplaceAll(key, "-", " ")]; ok {
		return t
	}
	return StatementUnrecognized
}

// Recognized reports whether t is one of the five structural statement types.
func (t StatementType) Recognized() bool {
	switch t {
	case StatementBalanceSheet, StatementIncome, StatementCashFlow, StatementTrialBalance, StatementBudget:
		return true
	}
	return false
}

// ExtractedStatement is the structured form of one uploaded document.
type ExtractedStatement struct {
	Type           StatementType `json:"type"`
	Year           *int          `json:"year,omitempty"`
	Currency       string        `json:"currency,omitempty"`
	Items          LineItems     `json:"items"`
	SourceFilename string        `json:"sourceFilename"`
	Size           int64         `json:"size"`
	MIMEType       string        `json:"mimeType"`
}
