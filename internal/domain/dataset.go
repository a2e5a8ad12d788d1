package domain

import (
	"encoding/json"
	"time"
)

// Fixed dataset metadata values.
const (
	DefaultCurrency           = "SAR"
	DefaultAccountingStandard = "IFRS"
)

// UploadedFile is a file accepted by the gateway and staged on local scratch storage.
type UploadedFile struct {
	Filename string
	Path     string
	Size     int64
	MIMEType string
}

// FileResult is the outcome of processing one uploaded file.
type FileResult struct {
	Filename string              `json:"filename"`
	Data     *ExtractedStatement `json:"data"`
	Size     int64               `json:"size"`
	MIMEType string              `json:"type"`
	Error    string              `json:"error,omitempty"`
}

// OK reports whether the file produced a statement.
func (r FileResult) OK() bool {
	return r.Error == "" && r.Data != nil
}

// DataStructure groups recognized statements by type.
type DataStructure struct {
	BalanceSheets    []ExtractedStatement `json:"balanceSheets"`
	IncomeStatements []ExtractedStatement `json:"incomeStatements"`
	CashFlows        []ExtractedStatement `json:"cashFlows"`
	TrialBalances    []ExtractedStatement `json:"trialBalances"`
	Budgets          []ExtractedStatement `json:"budgets"`
}

// NewDataStructure returns a structure whose collections encode as empty arrays.
func NewDataStructure() DataStructure {
	return DataStructure{
		BalanceSheets:    []ExtractedStatement{},
		IncomeStatements: []ExtractedStatement{},
		CashFlows:        []ExtractedStatement{},
		TrialBalances:    []ExtractedStatement{},
		Budgets:          []ExtractedStatement{},
	}
}

// StructuralCount is the number of non-budget statements.
func (s DataStructure) StructuralCount() int {
	return len(s.BalanceSheets) + len(s.IncomeStatements) + len(s.CashFlows) + len(s.TrialBalances)
}

// DatasetMetadata describes the company and the detected reporting years.
type DatasetMetadata struct {
	CompanyName        string `json:"companyName"`
	Sector             string `json:"sector"`
	Activity           string `json:"activity"`
	LegalEntity        string `json:"legalEntity"`
	YearsDetected      []int  `json:"yearsDetected"`
	Currency           string `json:"currency"`
	AccountingStandard string `json:"accountingStandard"`
}

// CombinedFinancialDataset is the merged result of every file in a request.
type CombinedFinancialDataset struct {
	Structure DataStructure   `json:"structure"`
	Metadata  DatasetMetadata `json:"metadata"`
	RawData   []FileResult    `json:"rawData"`
}

// ValidationResult reports whether a dataset is complete enough for analysis.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// AnalysisSession is the persisted record of one successful request.
type AnalysisSession struct {
	Dataset     CombinedFinancialDataset
	Options     UploadOptions
	ProcessedAt time.Time
}

type sessionJSON struct {
	CombinedFinancialDataset
	Options     UploadOptions `json:"options"`
	ProcessedAt string        `json:"processedAt"`
}

// MarshalJSON writes the dataset fields at the top level next to options and processedAt.
func (s AnalysisSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionJSON{
		CombinedFinancialDataset: s.Dataset,
		Options:                  s.Options,
		ProcessedAt:              FormatTimestamp(s.ProcessedAt),
	})
}

// UnmarshalJSON reads the flat layout produced by MarshalJSON.
func (s *AnalysisSession) UnmarshalJSON(data []byte) error {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.ProcessedAt)
	if err != nil {
		return err
	}
	s.Dataset = raw.CombinedFinancialDataset
	s.Options = raw.Options
	s.ProcessedAt = ts
	return nil
}

// FormatTimestamp renders t as an ISO-8601 UTC timestamp with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
