package domain

// Default upload option values applied when the client omits them.
const (
	DefaultComparisonLevel = "local"
	DefaultYearsCount      = 1
	DefaultLanguage        = "ar"
)

// UploadOptions carries the company context and analysis preferences
// submitted alongside the uploaded files.
type UploadOptions struct {
	CompanyName     string   `json:"companyName" yaml:"companyName"`
	Sector          string   `json:"sector" yaml:"sector"`
	Activity        string   `json:"activity" yaml:"activity"`
	LegalEntity     string   `json:"legalEntity" yaml:"legalEntity"`
	ComparisonLevel string   `json:"comparisonLevel" yaml:"comparisonLevel"`
	YearsCount      int      `json:"yearsCount" yaml:"yearsCount"`
	AnalysisTypes   []string `json:"analysisTypes" yaml:"analysisTypes"`
	Language        string   `json:"language" yaml:"language"`
	Budget          []string `json:"budget" yaml:"budget"`
}

// DefaultUploadOptions returns the options used when nothing is supplied.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		ComparisonLevel: DefaultComparisonLevel,
		YearsCount:      DefaultYearsCount,
		AnalysisTypes:   []string{},
		Language:        DefaultLanguage,
	}
}

// ApplyDefaults fills every unset field with its default.
func (o *UploadOptions) ApplyDefaults() {
	if o.ComparisonLevel == "" {
		o.ComparisonLevel = DefaultComparisonLevel
	}
	if o.YearsCount <= 0 {
		o.YearsCount = DefaultYearsCount
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.AnalysisTypes == nil {
		o.AnalysisTypes = []string{}
	}
	if len(o.Budget) == 0 {
		o.Budget = nil
	}
}
