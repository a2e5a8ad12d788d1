package pipeline

import (
	"strings"

	"github.com/dvloznov/finance-intake/internal/domain"
)

// Canonical validation messages.
const (
	MsgNoStatements     = "no valid financial statements found"
	MsgCompanyName      = "company name required"
	MsgCompanySector    = "company sector required"
	msgIncompletePrefix = "incomplete data: "
)

var arabicMessages = map[string]string{
	MsgNoStatements:     "لم يتم العثور على قوائم مالية صالحة",
	MsgCompanyName:      "اسم الشركة مطلوب",
	MsgCompanySector:    "قطاع الشركة مطلوب",
	msgIncompletePrefix: "بيانات غير مكتملة: ",
}

// Validate checks that a dataset is complete enough for analysis. Every
// rule is evaluated and all failures are reported. Budgets alone do not
// count as financial statements.
func Validate(dataset domain.CombinedFinancialDataset) domain.ValidationResult {
	errs := []string{}

	if dataset.Structure.StructuralCount() == 0 {
		errs = append(errs, MsgNoStatements)
	}
	if strings.TrimSpace(dataset.Metadata.CompanyName) == "" {
		errs = append(errs, MsgCompanyName)
	}
	if strings.TrimSpace(dataset.Metadata.Sector) == "" {
		errs = append(errs, MsgCompanySector)
	}

	return domain.ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// LocalizeMessages renders canonical messages in the request language.
// Arabic is used for "ar"; every other language gets the canonical English.
func LocalizeMessages(messages []string, language string) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = localize(m, language)
	}
	return out
}

// IncompleteDataMessage joins validation failures into a single localized message.
func IncompleteDataMessage(messages []string, language string) string {
	return localize(msgIncompletePrefix, language) + strings.Join(LocalizeMessages(messages, language), ", ")
}

func localize(message, language string) string {
	if strings.EqualFold(language, LanguageArabic) {
		if ar, ok := arabicMessages[message]; ok {
			return ar
		}
	}
	return message
}
