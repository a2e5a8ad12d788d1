package structuring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
)

// maxContentChars bounds the document text sent to the model.
const maxContentChars = 200_000

const systemPrompt = "You are a financial statement structuring engine for Saudi companies reporting under IFRS.\n" +
	"You receive the raw content of ONE uploaded document and return ONE JSON object describing it.\n"

const schemaPrompt = "Output schema:\n" +
	"{\n" +
	"  \"type\": one of \"balance_sheet\", \"income_statement\", \"cash_flow\", \"trial_balance\", \"budget\", \"unrecognized\",\n" +
	"  \"year\": number (fiscal year, e.g. 2023) or null,\n" +
	"  \"currency\": string (ISO 4217, e.g. \"SAR\") or null,\n" +
	"  \"items\": object mapping line-item labels to numbers or to nested objects for sections\n" +
	"}\n\n"

const rulesPrompt = "Rules:\n" +
	"- Use \"unrecognized\" when the document is not one of the listed statement types.\n" +
	"- Keep line-item labels in the language of the document.\n" +
	"- Amounts must be plain JSON numbers: no thousands separators, no currency symbols; amounts in parentheses are negative.\n" +
	"- When the document shows several years, use the most recent year for \"year\" and its column for \"items\".\n" +
	"- Group sub-totals under their section (e.g. \"current assets\") as nested objects.\n" +
	"- Do not invent values that are not in the document.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// buildSystemPrompt returns the fixed instruction block for a structuring call.
func buildSystemPrompt() string {
	return systemPrompt + "\n" + schemaPrompt + rulesPrompt
}

// buildUserPrompt renders the company context and the document content.
func buildUserPrompt(raw *extract.RawExtraction, req Request) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Mode: %s\n", req.Mode))
	b.WriteString(companyContext(req.Context))
	b.WriteString(fmt.Sprintf("Document: %s (%s)\n\n", raw.Filename, raw.MIMEType))
	b.WriteString("Content:\n")

	b.WriteString(truncateUTF8(raw.Content(), maxContentChars))
	b.WriteString("\n")

	return b.String()
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func companyContext(opts domain.UploadOptions) string {
	var b strings.Builder
	b.WriteString("Company context:\n")
	writeField := func(label, value string) {
		if value != "" {
			b.WriteString("- " + label + ": " + value + "\n")
		}
	}
	writeField("Company name", opts.CompanyName)
	writeField("Sector", opts.Sector)
	writeField("Activity", opts.Activity)
	writeField("Legal entity", opts.LegalEntity)
	writeField("Language", opts.Language)
	if opts.YearsCount > 0 {
		b.WriteString(fmt.Sprintf("- Years requested: %d\n", opts.YearsCount))
	}
	return b.String()
}
