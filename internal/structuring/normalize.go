package structuring

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	yearPattern   = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)
	amountPattern = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

	digitReplacer = strings.NewReplacer(
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
		"٫", ".",
	)
	separatorReplacer = strings.NewReplacer("٬", "", " ", "", "\u00a0", "", "'", "")
)

// Keys the model may use for each statement field, in priority order.
var (
	typeKeys     = []string{"type", "statementType", "statement_type", "documentType"}
	yearKeys     = []string{"year", "fiscalYear", "fiscal_year", "period"}
	currencyKeys = []string{"currency"}
	itemKeys     = []string{"items", "lineItems", "line_items", "data"}
)

// Normalize converts a decoded model object into an ExtractedStatement.
// Unknown statement labels become StatementUnrecognized.
func Normalize(obj map[string]interface{}) (*domain.ExtractedStatement, error) {
	if obj == nil {
		return nil, fmt.Errorf("normalize: nil object")
	}

	stmt := &domain.ExtractedStatement{
		Type:  domain.StatementUnrecognized,
		Items: domain.LineItems{},
	}

	if label, ok := firstString(obj, typeKeys); ok {
		stmt.Type = domain.ParseStatementType(label)
	}
	if raw, ok := first(obj, yearKeys); ok {
		stmt.Year = ParseYear(raw)
	}
	if cur, ok := firstString(obj, currencyKeys); ok {
		stmt.Currency = strings.ToUpper(strings.TrimSpace(cur))
	}

	if raw, ok := first(obj, itemKeys); ok {
		if v, ok := normalizeValue(raw); ok {
			if v.IsSection() {
				stmt.Items = v.Section
			} else {
				stmt.Items = domain.LineItems{"value": v}
			}
		}
	}

	return stmt, nil
}

// ParseYear accepts a JSON number or a string containing a four-digit year
// such as "2023", "FY2023" or "2023/12/31". The year must not be part of a
// longer digit run; values with no such 19xx or 20xx yield nil.
func ParseYear(raw interface{}) *int {
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case float64:
		s = fmt.Sprintf("%.0f", v)
	case int:
		s = fmt.Sprintf("%d", v)
	case string:
		s = digitReplacer.Replace(v)
	default:
		return nil
	}

	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	var year int
	if _, err := fmt.Sscanf(m[1], "%d", &year); err != nil {
		return nil
	}
	return &year
}

// ParseAmount parses a printed amount: thousands separators, Arabic-Indic
// digits and a trailing or leading currency code are accepted, and
// parentheses or a trailing minus mark a negative value. A comma after the
// last dot is read as a decimal comma ("1.234,56").
func ParseAmount(s string) (decimal.Decimal, bool) {
	t := strings.TrimSpace(digitReplacer.Replace(s))
	if t == "" {
		return decimal.Decimal{}, false
	}

	for _, code := range []string{"SAR", "SR", "USD", "ر.س"} {
		t = strings.TrimSpace(strings.TrimPrefix(t, code))
		t = strings.TrimSpace(strings.TrimSuffix(t, code))
	}

	negative := false
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		negative = true
		t = t[1 : len(t)-1]
	}
	if strings.HasSuffix(t, "-") && !strings.HasPrefix(t, "-") {
		negative = true
		t = strings.TrimSuffix(t, "-")
	}
	t = separatorReplacer.Replace(t)

	dot, comma := strings.LastIndex(t, "."), strings.LastIndex(t, ",")
	if dot >= 0 && comma > dot {
		intPart := t[:comma]
		if strings.Contains(intPart, ",") {
			return decimal.Decimal{}, false
		}
		t = strings.ReplaceAll(intPart, ".", "") + "." + t[comma+1:]
	} else {
		t = strings.ReplaceAll(t, ",", "")
	}

	if !amountPattern.MatchString(t) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func normalizeValue(raw interface{}) (domain.LineValue, bool) {
	switch v := raw.(type) {
	case nil:
		return domain.LineValue{}, false
	case string:
		if d, ok := ParseAmount(v); ok {
			return domain.NumberValue(d), true
		}
		return domain.TextValue(strings.TrimSpace(v)), true
	case map[string]interface{}:
		items := domain.LineItems{}
		for k, child := range v {
			if lv, ok := normalizeValue(child); ok {
				items[strings.TrimSpace(k)] = lv
			}
		}
		return domain.SectionValue(items), true
	case []interface{}:
		return normalizeList(v), true
	default:
		return domain.LineValueFromJSON(v)
	}
}

// normalizeList keys array elements by their label when they look like
// {"label"/"name"/"account": ..., "value"/"amount": ...} rows, and by
// 1-based position otherwise.
func normalizeList(list []interface{}) domain.LineValue {
	items := domain.LineItems{}
	for i, el := range list {
		key := fmt.Sprintf("%d", i+1)
		var value interface{} = el

		if row, ok := el.(map[string]interface{}); ok {
			if label, ok := firstString(row, []string{"label", "name", "account", "item"}); ok && label != "" {
				if amount, ok := first(row, []string{"value", "amount", "balance"}); ok {
					key, value = strings.TrimSpace(label), amount
				}
			}
		}

		if lv, ok := normalizeValue(value); ok {
			items[key] = lv
		}
	}
	return domain.SectionValue(items)
}

func first(obj map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(obj map[string]interface{}, keys []string) (string, bool) {
	v, ok := first(obj, keys)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
