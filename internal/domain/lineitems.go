package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LineItems is the line-item content of a statement keyed by account label.
type LineItems map[string]LineValue

// LineValue holds exactly one of an amount, a text value or a nested section.
type LineValue struct {
	Amount  *decimal.Decimal
	Text    string
	Section LineItems
}

// NumberValue wraps an exact amount.
func NumberValue(d decimal.Decimal) LineValue {
	return LineValue{Amount: &d}
}

// TextValue wraps a textual cell.
func TextValue(s string) LineValue {
	return LineValue{Text: s}
}

// SectionValue wraps a nested group of line items.
func SectionValue(items LineItems) LineValue {
	if items == nil {
		items = LineItems{}
	}
	return LineValue{Section: items}
}

// IsNumber reports whether the value carries an amount.
func (v LineValue) IsNumber() bool { return v.Section == nil && v.Amount != nil }

// IsSection reports whether the value is a nested group.
func (v LineValue) IsSection() bool { return v.Section != nil }

// MarshalJSON encodes amounts as bare JSON numbers, sections as objects
// and everything else as strings.
func (v LineValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Section != nil:
		return json.Marshal(map[string]LineValue(v.Section))
	case v.Amount != nil:
		return []byte(v.Amount.String()), nil
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON accepts numbers, strings, booleans and objects.
func (v *LineValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode line value: %w", err)
	}
	parsed, ok := LineValueFromJSON(raw)
	if !ok {
		*v = LineValue{}
		return nil
	}
	*v = parsed
	return nil
}

// LineValueFromJSON converts a value produced by encoding/json (with or
// without UseNumber) into a LineValue. Nulls report false.
func LineValueFromJSON(raw interface{}) (LineValue, bool) {
	switch val := raw.(type) {
	case nil:
		return LineValue{}, false
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return TextValue(val.String()), true
		}
		return NumberValue(d), true
	case float64:
		return NumberValue(decimal.NewFromFloat(val)), true
	case string:
		return TextValue(val), true
	case bool:
		return TextValue(fmt.Sprintf("%t", val)), true
	case map[string]interface{}:
		items := LineItems{}
		for k, child := range val {
			if lv, ok := LineValueFromJSON(child); ok {
				items[k] = lv
			}
		}
		return SectionValue(items), true
	case []interface{}:
		items := LineItems{}
		for i, child := range val {
			if lv, ok := LineValueFromJSON(child); ok {
				items[fmt.Sprintf("%d", i+1)] = lv
			}
		}
		return SectionValue(items), true
	default:
		return TextValue(fmt.Sprintf("%v", val)), true
	}
}
