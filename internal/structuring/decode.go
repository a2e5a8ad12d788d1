package structuring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

var errNoJSONObject = errors.New("model output contains no JSON object")

// decodeModelJSON parses model output into a JSON object. It tries strict
// JSON first, then json-repair, then Hjson. Numbers decode as json.Number.
func decodeModelJSON(raw string) (map[string]interface{}, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, errNoJSONObject
	}

	if obj, err := decodeObject(clean); err == nil {
		return obj, nil
	}

	if repaired, err := jsonrepair.RepairJSON(clean); err == nil {
		if obj, err := decodeObject(repaired); err == nil {
			return obj, nil
		}
	}

	var lenient interface{}
	if err := hjson.Unmarshal([]byte(clean), &lenient); err == nil {
		if b, err := json.Marshal(lenient); err == nil {
			if obj, err := decodeObject(string(b)); err == nil {
				return obj, nil
			}
		}
	}

	return nil, fmt.Errorf("decode model output: all parsing strategies failed")
}

func decodeObject(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch val := v.(type) {
	case map[string]interface{}:
		return val, nil
	case []interface{}:
		for _, el := range val {
			if obj, ok := el.(map[string]interface{}); ok {
				return obj, nil
			}
		}
	}
	return nil, errNoJSONObject
}

// cleanModelJSON strips Markdown fences and any prose around the outermost
// JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		return strings.TrimSpace(s[start : end+1])
	}
	return s[start:]
}
