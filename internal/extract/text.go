package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/finance-intake/internal/domain"
)

// TextExtractor reads CSV files as a single sheet and other text verbatim.
type TextExtractor struct{}

// NewTextExtractor returns a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract implements Extractor.
func (e *TextExtractor) Extract(_ context.Context, data []byte, mimeType, filename string) (*RawExtraction, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("extract %s: not valid UTF-8 text: %w", filename, domain.ErrUnsupportedFormat)
	}

	if strings.EqualFold(filepath.Ext(filename), ".csv") || strings.HasPrefix(strings.ToLower(mimeType), "text/csv") {
		return e.extractCSV(data, mimeType, filename)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("extract %s: %w", filename, domain.ErrEmptyDocument)
	}
	return &RawExtraction{
		Filename: filename,
		MIMEType: mimeType,
		Format:   FormatText,
		Text:     text,
	}, nil
}

func (e *TextExtractor) extractCSV(data []byte, mimeType, filename string) (*RawExtraction, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("extract %s: parse csv: %w", filename, err)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var sheets []Sheet
	if rows = compactRows(rows); len(rows) > 0 {
		sheets = []Sheet{{Name: name, Rows: rows}}
	}

	res, err := sheetExtraction(filename, mimeType, sheets)
	if err != nil {
		return nil, err
	}
	res.Format = FormatText
	return res, nil
}
