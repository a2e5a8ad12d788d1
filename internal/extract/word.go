package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/lu4p/cat/docxtxt"

	"github.com/dvloznov/finance-intake/internal/domain"
)

// WordExtractor reads the text of .docx files.
type WordExtractor struct{}

// NewWordExtractor returns a WordExtractor.
func NewWordExtractor() *WordExtractor {
	return &WordExtractor{}
}

// Extract implements Extractor. A file that is not a readable Word package is
// reported as ErrUnsupportedFormat.
func (e *WordExtractor) Extract(_ context.Context, data []byte, mimeType, filename string) (*RawExtraction, error) {
	text, err := docxtxt.BytesToStr(data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: read docx: %v: %w", filename, err, domain.ErrUnsupportedFormat)
	}

	text = normalizeWordText(text)
	if text == "" {
		return nil, fmt.Errorf("extract %s: %w", filename, domain.ErrEmptyDocument)
	}

	return &RawExtraction{
		Filename: filename,
		MIMEType: mimeType,
		Format:   FormatWord,
		Text:     text,
	}, nil
}

// normalizeWordText trims trailing blanks from every line and drops empty lines.
func normalizeWordText(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, "\t ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
