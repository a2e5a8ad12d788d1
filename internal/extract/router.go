package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/finance-intake/internal/domain"
)

type kind int

const (
	kindUnknown kind = iota
	kindXLSX
	kindXLS
	kindWord
	kindText
	kindModel
)

var extensionKinds = map[string]kind{
	".xlsx": kindXLSX,
	".xlsm": kindXLSX,
	".xls":  kindXLS,
	".docx": kindWord,
	".csv":  kindText,
	".txt":  kindText,
	".pdf":  kindModel,
	".png":  kindModel,
	".jpg":  kindModel,
	".jpeg": kindModel,
	".webp": kindModel,
	".gif":  kindModel,
	".tif":  kindModel,
	".tiff": kindModel,
}

func kindOf(mimeType, filename string) kind {
	if k, ok := extensionKinds[strings.ToLower(filepath.Ext(filename))]; ok {
		return k
	}

	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i != -1 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mt == "application/vnd.ms-excel.sheet.macroenabled.12":
		return kindXLSX
	case mt == "application/vnd.ms-excel":
		return kindXLS
	case mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return kindWord
	case mt == "text/csv", mt == "text/plain":
		return kindText
	case mt == "application/pdf", strings.HasPrefix(mt, "image/"):
		return kindModel
	}
	return kindUnknown
}

// Router dispatches each file to the extractor that understands its format.
// The file extension wins over the declared MIME type.
type Router struct {
	spreadsheet *SpreadsheetExtractor
	word        *WordExtractor
	text        *TextExtractor
	model       Extractor
}

// NewRouter builds a router. model handles PDFs and images; when nil those
// formats are rejected as unsupported.
func NewRouter(model Extractor) *Router {
	return &Router{
		spreadsheet: NewSpreadsheetExtractor(),
		word:        NewWordExtractor(),
		text:        NewTextExtractor(),
		model:       model,
	}
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, data []byte, mimeType, filename string) (*RawExtraction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("extract %s: %w", filename, domain.ErrEmptyDocument)
	}

	switch kindOf(mimeType, filename) {
	case kindXLSX, kindXLS:
		return r.spreadsheet.Extract(ctx, data, mimeType, filename)
	case kindWord:
		return r.word.Extract(ctx, data, mimeType, filename)
	case kindText:
		return r.text.Extract(ctx, data, mimeType, filename)
	case kindModel:
		if r.model != nil {
			return r.model.Extract(ctx, data, mimeType, filename)
		}
	}
	return nil, fmt.Errorf("extract %s (%s): %w", filename, mimeType, domain.ErrUnsupportedFormat)
}
