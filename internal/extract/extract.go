package extract

import (
	"context"
	"path/filepath"
	"strings"
)

// Extractor converts raw file bytes into a raw extraction.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, filename string) (*RawExtraction, error)
}

// Format identifies how a file was read.
type Format string

const (
	FormatSpreadsheet Format = "spreadsheet"
	FormatWord        Format = "word"
	FormatText        Format = "text"
	FormatDocument    Format = "document"
)

// Sheet is one worksheet of a spreadsheet.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// RawExtraction is the unstructured content of one file before structuring.
type RawExtraction struct {
	Filename string  `json:"filename"`
	MIMEType string  `json:"mimeType"`
	Format   Format  `json:"format"`
	Text     string  `json:"text,omitempty"`
	Sheets   []Sheet `json:"sheets,omitempty"`
}

// Content renders the extraction as plain text. Sheets are written as
// tab-separated rows under a header line per sheet.
func (r *RawExtraction) Content() string {
	if len(r.Sheets) == 0 {
		return r.Text
	}

	var b strings.Builder
	if r.Text != "" {
		b.WriteString(r.Text)
		b.WriteString("\n\n")
	}
	for i, sheet := range r.Sheets {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Sheet: " + sheet.Name + "\n")
		for _, row := range sheet.Rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// MIME types recognised by extension.
var extensionMIMETypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	".xls":  "application/vnd.ms-excel",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// MIMETypeFor returns the MIME type associated with the file extension, or
// application/octet-stream when unknown.
func MIMETypeFor(filename string) string {
	if mt, ok := extensionMIMETypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return "application/octet-stream"
}
