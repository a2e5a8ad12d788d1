package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// SpreadsheetExtractor reads every worksheet of an Excel workbook.
type SpreadsheetExtractor struct {
	// Charset used when decoding legacy .xls strings.
	Charset string
}

// NewSpreadsheetExtractor returns an extractor for .xlsx and .xls workbooks.
func NewSpreadsheetExtractor() *SpreadsheetExtractor {
	return &SpreadsheetExtractor{Charset: "utf-8"}
}

// Extract implements Extractor by choosing the workbook format from the file name.
func (e *SpreadsheetExtractor) Extract(_ context.Context, data []byte, mimeType, filename string) (*RawExtraction, error) {
	if kindOf(mimeType, filename) == kindXLS {
		return e.ExtractXLS(data, mimeType, filename)
	}
	return e.ExtractXLSX(data, mimeType, filename)
}

// ExtractXLSX reads an Office Open XML workbook.
func (e *SpreadsheetExtractor) ExtractXLSX(data []byte, mimeType, filename string) (*RawExtraction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("extract %s: open workbook: %w", filename, err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("extract %s: read sheet %q: %w", filename, name, err)
		}
		if rows = compactRows(rows); len(rows) > 0 {
			sheets = append(sheets, Sheet{Name: name, Rows: rows})
		}
	}

	return sheetExtraction(filename, mimeType, sheets)
}

// ExtractXLS reads a legacy BIFF workbook.
func (e *SpreadsheetExtractor) ExtractXLS(data []byte, mimeType, filename string) (*RawExtraction, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), e.Charset)
	if err != nil {
		return nil, fmt.Errorf("extract %s: open workbook: %w", filename, err)
	}

	var sheets []Sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}

		var rows [][]string
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol()+1)
			for c := 0; c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}

		if rows = compactRows(rows); len(rows) > 0 {
			sheets = append(sheets, Sheet{Name: ws.Name, Rows: rows})
		}
	}

	return sheetExtraction(filename, mimeType, sheets)
}

func sheetExtraction(filename, mimeType string, sheets []Sheet) (*RawExtraction, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("extract %s: %w", filename, domain.ErrEmptyDocument)
	}
	return &RawExtraction{
		Filename: filename,
		MIMEType: mimeType,
		Format:   FormatSpreadsheet,
		Sheets:   sheets,
	}, nil
}

// compactRows trims cells and drops trailing empty cells and fully empty rows.
func compactRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		last := -1
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			if cells[i] != "" {
				last = i
			}
		}
		if last >= 0 {
			out = append(out, cells[:last+1])
		}
	}
	return out
}
