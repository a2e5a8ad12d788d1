package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/genai"
)

// MockGenerator is a mock implementation of gemini.Generator.
type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return nil, errors.New("not implemented")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Balance Sheet 2023"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Cash"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1500))
	require.NoError(t, f.SetCellValue("Sheet1", "A4", "Inventory"))
	require.NoError(t, f.SetCellValue("Sheet1", "B4", 200))
	_, err := f.NewSheet("Blank")
	require.NoError(t, err)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func buildZip(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	return buildZip(t, "word/document.xml", documentXML)
}

func TestRouter_XLSX(t *testing.T) {
	r := NewRouter(nil)

	res, err := r.Extract(context.Background(), buildXLSX(t), "", "bs.xlsx")
	require.NoError(t, err)

	assert.Equal(t, FormatSpreadsheet, res.Format)
	require.Len(t, res.Sheets, 1, "empty sheets are dropped")
	assert.Equal(t, "Sheet1", res.Sheets[0].Name)
	assert.Equal(t, [][]string{
		{"Balance Sheet 2023"},
		{"Cash", "1500"},
		{"Inventory", "200"},
	}, res.Sheets[0].Rows)
	assert.Contains(t, res.Content(), "Cash\t1500")
}

func TestRouter_CSV(t *testing.T) {
	r := NewRouter(nil)
	data := []byte("\xef\xbb\xbfAccount,2023,2022\nRevenue,\"1,000\",900\n,,\n")

	res, err := r.Extract(context.Background(), data, "text/csv", "income.csv")
	require.NoError(t, err)

	require.Len(t, res.Sheets, 1)
	assert.Equal(t, "income", res.Sheets[0].Name)
	assert.Equal(t, [][]string{{"Account", "2023", "2022"}, {"Revenue", "1,000", "900"}}, res.Sheets[0].Rows)
}

func TestRouter_PlainText(t *testing.T) {
	r := NewRouter(nil)

	res, err := r.Extract(context.Background(), []byte("  trial balance\nCash 10\n"), "text/plain", "tb.txt")
	require.NoError(t, err)
	assert.Equal(t, FormatText, res.Format)
	assert.Equal(t, "trial balance\nCash 10", res.Content())
}

func TestRouter_DOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Cash Flow Statement</w:t></w:r><w:r><w:t xml:space="preserve"> FY2022</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Operating</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>400</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Investing</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>(50)</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body></w:document>`

	res, err := NewRouter(nil).Extract(context.Background(), buildDOCX(t, doc), "", "cf.docx")
	require.NoError(t, err)

	assert.Equal(t, FormatWord, res.Format)
	assert.Contains(t, res.Text, "Cash Flow Statement FY2022")
	for _, cell := range []string{"Operating", "400", "Investing", "(50)"} {
		assert.Contains(t, res.Text, cell)
	}
	assert.NotContains(t, res.Text, "\n\n", "blank lines dropped")
}

func TestNormalizeWordText(t *testing.T) {
	assert.Equal(t, "Revenue\t100\nCost\n", normalizeWordText("Revenue\t100 \r\n\r\n  \nCost\t\n"))
	assert.Equal(t, "", normalizeWordText(" \n\t\n"))
}

func TestRouter_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		mimeType string
		filename string
		wantErr  error
	}{
		{
			name:     "empty input",
			data:     nil,
			filename: "a.xlsx",
			wantErr:  domain.ErrEmptyDocument,
		},
		{
			name:     "unknown format",
			data:     []byte("MZ"),
			mimeType: "application/x-msdownload",
			filename: "setup.exe",
			wantErr:  domain.ErrUnsupportedFormat,
		},
		{
			name:     "pdf without model",
			data:     []byte("%PDF-1.4"),
			filename: "report.pdf",
			wantErr:  domain.ErrUnsupportedFormat,
		},
		{
			name:     "docx that is not a zip package",
			data:     []byte("not a word document"),
			filename: "x.docx",
			wantErr:  domain.ErrUnsupportedFormat,
		},
		{
			name: "docx with empty body",
			data: buildDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p></w:p></w:body></w:document>`),
			filename: "blank.docx",
			wantErr:  domain.ErrEmptyDocument,
		},
		{
			name:     "csv with only blanks",
			data:     []byte(",,\n , \n"),
			filename: "blank.csv",
			wantErr:  domain.ErrEmptyDocument,
		},
	}

	r := NewRouter(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Extract(context.Background(), tt.data, tt.mimeType, tt.filename)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRouter_InvalidWorkbook(t *testing.T) {
	r := NewRouter(nil)

	_, err := r.Extract(context.Background(), []byte("not a workbook"), "", "broken.xlsx")
	assert.Error(t, err)

	_, err = r.Extract(context.Background(), []byte("not a workbook"), "", "broken.xls")
	assert.Error(t, err)
}

func TestKindOf_FallsBackToMIMEType(t *testing.T) {
	assert.Equal(t, kindModel, kindOf("image/png; charset=binary", "scan"))
	assert.Equal(t, kindXLS, kindOf("application/vnd.ms-excel", "upload"))
	assert.Equal(t, kindXLSX, kindOf("text/plain", "book.xlsx"), "extension wins")
	assert.Equal(t, kindUnknown, kindOf("", "noext"))
}

func TestModelExtractor_Extract(t *testing.T) {
	var gotModel, gotMIME string
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			require.Len(t, contents, 1)
			require.Len(t, contents[0].Parts, 2)
			gotMIME = contents[0].Parts[1].InlineData.MIMEType
			return textResponse("  Income Statement 2023\nRevenue\t500\n"), nil
		},
	}

	r := NewRouter(NewModelExtractor(gen, ""))
	res, err := r.Extract(context.Background(), []byte("%PDF-1.7"), "application/octet-stream", "is.pdf")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", gotModel)
	assert.Equal(t, "application/pdf", gotMIME)
	assert.Equal(t, FormatDocument, res.Format)
	assert.Equal(t, "Income Statement 2023\nRevenue\t500", res.Text)
}

func TestModelExtractor_EmptyResponse(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("   "), nil
		},
	}

	_, err := NewModelExtractor(gen, "m").Extract(context.Background(), []byte{1}, "image/png", "scan.png")
	assert.ErrorIs(t, err, domain.ErrEmptyModelResponse)
}

func TestMIMETypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMETypeFor("A.PDF"))
	assert.Equal(t, "application/octet-stream", MIMETypeFor("file.bin"))
}
