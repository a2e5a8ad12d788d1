package extract

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/gemini"
	"google.golang.org/genai"
)

const transcriptionPrompt = "You are a transcription engine for financial documents.\n\n" +
	"Task:\n" +
	"- Transcribe ALL text in the attached document, page by page.\n" +
	"- Render every table as tab-separated rows, one row per line, keeping column order.\n" +
	"- Keep numbers exactly as printed, including signs, parentheses, separators and currency symbols.\n" +
	"- Keep headings, statement titles, period labels and fiscal years.\n" +
	"- Arabic and English text must be preserved as written.\n\n" +
	"Return ONLY the transcription.\n" +
	"Do NOT summarise, translate or add commentary.\n" +
	"Do NOT wrap the response in code fences.\n"

// ModelExtractor transcribes PDFs and images with a Gemini model.
type ModelExtractor struct {
	gen   gemini.Generator
	model string
}

// NewModelExtractor returns an extractor backed by gen. An empty model
// selects gemini.DefaultModelName.
func NewModelExtractor(gen gemini.Generator, model string) *ModelExtractor {
	if model == "" {
		model = gemini.DefaultModelName
	}
	return &ModelExtractor{gen: gen, model: model}
}

// Extract implements Extractor.
func (e *ModelExtractor) Extract(ctx context.Context, data []byte, mimeType, filename string) (*RawExtraction, error) {
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = MIMETypeFor(filename)
	}

	contents := gemini.UserContent(transcriptionPrompt, &genai.Blob{
		MIMEType: mimeType,
		Data:     data,
	})
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	}

	resp, err := e.gen.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("extract %s: generate content: %w", filename, err)
	}

	text := gemini.ResponseText(resp)
	if text == "" {
		return nil, fmt.Errorf("extract %s: %w", filename, domain.ErrEmptyModelResponse)
	}

	return &RawExtraction{
		Filename: filename,
		MIMEType: mimeType,
		Format:   FormatDocument,
		Text:     text,
	}, nil
}
