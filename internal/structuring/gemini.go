package structuring

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/dvloznov/finance-intake/internal/gemini"
	"google.golang.org/genai"
)

// GeminiStructurer structures documents with a Gemini model in JSON mode.
type GeminiStructurer struct {
	gen   gemini.Generator
	model string
}

// NewGeminiStructurer creates a GeminiStructurer. An empty model selects
// gemini.DefaultModelName.
func NewGeminiStructurer(gen gemini.Generator, model string) *GeminiStructurer {
	if model == "" {
		model = gemini.DefaultModelName
	}
	return &GeminiStructurer{gen: gen, model: model}
}

// Structure implements Structurer.
func (s *GeminiStructurer) Structure(ctx context.Context, raw *extract.RawExtraction, req Request) (*domain.ExtractedStatement, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: buildSystemPrompt()}},
		},
	}

	resp, err := s.gen.GenerateContent(ctx, s.model, gemini.UserContent(buildUserPrompt(raw, req)), config)
	if err != nil {
		return nil, fmt.Errorf("structure %s: generate content: %w", raw.Filename, err)
	}

	text := gemini.ResponseText(resp)
	if text == "" {
		return nil, fmt.Errorf("structure %s: %w", raw.Filename, domain.ErrEmptyModelResponse)
	}

	return statementFromModelText(raw.Filename, text)
}

func statementFromModelText(filename, text string) (*domain.ExtractedStatement, error) {
	obj, err := decodeModelJSON(text)
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", filename, err)
	}
	stmt, err := Normalize(obj)
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", filename, err)
	}
	return stmt, nil
}
