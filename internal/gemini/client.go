package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for extraction and structuring.
const DefaultModelName = "gemini-2.5-flash"

// Generator is the subset of the genai Models service used by this module.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGenerator creates a Gemini API client. An empty apiKey falls back to the
// GOOGLE_API_KEY / GEMINI_API_KEY environment variables read by the SDK.
func NewGenerator(ctx context.Context, apiKey string) (Generator, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client.Models, nil
}

// UserContent builds a single user turn from a text prompt and optional inline blobs.
func UserContent(prompt string, blobs ...*genai.Blob) []*genai.Content {
	parts := []*genai.Part{{Text: prompt}}
	for _, b := range blobs {
		parts = append(parts, &genai.Part{InlineData: b})
	}
	return []*genai.Content{{Role: "user", Parts: parts}}
}

// ResponseText returns the trimmed text of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Text())
}
