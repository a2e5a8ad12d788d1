package structuring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/dvloznov/finance-intake/internal/gemini"
)

// ModeStructure asks the model to turn raw content into a typed statement.
const ModeStructure = "structure"

// Request carries the structuring mode and the company context for the prompt.
type Request struct {
	Mode    string
	Context domain.UploadOptions
}

// Structurer converts a raw extraction into a typed financial statement.
// Implementations leave SourceFilename, Size and MIMEType unset.
type Structurer interface {
	Structure(ctx context.Context, raw *extract.RawExtraction, req Request) (*domain.ExtractedStatement, error)
}

// Provider names accepted by configuration.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrUnknownProvider is returned by New for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown structuring provider")

// Backends carries the model clients New may choose from.
type Backends struct {
	Gemini gemini.Generator
	OpenAI ChatCompleter
}

// New returns the structurer for provider. An empty provider selects Gemini.
func New(provider, model string, b Backends) (Structurer, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderGemini:
		if b.Gemini == nil {
			return nil, fmt.Errorf("structuring provider %q: gemini client not configured", ProviderGemini)
		}
		return NewGeminiStructurer(b.Gemini, model), nil
	case ProviderOpenAI:
		if b.OpenAI == nil {
			return nil, fmt.Errorf("structuring provider %q: openai client not configured", ProviderOpenAI)
		}
		return NewOpenAIStructurer(b.OpenAI, model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
