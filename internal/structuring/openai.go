package structuring

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/extract"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	maxTokens          = 8192
)

// ChatCompleter is the subset of *openai.Client used by OpenAIStructurer.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIStructurer structures documents with an OpenAI chat model.
type OpenAIStructurer struct {
	client ChatCompleter
	model  string
}

// NewOpenAIStructurer creates an OpenAIStructurer.
func NewOpenAIStructurer(client ChatCompleter, model string) *OpenAIStructurer {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIStructurer{client: client, model: model}
}

// NewOpenAIClient returns an API client for apiKey.
func NewOpenAIClient(apiKey string) *openai.Client {
	return openai.NewClient(apiKey)
}

// Structure implements Structurer.
func (s *OpenAIStructurer) Structure(ctx context.Context, raw *extract.RawExtraction, req Request) (*domain.ExtractedStatement, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: s.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(raw, req)},
		},
	}
	// Reasoning models take MaxCompletionTokens instead of MaxTokens.
	if isReasoningModel(s.model) {
		chatReq.MaxCompletionTokens = maxTokens
	} else {
		chatReq.MaxTokens = maxTokens
		chatReq.Temperature = 0.1
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("structure %s: create chat completion: %w", raw.Filename, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("structure %s: %w", raw.Filename, domain.ErrEmptyModelResponse)
	}

	return statementFromModelText(raw.Filename, resp.Choices[0].Message.Content)
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
