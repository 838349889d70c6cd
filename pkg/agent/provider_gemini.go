package agent

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// geminiBaseURL is Google's OpenAI-compatible chat completions endpoint.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// GeminiProvider implements Provider for Google Gemini through its
// OpenAI-compatible endpoint.
type GeminiProvider struct {
	client openai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(geminiBaseURL),
		),
	}
}

// Name returns the backend name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Call makes an API call to Gemini
func (p *GeminiProvider) Call(ctx context.Context, request Request) (*Response, error) {
	return chatCompletion(ctx, p.client, request)
}
