package agent

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ProxyProvider implements Provider for any OpenAI-compatible proxy such as
// LiteLLM. The proxy decides which upstream backend serves the model.
type ProxyProvider struct {
	client  openai.Client
	baseURL string
}

// NewProxyProvider creates a provider that talks to an OpenAI-compatible
// endpoint at baseURL.
func NewProxyProvider(apiKey, baseURL string) *ProxyProvider {
	return &ProxyProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
		baseURL: baseURL,
	}
}

// Name returns the backend name
func (p *ProxyProvider) Name() string {
	return "proxy"
}

// Call makes an API call through the proxy
func (p *ProxyProvider) Call(ctx context.Context, request Request) (*Response, error) {
	return chatCompletion(ctx, p.client, request)
}
