package agent

import (
	"context"
	"fmt"
	"strings"
)

// Provider is an interface for LLM API backends
type Provider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request Request) (*Response, error)

	// Name returns the backend name
	Name() string
}

// Request contains the request parameters for an LLM call
type Request struct {
	Model       string
	Messages    []Message
	Tools       []map[string]interface{}
	Temperature float64
	MaxTokens   int
	Instruction string
}

// Response contains the response from the LLM
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// ProxyConfig configures the OpenAI-compatible proxy backend. When Enabled,
// all model traffic is routed through BaseURL regardless of the model prefix.
type ProxyConfig struct {
	Enabled bool
	APIKey  string
	BaseURL string
}

// Credentials holds per-backend API keys
type Credentials struct {
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	Proxy        ProxyConfig
}

// Factory creates LLM providers from model names
type Factory struct {
	creds Credentials
}

// NewFactory creates a provider factory
func NewFactory(creds Credentials) *Factory {
	return &Factory{creds: creds}
}

// ResolveBackend maps a model name to its backend by prefix
func ResolveBackend(model string) (string, error) {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-") || strings.HasPrefix(m, "o1") ||
		strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4"):
		return "openai", nil
	case strings.HasPrefix(m, "claude"):
		return "anthropic", nil
	case strings.HasPrefix(m, "gemini"):
		return "gemini", nil
	default:
		return "", fmt.Errorf("cannot resolve backend for model %q", model)
	}
}

// ForModel returns the provider responsible for the given model. When the
// proxy is enabled it handles every model.
func (f *Factory) ForModel(model string) (Provider, error) {
	if f.creds.Proxy.Enabled {
		if f.creds.Proxy.BaseURL == "" {
			return nil, fmt.Errorf("proxy enabled but base URL is empty")
		}
		return NewProxyProvider(f.creds.Proxy.APIKey, f.creds.Proxy.BaseURL), nil
	}

	backend, err := ResolveBackend(model)
	if err != nil {
		return nil, err
	}

	switch backend {
	case "openai":
		if f.creds.OpenAIKey == "" {
			return nil, fmt.Errorf("openai: missing API key")
		}
		return NewOpenAIProvider(f.creds.OpenAIKey), nil
	case "anthropic":
		if f.creds.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic: missing API key")
		}
		return NewAnthropicProvider(f.creds.AnthropicKey), nil
	case "gemini":
		if f.creds.GeminiKey == "" {
			return nil, fmt.Errorf("gemini: missing API key")
		}
		return NewGeminiProvider(f.creds.GeminiKey), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// IsRetryableError checks if a provider error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()

	// Network errors
	if strings.Contains(errMsg, "ECONNRESET") || strings.Contains(errMsg, "ETIMEDOUT") ||
		strings.Contains(errMsg, "connection refused") {
		return true
	}

	// Rate limits
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") {
		return true
	}

	// Server errors
	if strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") || strings.Contains(errMsg, "504") ||
		strings.Contains(errMsg, "overloaded") {
		return true
	}

	return false
}
