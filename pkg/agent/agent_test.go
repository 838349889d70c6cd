package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should create a valid agent", func(t *testing.T) {
		a, err := New(Agent{
			Name:        "weather_assistant",
			Model:       "gemini-2.0-flash",
			Instruction: "Answer weather questions using the get_weather tool.",
			Tools:       []string{"get_weather"},
		})

		require.NoError(t, err)
		assert.Equal(t, "weather_assistant", a.Name)
		assert.Equal(t, []string{"get_weather"}, a.Tools)
	})

	t.Run("should reject empty name", func(t *testing.T) {
		_, err := New(Agent{Model: "gpt-4o"})
		assert.ErrorContains(t, err, "name")
	})

	t.Run("should reject empty model", func(t *testing.T) {
		_, err := New(Agent{Name: "a"})
		assert.ErrorContains(t, err, "model")
	})

	t.Run("should reject out-of-range temperature", func(t *testing.T) {
		_, err := New(Agent{Name: "a", Model: "gpt-4o", Temperature: 1.5})
		assert.ErrorContains(t, err, "temperature")

		_, err = New(Agent{Name: "a", Model: "gpt-4o", Temperature: -0.1})
		assert.ErrorContains(t, err, "temperature")
	})

	t.Run("should reject negative max tokens", func(t *testing.T) {
		_, err := New(Agent{Name: "a", Model: "gpt-4o", MaxTokens: -1})
		assert.ErrorContains(t, err, "max tokens")
	})

	t.Run("should apply defaults", func(t *testing.T) {
		a, err := New(Agent{Name: "a", Model: "gpt-4o"})
		require.NoError(t, err)
		assert.Equal(t, 1024, a.MaxTokens)
		assert.NotEmpty(t, a.Instruction)
	})
}

func TestResolveBackend(t *testing.T) {
	t.Run("should resolve known prefixes", func(t *testing.T) {
		cases := map[string]string{
			"gpt-4o":                    "openai",
			"gpt-4o-mini":               "openai",
			"o3-mini":                   "openai",
			"claude-sonnet-4-20250514":  "anthropic",
			"claude-3-5-haiku-20241022": "anthropic",
			"gemini-2.0-flash":          "gemini",
			"Gemini-1.5-Pro":            "gemini",
		}

		for model, want := range cases {
			got, err := ResolveBackend(model)
			require.NoError(t, err, model)
			assert.Equal(t, want, got, model)
		}
	})

	t.Run("should reject unknown models", func(t *testing.T) {
		_, err := ResolveBackend("llama-3-70b")
		assert.ErrorContains(t, err, "cannot resolve backend")
	})
}

func TestFactoryForModel(t *testing.T) {
	t.Run("should build providers per backend", func(t *testing.T) {
		f := NewFactory(Credentials{
			OpenAIKey:    "sk-test",
			AnthropicKey: "sk-ant-test",
			GeminiKey:    "AIza-test",
		})

		p, err := f.ForModel("gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())

		p, err = f.ForModel("claude-sonnet-4-20250514")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())

		p, err = f.ForModel("gemini-2.0-flash")
		require.NoError(t, err)
		assert.Equal(t, "gemini", p.Name())
	})

	t.Run("should fail when the backend key is missing", func(t *testing.T) {
		f := NewFactory(Credentials{OpenAIKey: "sk-test"})

		_, err := f.ForModel("claude-sonnet-4-20250514")
		assert.ErrorContains(t, err, "missing API key")
	})

	t.Run("should route everything through an enabled proxy", func(t *testing.T) {
		f := NewFactory(Credentials{
			Proxy: ProxyConfig{Enabled: true, APIKey: "pk", BaseURL: "http://localhost:4000/v1"},
		})

		for _, model := range []string{"gpt-4o", "claude-sonnet-4-20250514", "llama-3-70b"} {
			p, err := f.ForModel(model)
			require.NoError(t, err, model)
			assert.Equal(t, "proxy", p.Name(), model)
		}
	})

	t.Run("should reject proxy without base URL", func(t *testing.T) {
		f := NewFactory(Credentials{Proxy: ProxyConfig{Enabled: true, APIKey: "pk"}})
		_, err := f.ForModel("gpt-4o")
		assert.ErrorContains(t, err, "base URL")
	})
}

func TestIsRetryableError(t *testing.T) {
	t.Run("should identify retryable errors", func(t *testing.T) {
		assert.True(t, IsRetryableError(fmt.Errorf("ECONNRESET")))
		assert.True(t, IsRetryableError(fmt.Errorf("ETIMEDOUT")))
		assert.True(t, IsRetryableError(fmt.Errorf("429 rate limit")))
		assert.True(t, IsRetryableError(fmt.Errorf("500 server error")))
		assert.True(t, IsRetryableError(fmt.Errorf("upstream overloaded")))
	})

	t.Run("should identify non-retryable errors", func(t *testing.T) {
		assert.False(t, IsRetryableError(fmt.Errorf("invalid API key")))
		assert.False(t, IsRetryableError(fmt.Errorf("validation failed")))
		assert.False(t, IsRetryableError(nil))
	})
}
