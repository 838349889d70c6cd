package config

import (
	"encoding/json"
	"fmt"

	"github.com/harun/skycast/pkg/agent"
)

// Config represents the main Skycast configuration
type Config struct {
	// Application name, used as the session key prefix
	AppName string `json:"app_name" mapstructure:"app_name"`

	// Agent definition
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Models
	Models ModelsConfig `json:"models" mapstructure:"models"`

	// Provider credentials
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Session persistence
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Runner behavior
	Runner RunnerConfig `json:"runner" mapstructure:"runner"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Gateway server configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AgentConfig represents the agent definition
type AgentConfig struct {
	Name        string   `json:"name" mapstructure:"name"`
	Model       string   `json:"model" mapstructure:"model"`
	Description string   `json:"description" mapstructure:"description"`
	Instruction string   `json:"instruction" mapstructure:"instruction"`
	Tools       []string `json:"tools" mapstructure:"tools"`
	Temperature float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int      `json:"max_tokens" mapstructure:"max_tokens"`
}

// ModelsConfig holds model selection configuration
type ModelsConfig struct {
	Default string            `json:"default" mapstructure:"default"`
	Aliases map[string]string `json:"aliases" mapstructure:"aliases"`
}

// Resolve maps a model name through the alias table, falling back to the
// default model for an empty name.
func (m ModelsConfig) Resolve(model string) string {
	if model == "" {
		model = m.Default
	}
	if resolved, ok := m.Aliases[model]; ok {
		return resolved
	}
	return model
}

// ProvidersConfig holds per-backend credentials
type ProvidersConfig struct {
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
	Gemini    ProviderConfig `json:"gemini" mapstructure:"gemini"`
	Proxy     ProxyConfig    `json:"proxy" mapstructure:"proxy"`
}

// ProviderConfig holds one backend's credentials
type ProviderConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// ProxyConfig configures the OpenAI-compatible proxy backend
type ProxyConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// SessionsConfig holds session persistence configuration
type SessionsConfig struct {
	Persist bool   `json:"persist" mapstructure:"persist"`
	Dir     string `json:"dir" mapstructure:"dir"`
}

// RunnerConfig holds runner behavior configuration
type RunnerConfig struct {
	MaxRetries   int `json:"max_retries" mapstructure:"max_retries"`
	MaxToolTurns int `json:"max_tool_turns" mapstructure:"max_tool_turns"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		AppName: "weather_app",
		Agent: AgentConfig{
			Name:        "weather_assistant",
			Model:       "gemini-2.0-flash",
			Description: "Answers questions about current weather conditions.",
			Instruction: "You are a helpful weather assistant. Use the get_weather tool to answer weather questions. If the tool reports an error, relay it to the user.",
			Tools:       []string{"get_weather"},
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		Models: ModelsConfig{
			Default: "gemini-2.0-flash",
			Aliases: map[string]string{
				"flash":  "gemini-2.0-flash",
				"sonnet": "claude-sonnet-4-20250514",
				"gpt4o":  "gpt-4o",
			},
		},
		Sessions: SessionsConfig{
			Persist: true,
		},
		Runner: RunnerConfig{
			MaxRetries:   3,
			MaxToolTurns: 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// Credentials converts the provider configuration for the provider factory
func (c *Config) Credentials() agent.Credentials {
	return agent.Credentials{
		OpenAIKey:    c.Providers.OpenAI.APIKey,
		AnthropicKey: c.Providers.Anthropic.APIKey,
		GeminiKey:    c.Providers.Gemini.APIKey,
		Proxy: agent.ProxyConfig{
			Enabled: c.Providers.Proxy.Enabled,
			APIKey:  c.Providers.Proxy.APIKey,
			BaseURL: c.Providers.Proxy.BaseURL,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name is required")
	}

	if c.Agent.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if c.Agent.Model == "" && c.Models.Default == "" {
		return fmt.Errorf("agent model is required")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 1 {
		return fmt.Errorf("agent temperature must be between 0 and 1")
	}
	if c.Agent.MaxTokens < 0 {
		return fmt.Errorf("agent max_tokens cannot be negative")
	}

	hasCredentials := c.Providers.OpenAI.APIKey != "" ||
		c.Providers.Anthropic.APIKey != "" ||
		c.Providers.Gemini.APIKey != "" ||
		c.Providers.Proxy.Enabled
	if !hasCredentials {
		return fmt.Errorf("no provider credentials configured: set an API key or enable the proxy")
	}

	if c.Providers.Proxy.Enabled && c.Providers.Proxy.BaseURL == "" {
		return fmt.Errorf("proxy base_url is required when the proxy is enabled")
	}

	if c.Runner.MaxRetries < 0 {
		return fmt.Errorf("runner max_retries cannot be negative")
	}
	if c.Runner.MaxToolTurns < 0 {
		return fmt.Errorf("runner max_tool_turns cannot be negative")
	}

	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway port must be between 0 and 65535")
	}

	validLevels := map[string]bool{"": true, "trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}
