package agent

import (
	"fmt"
)

// Agent is an immutable binding of a model backend, an instruction, and a
// tool list. Construct with New; do not mutate afterwards.
type Agent struct {
	Name        string   `json:"name"`
	Model       string   `json:"model"`
	Description string   `json:"description,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// New validates and returns an agent configuration
func New(a Agent) (*Agent, error) {
	if a.Name == "" {
		return nil, fmt.Errorf("agent name cannot be empty")
	}
	if a.Model == "" {
		return nil, fmt.Errorf("agent %s: model cannot be empty", a.Name)
	}
	if a.Temperature < 0 || a.Temperature > 1 {
		return nil, fmt.Errorf("agent %s: temperature must be between 0 and 1", a.Name)
	}
	if a.MaxTokens < 0 {
		return nil, fmt.Errorf("agent %s: max tokens cannot be negative", a.Name)
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = 1024
	}
	if a.Instruction == "" {
		a.Instruction = "You are a helpful assistant."
	}
	return &a, nil
}

// Message represents a message in a provider conversation
type Message struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall represents a tool invocation requested by the model
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption for one provider call
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
