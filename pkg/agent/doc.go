// Package agent defines the agent configuration and the LLM provider
// abstraction behind it. An Agent binds a name, a backend model, a
// natural-language instruction, and a tool list; the provider Factory maps
// the agent's model to one of the supported backends (OpenAI, Anthropic,
// Gemini, or an OpenAI-compatible proxy).
package agent
