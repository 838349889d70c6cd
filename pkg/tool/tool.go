package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/harun/skycast/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Parameter describes a single tool argument
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for tool execution
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Definition describes a callable tool exposed to the agent
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Result is the structured outcome of a tool execution. Handler failures are
// reported here as normal values, never as Go errors or panics.
type Result struct {
	Success bool        `json:"success"`
	Output  interface{} `json:"output,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Registry manages tool definitions and validates arguments before dispatch
type Registry struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	observability.EnsureRegistered()

	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition and compiles its argument schema
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}

	schemaDoc := InputSchema(def)
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Errorf("tool %s: failed to marshal schema: %w", def.Name, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("tool %s: invalid parameter schema: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s: already registered", def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema

	log.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Get returns a tool definition by name, or nil if unknown
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns the names of all registered tools
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Declarations returns provider-facing declarations for the named tools.
// With no names, all registered tools are declared.
func (r *Registry) Declarations(names ...string) ([]map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = make([]string, 0, len(r.tools))
		for name := range r.tools {
			names = append(names, name)
		}
	}

	decls := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		def, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("tool not found: %s", name)
		}
		decls = append(decls, map[string]interface{}{
			"name":         def.Name,
			"description":  def.Description,
			"input_schema": InputSchema(*def),
		})
	}
	return decls, nil
}

// Execute validates params against the tool schema and runs the handler.
// Validation failures and handler errors are returned inside the Result.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) Result {
	start := time.Now()

	r.mu.RLock()
	def, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		observability.RecordToolExecution(name, time.Since(start), false)
		return Result{Success: false, Error: fmt.Sprintf("tool not found: %s", name)}
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	validation, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		observability.RecordToolExecution(name, time.Since(start), false)
		return Result{Success: false, Error: fmt.Sprintf("argument validation failed: %v", err)}
	}
	if !validation.Valid() {
		observability.RecordToolExecution(name, time.Since(start), false)
		return Result{Success: false, Error: fmt.Sprintf("invalid arguments: %v", validation.Errors())}
	}

	output, err := def.Handler(ctx, params)

	duration := time.Since(start)
	observability.RecordToolExecution(name, duration, err == nil)

	if err != nil {
		log.Debug().Str("tool", name).Dur("duration", duration).Err(err).Msg("Tool execution failed")
		return Result{Success: false, Error: err.Error()}
	}

	log.Debug().Str("tool", name).Dur("duration", duration).Msg("Tool executed")
	return Result{Success: true, Output: output}
}

// InputSchema builds the JSON schema document for a tool's parameters
func InputSchema(def Definition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
