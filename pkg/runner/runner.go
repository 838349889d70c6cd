package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/skycast/internal/observability"
	"github.com/harun/skycast/internal/tracing"
	"github.com/harun/skycast/pkg/agent"
	"github.com/harun/skycast/pkg/commandqueue"
	"github.com/harun/skycast/pkg/session"
	"github.com/harun/skycast/pkg/tool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Runner executes agent invocations and yields their event streams
type Runner struct {
	appName      string
	agent        *agent.Agent
	sessions     *session.Service
	tools        *tool.Registry
	queue        *commandqueue.CommandQueue
	factory      *agent.Factory
	provider     agent.Provider
	logger       zerolog.Logger
	maxRetries   int
	maxToolTurns int
}

// Config holds runner configuration
type Config struct {
	AppName  string
	Agent    *agent.Agent
	Sessions *session.Service
	Tools    *tool.Registry
	Queue    *commandqueue.CommandQueue

	// Factory selects the backend from the agent's model. Provider, when set,
	// bypasses the factory entirely.
	Factory  *agent.Factory
	Provider agent.Provider

	Logger       zerolog.Logger
	MaxRetries   int
	MaxToolTurns int
}

// New creates a runner
func New(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.AppName == "" {
		return nil, fmt.Errorf("app name is required")
	}
	if cfg.Agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("command queue is required")
	}
	if cfg.Provider == nil && cfg.Factory == nil {
		return nil, fmt.Errorf("a provider or a provider factory is required")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	maxToolTurns := cfg.MaxToolTurns
	if maxToolTurns <= 0 {
		maxToolTurns = 10
	}

	return &Runner{
		appName:      cfg.AppName,
		agent:        cfg.Agent,
		sessions:     cfg.Sessions,
		tools:        cfg.Tools,
		queue:        cfg.Queue,
		factory:      cfg.Factory,
		provider:     cfg.Provider,
		logger:       cfg.Logger,
		maxRetries:   maxRetries,
		maxToolTurns: maxToolTurns,
	}, nil
}

// Run starts an invocation for the user's message and returns its event
// stream. Events arrive in order and the channel closes after exactly one
// terminal event. Runs sharing a session key execute one at a time.
func (r *Runner) Run(ctx context.Context, userID, sessionID, text string) (<-chan Event, error) {
	if text == "" {
		return nil, fmt.Errorf("message text cannot be empty")
	}

	key := session.Key{AppName: r.appName, UserID: userID, SessionID: sessionID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.NewInvocationContext(ctx)
	ctx = tracing.WithSessionKey(ctx, key.String())
	invocationID := tracing.GetInvocationID(ctx)

	events := make(chan Event, 16)

	go func() {
		lane := fmt.Sprintf("session-%s", key.String())
		_, err := r.queue.EnqueueWithContext(ctx, lane, func(taskCtx context.Context) (interface{}, error) {
			r.execute(taskCtx, key, invocationID, text, events)
			return nil, nil
		})
		if err != nil {
			// execute always closes the channel itself; this path only fires
			// when the task never ran.
			r.emit(events, errorEvent(invocationID, r.agent.Name, err))
			close(events)
		}
	}()

	return events, nil
}

// execute performs one invocation and closes the event channel when done
func (r *Runner) execute(ctx context.Context, key session.Key, invocationID, text string, events chan<- Event) {
	defer close(events)

	ctx, span := tracing.StartSpan(
		ctx,
		"skycast.runner",
		"runner.execute",
		attribute.String("session_key", key.String()),
		attribute.String("agent", r.agent.Name),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("agent", r.agent.Name).Logger()

	start := time.Now()
	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("Run failed")
		observability.RecordAgentRun(r.providerName(), time.Since(start), false)
		r.emit(events, errorEvent(invocationID, r.agent.Name, err))
	}

	provider, err := r.resolveProvider()
	if err != nil {
		fail(err)
		return
	}

	r.emit(events, textEvent(invocationID, "user", EventRunStarted, "user", text))

	history, err := r.sessions.History(ctx, key)
	if err != nil {
		fail(fmt.Errorf("failed to load history: %w", err))
		return
	}

	if err := r.sessions.Append(ctx, key, session.Message{Role: "user", Content: text}); err != nil {
		fail(fmt.Errorf("failed to save user message: %w", err))
		return
	}

	declarations, err := r.tools.Declarations(r.agent.Tools...)
	if err != nil {
		fail(fmt.Errorf("failed to build tool declarations: %w", err))
		return
	}

	messages := make([]agent.Message, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, agent.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, agent.Message{Role: "user", Content: text})

	final, err := r.runToolLoop(ctx, provider, messages, declarations, invocationID, events)
	if err != nil {
		fail(err)
		return
	}

	if err := r.sessions.Append(ctx, key, session.Message{
		Role:    "assistant",
		Content: final.Content,
		Metadata: map[string]interface{}{
			"model": r.agent.Model,
			"usage": final.Usage,
		},
	}); err != nil {
		fail(fmt.Errorf("failed to save assistant message: %w", err))
		return
	}

	observability.RecordAgentRun(provider.Name(), time.Since(start), true)
	logger.Info().Dur("duration", time.Since(start)).Msg("Run completed")

	r.emit(events, textEvent(invocationID, r.agent.Name, EventFinalResponse, "assistant", final.Content))
}

// runToolLoop calls the provider until it answers without requesting tools
func (r *Runner) runToolLoop(ctx context.Context, provider agent.Provider, messages []agent.Message, declarations []map[string]interface{}, invocationID string, events chan<- Event) (*agent.Response, error) {
	logger := tracing.LoggerFromContext(ctx, r.logger)

	for turn := 0; turn < r.maxToolTurns; turn++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		response, err := r.callWithRetry(ctx, provider, messages, declarations)
		if err != nil {
			return nil, err
		}

		if len(response.ToolCalls) == 0 {
			return response, nil
		}

		messages = append(messages, agent.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			callEvent := newEvent(invocationID, r.agent.Name, EventToolCall)
			callEvent.Metadata = map[string]interface{}{
				"tool":       call.Name,
				"call_id":    call.ID,
				"parameters": call.Parameters,
			}
			r.emit(events, callEvent)

			result := r.tools.Execute(ctx, call.Name, call.Parameters)

			content := formatToolOutput(result.Output)
			if !result.Success {
				content = result.Error
			}

			resultEvent := textEvent(invocationID, call.Name, EventToolResult, "tool", content)
			resultEvent.Metadata = map[string]interface{}{
				"tool":    call.Name,
				"call_id": call.ID,
				"success": result.Success,
			}
			r.emit(events, resultEvent)

			logger.Debug().Str("tool", call.Name).Bool("success", result.Success).Msg("Tool call handled")

			messages = append(messages, agent.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return nil, fmt.Errorf("maximum tool execution turns exceeded")
}

// callWithRetry calls the provider with exponential backoff: 1s, 2s, 4s
func (r *Runner) callWithRetry(ctx context.Context, provider agent.Provider, messages []agent.Message, declarations []map[string]interface{}) (*agent.Response, error) {
	request := agent.Request{
		Model:       r.agent.Model,
		Messages:    messages,
		Tools:       declarations,
		Temperature: r.agent.Temperature,
		MaxTokens:   r.agent.MaxTokens,
		Instruction: r.agent.Instruction,
	}

	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !agent.IsRetryableError(err) {
			return nil, err
		}

		if attempt == r.maxRetries-1 {
			break
		}

		observability.RecordProviderRetry(provider.Name())
		delay := time.Duration(1<<attempt) * time.Second
		r.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after provider error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.maxRetries, lastErr)
}

func (r *Runner) resolveProvider() (agent.Provider, error) {
	if r.provider != nil {
		return r.provider, nil
	}
	return r.factory.ForModel(r.agent.Model)
}

func (r *Runner) providerName() string {
	if r.provider != nil {
		return r.provider.Name()
	}
	if backend, err := agent.ResolveBackend(r.agent.Model); err == nil {
		return backend
	}
	return "unknown"
}

func (r *Runner) emit(events chan<- Event, e Event) {
	observability.RecordEvent(string(e.Type))
	events <- e
}

func errorEvent(invocationID, author string, err error) Event {
	e := newEvent(invocationID, author, EventRunError)
	e.Error = err.Error()
	return e
}

// formatToolOutput renders a tool result for the model. Structured outputs
// are serialized as JSON so the model sees field names.
func formatToolOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
