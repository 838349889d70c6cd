package runner

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// EventType classifies run events
type EventType string

const (
	// EventRunStarted marks the beginning of an invocation
	EventRunStarted EventType = "run_started"
	// EventToolCall reports a tool invocation requested by the model
	EventToolCall EventType = "tool_call"
	// EventToolResult reports the outcome of a tool invocation
	EventToolResult EventType = "tool_result"
	// EventFinalResponse carries the agent's final answer
	EventFinalResponse EventType = "final_response"
	// EventRunError terminates a failed invocation
	EventRunError EventType = "run_error"
)

// Part is a single piece of event content
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content carries the message payload of an event
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Event is one entry in the ordered stream produced by a run. Every run ends
// with exactly one terminal event: a final response or a run error.
type Event struct {
	ID           string                 `json:"id"`
	InvocationID string                 `json:"invocation_id"`
	Author       string                 `json:"author"`
	Type         EventType              `json:"type"`
	Content      *Content               `json:"content,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// IsFinal reports whether the event terminates the run
func (e Event) IsFinal() bool {
	return e.Type == EventFinalResponse || e.Type == EventRunError
}

// Text joins the text parts of the event's content
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	text := ""
	for _, part := range e.Content.Parts {
		text += part.Text
	}
	return text
}

func newEventID() string {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the system entropy source does
		return time.Now().Format("20060102150405.000000000")
	}
	return id
}

func newEvent(invocationID, author string, eventType EventType) Event {
	return Event{
		ID:           newEventID(),
		InvocationID: invocationID,
		Author:       author,
		Type:         eventType,
		Timestamp:    time.Now(),
	}
}

func textEvent(invocationID, author string, eventType EventType, role, text string) Event {
	e := newEvent(invocationID, author, eventType)
	e.Content = &Content{
		Role:  role,
		Parts: []Part{{Text: text}},
	}
	return e
}
