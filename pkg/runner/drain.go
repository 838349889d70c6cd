package runner

import "context"

// NoResponseText is returned by FinalText when the stream ends without a
// final response.
const NoResponseText = "Agent did not produce a final response."

// FinalText consumes the event stream and returns the text of the final
// response. It stops reading at the first terminal event; a run error or a
// stream that closes without one yields NoResponseText.
func FinalText(events <-chan Event) string {
	for event := range events {
		if !event.IsFinal() {
			continue
		}
		if event.Type == EventFinalResponse {
			if text := event.Text(); text != "" {
				return text
			}
		}
		return NoResponseText
	}
	return NoResponseText
}

// Ask runs one invocation and blocks for the final response text
func (r *Runner) Ask(ctx context.Context, userID, sessionID, text string) (string, error) {
	events, err := r.Run(ctx, userID, sessionID, text)
	if err != nil {
		return "", err
	}
	return FinalText(events), nil
}

// Collect consumes the event stream and returns all events in order
func Collect(events <-chan Event) []Event {
	collected := []Event{}
	for event := range events {
		collected = append(collected, event)
	}
	return collected
}
