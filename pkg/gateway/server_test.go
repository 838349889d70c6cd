package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/skycast/pkg/agent"
	"github.com/harun/skycast/pkg/commandqueue"
	"github.com/harun/skycast/pkg/runner"
	"github.com/harun/skycast/pkg/session"
	"github.com/harun/skycast/pkg/tool"
	"github.com/harun/skycast/pkg/weather"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedProvider answers every call with a fixed response
type cannedProvider struct {
	content string
}

func (p *cannedProvider) Call(ctx context.Context, request agent.Request) (*agent.Response, error) {
	return &agent.Response{Content: p.content}, nil
}

func (p *cannedProvider) Name() string { return "canned" }

// toolLoopProvider keeps requesting tool calls until the runner's turn limit
type toolLoopProvider struct{}

func (p *toolLoopProvider) Call(ctx context.Context, request agent.Request) (*agent.Response, error) {
	return &agent.Response{ToolCalls: []agent.ToolCall{{
		ID:         "call_loop",
		Name:       "get_weather",
		Parameters: map[string]interface{}{"city": "London"},
	}}}, nil
}

func (p *toolLoopProvider) Name() string { return "looping" }

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()
	return newTestServerWithProvider(t, secret, &cannedProvider{content: "Sunny, 25°C."})
}

func newTestServerWithProvider(t *testing.T, secret string, provider agent.Provider) *Server {
	t.Helper()

	registry := tool.NewRegistry()
	require.NoError(t, weather.Register(registry))

	a, err := agent.New(agent.Agent{
		Name:  "weather_assistant",
		Model: "gemini-2.0-flash",
		Tools: []string{"get_weather"},
	})
	require.NoError(t, err)

	queue := commandqueue.New()
	t.Cleanup(func() { _ = queue.Close() })

	r, err := runner.New(runner.Config{
		AppName:  "weather_app",
		Agent:    a,
		Sessions: session.NewService(session.ServiceConfig{}),
		Tools:    registry,
		Queue:    queue,
		Provider: provider,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	server, err := NewServer(Config{
		Host:         "127.0.0.1",
		Port:         8080,
		SharedSecret: secret,
		Runner:       r,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return server
}

func askBody(t *testing.T, message string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(AskRequest{
		UserID:    "user_1",
		SessionID: "session_001",
		Message:   message,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHandleAsk(t *testing.T) {
	t.Run("should answer an ask request", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "").Handler())
		defer ts.Close()

		resp, err := http.Post(ts.URL+"/v1/ask", "application/json", askBody(t, "weather?"))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var ask AskResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ask))
		assert.Equal(t, "Sunny, 25°C.", ask.Response)
		assert.Equal(t, "session_001", ask.SessionID)
	})

	t.Run("should reject empty messages", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "").Handler())
		defer ts.Close()

		resp, err := http.Post(ts.URL+"/v1/ask", "application/json", askBody(t, ""))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should reject malformed bodies", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "").Handler())
		defer ts.Close()

		resp, err := http.Post(ts.URL+"/v1/ask", "application/json", strings.NewReader("{broken"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should reject GET", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "").Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/v1/ask")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestAuth(t *testing.T) {
	t.Run("should require the shared secret", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "s3cret").Handler())
		defer ts.Close()

		resp, err := http.Post(ts.URL+"/v1/ask", "application/json", askBody(t, "weather?"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("should accept a bearer token", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "s3cret").Handler())
		defer ts.Close()

		req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/ask", askBody(t, "weather?"))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer s3cret")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("should leave healthz open", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "s3cret").Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestHandleStream(t *testing.T) {
	t.Run("should forward events until the final response", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "s3cret").Handler())
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream?token=s3cret"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(streamRequest{
			UserID:    "user_1",
			SessionID: "session_001",
			Message:   "weather?",
		}))

		deadline := time.Now().Add(5 * time.Second)
		require.NoError(t, conn.SetReadDeadline(deadline))

		var final runner.Event
		for {
			var event runner.Event
			require.NoError(t, conn.ReadJSON(&event))
			if event.IsFinal() {
				final = event
				break
			}
		}

		assert.Equal(t, runner.EventFinalResponse, final.Type)
		assert.Equal(t, "Sunny, 25°C.", final.Text())
	})

	t.Run("should report run errors without closing the stream", func(t *testing.T) {
		ts := httptest.NewServer(newTestServer(t, "").Handler())
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Empty message is rejected before a run starts
		require.NoError(t, conn.WriteJSON(streamRequest{
			UserID:    "user_1",
			SessionID: "session_001",
		}))

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var errMsg map[string]string
		require.NoError(t, conn.ReadJSON(&errMsg))
		assert.Contains(t, errMsg["error"], "empty")

		// The connection is still usable
		require.NoError(t, conn.WriteJSON(streamRequest{
			UserID:    "user_1",
			SessionID: "session_001",
			Message:   "weather?",
		}))
		var event runner.Event
		require.NoError(t, conn.ReadJSON(&event))
	})

	t.Run("should release the session after a client abandons the stream", func(t *testing.T) {
		// A max-turn run emits more events than the runner's channel buffers,
		// so the run only finishes if the handler keeps draining after the
		// client drops.
		ts := httptest.NewServer(newTestServerWithProvider(t, "", &toolLoopProvider{}).Handler())
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)

		require.NoError(t, conn.WriteJSON(streamRequest{
			UserID:    "user_1",
			SessionID: "session_001",
			Message:   "loop",
		}))

		// Drop the connection without reading a single event
		require.NoError(t, conn.Close())

		// A follow-up run on the same session must still complete
		done := make(chan error, 1)
		go func() {
			resp, err := http.Post(ts.URL+"/v1/ask", "application/json", askBody(t, "weather?"))
			if err == nil {
				resp.Body.Close()
			}
			done <- err
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("follow-up run on the same session did not complete")
		}
	})
}

func TestNewServer(t *testing.T) {
	t.Run("should reject an invalid port", func(t *testing.T) {
		_, err := NewServer(Config{Port: 0})
		assert.ErrorContains(t, err, "port")
	})

	t.Run("should require a runner", func(t *testing.T) {
		_, err := NewServer(Config{Port: 8080})
		assert.ErrorContains(t, err, "runner")
	})
}
