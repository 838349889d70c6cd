package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/skycast/internal/observability"
	"github.com/harun/skycast/internal/tracing"
	"github.com/harun/skycast/pkg/runner"
	"github.com/rs/zerolog"
)

// Server exposes the agent over HTTP: a blocking ask endpoint and a
// websocket event stream.
type Server struct {
	host           string
	port           int
	sharedSecret   string
	runner         *runner.Runner
	logger         zerolog.Logger
	server         *http.Server
	upgrader       websocket.Upgrader
	streamClients  int
	streamMu       sync.Mutex
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	SharedSecret string
	Runner       *runner.Runner
	Logger       zerolog.Logger
}

// AskRequest is the body of POST /v1/ask
type AskRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// AskResponse is the body of a successful ask
type AskResponse struct {
	Response  string `json:"response"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// errorResponse is the body of any failed request
type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a gateway server
func NewServer(cfg Config) (*Server, error) {
	observability.EnsureRegistered()

	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}

	return &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		sharedSecret: cfg.SharedSecret,
		runner:       cfg.Runner,
		logger:       cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ask", s.withAuth(s.handleAsk))
	mux.HandleFunc("/v1/stream", s.withAuth(s.handleStream))
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.Handler(),
	}

	s.logger.Info().Str("host", s.host).Int("port", s.port).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server, waiting for in-flight requests
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// withAuth enforces the shared-secret bearer token when one is configured
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		shuttingDown := s.isShuttingDown
		s.shutdownMu.RUnlock()
		if shuttingDown {
			writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}

		if s.sharedSecret != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				// Browsers cannot set headers on websocket dials
				token = r.URL.Query().Get("token")
			}
			if token != s.sharedSecret {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}

		next(w, r)
	}
}

// handleAsk runs one invocation and responds with the final text
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	start := time.Now()

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordGatewayRequest("/v1/ask", time.Since(start), http.StatusBadRequest)
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := tracing.NewRequestContext(r.Context())
	logger := tracing.LoggerFromContext(ctx, s.logger)

	response, err := s.runner.Ask(ctx, req.UserID, req.SessionID, req.Message)
	if err != nil {
		observability.RecordGatewayRequest("/v1/ask", time.Since(start), http.StatusBadRequest)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	observability.RecordGatewayRequest("/v1/ask", time.Since(start), http.StatusOK)
	logger.Info().
		Str("user_id", req.UserID).
		Str("session_id", req.SessionID).
		Dur("duration", time.Since(start)).
		Msg("Ask handled")

	writeJSON(w, http.StatusOK, AskResponse{
		Response:  response,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})
}

// streamRequest is one message sent by a stream client
type streamRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// handleStream upgrades to a websocket and forwards run events as they
// happen. Each client message starts a run; the connection stays open for
// follow-up questions.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	s.streamMu.Lock()
	s.streamClients++
	observability.SetStreamClients(s.streamClients)
	s.streamMu.Unlock()

	defer func() {
		s.streamMu.Lock()
		s.streamClients--
		observability.SetStreamClients(s.streamClients)
		s.streamMu.Unlock()
	}()

	logger := s.logger.With().Str("remote", r.RemoteAddr).Logger()
	logger.Info().Msg("Stream client connected")

	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error().Err(err).Msg("Stream read error")
			}
			return
		}

		ctx := tracing.NewRequestContext(r.Context())
		events, err := s.runner.Run(ctx, req.UserID, req.SessionID, req.Message)
		if err != nil {
			if writeErr := conn.WriteJSON(map[string]string{"error": err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		if err := forwardEvents(conn, events); err != nil {
			logger.Error().Err(err).Msg("Failed to forward event")
			return
		}
	}
}

// forwardEvents writes each run event to the client. The stream is always
// drained to the end, even after a write failure, so the run can finish and
// release its session lane.
func forwardEvents(conn *websocket.Conn, events <-chan runner.Event) error {
	defer func() {
		for range events {
		}
	}()

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
