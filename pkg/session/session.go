package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/skycast/internal/observability"
	"github.com/harun/skycast/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNotFound is returned when a session does not exist
var ErrNotFound = errors.New("session not found")

// Key identifies a session by application, user, and session ID
type Key struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// String returns the canonical app/user/session form of the key
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AppName, k.UserID, k.SessionID)
}

// Validate checks that the key is complete and safe to use in file names
func (k Key) Validate() error {
	for _, part := range []struct {
		name  string
		value string
	}{
		{"app name", k.AppName},
		{"user id", k.UserID},
		{"session id", k.SessionID},
	} {
		if part.value == "" {
			return fmt.Errorf("%s cannot be empty", part.name)
		}
		if strings.Contains(part.value, "..") {
			return fmt.Errorf("%s cannot contain '..'", part.name)
		}
		if strings.ContainsAny(part.value, "/\\") {
			return fmt.Errorf("%s cannot contain path separators", part.name)
		}
		if strings.Contains(part.value, "\x00") {
			return fmt.Errorf("%s cannot contain null bytes", part.name)
		}
	}
	return nil
}

// Message represents a single conversation turn
type Message struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session holds the conversational history for one key
type Session struct {
	Key       Key       `json:"key"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service manages in-memory sessions, optionally backed by a JSONL store
type Service struct {
	sessions map[Key]*Session
	store    *Store
	mu       sync.RWMutex
}

// ServiceConfig configures a session service
type ServiceConfig struct {
	// Store enables JSONL persistence when non-nil
	Store *Store
}

// NewService creates a session service
func NewService(cfg ServiceConfig) *Service {
	observability.EnsureRegistered()

	s := &Service{
		sessions: make(map[Key]*Session),
		store:    cfg.Store,
	}

	log.Info().Bool("persistent", cfg.Store != nil).Msg("Session service initialized")
	return s
}

// Create creates a session for the key, loading persisted history when a
// store is configured. Creating an existing session returns it unchanged.
func (s *Service) Create(ctx context.Context, key Key) (*Session, error) {
	ctx = tracing.WithSessionKey(ctx, key.String())
	ctx, span := tracing.StartSpan(
		ctx,
		"skycast.session",
		"session.create",
		attribute.String("session_key", key.String()),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if err := key.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[key]; ok {
		logger.Debug().Msg("Session already exists")
		return existing, nil
	}

	now := time.Now()
	sess := &Session{
		Key:       key,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.store != nil {
		messages, err := s.store.Load(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}
		sess.Messages = messages
	}

	s.sessions[key] = sess
	observability.SetActiveSessions(len(s.sessions))

	logger.Info().Int("messages", len(sess.Messages)).Msg("Session created")
	return sess, nil
}

// Get returns the session for the key
func (s *Service) Get(ctx context.Context, key Key) (*Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return sess, nil
}

// Append adds a message to the session, creating the session if needed
func (s *Service) Append(ctx context.Context, key Key, message Message) error {
	ctx = tracing.WithSessionKey(ctx, key.String())
	ctx, span := tracing.StartSpan(
		ctx,
		"skycast.session",
		"session.append",
		attribute.String("session_key", key.String()),
		attribute.String("role", message.Role),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	if err := key.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if message.Role == "" {
		return fmt.Errorf("message role cannot be empty")
	}
	if message.Content == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	if !ok {
		now := time.Now()
		sess = &Session{Key: key, Messages: []Message{}, CreatedAt: now, UpdatedAt: now}
		s.sessions[key] = sess
		observability.SetActiveSessions(len(s.sessions))
	}
	sess.Messages = append(sess.Messages, message)
	sess.UpdatedAt = time.Now()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Append(ctx, key, message); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to persist message: %w", err)
		}
	}

	logger.Debug().Str("role", message.Role).Msg("Message appended")
	return nil
}

// History returns a copy of the session's messages
func (s *Service) History(ctx context.Context, key Key) ([]Message, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"skycast.session",
		"session.history",
		attribute.String("session_key", key.String()),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	if err := key.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return []Message{}, nil
	}

	history := make([]Message, len(sess.Messages))
	copy(history, sess.Messages)
	return history, nil
}

// Delete removes a session from memory and from the store if configured
func (s *Service) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, key)
	observability.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(ctx, key); err != nil {
			return err
		}
	}

	log.Info().Str("session_key", key.String()).Msg("Session deleted")
	return nil
}

// List returns the keys of all tracked sessions
func (s *Service) List() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.sessions))
	for key := range s.sessions {
		keys = append(keys, key)
	}
	return keys
}

// Count returns the number of tracked sessions
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
