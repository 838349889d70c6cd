package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/harun/skycast/internal/tracing"
	"github.com/rs/zerolog/log"
)

// storeEntry is one persisted JSONL line
type storeEntry struct {
	Key     Key     `json:"key"`
	Message Message `json:"message"`
}

// Store persists session messages as JSONL, one file per session key
type Store struct {
	dir        string
	writeLocks map[Key]*sync.Mutex
	locksMu    sync.Mutex
}

// NewStore creates a JSONL session store rooted at dir
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".skycast", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	log.Info().Str("dir", dir).Msg("Session store initialized")

	return &Store{
		dir:        dir,
		writeLocks: make(map[Key]*sync.Mutex),
	}, nil
}

// path returns the JSONL file path for a key
func (st *Store) path(key Key) string {
	name := fmt.Sprintf("%s__%s__%s.jsonl", key.AppName, key.UserID, key.SessionID)
	return filepath.Join(st.dir, name)
}

func (st *Store) lock(key Key) *sync.Mutex {
	st.locksMu.Lock()
	defer st.locksMu.Unlock()

	if l, ok := st.writeLocks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	st.writeLocks[key] = l
	return l
}

// Append writes one message to the session's JSONL file, creating it if needed
func (st *Store) Append(ctx context.Context, key Key, message Message) error {
	if err := key.Validate(); err != nil {
		return err
	}

	lock := st.lock(key)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(st.path(key), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(storeEntry{Key: key, Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync session file: %w", err)
	}

	return nil
}

// Load reads all messages for a key, skipping corrupt lines
func (st *Store) Load(ctx context.Context, key Key) ([]Message, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_key", key.String()).Logger()

	file, err := os.Open(st.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	var messages []Message
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var entry storeEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			logger.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse line, skipping")
			continue
		}
		if entry.Message.Role == "" || entry.Message.Content == "" {
			logger.Warn().Int("line", lineNum).Msg("Invalid entry, skipping")
			continue
		}

		messages = append(messages, entry.Message)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// Delete removes the session's JSONL file
func (st *Store) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	lock := st.lock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(st.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}

	st.locksMu.Lock()
	delete(st.writeLocks, key)
	st.locksMu.Unlock()

	return nil
}

// Repair rewrites a session file keeping only parseable entries
func (st *Store) Repair(ctx context.Context, key Key) error {
	messages, err := st.Load(ctx, key)
	if err != nil {
		return err
	}

	lock := st.lock(key)
	lock.Lock()
	defer lock.Unlock()

	path := st.path(key)
	tempPath := path + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	for _, message := range messages {
		data, err := json.Marshal(storeEntry{Key: key, Message: message})
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	log.Info().Str("session_key", key.String()).Int("entries", len(messages)).Msg("Session repaired")
	return nil
}

// ListKeys returns the keys of all persisted sessions
func (st *Store) ListKeys() ([]Key, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Key{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var keys []Key
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		parts := strings.SplitN(strings.TrimSuffix(entry.Name(), ".jsonl"), "__", 3)
		if len(parts) != 3 {
			continue
		}
		keys = append(keys, Key{AppName: parts[0], UserID: parts[1], SessionID: parts[2]})
	}

	return keys, nil
}
