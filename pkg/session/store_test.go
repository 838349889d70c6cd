package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAppendLoad(t *testing.T) {
	t.Run("should round-trip messages through the JSONL file", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		key := testKey()

		require.NoError(t, store.Append(context.Background(), key, Message{Role: "user", Content: "weather in tokyo?"}))
		require.NoError(t, store.Append(context.Background(), key, Message{Role: "assistant", Content: "Rainy, 18°C."}))

		messages, err := store.Load(context.Background(), key)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "weather in tokyo?", messages[0].Content)
		assert.Equal(t, "assistant", messages[1].Role)
	})

	t.Run("should return empty slice for missing file", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		messages, err := store.Load(context.Background(), testKey())
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("should skip corrupt lines", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)
		key := testKey()

		require.NoError(t, store.Append(context.Background(), key, Message{Role: "user", Content: "ok"}))

		f, err := os.OpenFile(store.path(key), os.O_APPEND|os.O_WRONLY, 0600)
		require.NoError(t, err)
		_, err = f.WriteString("{not json}\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		messages, err := store.Load(context.Background(), key)
		require.NoError(t, err)
		assert.Len(t, messages, 1)
	})
}

func TestStoreRepair(t *testing.T) {
	t.Run("should rewrite the file without corrupt entries", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)
		key := testKey()

		require.NoError(t, store.Append(context.Background(), key, Message{Role: "user", Content: "ok"}))
		f, err := os.OpenFile(store.path(key), os.O_APPEND|os.O_WRONLY, 0600)
		require.NoError(t, err)
		_, err = f.WriteString("garbage line\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		require.NoError(t, store.Repair(context.Background(), key))

		data, err := os.ReadFile(store.path(key))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "garbage")
	})
}

func TestStoreDeleteAndList(t *testing.T) {
	t.Run("should delete the session file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)
		key := testKey()

		require.NoError(t, store.Append(context.Background(), key, Message{Role: "user", Content: "ok"}))
		require.NoError(t, store.Delete(context.Background(), key))

		_, err = os.Stat(store.path(key))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("should tolerate deleting a missing session", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		assert.NoError(t, store.Delete(context.Background(), testKey()))
	})

	t.Run("should list persisted keys", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)

		require.NoError(t, store.Append(context.Background(), testKey(), Message{Role: "user", Content: "ok"}))
		// Unrelated files are ignored
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

		keys, err := store.ListKeys()
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, testKey(), keys[0])
	})
}

func TestServiceWithStore(t *testing.T) {
	t.Run("should reload persisted history on create", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir)
		require.NoError(t, err)
		key := testKey()

		svc := NewService(ServiceConfig{Store: store})
		require.NoError(t, svc.Append(context.Background(), key, Message{Role: "user", Content: "remember me"}))

		// A fresh service sharing the store sees the history
		fresh := NewService(ServiceConfig{Store: store})
		sess, err := fresh.Create(context.Background(), key)
		require.NoError(t, err)
		require.Len(t, sess.Messages, 1)
		assert.Equal(t, "remember me", sess.Messages[0].Content)
	})
}
