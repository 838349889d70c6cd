package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() Key {
	return Key{AppName: "weather_app", UserID: "user_1", SessionID: "session_001"}
}

func TestKeyValidate(t *testing.T) {
	t.Run("should accept a complete key", func(t *testing.T) {
		assert.NoError(t, testKey().Validate())
	})

	t.Run("should reject empty parts", func(t *testing.T) {
		assert.Error(t, Key{UserID: "u", SessionID: "s"}.Validate())
		assert.Error(t, Key{AppName: "a", SessionID: "s"}.Validate())
		assert.Error(t, Key{AppName: "a", UserID: "u"}.Validate())
	})

	t.Run("should reject path traversal", func(t *testing.T) {
		assert.Error(t, Key{AppName: "..", UserID: "u", SessionID: "s"}.Validate())
		assert.Error(t, Key{AppName: "a", UserID: "u/x", SessionID: "s"}.Validate())
		assert.Error(t, Key{AppName: "a", UserID: "u", SessionID: "s\\x"}.Validate())
	})

	t.Run("should render canonical string form", func(t *testing.T) {
		assert.Equal(t, "weather_app/user_1/session_001", testKey().String())
	})
}

func TestServiceCreate(t *testing.T) {
	t.Run("should create an empty session", func(t *testing.T) {
		svc := NewService(ServiceConfig{})

		sess, err := svc.Create(context.Background(), testKey())
		require.NoError(t, err)
		assert.Empty(t, sess.Messages)
		assert.Equal(t, 1, svc.Count())
	})

	t.Run("should return existing session on repeat create", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		key := testKey()

		first, err := svc.Create(context.Background(), key)
		require.NoError(t, err)
		require.NoError(t, svc.Append(context.Background(), key, Message{Role: "user", Content: "hi"}))

		second, err := svc.Create(context.Background(), key)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Len(t, second.Messages, 1)
	})

	t.Run("should reject invalid keys", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		_, err := svc.Create(context.Background(), Key{})
		assert.Error(t, err)
	})
}

func TestServiceAppendAndHistory(t *testing.T) {
	t.Run("should append and return history in order", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		key := testKey()

		require.NoError(t, svc.Append(context.Background(), key, Message{Role: "user", Content: "What is the weather in London?"}))
		require.NoError(t, svc.Append(context.Background(), key, Message{Role: "assistant", Content: "Cloudy, 15°C."}))

		history, err := svc.History(context.Background(), key)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "user", history[0].Role)
		assert.Equal(t, "assistant", history[1].Role)
	})

	t.Run("should auto-create the session on first append", func(t *testing.T) {
		svc := NewService(ServiceConfig{})

		require.NoError(t, svc.Append(context.Background(), testKey(), Message{Role: "user", Content: "hi"}))
		assert.Equal(t, 1, svc.Count())
	})

	t.Run("should stamp missing timestamps", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		key := testKey()

		require.NoError(t, svc.Append(context.Background(), key, Message{Role: "user", Content: "hi"}))

		history, err := svc.History(context.Background(), key)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), history[0].Timestamp, time.Minute)
	})

	t.Run("should reject empty role or content", func(t *testing.T) {
		svc := NewService(ServiceConfig{})

		assert.Error(t, svc.Append(context.Background(), testKey(), Message{Content: "hi"}))
		assert.Error(t, svc.Append(context.Background(), testKey(), Message{Role: "user"}))
	})

	t.Run("should return empty history for unknown session", func(t *testing.T) {
		svc := NewService(ServiceConfig{})

		history, err := svc.History(context.Background(), testKey())
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("should copy history so callers cannot mutate the session", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		key := testKey()
		require.NoError(t, svc.Append(context.Background(), key, Message{Role: "user", Content: "hi"}))

		history, err := svc.History(context.Background(), key)
		require.NoError(t, err)
		history[0].Content = "mutated"

		fresh, err := svc.History(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, "hi", fresh[0].Content)
	})
}

func TestServiceGetAndDelete(t *testing.T) {
	t.Run("should return ErrNotFound for missing session", func(t *testing.T) {
		svc := NewService(ServiceConfig{})

		_, err := svc.Get(context.Background(), testKey())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should delete a session", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		key := testKey()

		_, err := svc.Create(context.Background(), key)
		require.NoError(t, err)
		require.NoError(t, svc.Delete(context.Background(), key))

		assert.Equal(t, 0, svc.Count())
	})
}

func TestServiceIsolation(t *testing.T) {
	t.Run("should keep sessions for different keys isolated", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		keyA := Key{AppName: "app", UserID: "alice", SessionID: "s1"}
		keyB := Key{AppName: "app", UserID: "bob", SessionID: "s1"}

		require.NoError(t, svc.Append(context.Background(), keyA, Message{Role: "user", Content: "alice says hi"}))
		require.NoError(t, svc.Append(context.Background(), keyB, Message{Role: "user", Content: "bob says hi"}))

		historyA, err := svc.History(context.Background(), keyA)
		require.NoError(t, err)
		require.Len(t, historyA, 1)
		assert.Equal(t, "alice says hi", historyA[0].Content)
	})
}
