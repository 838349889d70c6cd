package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitOpenTelemetry(t *testing.T) {
	t.Run("should tolerate shutdown without init", func(t *testing.T) {
		assert.NoError(t, ShutdownOpenTelemetry(context.Background()))
	})

	t.Run("should be safe to call repeatedly", func(t *testing.T) {
		require.NoError(t, InitOpenTelemetry("skycast-test"))
		require.NoError(t, InitOpenTelemetry("skycast-test"))
		assert.NoError(t, ShutdownOpenTelemetry(context.Background()))
	})
}

func TestStartSpan(t *testing.T) {
	t.Run("should seed the trace ID when none is set", func(t *testing.T) {
		require.NoError(t, InitOpenTelemetry("skycast-test"))
		t.Cleanup(func() { _ = ShutdownOpenTelemetry(context.Background()) })

		ctx, span := StartSpan(context.Background(), "skycast.test", "test.span")
		defer span.End()

		assert.NotEmpty(t, GetTraceID(ctx))
	})

	t.Run("should keep an existing trace ID", func(t *testing.T) {
		base := WithTraceID(context.Background(), "trace-123")

		ctx, span := StartSpan(base, "skycast.test", "test.span")
		defer span.End()

		assert.Equal(t, "trace-123", GetTraceID(ctx))
	})
}
