package weather

import (
	"context"
	"testing"

	"github.com/harun/skycast/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Run("should return canned report for known city", func(t *testing.T) {
		report := Lookup("New York")

		assert.Equal(t, StatusSuccess, report.Status)
		assert.Equal(t, "The weather in New York is sunny with a temperature of 25°C.", report.Report)
		assert.Empty(t, report.ErrorMessage)
	})

	t.Run("should be case insensitive", func(t *testing.T) {
		assert.Equal(t, StatusSuccess, Lookup("NEW YORK").Status)
		assert.Equal(t, StatusSuccess, Lookup("new york").Status)
		assert.Equal(t, StatusSuccess, Lookup("LoNdOn").Status)
	})

	t.Run("should ignore spaces anywhere in the input", func(t *testing.T) {
		assert.Equal(t, StatusSuccess, Lookup("  LONDON").Status)
		assert.Equal(t, StatusSuccess, Lookup("To kyo").Status)
		assert.Equal(t, StatusSuccess, Lookup(" new  york ").Status)
	})

	t.Run("should return error report for unknown city", func(t *testing.T) {
		report := Lookup("Paris")

		assert.Equal(t, StatusError, report.Status)
		assert.Empty(t, report.Report)
		assert.Contains(t, report.ErrorMessage, "Paris")
	})

	t.Run("should embed the original input in the error message", func(t *testing.T) {
		report := Lookup("  San Francisco ")

		assert.Equal(t, StatusError, report.Status)
		assert.Contains(t, report.ErrorMessage, "  San Francisco ")
	})

	t.Run("should handle empty input", func(t *testing.T) {
		report := Lookup("")
		assert.Equal(t, StatusError, report.Status)
	})
}

func TestCities(t *testing.T) {
	t.Run("should list all known cities", func(t *testing.T) {
		cities := Cities()
		assert.Len(t, cities, 3)
		assert.Contains(t, cities, "newyork")
		assert.Contains(t, cities, "london")
		assert.Contains(t, cities, "tokyo")
	})
}

func TestDefinition(t *testing.T) {
	t.Run("should register and execute through the tool registry", func(t *testing.T) {
		registry := tool.NewRegistry()
		require.NoError(t, Register(registry))

		result := registry.Execute(context.Background(), "get_weather", map[string]interface{}{
			"city": "Tokyo",
		})

		require.True(t, result.Success)
		report, ok := result.Output.(Report)
		require.True(t, ok)
		assert.Equal(t, StatusSuccess, report.Status)
		assert.Contains(t, report.Report, "Tokyo")
	})

	t.Run("should surface unknown city as a success with error report", func(t *testing.T) {
		registry := tool.NewRegistry()
		require.NoError(t, Register(registry))

		result := registry.Execute(context.Background(), "get_weather", map[string]interface{}{
			"city": "Paris",
		})

		// An unknown city is a normal tool result, not an execution failure
		require.True(t, result.Success)
		report := result.Output.(Report)
		assert.Equal(t, StatusError, report.Status)
		assert.Contains(t, report.ErrorMessage, "Paris")
	})

	t.Run("should reject a missing city argument", func(t *testing.T) {
		registry := tool.NewRegistry()
		require.NoError(t, Register(registry))

		result := registry.Execute(context.Background(), "get_weather", map[string]interface{}{})
		assert.False(t, result.Success)
	})

	t.Run("should fail registration without a registry", func(t *testing.T) {
		assert.Error(t, Register(nil))
	})
}
