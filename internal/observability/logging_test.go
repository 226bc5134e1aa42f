package observability

import (
	"context"
	"testing"

	"examgen/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Disabled(t *testing.T) {
	logger := NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	require.NotNil(t, logger)
	// no-op logger must swallow all levels without panicking
	ctx := context.Background()
	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info", map[string]interface{}{"k": "v"})
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", assert.AnError)
}

func TestNewLogger_NilConfig(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
	logger.Info(context.Background(), "still works")
}

func TestLogger_MergeFields(t *testing.T) {
	logger := NewLogger(nil)

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, logger.mergeFields())
	})

	t.Run("single nil map", func(t *testing.T) {
		assert.Empty(t, logger.mergeFields(nil))
	})

	t.Run("multiple maps override in order", func(t *testing.T) {
		merged := logger.mergeFields(
			map[string]interface{}{"a": 1, "b": 2},
			nil,
			map[string]interface{}{"b": 3},
		)
		assert.Equal(t, 1, merged["a"])
		assert.Equal(t, 3, merged["b"])
	})
}
