package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("library-loans", "test")
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("logger ready")
}

func TestSetupTracing_WithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "library-loans", "test", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_WithEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "library-loans", "test", "localhost:4318")
	require.NoError(t, err)
	// Nothing was recorded, so shutdown does not need to reach the collector.
	assert.NoError(t, shutdown(context.Background()))
}
