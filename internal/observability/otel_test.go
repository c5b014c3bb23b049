package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ai/strata/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OtelConfig{Enabled: false}, nil)

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_DefaultAgentHost(t *testing.T) {
	cfg := config.OtelConfig{
		Enabled:     true,
		Environment: "test",
		ServiceName: "test-service",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg, nil)

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
}

func TestSetup_AgentUnavailable_GracefulDegradation(t *testing.T) {
	// Nothing listens here; exporter creation succeeds, spans fail silently.
	cfg := config.OtelConfig{
		Enabled:     true,
		AgentHost:   "localhost:1",
		ServiceName: "graceful-test",
	}

	ctx := context.Background()
	shutdown, err := Setup(ctx, cfg, nil)

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
}

func TestDefaultAgentHost_Value(t *testing.T) {
	assert.Equal(t, "localhost:4318", DefaultAgentHost)
}
