package telemetry

import (
	"context"
	"testing"

	"arcadeswap-api/internal/config"

	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: true}, "test-service", "dev")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopWhenDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Endpoint: "http://localhost:4318", Enabled: false}, "test-service", "dev")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdown(ctx), "noop shutdown ignores cancelled context")
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export actually happens.
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Endpoint: "http://192.0.2.1:4318", Enabled: true}, "test-service", "dev")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
