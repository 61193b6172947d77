package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndShutdown(t *testing.T) {
	provider, err := Init("test", 1.0)
	require.NoError(t, err)
	require.NotNil(t, provider)

	tracer := Tracer("telemetry-test")
	_, span := tracer.Start(context.Background(), "smoke")
	span.End()

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitWithSampleRate(t *testing.T) {
	provider, err := Init("test", 0.25)
	require.NoError(t, err)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestShutdownNilProvider(t *testing.T) {
	var provider *Provider
	assert.NoError(t, provider.Shutdown(context.Background()))
}
