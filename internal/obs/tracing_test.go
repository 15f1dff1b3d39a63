package obs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-square/internal/obs"
)

func resourceValue(t *testing.T, cfg obs.TracingConfig, key attribute.Key) (string, bool) {
	t.Helper()
	res, err := obs.NewTracingResource(context.Background(), cfg)
	require.NoError(t, err)
	v, ok := res.Set().Value(key)
	return v.AsString(), ok
}

func TestTracingResourceDescribesSquareAccount(t *testing.T) {
	cfg := obs.TracingConfig{
		ServiceName:      "toko-square",
		ServiceVersion:   "1.4.0",
		Environment:      "staging",
		SquareProduction: true,
		SquareAPIVersion: "2023-07-20",
	}

	v, ok := resourceValue(t, cfg, "service.name")
	require.True(t, ok)
	require.Equal(t, "toko-square", v)
	v, _ = resourceValue(t, cfg, "service.version")
	require.Equal(t, "1.4.0", v)
	v, _ = resourceValue(t, cfg, obs.AttrPaymentProvider)
	require.Equal(t, "square", v)
	v, _ = resourceValue(t, cfg, obs.AttrSquareEnvironment)
	require.Equal(t, "production", v)
	v, _ = resourceValue(t, cfg, obs.AttrSquareAPIVersion)
	require.Equal(t, "2023-07-20", v)
}

func TestTracingResourceDefaultsToSandbox(t *testing.T) {
	cfg := obs.TracingConfig{}

	v, _ := resourceValue(t, cfg, obs.AttrSquareEnvironment)
	require.Equal(t, "sandbox", v)
	v, _ = resourceValue(t, cfg, "service.name")
	require.Equal(t, "toko-square", v)
	_, ok := resourceValue(t, cfg, obs.AttrSquareAPIVersion)
	require.False(t, ok)
}

func TestInitTracerExporters(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.EqualError(t, err, "unsupported tracing exporter: zipkin")
}
