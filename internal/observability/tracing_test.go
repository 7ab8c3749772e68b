package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "skillswap-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "swap.update_status", attribute.Int("swap.id", 1))
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}

func TestInitTracing_Stdout(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{
		ServiceName:  "skillswap-test",
		Enabled:      true,
		Exporter:     "stdout",
		SamplerRatio: 1,
	})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "jobs.run")
	assert.True(t, span.SpanContext().IsValid())
	EndSpan(span, nil)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracingConfig_Sampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), TracingConfig{SamplerRatio: 1}.sampler().Description())
	assert.Contains(t, TracingConfig{}.sampler().Description(), "AlwaysOffSampler")
	assert.Contains(t, TracingConfig{SamplerRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}
