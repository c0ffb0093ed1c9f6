// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nexusforge/user-service/internal/config"
)

func TestNewTelemetry_DisabledIsNoop(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), config.OtelConfig{ServiceName: "user-service"}, config.AppConfig{})
	require.NoError(t, err)
	require.NotNil(t, tel.Tracer)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestServiceNameAndSampleRate(t *testing.T) {
	assert.Equal(t, "collector-name", serviceName(
		config.OtelConfig{ServiceName: "collector-name"}, config.AppConfig{Name: "app"}))
	assert.Equal(t, "app", serviceName(config.OtelConfig{}, config.AppConfig{Name: "app"}))
	assert.Equal(t, instrumentationName, serviceName(config.OtelConfig{}, config.AppConfig{}))

	assert.InDelta(t, 0.5, sampleRate(0.5), 0)
	assert.InDelta(t, 1.0, sampleRate(1), 0)
	assert.InDelta(t, defaultSampleRate, sampleRate(0), 0)
	assert.InDelta(t, defaultSampleRate, sampleRate(1.5), 0)
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	got := TraceIDFromContext(ctx)
	assert.Len(t, got, 32)
	assert.Equal(t, span.SpanContext().TraceID().String(), got)
}

func TestSpanHelpers_RecordOnActiveSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	AddSpanEvent(ctx, "cache.miss", attribute.String("cache.key", "7"))
	SetSpanError(ctx, errors.New("boom"))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)

	events := ended[0].Events()
	require.Len(t, events, 2)
	assert.Equal(t, "cache.miss", events[0].Name)
	assert.Equal(t, "7", events[0].Attributes[0].Value.AsString())
	assert.Equal(t, "exception", events[1].Name)

	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
}

func TestSpanHelpers_NoSpanIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "cache.hit")
		SetSpanError(context.Background(), errors.New("boom"))
	})
}
