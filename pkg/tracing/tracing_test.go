package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsStatusAndAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	ctx, span := startWith(context.Background(), tp, "assignment.assign")
	span.WithAttributes(map[string]string{"strategy": "round-robin"})
	span.SetInt("backups", 2)
	span.SetStatus(errors.New("no eligible approver"))
	span.End()

	require.NotNil(t, ctx)
	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "assignment.assign", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Attributes(), 2)
}

func TestSpan_NilSafe(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() {
		s.WithAttributes(map[string]string{"a": "b"})
		s.SetInt("n", 1)
		s.SetStatus(nil)
		s.End()
	})
}

func TestStartSpan_WithoutProviderIsNoop(t *testing.T) {
	_, span := StartSpan(context.Background(), "noop")
	assert.NotPanics(t, func() {
		span.SetStatus(nil)
		span.End()
	})
}

func startWith(ctx context.Context, tp *sdktrace.TracerProvider, name string) (context.Context, *Span) {
	ctx, span := tp.Tracer(instrumentationName).Start(ctx, name)
	return ctx, &Span{span: span}
}

func TestInit_WritesToFileAndShutdownClosesIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.json")

	require.NoError(t, Init("invoice_router", "test", path))
	_, span := StartSpan(context.Background(), "simulator.run")
	span.End()

	require.NoError(t, Shutdown(context.Background()))

	outputMu.Lock()
	assert.Nil(t, output)
	outputMu.Unlock()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "simulator.run")
}
