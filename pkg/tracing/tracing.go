// Package tracing wraps OpenTelemetry so the routing code starts and ends
// spans without importing the SDK directly.
package tracing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "invoice_router"

var (
	providerOnce sync.Once
	providerErr  error

	outputMu sync.Mutex
	output   io.Closer
)

// Init installs a stdout exporter writing to outputFile, or to stdout when
// outputFile is empty. Only the first call has any effect. The file stays
// open until Shutdown.
func Init(serviceName, serviceVersion, outputFile string) error {
	var w io.Writer = os.Stdout
	var f *os.File
	if outputFile != "" {
		var err error
		f, err = os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeFile(f)
		return err
	}

	installed, err := install(serviceName, serviceVersion, exporter)
	if !installed || err != nil {
		closeFile(f)
		return err
	}
	if f != nil {
		outputMu.Lock()
		output = f
		outputMu.Unlock()
	}
	return nil
}

func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}
	_, err := install(serviceName, serviceVersion, exporter)
	return err
}

// install sets the global provider on the first call and reports whether
// this call was the one that did.
func install(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (bool, error) {
	installed := false
	providerOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			providerErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		installed = true
	})

	return installed, providerErr
}

// Shutdown flushes the installed provider, if it is an SDK provider, and
// closes the trace output file opened by Init.
func Shutdown(ctx context.Context) error {
	var errs []error
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		errs = append(errs, tp.Shutdown(ctx))
	}

	outputMu.Lock()
	if output != nil {
		errs = append(errs, output.Close())
		output = nil
	}
	outputMu.Unlock()

	return errors.Join(errs...)
}

func closeFile(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}

type Span struct {
	span trace.Span
}

// StartSpan starts an internal span. Without an installed provider the
// span is a no-op.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, &Span{span: span}
}

func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	s.span.SetAttributes(kv...)
	return s
}

func (s *Span) SetInt(key string, value int) {
	if s == nil {
		return
	}
	s.span.SetAttributes(attribute.Int(key, value))
}

// SetStatus records err on the span, or an OK status when err is nil.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

func (s *Span) End() {
	if s == nil {
		return
	}
	s.span.End()
}
