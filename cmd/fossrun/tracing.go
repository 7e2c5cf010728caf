package main

import (
	"context"
	"fmt"
	"os"

	"github.com/CZERTAINLY/fossrun/internal/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// initTracing installs a global tracer provider. Spans are written as JSON to
// dest (stderr, stdout or a file) when set, otherwise exported over OTLP/HTTP
// when an OTEL_EXPORTER_OTLP endpoint is configured. With neither, the
// default no-op provider stays in place. The returned function flushes and
// stops the provider.
func initTracing(ctx context.Context, dest string) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	closeOutput := func() error { return nil }

	switch {
	case dest != "":
		w, closer, err := log.Output(dest)
		if err != nil {
			return nil, fmt.Errorf("opening trace output: %w", err)
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			_ = closer()
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		exporter, closeOutput = exp, closer
	case otlpConfigured():
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}
		exporter = exp
	default:
		return func(context.Context) error { return nil }, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "fossrun"),
		)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := closeOutput(); err == nil {
			err = cerr
		}
		return err
	}, nil
}

func otlpConfigured() bool {
	for _, key := range []string{"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}
