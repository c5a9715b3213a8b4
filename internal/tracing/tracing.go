package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"

	"salesdash/internal/config"
)

const (
	ServiceName    = "salesdash"
	ServiceVersion = "1.0.0"
)

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(context.Context) error

// Init installs the global tracer provider described by cfg. With tracing
// disabled the otel no-op provider stays in place and shutdown does nothing.
func Init(cfg config.TracingConfig, logger *slog.Logger) (ShutdownFunc, error) {
	return InitWithWriter(cfg, os.Stdout, logger)
}

// InitWithWriter is Init with the stdout exporter writing to w.
func InitWithWriter(cfg config.TracingConfig, w io.Writer, logger *slog.Logger) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled || cfg.Exporter == "none" {
		logger.Info("Tracing disabled")
		return noop, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing initialized",
		slog.String("exporter", cfg.Exporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return tp.Shutdown, nil
}
