// Package observability wires the OTLP trace exporter. Sweep spans from the
// lifecycle maintainer flow through the global TracerProvider to a local
// collector (Datadog Agent or any OTLP HTTP receiver on localhost:4318).
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/strata-ai/strata/internal/config"
)

// DefaultAgentHost is the default OTLP HTTP endpoint.
const DefaultAgentHost = "localhost:4318"

// Setup installs a global TracerProvider exporting to the configured OTLP
// endpoint. Returns a shutdown function that flushes pending spans.
//
// Tracing disabled, or a failed exporter, degrades to a no-op shutdown:
// sweeps run fine without a collector.
func Setup(ctx context.Context, cfg config.OtelConfig, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled {
		return noop, nil
	}

	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "strata"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating otlp exporter failed, tracing disabled", "error", err)
		return noop, nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		logger.Warn("building otel resource failed, tracing disabled", "error", err)
		return noop, nil
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", serviceName,
		"environment", cfg.Environment,
	)

	return provider.Shutdown, nil
}
