// Package tracing installs the OpenTelemetry tracer provider used for spans
// around engine calls.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/rshade/tcocalc/internal/logging"
)

// DefaultServiceName is reported when none is configured.
const DefaultServiceName = "tcocalc"

// Config selects the exporter.
type Config struct {
	Enabled     bool
	Endpoint    string // host:port or URL of an OTLP/HTTP collector
	ServiceName string
	Insecure    bool
	Version     string
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider exporting over OTLP/HTTP. When
// tracing is disabled the global no-op provider is left in place and the
// returned shutdown does nothing.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	opts, err := exporterOptions(cfg)
	if err != nil {
		return noopShutdown, err
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noopShutdown, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	tp := NewProvider(cfg, sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "tracing").
		Str("endpoint", cfg.Endpoint).
		Msg("tracing enabled")

	return tp.Shutdown, nil
}

// NewProvider builds a provider carrying the service resource. Extra options
// add span processors or exporters.
func NewProvider(cfg Config, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if cfg.Version != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.Version))
	}
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	}, opts...)
	return sdktrace.NewTracerProvider(opts...)
}

func exporterOptions(cfg Config) ([]otlptracehttp.Option, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tracing endpoint is required when tracing is enabled")
	}
	var opts []otlptracehttp.Option
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts, nil
}
