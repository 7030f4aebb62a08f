package trace

import (
	"cmp"
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/pkg/version"
)

// Config is the tracing section of the server configuration
type Config struct {
	Enabled     bool              `yaml:"enabled"`
	ServiceName string            `yaml:"service_name"`
	Protocol    string            `yaml:"protocol"` // grpc (default) or http
	Endpoint    string            `yaml:"endpoint"` // host:port of the collector
	Insecure    bool              `yaml:"insecure"`
	SamplerRate float64           `yaml:"sampler_rate"` // clamped to [0, 1]
	Environment string            `yaml:"environment"`
	Headers     map[string]string `yaml:"headers"` // sent with every export, e.g. auth
}

const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"
)

// InitTracing installs a global tracer provider exporting over OTLP and
// returns its shutdown func. A disabled config installs nothing.
func InitTracing(ctx context.Context, cfg *Config, lg *zap.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version.Get()),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exp, protocol, endpoint, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", protocol, err)
	}

	rate := samplerRate(cfg.SamplerRate)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	lg.Info("tracing enabled",
		zap.String("protocol", protocol),
		zap.String("endpoint", endpoint),
		zap.Float64("sampler_rate", rate))
	return tp.Shutdown, nil
}

// newExporter builds the OTLP exporter for cfg.Protocol, grpc unless "http".
// It also returns the protocol and endpoint actually used.
func newExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, string, string, error) {
	if cfg.Protocol == protocolHTTP {
		endpoint := cmp.Or(cfg.Endpoint, "localhost:4318")
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		return exp, protocolHTTP, endpoint, err
	}

	endpoint := cmp.Or(cfg.Endpoint, "localhost:4317")
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithHeaders(cfg.Headers)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	return exp, protocolGRPC, endpoint, err
}

// samplerRate clamps r into [0, 1]
func samplerRate(r float64) float64 {
	return min(max(r, 0), 1)
}

// Builder starts spans on one named tracer
type Builder struct {
	tracer trace.Tracer
}

// Tracer returns a Builder for the named tracer of the global provider
func Tracer(name string) *Builder {
	return &Builder{tracer: otel.Tracer(name)}
}

// SpanScope pairs a span with the context that carries it. A nil scope is a
// no-op.
type SpanScope struct {
	Ctx  context.Context
	Span trace.Span
}

func (b *Builder) Start(ctx context.Context, spanName string) *SpanScope {
	nctx, sp := b.tracer.Start(ctx, spanName)
	return &SpanScope{Ctx: nctx, Span: sp}
}

// WithAttrs sets attrs on the span and returns s for chaining
func (s *SpanScope) WithAttrs(attrs ...attribute.KeyValue) *SpanScope {
	if s == nil || s.Span == nil {
		return s
	}
	s.Span.SetAttributes(attrs...)
	return s
}

func (s *SpanScope) End() {
	if s == nil || s.Span == nil {
		return
	}
	s.Span.End()
}

// Transport wraps base so outbound calls carry span context and get client spans
func Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return "upstream " + r.Method + " " + r.URL.Host
	}))
}
