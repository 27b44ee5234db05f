package tracing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"

	"github.com/tsupplis/ansible-callbacks/internal/logger"
	cdlog "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/log"
	cdtracing "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/tracing"
)

const (
	defaultServiceName  = "changed-debug"
	defaultGRPCEndpoint = "localhost:4317"
	defaultHTTPEndpoint = "localhost:4318"
	defaultTracesPath   = "/v1/traces"
	defaultTimeout      = 10 * time.Second
)

// otelEnv holds the standard OTEL_* variables the provider understands.
type otelEnv struct {
	Disabled       bool   `env:"OTEL_SDK_DISABLED"`
	ServiceName    string `env:"OTEL_SERVICE_NAME"`
	Protocol       string `env:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	Endpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracesPath     string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	Headers        string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	Timeout        string `env:"OTEL_EXPORTER_OTLP_TIMEOUT"`
	Compression    string `env:"OTEL_EXPORTER_OTLP_COMPRESSION"`
	Insecure       string `env:"OTEL_EXPORTER_OTLP_INSECURE"`
	TracesInsecure string `env:"OTEL_EXPORTER_OTLP_TRACES_INSECURE"`
}

// OtelTracerProvider implements cdtracing.TracerProvider on top of either
// the OpenTelemetry SDK or the NoOp provider.
type OtelTracerProvider struct {
	provider    trace.TracerProvider
	exporter    sdktrace.SpanExporter
	sdkProvider *sdktrace.TracerProvider
	log         cdlog.Logger
}

// NewNoOpProvider returns a provider that records nothing.
func NewNoOpProvider() *OtelTracerProvider {
	return &OtelTracerProvider{
		provider: noop.NewTracerProvider(),
		log:      logger.NewDiscardLogger(),
	}
}

// ProviderOption configures NewProviderFromEnv.
type ProviderOption func(*providerSettings)

type providerSettings struct {
	log     cdlog.Logger
	environ map[string]string
}

// WithProviderLogger routes provider diagnostics to log.
func WithProviderLogger(log cdlog.Logger) ProviderOption {
	return func(s *providerSettings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithProviderEnvironment replaces the process environment, for tests.
func WithProviderEnvironment(m map[string]string) ProviderOption {
	return func(s *providerSettings) { s.environ = m }
}

// NewProviderFromEnv configures tracing from the standard OTEL_* variables.
// Tracing stays off (NoOp) unless an OTLP endpoint or protocol is set, and it
// falls back to NoOp when the exporter cannot be built. The global OTel
// provider is never touched.
func NewProviderFromEnv(ctx context.Context, opts ...ProviderOption) (*OtelTracerProvider, error) {
	settings := providerSettings{log: logger.NewDiscardLogger()}
	for _, opt := range opts {
		opt(&settings)
	}
	log := settings.log.With("component", "Tracing")

	var cfg otelEnv
	envOpts := env.Options{}
	if settings.environ != nil {
		envOpts.Environment = settings.environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		log.Warnf("Ignoring malformed OTEL_* environment: %v", err)
		return NewNoOpProvider(), nil
	}

	if cfg.Disabled {
		log.Debugf("OpenTelemetry tracing disabled via OTEL_SDK_DISABLED")
		return NewNoOpProvider(), nil
	}
	if cfg.Endpoint == "" && cfg.Protocol == "" {
		log.Debugf("No OTLP endpoint configured, tracing is off")
		return NewNoOpProvider(), nil
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName(cfg))),
		resource.WithProcess(), resource.WithOS(), resource.WithHost(),
	)
	if err != nil {
		log.Warnf("Failed to create OTel resource, using default: %v", err)
		res = resource.Default()
	}

	exporter, err := createExporter(ctx, cfg, log)
	if err != nil {
		log.Warnf("Failed to create OTLP exporter, tracing is off: %v", err)
		return NewNoOpProvider(), nil
	}

	sdkTP := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	log.Infof("OpenTelemetry SDK provider configured")
	return &OtelTracerProvider{
		provider:    sdkTP,
		exporter:    exporter,
		sdkProvider: sdkTP,
		log:         log,
	}, nil
}

// NewProviderWithExporter builds an SDK provider around an existing exporter
// using a synchronous span processor.
func NewProviderWithExporter(exporter sdktrace.SpanExporter) *OtelTracerProvider {
	sdkTP := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	return &OtelTracerProvider{
		provider:    sdkTP,
		exporter:    exporter,
		sdkProvider: sdkTP,
		log:         logger.NewDiscardLogger(),
	}
}

func createExporter(ctx context.Context, cfg otelEnv, log cdlog.Logger) (sdktrace.SpanExporter, error) {
	protocol := strings.ToLower(cfg.Protocol)
	if protocol == "" {
		protocol = "grpc"
	}
	endpoint := cfg.Endpoint

	headers := parseHeaders(cfg.Headers)
	timeout := parseTimeout(cfg.Timeout, defaultTimeout)
	gzipped := strings.EqualFold(cfg.Compression, "gzip")
	insecure := isInsecure(cfg.Insecure, cfg.TracesInsecure)

	switch protocol {
	case "grpc":
		if endpoint == "" {
			endpoint = defaultGRPCEndpoint
		}
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithHeaders(headers),
			otlptracegrpc.WithTimeout(timeout),
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		if gzipped {
			opts = append(opts, otlptracegrpc.WithCompressor(gzip.Name))
		}
		log.Debugf("Configuring OTLP gRPC exporter (endpoint: %s, insecure: %t, gzip: %t)", endpoint, insecure, gzipped)
		return otlptracegrpc.New(ctx, opts...)

	case "http", "http/protobuf":
		if endpoint == "" {
			endpoint = defaultHTTPEndpoint
		}
		path := cfg.TracesPath
		if path == "" {
			path = defaultTracesPath
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithURLPath(path),
			otlptracehttp.WithHeaders(headers),
			otlptracehttp.WithTimeout(timeout),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if gzipped {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		log.Debugf("Configuring OTLP HTTP exporter (endpoint: %s%s, insecure: %t, gzip: %t)", endpoint, path, insecure, gzipped)
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

// GetTracer returns a tracer from the configured provider.
func (p *OtelTracerProvider) GetTracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.provider == nil {
		return noop.NewTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Shutdown flushes and stops the SDK provider. The exporter is shut down by
// the provider's span processor. It is a no-op for NoOp providers.
func (p *OtelTracerProvider) Shutdown(ctx context.Context) error {
	if p.sdkProvider == nil {
		return nil
	}
	if err := p.sdkProvider.Shutdown(ctx); err != nil {
		p.log.Errorf("Error shutting down OTel tracer provider: %v", err)
		return err
	}
	p.log.Debugf("OpenTelemetry tracing shut down")
	return nil
}

// IsEffectivelyNoOp reports whether spans are discarded.
func (p *OtelTracerProvider) IsEffectivelyNoOp() bool {
	return p.sdkProvider == nil
}

func serviceName(cfg otelEnv) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return defaultServiceName
}

// parseHeaders converts a comma-separated key=value list into a map.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}
	for _, pair := range strings.Split(headerStr, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		if key := strings.TrimSpace(kv[0]); key != "" {
			headers[key] = strings.TrimSpace(kv[1])
		}
	}
	return headers
}

// parseTimeout accepts integer milliseconds (the OTLP convention) or a Go
// duration string.
func parseTimeout(timeoutStr string, fallback time.Duration) time.Duration {
	if timeoutStr == "" {
		return fallback
	}
	if ms, err := strconv.ParseInt(timeoutStr, 10, 64); err == nil {
		if ms < 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(timeoutStr); err == nil && d >= 0 {
		return d
	}
	return fallback
}

func isInsecure(flags ...string) bool {
	for _, flag := range flags {
		if strings.EqualFold(strings.TrimSpace(flag), "true") {
			return true
		}
	}
	return false
}

var _ cdtracing.TracerProvider = (*OtelTracerProvider)(nil)
