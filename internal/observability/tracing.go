package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/wsn-embedder/internal/logging"
)

// TracerName is the instrumentation scope used for episode spans.
const TracerName = "github.com/signalsfoundry/wsn-embedder"

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool    `config:"WSNEMBED_TRACING_ENABLED"`
	ServiceName string  `config:"WSNEMBED_TRACING_SERVICE_NAME"`
	Exporter    string  `config:"WSNEMBED_TRACING_EXPORTER"` // stdout | otlp
	Endpoint    string  `config:"WSNEMBED_OTLP_ENDPOINT"`    // used when Exporter == otlp
	SampleRatio float64 `config:"WSNEMBED_TRACING_SAMPLE_RATIO"`
}

// DefaultTracingConfig is the configuration used when no environment
// variable overrides a field.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "wsnembed",
		Exporter:    "stdout",
		SampleRatio: 1,
	}
}

// TracingConfigFromEnv overlays WSNEMBED_* environment variables on the
// defaults. Out of range sample ratios fall back to 1.
func TracingConfigFromEnv() (TracingConfig, error) {
	cfg := DefaultTracingConfig()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "read tracing config")
	}
	cfg.Exporter = strings.ToLower(cfg.Exporter)
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		cfg.SampleRatio = 1
	}
	return cfg, nil
}

// DefaultShutdownTimeout bounds how long ShutdownWithTimeout waits for
// pending spans.
const DefaultShutdownTimeout = 5 * time.Second

// TracingOption customises InitTracing.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	spanOutput io.Writer
}

// WithSpanOutput sends spans of the stdout exporter to w instead of
// os.Stderr.
func WithSpanOutput(w io.Writer) TracingOption {
	return func(o *tracingOptions) {
		if w != nil {
			o.spanOutput = w
		}
	}
}

// InitTracing installs the global tracer provider for episode spans. A
// disabled config installs a noop provider. The returned function flushes
// pending spans and must be called before exit.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger, opts ...TracingOption) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	o := tracingOptions{spanOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newSpanExporter(ctx, cfg, o.spanOutput)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "wsn"),
		attribute.String("wsn.tracer", TracerName),
	))
	if err != nil {
		return nil, eris.Wrap(err, "create resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing episodes",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig, out io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout", "":
		return stdouttrace.New(
			stdouttrace.WithWriter(out),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
		if err != nil {
			return nil, eris.Wrapf(err, "otlp exporter for %s", endpoint)
		}
		return exp, nil
	default:
		return nil, eris.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
}

// ShutdownWithTimeout calls shutdown with DefaultShutdownTimeout and logs
// instead of returning a failure. A nil shutdown is a no-op.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "flushing spans failed", logging.Err(err))
	}
}
