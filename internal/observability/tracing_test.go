package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/wsn-embedder/internal/logging"
)

func resetTracerProvider(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("WSNEMBED_TRACING_ENABLED", "true")
	t.Setenv("WSNEMBED_TRACING_EXPORTER", "OTLP")
	t.Setenv("WSNEMBED_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("WSNEMBED_TRACING_SAMPLE_RATIO", "3")

	cfg, err := TracingConfigFromEnv()
	if err != nil {
		t.Fatalf("TracingConfigFromEnv: %v", err)
	}
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", cfg.SampleRatio)
	}
	if cfg.ServiceName != "wsnembed" {
		t.Fatalf("service name default lost: %q", cfg.ServiceName)
	}
}

func TestTracingConfigDefaultsWithoutEnv(t *testing.T) {
	cfg, err := TracingConfigFromEnv()
	if err != nil {
		t.Fatalf("TracingConfigFromEnv: %v", err)
	}
	if cfg != DefaultTracingConfig() {
		t.Fatalf("got %+v, want defaults %+v", cfg, DefaultTracingConfig())
	}
	if cfg.Enabled {
		t.Fatalf("tracing must be off unless requested")
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	resetTracerProvider(t)
	var spans bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil, WithSpanOutput(&spans))
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer(TracerName).Start(context.Background(), "episode.run")
	if span.SpanContext().IsValid() {
		t.Fatalf("disabled tracing produced a recording span")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)
	if spans.Len() != 0 {
		t.Fatalf("disabled tracing exported %q", spans.String())
	}
}

func TestInitTracingExportsEpisodeSpansOnShutdown(t *testing.T) {
	resetTracerProvider(t)
	var spans bytes.Buffer
	cfg := TracingConfig{Enabled: true, ServiceName: "wsnembed-test", Exporter: "stdout", SampleRatio: 1}
	shutdown, err := InitTracing(context.Background(), cfg, nil, WithSpanOutput(&spans))
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer(TracerName).Start(context.Background(), "episode.run")
	if !span.SpanContext().IsValid() {
		t.Fatalf("enabled tracing should record spans")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := spans.String()
	for _, want := range []string{"episode.run", "wsnembed-test"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in exported spans:\n%s", want, out)
		}
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	resetTracerProvider(t)
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil || !strings.Contains(err.Error(), "zipkin") {
		t.Fatalf("expected error naming the unknown exporter, got %v", err)
	}
}

func TestShutdownWithTimeoutLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Format: "json", Output: &buf})

	ShutdownWithTimeout(context.Background(), nil, log)
	if buf.Len() != 0 {
		t.Fatalf("nil shutdown should be silent, got %q", buf.String())
	}

	called := false
	ShutdownWithTimeout(context.Background(), func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("shutdown context has no deadline")
		}
		return errors.New("collector gone")
	}, log)
	if !called {
		t.Fatalf("shutdown was not invoked")
	}
	if !strings.Contains(buf.String(), "flushing spans failed") || !strings.Contains(buf.String(), "collector gone") {
		t.Fatalf("missing warning in %q", buf.String())
	}
}
