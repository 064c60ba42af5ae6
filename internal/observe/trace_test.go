package observe

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracerProvider(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if id := CorrelationID(context.Background()); id != "" {
		t.Errorf("CorrelationID = %q, want empty without an active span", id)
	}
}

func TestCorrelationID_IsTraceID(t *testing.T) {
	setupTracerProvider(t)

	ctx, span := StartSpan(context.Background(), "utterance")
	defer span.End()

	id := CorrelationID(ctx)
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(id) {
		t.Errorf("CorrelationID = %q, want 32 hex chars", id)
	}
	if want := span.SpanContext().TraceID().String(); id != want {
		t.Errorf("CorrelationID = %q, want trace ID %q", id, want)
	}
}

func TestCorrelationID_UniquePerUtterance(t *testing.T) {
	setupTracerProvider(t)

	ctx1, span1 := StartSpan(context.Background(), "utterance")
	span1.End()
	ctx2, span2 := StartSpan(context.Background(), "utterance")
	span2.End()

	if CorrelationID(ctx1) == CorrelationID(ctx2) {
		t.Error("two utterances share a correlation ID")
	}
}

func TestStartSpan_RecordsPipelineStage(t *testing.T) {
	recorder := setupTracerProvider(t)

	_, span := StartSpan(context.Background(), "transcribe")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "transcribe" {
		t.Errorf("span name = %q, want %q", got, "transcribe")
	}
}

func TestLogger_AttachesTraceAndSpanIDs(t *testing.T) {
	setupTracerProvider(t)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, span := StartSpan(context.Background(), "refine")
	defer span.End()

	Logger(ctx).Info("transcript refined")

	out := buf.String()
	if !strings.Contains(out, "trace_id="+span.SpanContext().TraceID().String()) {
		t.Errorf("log line missing trace_id: %s", out)
	}
	if !strings.Contains(out, "span_id="+span.SpanContext().SpanID().String()) {
		t.Errorf("log line missing span_id: %s", out)
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Logger(context.Background()).Info("session started")

	out := buf.String()
	if strings.Contains(out, "trace_id") {
		t.Errorf("log line has trace_id without an active span: %s", out)
	}
}

func TestTracer_ReturnsNamedTracer(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("Tracer returned nil")
	}
}
