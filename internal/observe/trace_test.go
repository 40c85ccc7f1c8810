package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestLoggerAddsTraceAttributes(t *testing.T) {
	t.Parallel()

	tid, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	if err != nil {
		t.Fatalf("TraceIDFromHex: %v", err)
	}
	sid, err := trace.SpanIDFromHex("0102030405060708")
	if err != nil {
		t.Fatalf("SpanIDFromHex: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	Logger(ctx, base).Info("turn started")

	out := buf.String()
	if !strings.Contains(out, "trace_id=0102030405060708090a0b0c0d0e0f10") {
		t.Errorf("log line missing trace_id: %q", out)
	}
	if !strings.Contains(out, "span_id=0102030405060708") {
		t.Errorf("log line missing span_id: %q", out)
	}
}

func TestLoggerWithoutSpanIsUnchanged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	Logger(context.Background(), base).Info("idle")

	if out := buf.String(); strings.Contains(out, "trace_id") {
		t.Errorf("log line has trace attributes without an active span: %q", out)
	}
}
