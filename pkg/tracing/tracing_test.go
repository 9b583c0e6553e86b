package tracing

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func initTracing(t *testing.T) {
	t.Helper()
	shutdown, err := Init(context.Background(), "", "vulpo-test")
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
}

func remoteContext() (context.Context, trace.SpanContext) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc), sc
}

func TestInjectMap(t *testing.T) {
	initTracing(t)
	ctx, _ := remoteContext()

	carrier := InjectMap(ctx)
	tp, ok := carrier["traceparent"].(string)
	if !ok {
		t.Fatalf("carrier = %v, want a traceparent entry", carrier)
	}
	if !strings.HasPrefix(tp, "00-4bf92f3577b34da6a3ce929d0e0e4736-") {
		t.Fatalf("traceparent = %q, want the injected trace id", tp)
	}
}

func TestInjectMapWithoutSpan(t *testing.T) {
	initTracing(t)

	carrier := InjectMap(context.Background())
	if _, ok := carrier["traceparent"]; ok {
		t.Fatalf("carrier = %v, want no traceparent without a span", carrier)
	}
}

func TestExtractCustomRoundTrip(t *testing.T) {
	initTracing(t)
	ctx, sc := remoteContext()
	carrier := InjectMap(ctx)

	extracted := ExtractCustom(context.Background(), func(key string) (interface{}, bool) {
		v, ok := carrier[key]
		return v, ok
	})

	got := trace.SpanContextFromContext(extracted)
	if got.TraceID() != sc.TraceID() {
		t.Fatalf("trace id = %s, want %s", got.TraceID(), sc.TraceID())
	}
	if got.SpanID() != sc.SpanID() {
		t.Fatalf("span id = %s, want %s", got.SpanID(), sc.SpanID())
	}
	if !got.IsRemote() {
		t.Fatal("extracted context is not marked remote")
	}
}

func TestExtractCustomIgnoresNonStrings(t *testing.T) {
	initTracing(t)

	ctx := ExtractCustom(context.Background(), func(string) (interface{}, bool) {
		return 42, true
	})
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Fatal("numeric custom properties produced a span context")
	}
}

func TestExtractCustomAbsentKeys(t *testing.T) {
	initTracing(t)

	ctx := ExtractCustom(context.Background(), func(string) (interface{}, bool) {
		return nil, false
	})
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Fatal("absent custom properties produced a span context")
	}
}
