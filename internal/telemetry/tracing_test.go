package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracerProvider(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exp))
	otel.SetTracerProvider(tp)

	cleanup := func() {
		otel.SetTracerProvider(nil)
	}

	return exp, cleanup
}

func TestStartSpan(t *testing.T) {
	t.Run("creates span with correct name", func(t *testing.T) {
		exp, cleanup := setupTracerProvider(t)
		defer cleanup()

		_, span := StartSpan(context.Background(), "reconcile-payment")
		span.End()

		spans := exp.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if spans[0].Name != "reconcile-payment" {
			t.Errorf("expected span name 'reconcile-payment', got %s", spans[0].Name)
		}
	})

	t.Run("creates nested spans correctly", func(t *testing.T) {
		exp, cleanup := setupTracerProvider(t)
		defer cleanup()

		ctx, parent := StartSpan(context.Background(), "parent-operation")
		_, child := StartSpan(ctx, "child-operation")
		child.End()
		parent.End()

		spans := exp.GetSpans()
		if len(spans) != 2 {
			t.Fatalf("expected 2 spans, got %d", len(spans))
		}
		if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
			t.Error("expected child span to have parent span ID")
		}
	})
}

func TestAddSpanAttributes(t *testing.T) {
	t.Run("adds attributes to span", func(t *testing.T) {
		exp, cleanup := setupTracerProvider(t)
		defer cleanup()

		_, span := StartSpan(context.Background(), "test-operation")
		AddSpanAttributes(span, attribute.String("order.id", "ord_1"))
		span.End()

		spans := exp.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}

		found := false
		for _, attr := range spans[0].Attributes {
			if attr.Key == "order.id" && attr.Value.AsString() == "ord_1" {
				found = true
			}
		}
		if !found {
			t.Error("expected order.id attribute on span")
		}
	})

	t.Run("tolerates nil span", func(t *testing.T) {
		AddSpanAttributes(nil, attribute.String("key", "value"))
	})
}

func TestRecordSpanError(t *testing.T) {
	t.Run("records error and sets status", func(t *testing.T) {
		exp, cleanup := setupTracerProvider(t)
		defer cleanup()

		_, span := StartSpan(context.Background(), "test-operation")
		RecordSpanError(span, errors.New("boom"))
		span.End()

		spans := exp.GetSpans()
		if spans[0].Status.Code != codes.Error {
			t.Errorf("expected error status, got %v", spans[0].Status.Code)
		}
		if len(spans[0].Events) == 0 {
			t.Error("expected error event on span")
		}
	})

	t.Run("ignores nil error", func(t *testing.T) {
		exp, cleanup := setupTracerProvider(t)
		defer cleanup()

		_, span := StartSpan(context.Background(), "test-operation")
		RecordSpanError(span, nil)
		span.End()

		spans := exp.GetSpans()
		if spans[0].Status.Code == codes.Error {
			t.Error("expected no error status for nil error")
		}
	})
}

func TestSetSpanSuccess(t *testing.T) {
	exp, cleanup := setupTracerProvider(t)
	defer cleanup()

	_, span := StartSpan(context.Background(), "test-operation")
	SetSpanSuccess(span)
	span.End()

	spans := exp.GetSpans()
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("expected ok status, got %v", spans[0].Status.Code)
	}
}

func TestTraceAndSpanID(t *testing.T) {
	t.Run("returns ids inside a span", func(t *testing.T) {
		_, cleanup := setupTracerProvider(t)
		defer cleanup()

		ctx, span := StartSpan(context.Background(), "test-operation")
		defer span.End()

		if TraceID(ctx) == "" {
			t.Error("expected non-empty trace id")
		}
		if SpanID(ctx) == "" {
			t.Error("expected non-empty span id")
		}
	})

	t.Run("returns empty ids without a span", func(t *testing.T) {
		ctx := context.Background()
		if TraceID(ctx) != "" {
			t.Error("expected empty trace id")
		}
		if SpanID(ctx) != "" {
			t.Error("expected empty span id")
		}
	})
}
