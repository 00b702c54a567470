package observability

import (
	"context"
	"testing"
)

func TestSetupTracingDisabledIsNoop(t *testing.T) {
	tracing, err := SetupTracing(context.Background(), Config{})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	_, span := tracing.Tracer("test").Start(context.Background(), "tick")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected noop span when tracing is disabled")
	}
	span.End()
	if err := tracing.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestNilTracingShutdown(t *testing.T) {
	var tracing *Tracing
	if err := tracing.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil tracing shutdown to succeed, got %v", err)
	}
}
