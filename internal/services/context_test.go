package services_test

import (
	"context"
	"testing"

	"embymerge/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPipeline(ctx, "scan")
	ctx = services.WithTrigger(ctx, "startup")
	ctx = services.WithRequestID(ctx, "req-123")

	if pipeline, ok := services.PipelineFromContext(ctx); !ok || pipeline != "scan" {
		t.Fatalf("unexpected pipeline: %v %v", pipeline, ok)
	}
	if trigger, ok := services.TriggerFromContext(ctx); !ok || trigger != "startup" {
		t.Fatalf("unexpected trigger: %v %v", trigger, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPipeline(ctx, "")
	ctx = services.WithTrigger(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.PipelineFromContext(ctx); ok {
		t.Fatal("expected no pipeline value")
	}
	if _, ok := services.TriggerFromContext(ctx); ok {
		t.Fatal("expected no trigger value")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
}
