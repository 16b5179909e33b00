package requestid_test

import (
	"context"
	"strings"
	"testing"

	"taskdeck-api/internal/observability/requestid"
)

func TestNewFormat(t *testing.T) {
	id := requestid.New()

	if !strings.HasPrefix(id, "req_") {
		t.Errorf("expected ID to start with 'req_', got: %s", id)
	}

	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Errorf("expected 3 parts separated by '_', got %d in %q", len(parts), id)
	}

	if len(id) < 30 {
		t.Errorf("expected ID length >= 30, got %d", len(id))
	}
}

func TestNewUniqueness(t *testing.T) {
	const count = 1000
	seen := make(map[string]bool, count)

	for i := 0; i < count; i++ {
		id := requestid.New()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	if id := requestid.GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string for empty context, got: %s", id)
	}
}

func TestSetAndGetRequestID(t *testing.T) {
	ctx := requestid.SetRequestID(context.Background(), "test-req-123")
	if got := requestid.GetRequestID(ctx); got != "test-req-123" {
		t.Errorf("expected %q, got %q", "test-req-123", got)
	}
}

func TestSetRequestID_Overwrite(t *testing.T) {
	ctx := requestid.SetRequestID(context.Background(), "first-id")
	ctx = requestid.SetRequestID(ctx, "second-id")

	if got := requestid.GetRequestID(ctx); got != "second-id" {
		t.Errorf("expected 'second-id', got %q", got)
	}
}
