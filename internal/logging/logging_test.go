package logging

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctx := ContextWithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected the attached logger back, got %v", got)
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil for a bare context, got %v", got)
	}
}

func TestContextWithLogger_NilLoggerLeavesContextUnchanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatal("nil logger must not derive a new context")
	}
}

func TestFromContextOr(t *testing.T) {
	t.Parallel()

	attached := slog.New(slog.NewJSONHandler(io.Discard, nil))
	fallback := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx := ContextWithLogger(context.Background(), attached)
	if got := FromContextOr(ctx, fallback); got != attached {
		t.Fatal("request-scoped logger must win over the fallback")
	}
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Fatal("fallback must be used when the context carries no logger")
	}
	if got := FromContextOr(context.Background(), nil); got != slog.Default() {
		t.Fatal("expected the process default when nothing else is available")
	}
}
