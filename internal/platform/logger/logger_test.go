package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	l := New(false, false)
	if l == nil {
		t.Fatal("New returned nil")
	}
	if !l.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected Info level to be enabled by default")
	}
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected Debug level to be disabled by default")
	}
}

func TestNew_Verbose(t *testing.T) {
	l := New(true, false)
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected Debug level to be enabled when verbose is true")
	}
}

func TestContext(t *testing.T) {
	l := New(false, false)
	ctx := context.Background()

	l1 := FromContext(ctx)
	if l1 == nil {
		t.Fatal("FromContext returned nil for empty context")
	}

	ctx = WithContext(ctx, l)
	l2 := FromContext(ctx)
	if l2 != l {
		t.Error("FromContext did not return the logger injected with WithContext")
	}
}
