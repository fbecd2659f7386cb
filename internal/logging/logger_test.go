package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	ctx := context.Background()

	debug := New("debug")
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Fatalf("debug logger should enable debug records")
	}

	warn := New("warn")
	if warn.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("warn logger should drop info records")
	}

	// Unknown levels fall back to info.
	fallback := New("verbose")
	if fallback.Enabled(ctx, slog.LevelDebug) {
		t.Fatalf("fallback logger should drop debug records")
	}
	if !fallback.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("fallback logger should enable info records")
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("discard logger should not enable warn records")
	}
}
