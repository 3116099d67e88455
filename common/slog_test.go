package common

import (
	"context"
	"log/slog"
	"testing"
)

func TestSlogLevelFromVerbosity(t *testing.T) {
	cases := map[int]slog.Level{
		-1: slog.LevelError,
		0:  slog.LevelWarn,
		1:  slog.LevelInfo,
		2:  slog.LevelDebug,
		5:  slog.LevelDebug,
	}
	for v, want := range cases {
		if got := SlogLevelFromVerbosity(v); got != want {
			t.Errorf("verbosity %d: have %v want %v", v, got, want)
		}
	}
}

func TestSlogResetLevel(t *testing.T) {
	before := slog.SetLogLoggerLevel(slog.LevelInfo)
	defer slog.SetLogLoggerLevel(before)

	ctx := context.Background()
	reset := SlogResetLevel(slog.LevelError)
	if !slog.Default().Enabled(ctx, slog.LevelError) || slog.Default().Enabled(ctx, slog.LevelWarn) {
		t.Fatal("level not applied")
	}
	reset()
	if !slog.Default().Enabled(ctx, slog.LevelInfo) {
		t.Error("level not restored")
	}
}
