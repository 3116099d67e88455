package common

import "log/slog"

// SlogResetLevel sets the default slog level and returns a function restoring the previous one.
// Pairs well with defer or t.Cleanup:
//
//	defer common.SlogResetLevel(slog.LevelWarn + 1)()
func SlogResetLevel(level slog.Level) (reset func()) {
	oldLevel := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(oldLevel)
	}
}

// SlogLevelFromVerbosity maps a CLI verbosity count to a level:
// 0 is warnings, 1 info, 2 or more debug. Negative values silence everything but errors.
func SlogLevelFromVerbosity(v int) slog.Level {
	switch {
	case v < 0:
		return slog.LevelError
	case v == 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
