package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_JSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "info", true)
	log.Debug("hidden")
	log.Info("shown", "user_id", 42)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "shown", rec["msg"])
	require.EqualValues(t, 42, rec["user_id"])
}

func TestPairArgs(t *testing.T) {
	t.Parallel()

	require.Equal(t, []any{"a", 1, "b", 2}, pairArgs([]any{"a", 1, "b", 2}))
	require.Equal(t, []any{"7", "x"}, pairArgs([]any{7, "x"}))
	require.Equal(t, []any{"a", 1, "value", "dangling"}, pairArgs([]any{"a", 1, "dangling"}))
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncateString("short", 10))
	require.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	require.Equal(t, "...", truncateString("abcdef", 2))
}
