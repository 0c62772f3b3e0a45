package logger

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cast"
)

// gocronLogger routes gocron's internal logging through slog.
type gocronLogger struct {
	log *slog.Logger
}

// NewGocronLogger returns a gocron.Logger backed by log.
//
//nolint:ireturn // gocron requires its own Logger interface
func NewGocronLogger(log *slog.Logger) gocron.Logger {
	if log == nil {
		log = slog.Default()
	}
	return &gocronLogger{log: log.With("component", "gocron")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, pairArgs(args)...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.log.Info(msg, pairArgs(args)...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, pairArgs(args)...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, pairArgs(args)...) }

// pairArgs makes sure every value has a string key, since gocron does not
// guarantee an even argument list.
func pairArgs(args []any) []any {
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			out = append(out, "value", args[i])
			break
		}
		out = append(out, cast.ToString(args[i]), args[i+1])
	}
	return out
}
