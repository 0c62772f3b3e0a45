package ai

import (
	"context"
	"strings"
	"time"
)

// TextOr runs GenerateText bounded by timeout. Any error, a nil client or an
// empty result yields fallback; the second return reports that it was used.
func TextOr(ctx context.Context, c Client, timeout time.Duration, prompt, fallback string) (string, bool) {
	if c == nil {
		return fallback, true
	}

	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	text, err := c.GenerateText(callCtx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		return fallback, true
	}
	return strings.TrimSpace(text), false
}

// ObjectOr runs GenerateJSON bounded by timeout and decodes into a fresh T.
// Any error or a nil client yields fallback; the second return reports that
// it was used.
func ObjectOr[T any](ctx context.Context, c Client, timeout time.Duration, prompt string, schema *Schema, fallback T) (T, bool) {
	if c == nil {
		return fallback, true
	}

	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	var out T
	if err := c.GenerateJSON(callCtx, prompt, schema, &out); err != nil {
		return fallback, true
	}
	return out, false
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
