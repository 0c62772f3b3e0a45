package ai

import (
	"context"

	"github.com/edgard/checkinbot/internal/resilience"
)

type breakerClient struct {
	next Client
	cb   *resilience.CircuitBreaker
}

// WithBreaker routes every call through cb, so a backend that keeps failing
// is skipped and callers go straight to their fallback value.
func WithBreaker(next Client, cb *resilience.CircuitBreaker) Client {
	if cb == nil {
		return next
	}
	return &breakerClient{next: next, cb: cb}
}

func (b *breakerClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	var text string
	err := b.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = b.next.GenerateText(ctx, prompt)
		return err
	})
	return text, err
}

func (b *breakerClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema, out any) error {
	return b.cb.Execute(ctx, func(ctx context.Context) error {
		return b.next.GenerateJSON(ctx, prompt, schema, out)
	})
}
