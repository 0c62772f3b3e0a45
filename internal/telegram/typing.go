package telegram

import (
	"context"
	"time"
)

// typingInterval is below the five seconds Telegram shows an action for.
const typingInterval = 4 * time.Second

// KeepTyping shows the typing indicator in chatID until the returned stop
// func is called or ctx ends.
func (t *Transport) KeepTyping(ctx context.Context, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		t.Typing(ctx, chatID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Typing(ctx, chatID)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
