// Package tasks implements the scheduled tasks of the check-in bot: the
// check-in tick and database maintenance.
package tasks

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/checkinbot/internal/ai"
	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/database"
)

// Sender delivers an outbound message and returns its id.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Sender Sender
	AI     ai.Client // optional; check-ins fall back to a fixed message
	Config *config.Config
	Clock  clockwork.Clock
}
