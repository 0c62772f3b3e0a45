package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// replyLinkRetention bounds how long a question stays answerable by reply.
const replyLinkRetention = 30 * 24 * time.Hour

// newSQLMaintenanceTask prunes stale reply links and vacuums the database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		startTime := clock.Now()

		pruned, err := deps.Store.PruneReplyLinks(ctx, startTime.Add(-replyLinkRetention))
		if err != nil {
			log.ErrorContext(ctx, "Pruning reply links failed", "error", err)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", clock.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled SQL maintenance task completed successfully",
			"pruned_reply_links", pruned,
			"duration", clock.Since(startTime))
		return nil
	}
}
