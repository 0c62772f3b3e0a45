package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/edgard/checkinbot/internal/ai"
	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/database"
	"github.com/edgard/checkinbot/internal/journal"
	"github.com/edgard/checkinbot/internal/text"
)

const checkinPrompt = `Write one short, friendly message asking the user what they are doing right now, so it can go in their activity journal.
Local time: %s (%s).
User last active: %s.
Plain text only, no more than two sentences.`

// CheckinRunner sends the check-ins that have come due.
type CheckinRunner struct {
	store  database.Store
	sender Sender
	ai     ai.Client
	clock  clockwork.Clock
	cfg    config.CheckinConfig
	aiTO   time.Duration
	msgs   config.MessagesConfig
	log    *slog.Logger

	inflight singleflight.Group
}

// NewCheckinRunner creates the runner behind the "checkin" task.
func NewCheckinRunner(deps TaskDeps) *CheckinRunner {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CheckinRunner{
		store:  deps.Store,
		sender: deps.Sender,
		ai:     deps.AI,
		clock:  clock,
		cfg:    deps.Config.Checkin,
		aiTO:   deps.Config.AI.Timeout,
		msgs:   deps.Config.Messages,
		log:    deps.Logger.With("task", "checkin"),
	}
}

// Tick sends one check-in to every user whose next check-in is due and moves
// their next check-in forward: by the default interval after a delivered
// message, by the retry interval otherwise. One user's failure never stops
// the others; all failures are returned together.
func (r *CheckinRunner) Tick(ctx context.Context) error {
	now := r.clock.Now()

	states, err := r.store.DueCheckinStates(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load due check-ins: %w", err)
	}
	if len(states) == 0 {
		r.log.DebugContext(ctx, "No check-ins due")
		return nil
	}
	r.log.InfoContext(ctx, "Check-ins due", "count", len(states))

	var (
		g    errgroup.Group
		errs = make([]error, len(states))
	)
	g.SetLimit(max(1, r.cfg.MaxConcurrentSends))

	for i, state := range states {
		g.Go(func() error {
			key := strconv.FormatInt(state.UserID, 10)
			_, err, _ := r.inflight.Do(key, func() (any, error) {
				return nil, r.checkin(ctx, state, now)
			})
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *CheckinRunner) checkin(ctx context.Context, state *database.CheckinState, now time.Time) error {
	log := r.log.With("user_id", state.UserID)

	prompt := r.prompt(ctx, state, now)

	sendCtx, cancel := bounded(ctx, r.cfg.SendTimeout)
	_, sendErr := r.sender.Send(sendCtx, state.UserID, prompt, 0)
	cancel()

	next := now.Add(r.cfg.DefaultInterval)
	if sendErr != nil {
		next = now.Add(r.cfg.RetryInterval)
		log.WarnContext(ctx, "Check-in delivery failed, retrying later", "error", sendErr, "next_checkin_at", next.UTC())
	}

	storeCtx, cancel := bounded(ctx, r.cfg.StoreTimeout)
	defer cancel()
	if err := r.store.SetNextCheckin(storeCtx, state.UserID, next); err != nil {
		log.ErrorContext(ctx, "Failed to move next check-in", "error", err)
		if sendErr != nil {
			return fmt.Errorf("user %d: %w", state.UserID, multierror.Append(sendErr, err))
		}
		return fmt.Errorf("user %d: %w", state.UserID, err)
	}

	if sendErr != nil {
		return fmt.Errorf("user %d: %w", state.UserID, sendErr)
	}
	log.InfoContext(ctx, "Check-in sent", "next_checkin_at", next.UTC())
	return nil
}

// prompt asks the model for a check-in line, falling back to the configured one.
func (r *CheckinRunner) prompt(ctx context.Context, state *database.CheckinState, now time.Time) string {
	loc, tz := journal.LoadLocation(state.Timezone, r.cfg.DefaultTimezone)

	lastSeen := "never"
	if !state.UpdatedAt.IsZero() {
		lastSeen = humanize.RelTime(state.UpdatedAt, now, "ago", "from now")
	}

	req := fmt.Sprintf(checkinPrompt, now.In(loc).Format("Mon 15:04"), tz, lastSeen)
	msg, usedFallback := ai.TextOr(ctx, r.ai, r.aiTO, req, r.msgs.CheckinFallback)
	if usedFallback {
		return msg
	}
	if plain := text.PlainText(msg); plain != "" {
		return plain
	}
	return r.msgs.CheckinFallback
}

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
