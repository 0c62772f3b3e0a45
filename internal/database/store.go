package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
)

// Store defines the check-in state and reply-link operations.
// Every write is a blind overwrite: the last writer wins.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// UpsertCheckinState creates the user's row or overwrites it.
	UpsertCheckinState(ctx context.Context, userID int64, nextAt time.Time, timezone string) error

	// GetCheckinState returns the user's row, or nil, nil if none exists.
	GetCheckinState(ctx context.Context, userID int64) (*CheckinState, error)

	// DueCheckinStates returns every row whose next check-in is at or before now.
	DueCheckinStates(ctx context.Context, now time.Time) ([]*CheckinState, error)

	// RescheduleCheckin moves the user's due time and keeps a stored timezone.
	// The timezone argument is used only when the row does not exist yet.
	RescheduleCheckin(ctx context.Context, userID int64, nextAt time.Time, timezone string) error

	// SetNextCheckin moves only the due time and leaves updated_at alone, so
	// updated_at tracks the user's own activity. Unknown users are a silent no-op.
	SetNextCheckin(ctx context.Context, userID int64, nextAt time.Time) error

	// SetTimezone updates the user's timezone and reports whether the row existed.
	SetTimezone(ctx context.Context, userID int64, timezone string) (bool, error)

	// SaveReplyLink records which record an outbound bot message refers to.
	SaveReplyLink(ctx context.Context, link *ReplyLink) error

	// GetReplyLink resolves a bot message id, or returns nil, nil if unknown.
	GetReplyLink(ctx context.Context, chatID int64, botMessageID int) (*ReplyLink, error)

	// PruneReplyLinks deletes links created before the cutoff.
	PruneReplyLinks(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewStore creates a Store backed by sqlx. A nil clock uses the real clock.
func NewStore(db *sqlx.DB, logger *slog.Logger, clock clockwork.Clock) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		clock:  clock,
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) UpsertCheckinState(ctx context.Context, userID int64, nextAt time.Time, timezone string) error {
	if userID == 0 {
		return errors.New("user_id cannot be zero")
	}
	if nextAt.IsZero() {
		return errors.New("next_checkin_at cannot be zero")
	}
	if timezone == "" {
		return errors.New("timezone cannot be empty")
	}

	now := s.clock.Now().UTC().Unix()
	query := `
        INSERT INTO checkin_states (user_id, next_checkin_at, timezone, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            next_checkin_at = excluded.next_checkin_at,
            timezone        = excluded.timezone,
            updated_at      = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, userID, nextAt.UTC().Unix(), timezone, now, now); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting check-in state", "user_id", userID, "error", err)
		return fmt.Errorf("failed to upsert check-in state for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Check-in state upserted", "user_id", userID, "next_checkin_at", nextAt.UTC(), "timezone", timezone)
	return nil
}

func (s *sqlxStore) RescheduleCheckin(ctx context.Context, userID int64, nextAt time.Time, timezone string) error {
	if userID == 0 {
		return errors.New("user_id cannot be zero")
	}
	if nextAt.IsZero() {
		return errors.New("next_checkin_at cannot be zero")
	}
	if timezone == "" {
		return errors.New("timezone cannot be empty")
	}

	now := s.clock.Now().UTC().Unix()
	query := `
        INSERT INTO checkin_states (user_id, next_checkin_at, timezone, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            next_checkin_at = excluded.next_checkin_at,
            updated_at      = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, userID, nextAt.UTC().Unix(), timezone, now, now); err != nil {
		s.logger.ErrorContext(ctx, "Error rescheduling check-in", "user_id", userID, "error", err)
		return fmt.Errorf("failed to reschedule check-in for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Check-in rescheduled", "user_id", userID, "next_checkin_at", nextAt.UTC())
	return nil
}

func (s *sqlxStore) GetCheckinState(ctx context.Context, userID int64) (*CheckinState, error) {
	if userID == 0 {
		return nil, errors.New("user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var row checkinRow
	query := `SELECT user_id, next_checkin_at, timezone, created_at, updated_at
	          FROM checkin_states WHERE user_id = ?`

	err := s.db.GetContext(ctx, &row, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No check-in state found", "user_id", userID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching check-in state", "user_id", userID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting check-in state", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get check-in state for user %d: %w", userID, err)
	}

	return row.toState(), nil
}

func (s *sqlxStore) DueCheckinStates(ctx context.Context, now time.Time) ([]*CheckinState, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var rows []checkinRow
	query := `SELECT user_id, next_checkin_at, timezone, created_at, updated_at
	          FROM checkin_states
	          WHERE next_checkin_at <= ?
	          ORDER BY next_checkin_at ASC`

	if err := s.db.SelectContext(ctx, &rows, query, now.UTC().Unix()); err != nil {
		s.logger.ErrorContext(ctx, "Error fetching due check-in states", "error", err)
		return nil, fmt.Errorf("failed to fetch due check-in states: %w", err)
	}

	states := make([]*CheckinState, 0, len(rows))
	for _, r := range rows {
		states = append(states, r.toState())
	}

	s.logger.DebugContext(ctx, "Fetched due check-in states", "count", len(states))
	return states, nil
}

func (s *sqlxStore) SetNextCheckin(ctx context.Context, userID int64, nextAt time.Time) error {
	if userID == 0 {
		return errors.New("user_id cannot be zero")
	}

	query := `UPDATE checkin_states SET next_checkin_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, nextAt.UTC().Unix(), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating next check-in", "user_id", userID, "error", err)
		return fmt.Errorf("failed to set next check-in for user %d: %w", userID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		s.logger.DebugContext(ctx, "No check-in state to update", "user_id", userID)
	}
	return nil
}

func (s *sqlxStore) SetTimezone(ctx context.Context, userID int64, timezone string) (bool, error) {
	if userID == 0 {
		return false, errors.New("user_id cannot be zero")
	}
	if timezone == "" {
		return false, errors.New("timezone cannot be empty")
	}

	query := `UPDATE checkin_states SET timezone = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, timezone, s.clock.Now().UTC().Unix(), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating timezone", "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to set timezone for user %d: %w", userID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (s *sqlxStore) SaveReplyLink(ctx context.Context, link *ReplyLink) error {
	if link == nil {
		return errors.New("cannot save nil reply link")
	}
	if link.ChatID == 0 || link.BotMessageID <= 0 {
		return fmt.Errorf("reply link needs chat_id and bot_message_id (got %d, %d)", link.ChatID, link.BotMessageID)
	}
	if link.CorrelationID == "" || link.Topic == "" {
		return errors.New("reply link needs topic and correlation_id")
	}

	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.clock.Now().UTC()
	}
	row := replyLinkRow{
		ChatID:        link.ChatID,
		BotMessageID:  link.BotMessageID,
		Topic:         link.Topic,
		CorrelationID: link.CorrelationID,
		Subject:       link.Subject,
		CreatedAt:     link.CreatedAt.UTC().Unix(),
	}

	query := `
        INSERT OR REPLACE INTO reply_links (chat_id, bot_message_id, topic, correlation_id, subject, created_at)
        VALUES (:chat_id, :bot_message_id, :topic, :correlation_id, :subject, :created_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.ErrorContext(ctx, "Error saving reply link", "chat_id", link.ChatID, "bot_message_id", link.BotMessageID, "error", err)
		return fmt.Errorf("failed to save reply link: %w", err)
	}
	return nil
}

func (s *sqlxStore) GetReplyLink(ctx context.Context, chatID int64, botMessageID int) (*ReplyLink, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var row replyLinkRow
	query := `SELECT chat_id, bot_message_id, topic, correlation_id, subject, created_at
	          FROM reply_links WHERE chat_id = ? AND bot_message_id = ?`

	err := s.db.GetContext(ctx, &row, query, chatID, botMessageID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting reply link", "chat_id", chatID, "bot_message_id", botMessageID, "error", err)
		return nil, fmt.Errorf("failed to get reply link: %w", err)
	}
	return row.toLink(), nil
}

func (s *sqlxStore) PruneReplyLinks(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reply_links WHERE created_at < ?`, before.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune reply links: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return deleted, nil
}

// RunSQLMaintenance executes VACUUM, which SQLite requires outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
