package database

import "time"

// CheckinState is the single scheduling row kept per user. NextCheckinAt is
// always UTC; Timezone is only used for display and formatting.
type CheckinState struct {
	UserID        int64
	NextCheckinAt time.Time
	Timezone      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReplyLink ties a message the bot sent to the record it asked about, so a
// user reply to that message can be resolved back to the record.
type ReplyLink struct {
	ChatID        int64
	BotMessageID  int
	Topic         string
	CorrelationID string
	// Subject names the field the message asked about, if any.
	Subject   string
	CreatedAt time.Time
}

// Timestamps are stored as unix seconds so range scans compare integers.
type checkinRow struct {
	UserID        int64  `db:"user_id"`
	NextCheckinAt int64  `db:"next_checkin_at"`
	Timezone      string `db:"timezone"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func (r checkinRow) toState() *CheckinState {
	return &CheckinState{
		UserID:        r.UserID,
		NextCheckinAt: time.Unix(r.NextCheckinAt, 0).UTC(),
		Timezone:      r.Timezone,
		CreatedAt:     time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:     time.Unix(r.UpdatedAt, 0).UTC(),
	}
}

type replyLinkRow struct {
	ChatID        int64  `db:"chat_id"`
	BotMessageID  int    `db:"bot_message_id"`
	Topic         string `db:"topic"`
	CorrelationID string `db:"correlation_id"`
	Subject       string `db:"subject"`
	CreatedAt     int64  `db:"created_at"`
}

func (r replyLinkRow) toLink() *ReplyLink {
	return &ReplyLink{
		ChatID:        r.ChatID,
		BotMessageID:  r.BotMessageID,
		Topic:         r.Topic,
		CorrelationID: r.CorrelationID,
		Subject:       r.Subject,
		CreatedAt:     time.Unix(r.CreatedAt, 0).UTC(),
	}
}
