package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/conversation"
)

// Conversation is the orchestrator surface the handlers drive.
type Conversation interface {
	StartSession(ctx context.Context, in conversation.Inbound)
	Help(ctx context.Context, in conversation.Inbound)
	SetTimezone(ctx context.Context, in conversation.Inbound, name string)
	HandleText(ctx context.Context, in conversation.Inbound)
	HandlePhoto(ctx context.Context, in conversation.Inbound)
}

// Typist shows a typing indicator until stop is called.
type Typist interface {
	KeepTyping(ctx context.Context, chatID int64) (stop func())
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Conversation Conversation
	Typist       Typist // optional
}
