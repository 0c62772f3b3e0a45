package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewMessageHandler returns the default handler for every message that is
// not a registered command. It is wrapped in AllowedUsersOnly itself because
// the library's default handler bypasses per-handler middleware.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return AllowedUsersOnly(deps)(messageHandler{deps}.Handle)
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")
	msg := update.Message

	in := inbound(msg)
	switch {
	case in.FileID != "":
		log.DebugContext(ctx, "Handling photo", "user_id", in.UserID, "message_id", in.MessageID)
		withTyping(ctx, h.deps, in.ChatID, func() { h.deps.Conversation.HandlePhoto(ctx, in) })
	case strings.HasPrefix(in.Text, "/"):
		log.DebugContext(ctx, "Unknown command, sending help", "user_id", in.UserID, "text", in.Text)
		h.deps.Conversation.Help(ctx, in)
	case strings.TrimSpace(in.Text) != "":
		log.DebugContext(ctx, "Handling text", "user_id", in.UserID, "message_id", in.MessageID)
		withTyping(ctx, h.deps, in.ChatID, func() { h.deps.Conversation.HandleText(ctx, in) })
	default:
		log.DebugContext(ctx, "Ignoring unsupported message", "user_id", in.UserID, "message_id", in.MessageID)
	}
}
