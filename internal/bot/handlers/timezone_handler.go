package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewTimezoneHandler returns a handler for /timezone <Area/City>.
func NewTimezoneHandler(deps HandlerDeps) bot.HandlerFunc {
	return timezoneHandler{deps}.Handle
}

type timezoneHandler struct {
	deps HandlerDeps
}

func (h timezoneHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "timezone")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Timezone handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	name := commandArgs(update.Message.Text)
	log.InfoContext(ctx, "Handling /timezone command", "user_id", update.Message.From.ID, "timezone", name)
	h.deps.Conversation.SetTimezone(ctx, inbound(update.Message), name)
}

// commandArgs returns what follows the command word, e.g. "Europe/Berlin"
// for "/timezone@checkin_bot Europe/Berlin".
func commandArgs(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}
