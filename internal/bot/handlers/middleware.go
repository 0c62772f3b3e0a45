// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"slices"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/checkinbot/internal/conversation"
)

// AllowedUsersOnly drops messages from senders outside the configured allow
// list without answering them.
func AllowedUsersOnly(deps HandlerDeps) tgbot.Middleware {
	log := deps.Logger.With("middleware", "AllowedUsersOnly")

	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if !slices.Contains(deps.Config.Telegram.AllowedUserIDs, userID) {
				log.WarnContext(ctx, "Ignoring message from unauthorized user", "user_id", userID, "chat_id", update.Message.Chat.ID)
				return
			}

			next(ctx, bot, update)
		}
	}
}

// inbound converts a Telegram message. Only private chats are supported, so
// the user id doubles as the chat id for check-ins.
func inbound(msg *models.Message) conversation.Inbound {
	in := conversation.Inbound{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Caption:   msg.Caption,
	}
	if msg.ReplyToMessage != nil {
		in.ReplyToMessageID = msg.ReplyToMessage.ID
	}
	if photo := largestPhoto(msg.Photo); photo != nil {
		in.FileID = photo.FileID
	}
	return in
}

// largestPhoto picks the biggest rendition Telegram offers.
func largestPhoto(sizes []models.PhotoSize) *models.PhotoSize {
	var best *models.PhotoSize
	for i := range sizes {
		if best == nil || sizes[i].Width*sizes[i].Height > best.Width*best.Height {
			best = &sizes[i]
		}
	}
	return best
}

// withTyping runs fn while the chat shows the typing indicator.
func withTyping(ctx context.Context, deps HandlerDeps, chatID int64, fn func()) {
	if deps.Typist != nil {
		defer deps.Typist.KeepTyping(ctx, chatID)()
	}
	fn()
}
