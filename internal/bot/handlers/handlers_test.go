package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/conversation"
)

type call struct {
	op   string
	in   conversation.Inbound
	args string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) StartSession(_ context.Context, in conversation.Inbound) {
	r.add(call{op: "start", in: in})
}

func (r *recorder) Help(_ context.Context, in conversation.Inbound) { r.add(call{op: "help", in: in}) }

func (r *recorder) SetTimezone(_ context.Context, in conversation.Inbound, name string) {
	r.add(call{op: "timezone", in: in, args: name})
}

func (r *recorder) HandleText(_ context.Context, in conversation.Inbound) {
	r.add(call{op: "text", in: in})
}

func (r *recorder) HandlePhoto(_ context.Context, in conversation.Inbound) {
	r.add(call{op: "photo", in: in})
}

type countingTypist struct{ started, stopped int }

func (c *countingTypist) KeepTyping(context.Context, int64) func() {
	c.started++
	return func() { c.stopped++ }
}

func testDeps(rec *recorder, typist Typist) HandlerDeps {
	cfg := &config.Config{Telegram: config.TelegramConfig{AllowedUserIDs: []int64{42}}}
	return HandlerDeps{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:       cfg,
		Conversation: rec,
		Typist:       typist,
	}
}

func message(from int64, text string) *models.Update {
	return &models.Update{ID: 1, Message: &models.Message{
		ID:   10,
		From: &models.User{ID: from},
		Chat: models.Chat{ID: from},
		Text: text,
	}}
}

func TestMessageHandler(t *testing.T) {
	t.Parallel()

	photoUpdate := message(42, "")
	photoUpdate.Message.Caption = "food: soup"
	photoUpdate.Message.Photo = []models.PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "large", Width: 1280, Height: 960},
		{FileID: "medium", Width: 320, Height: 240},
	}

	replyUpdate := message(42, "alone")
	replyUpdate.Message.ReplyToMessage = &models.Message{ID: 9}

	tests := []struct {
		name       string
		update     *models.Update
		wantOp     string
		wantFile   string
		wantReply  int
		wantTyping bool
	}{
		{name: "text", update: message(42, "working on the bot"), wantOp: "text", wantTyping: true},
		{name: "reply", update: replyUpdate, wantOp: "text", wantReply: 9, wantTyping: true},
		{name: "largest photo", update: photoUpdate, wantOp: "photo", wantFile: "large", wantTyping: true},
		{name: "unknown command", update: message(42, "/stats"), wantOp: "help"},
		{name: "unauthorized", update: message(7, "hello")},
		{name: "empty", update: message(42, "   ")},
		{name: "no message", update: &models.Update{ID: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			typist := &countingTypist{}

			NewMessageHandler(testDeps(rec, typist))(context.Background(), nil, tt.update)

			if tt.wantOp == "" {
				require.Empty(t, rec.calls)
				return
			}
			require.Len(t, rec.calls, 1)
			got := rec.calls[0]
			require.Equal(t, tt.wantOp, got.op)
			require.Equal(t, tt.wantFile, got.in.FileID)
			require.Equal(t, tt.wantReply, got.in.ReplyToMessageID)
			if tt.wantTyping {
				require.Equal(t, 1, typist.started)
				require.Equal(t, 1, typist.stopped)
			}
		})
	}
}

func TestCommandHandlers(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	deps := testDeps(rec, nil)
	cmds := RegisterAllCommands(deps)
	require.Len(t, cmds, 3)

	run := func(name string, update *models.Update) {
		h := cmds[name]
		handler := h.Handler
		for i := len(h.Middleware) - 1; i >= 0; i-- {
			handler = h.Middleware[i](handler)
		}
		handler(context.Background(), nil, update)
	}

	run("/start", message(42, "/start"))
	run("/help", message(42, "/help"))
	run("/timezone", message(42, "/timezone Europe/Berlin"))
	run("/timezone", message(42, "/timezone"))
	run("/start", message(7, "/start"))

	require.Len(t, rec.calls, 4)
	require.Equal(t, "start", rec.calls[0].op)
	require.Equal(t, int64(42), rec.calls[0].in.UserID)
	require.Equal(t, "help", rec.calls[1].op)
	require.Equal(t, "Europe/Berlin", rec.calls[2].args)
	require.Equal(t, "", rec.calls[3].args)
}
