// Package conversation runs one conversation turn: it resolves the user's
// state, dispatches to a content handler or the default journal path,
// persists the outcome, moves the next check-in and sends the reply.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/checkinbot/internal/ai"
	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/content"
	"github.com/edgard/checkinbot/internal/database"
	"github.com/edgard/checkinbot/internal/journal"
)

// Transport is the outbound side of the messaging platform.
type Transport interface {
	// Send delivers text to chatID, optionally as a reply to replyTo (0 for
	// none), and returns the id of the sent message.
	Send(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
	// Download fetches an attachment by its platform file id.
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// StateStore is the part of the check-in state store a turn needs.
type StateStore interface {
	GetCheckinState(ctx context.Context, userID int64) (*database.CheckinState, error)
	UpsertCheckinState(ctx context.Context, userID int64, nextAt time.Time, timezone string) error
	RescheduleCheckin(ctx context.Context, userID int64, nextAt time.Time, timezone string) error
	SetTimezone(ctx context.Context, userID int64, timezone string) (bool, error)
	SaveReplyLink(ctx context.Context, link *database.ReplyLink) error
	GetReplyLink(ctx context.Context, chatID int64, botMessageID int) (*database.ReplyLink, error)
}

// Inbound is one user message as delivered by the transport.
type Inbound struct {
	UserID           int64
	ChatID           int64
	MessageID        int
	Text             string
	Caption          string
	FileID           string
	ReplyToMessageID int
}

// Settings holds the timing rules of a turn.
type Settings struct {
	InitialDelay         time.Duration
	DefaultInterval      time.Duration
	MinDelayMinutes      int
	MaxDelayMinutes      int
	FallbackDelayMinutes int
	DefaultTimezone      string
	AITimeout            time.Duration
	SendTimeout          time.Duration
	DownloadTimeout      time.Duration
	StoreTimeout         time.Duration
}

// SettingsFromConfig maps configuration onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		InitialDelay:         cfg.Checkin.InitialDelay,
		DefaultInterval:      cfg.Checkin.DefaultInterval,
		MinDelayMinutes:      cfg.Checkin.MinDelayMinutes,
		MaxDelayMinutes:      cfg.Checkin.MaxDelayMinutes,
		FallbackDelayMinutes: cfg.Checkin.FallbackDelayMinutes,
		DefaultTimezone:      cfg.Checkin.DefaultTimezone,
		AITimeout:            cfg.AI.Timeout,
		SendTimeout:          cfg.Checkin.SendTimeout,
		DownloadTimeout:      cfg.Checkin.DownloadTimeout,
		StoreTimeout:         cfg.Checkin.StoreTimeout,
	}
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	States    StateStore
	Records   journal.Store
	Transport Transport
	AI        ai.Client
	Registry  *content.Registry
	Clock     clockwork.Clock
	Settings  Settings
	Messages  config.MessagesConfig
	Logger    *slog.Logger
}

// Orchestrator owns the state transitions of a conversation turn.
type Orchestrator struct {
	states    StateStore
	records   journal.Store
	transport Transport
	ai        ai.Client
	registry  *content.Registry
	clock     clockwork.Clock
	settings  Settings
	msgs      config.MessagesConfig
	log       *slog.Logger
	guard     *userGuard
}

// New creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.States == nil || deps.Records == nil || deps.Transport == nil {
		return nil, errors.New("conversation: state store, record store and transport are required")
	}
	if deps.Registry == nil {
		deps.Registry = content.NewRegistry(deps.Logger)
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Settings.DefaultTimezone == "" {
		deps.Settings.DefaultTimezone = "UTC"
	}

	return &Orchestrator{
		states:    deps.States,
		records:   deps.Records,
		transport: deps.Transport,
		ai:        deps.AI,
		registry:  deps.Registry,
		clock:     deps.Clock,
		settings:  deps.Settings,
		msgs:      deps.Messages,
		log:       deps.Logger.With("component", "orchestrator"),
		guard:     newUserGuard(),
	}, nil
}

// turn carries what a handled message produced.
type turn struct {
	in       Inbound
	timezone string
	resp     content.Response
	delay    time.Duration
}

// StartSession creates or resets the user's check-in row to now plus the
// initial delay, keeping a timezone set earlier, and sends the welcome.
func (o *Orchestrator) StartSession(ctx context.Context, in Inbound) {
	defer o.guard.Lock(in.UserID)()

	tz, _ := o.resolveTimezone(ctx, in.UserID)
	next := o.clock.Now().Add(o.settings.InitialDelay)
	o.reschedule(ctx, in.UserID, next, tz)

	o.log.InfoContext(ctx, "Session started", "user_id", in.UserID, "next_checkin_at", next.UTC(), "timezone", tz)
	o.send(ctx, in.ChatID, o.msgs.Welcome, 0)
}

// Help sends the usage text.
func (o *Orchestrator) Help(ctx context.Context, in Inbound) {
	o.send(ctx, in.ChatID, o.msgs.Help, in.MessageID)
}

// SetTimezone validates name and stores it. A user without a session gets
// one, so the timezone is not lost.
func (o *Orchestrator) SetTimezone(ctx context.Context, in Inbound, name string) {
	defer o.guard.Lock(in.UserID)()

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		o.send(ctx, in.ChatID, o.msgs.TimezoneUsage, in.MessageID)
		return
	case !journal.ValidTimezone(name):
		o.send(ctx, in.ChatID, fmt.Sprintf(o.msgs.TimezoneInvalid, name), in.MessageID)
		return
	}

	storeCtx, cancel := o.storeCtx(ctx)
	found, err := o.states.SetTimezone(storeCtx, in.UserID, name)
	cancel()
	if err != nil {
		o.log.ErrorContext(ctx, "Failed to set timezone", "user_id", in.UserID, "error", err)
		o.send(ctx, in.ChatID, o.msgs.GeneralError, in.MessageID)
		return
	}
	if !found {
		o.upsertState(ctx, in.UserID, o.clock.Now().Add(o.settings.InitialDelay), name)
	}

	o.log.InfoContext(ctx, "Timezone updated", "user_id", in.UserID, "timezone", name)
	o.send(ctx, in.ChatID, fmt.Sprintf(o.msgs.TimezoneUpdated, name), in.MessageID)
}

// HandleText runs one turn for a text message. It always sends a reply.
func (o *Orchestrator) HandleText(ctx context.Context, in Inbound) {
	defer o.guard.Lock(in.UserID)()

	req := o.request(ctx, in)
	t := turn{in: in, timezone: req.Timezone, delay: o.settings.DefaultInterval}

	resp, err := o.registry.RouteMessage(ctx, req)
	switch {
	case errors.Is(err, content.ErrUnhandled):
		t.resp, t.delay = o.journalEntry(ctx, req, "", false)
	default:
		t.resp = o.handlerResult(ctx, req, resp, err)
	}

	o.finish(ctx, t)
}

// HandlePhoto runs one turn for a photo, matching handlers on the caption.
func (o *Orchestrator) HandlePhoto(ctx context.Context, in Inbound) {
	defer o.guard.Lock(in.UserID)()

	req := o.request(ctx, in)
	t := turn{in: in, timezone: req.Timezone, delay: o.settings.DefaultInterval}

	dlCtx, cancel := bounded(ctx, o.settings.DownloadTimeout)
	photo, err := o.transport.Download(dlCtx, in.FileID)
	cancel()
	if err != nil || len(photo) == 0 {
		o.log.ErrorContext(ctx, "Failed to download photo", "user_id", in.UserID, "file_id", in.FileID, "error", err)
		t.resp = content.NewResponse(o.msgs.DownloadFailed)
		t.delay = o.fallbackDelay()
		o.finish(ctx, t)
		return
	}

	resp, err := o.registry.RoutePhoto(ctx, req, photo)
	switch {
	case errors.Is(err, content.ErrUnhandled):
		ref, upErr := o.records.UploadBinary(ctx, journal.PhotoName(req.Now, in.UserID, photo), photo)
		if upErr != nil {
			o.log.ErrorContext(ctx, "Failed to upload photo", "user_id", in.UserID, "error", upErr)
		}
		t.resp, t.delay = o.journalEntry(ctx, req, ref, true)
		if upErr != nil && !strings.HasSuffix(t.resp.Text, o.msgs.SaveFailedSuffix) {
			t.resp.Text += o.msgs.SaveFailedSuffix
		}
	default:
		t.resp = o.handlerResult(ctx, req, resp, err)
	}

	o.finish(ctx, t)
}

func (o *Orchestrator) request(ctx context.Context, in Inbound) content.Request {
	tz, loc := o.resolveTimezone(ctx, in.UserID)
	return content.Request{
		Text:      in.Text,
		Caption:   in.Caption,
		UserID:    in.UserID,
		ChatID:    in.ChatID,
		MessageID: in.MessageID,
		Timezone:  tz,
		Location:  loc,
		Now:       o.clock.Now(),
		ReplyTo:   o.resolveReply(ctx, in),
	}
}

// handlerResult maps a handler outcome onto what the user sees. A handler
// error never aborts the turn.
func (o *Orchestrator) handlerResult(ctx context.Context, req content.Request, resp content.Response, err error) content.Response {
	if err == nil {
		return resp
	}
	o.log.ErrorContext(ctx, "Content handler failed", "user_id", req.UserID, "message_id", req.MessageID, "error", err)
	if resp.Text == "" {
		return content.NewResponse(o.msgs.GeneralError)
	}
	resp.Text += o.msgs.SaveFailedSuffix
	return resp
}

// finish advances the check-in, sends the reply and remembers which record
// the reply asks about. The stored timezone is never overwritten here: the
// turn's timezone may be the default if the state could not be read.
func (o *Orchestrator) finish(ctx context.Context, t turn) {
	if t.resp.ShouldReschedule {
		o.reschedule(ctx, t.in.UserID, o.clock.Now().Add(t.delay), t.timezone)
	}

	text := t.resp.Text
	if strings.TrimSpace(text) == "" {
		text = o.msgs.FallbackReply
	}

	sentID, ok := o.send(ctx, t.in.ChatID, text, t.in.MessageID)
	if !ok || t.resp.CorrelationID == "" || t.resp.Topic == "" {
		return
	}

	storeCtx, cancel := o.storeCtx(ctx)
	defer cancel()
	err := o.states.SaveReplyLink(storeCtx, &database.ReplyLink{
		ChatID:        t.in.ChatID,
		BotMessageID:  sentID,
		Topic:         t.resp.Topic,
		CorrelationID: t.resp.CorrelationID,
		Subject:       t.resp.Subject,
	})
	if err != nil {
		o.log.ErrorContext(ctx, "Failed to save reply link", "chat_id", t.in.ChatID, "bot_message_id", sentID, "error", err)
	}
}

func (o *Orchestrator) resolveTimezone(ctx context.Context, userID int64) (string, *time.Location) {
	storeCtx, cancel := o.storeCtx(ctx)
	defer cancel()

	name := o.settings.DefaultTimezone
	state, err := o.states.GetCheckinState(storeCtx, userID)
	switch {
	case err != nil:
		o.log.WarnContext(ctx, "Failed to load check-in state, using default timezone", "user_id", userID, "error", err)
	case state != nil && state.Timezone != "":
		name = state.Timezone
	}

	loc, resolved := journal.LoadLocation(name, o.settings.DefaultTimezone)
	return resolved, loc
}

func (o *Orchestrator) resolveReply(ctx context.Context, in Inbound) *content.ReplyRef {
	if in.ReplyToMessageID == 0 {
		return nil
	}

	storeCtx, cancel := o.storeCtx(ctx)
	defer cancel()

	link, err := o.states.GetReplyLink(storeCtx, in.ChatID, in.ReplyToMessageID)
	if err != nil {
		o.log.WarnContext(ctx, "Failed to resolve reply link", "chat_id", in.ChatID, "reply_to", in.ReplyToMessageID, "error", err)
		return nil
	}
	if link == nil {
		return nil
	}
	return &content.ReplyRef{
		BotMessageID:  link.BotMessageID,
		Topic:         link.Topic,
		CorrelationID: link.CorrelationID,
		Subject:       link.Subject,
	}
}

func (o *Orchestrator) upsertState(ctx context.Context, userID int64, next time.Time, tz string) {
	storeCtx, cancel := o.storeCtx(ctx)
	defer cancel()

	if err := o.states.UpsertCheckinState(storeCtx, userID, next, tz); err != nil {
		o.log.ErrorContext(ctx, "Failed to store next check-in", "user_id", userID, "next_checkin_at", next.UTC(), "error", err)
	}
}

func (o *Orchestrator) reschedule(ctx context.Context, userID int64, next time.Time, tz string) {
	storeCtx, cancel := o.storeCtx(ctx)
	defer cancel()

	if err := o.states.RescheduleCheckin(storeCtx, userID, next, tz); err != nil {
		o.log.ErrorContext(ctx, "Failed to store next check-in", "user_id", userID, "next_checkin_at", next.UTC(), "error", err)
	}
}

// send reports the sent message id and whether delivery succeeded.
func (o *Orchestrator) send(ctx context.Context, chatID int64, text string, replyTo int) (int, bool) {
	sendCtx, cancel := bounded(ctx, o.settings.SendTimeout)
	defer cancel()

	id, err := o.transport.Send(sendCtx, chatID, text, replyTo)
	if err != nil {
		o.log.ErrorContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
		return 0, false
	}
	return id, true
}

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return bounded(ctx, o.settings.StoreTimeout)
}

// bounded applies d as a timeout; zero means no timeout of its own.
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (o *Orchestrator) fallbackDelay() time.Duration {
	minutes := journal.ClampMinutes(o.settings.FallbackDelayMinutes, o.settings.MinDelayMinutes, o.settings.MaxDelayMinutes)
	return time.Duration(minutes) * time.Minute
}
