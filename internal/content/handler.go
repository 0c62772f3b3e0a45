// Package content defines pluggable topic handlers and the registry that
// dispatches incoming messages and photos to them.
package content

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnhandled reports that no registered handler claimed the input. It is
// the normal outcome for ordinary activity messages.
var ErrUnhandled = errors.New("no handler claimed the message")

// ReplyRef identifies the record a bot message asked about. The orchestrator
// resolves it when the user replies to that message.
type ReplyRef struct {
	BotMessageID  int
	Topic         string
	CorrelationID string
	Subject       string
}

// Request is one inbound user message as seen by a handler.
type Request struct {
	Text      string
	Caption   string
	UserID    int64
	ChatID    int64
	MessageID int
	Timezone  string
	Location  *time.Location
	Now       time.Time
	ReplyTo   *ReplyRef
}

// Classifier returns the text used for topic matching: the caption for
// photos, the message text otherwise.
func (r Request) Classifier() string {
	if r.Caption != "" {
		return r.Caption
	}
	return r.Text
}

// Response is what a handler wants sent back. A non-empty CorrelationID
// makes the orchestrator remember which record the reply message is about;
// Subject optionally names the field it asks for.
type Response struct {
	Text             string
	ShouldReschedule bool
	Topic            string
	CorrelationID    string
	Subject          string
}

// NewResponse returns a response that advances the check-in clock.
func NewResponse(text string) Response {
	return Response{Text: text, ShouldReschedule: true}
}

// Handler owns one topic prefix and one record shape. A handler may return
// a Response with text together with an error to report partial success,
// e.g. the entry was understood but could not be stored.
type Handler interface {
	// Topic is the prefix token, without the trailing colon.
	Topic() string
	CanHandle(req Request) bool
	HandleMessage(ctx context.Context, req Request) (Response, error)
}

// PhotoHandler is implemented by handlers that also accept photos.
type PhotoHandler interface {
	Handler
	HandlePhoto(ctx context.Context, req Request, photo []byte) (Response, error)
}

// MatchTopic reports whether text starts with "topic:" ignoring case and
// leading whitespace.
func MatchTopic(topic, text string) bool {
	prefix := topic + ":"
	text = strings.TrimSpace(text)
	return len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix)
}

// StripTopic removes a leading "topic:" and surrounding whitespace.
func StripTopic(topic, text string) string {
	trimmed := strings.TrimSpace(text)
	if MatchTopic(topic, trimmed) {
		return strings.TrimSpace(trimmed[len(topic)+1:])
	}
	return trimmed
}

// Claims is the default CanHandle rule: the classifier text carries the
// handler's prefix, or the message replies to one of the handler's questions.
func Claims(h Handler, req Request) bool {
	if MatchTopic(h.Topic(), req.Classifier()) {
		return true
	}
	return req.ReplyTo != nil && req.ReplyTo.Topic == h.Topic()
}
