package food

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/checkinbot/internal/ai"
	"github.com/edgard/checkinbot/internal/content"
	"github.com/edgard/checkinbot/internal/journal"
)

// Topic is the message prefix this handler owns ("food:").
const Topic = "food"

// Collection is the record collection meals are stored in.
const Collection = "food"

const (
	extractPrompt = `Extract the details of a meal from this food log entry.
Use an empty string for anything the entry does not state. Do not guess.
Entry: %q`

	answerPrompt = `The user was asked: %q
Their reply: %q
Extract values for only these fields: %s.
Use an empty string for any field the reply does not answer.`
)

// Handler logs meals and completes them through reply correlation.
type Handler struct {
	records   journal.Store
	ai        ai.Client
	aiTimeout time.Duration
	log       *slog.Logger
}

// NewHandler creates the food handler.
func NewHandler(records journal.Store, client ai.Client, aiTimeout time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		records:   records,
		ai:        client,
		aiTimeout: aiTimeout,
		log:       log.With("handler", "food"),
	}
}

// Topic implements content.Handler.
func (h *Handler) Topic() string { return Topic }

// CanHandle implements content.Handler.
func (h *Handler) CanHandle(req content.Request) bool { return content.Claims(h, req) }

// HandleMessage implements content.Handler.
func (h *Handler) HandleMessage(ctx context.Context, req content.Request) (content.Response, error) {
	if req.ReplyTo != nil && req.ReplyTo.Topic == Topic {
		resp, found, err := h.handleReply(ctx, req)
		if found {
			return resp, err
		}
		h.log.InfoContext(ctx, "Reply does not match an open question, logging as new entry",
			"user_id", req.UserID, "correlation_id", req.ReplyTo.CorrelationID)
	}
	return h.handleNew(ctx, req, "")
}

// HandlePhoto implements content.PhotoHandler.
func (h *Handler) HandlePhoto(ctx context.Context, req content.Request, photo []byte) (content.Response, error) {
	ref, err := h.records.UploadBinary(ctx, journal.PhotoName(req.Now, req.UserID, photo), photo)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to upload meal photo", "user_id", req.UserID, "error", err)
	}
	return h.handleNew(ctx, req, ref)
}

func (h *Handler) handleNew(ctx context.Context, req content.Request, photoRef string) (content.Response, error) {
	entry := content.StripTopic(Topic, req.Classifier())

	attrs := Attributes{FieldFoodDescription: entry}
	if entry != "" {
		attrs = h.extract(ctx, fmt.Sprintf(extractPrompt, entry), Fields, attrs)
	}

	record := Merge(Record{
		ID:        strconv.Itoa(req.MessageID),
		MessageID: req.MessageID,
		UserID:    req.UserID,
		Date:      journal.DateKey(req.Now, req.Location),
		Time:      journal.ClockTime(req.Now, req.Location),
		LoggedAt:  req.Now.UTC(),
		PhotoRef:  photoRef,
	}, attrs)

	resp := h.respond(record, "🍽️ Logged")
	if err := h.records.AppendRecord(ctx, Collection, record.ID, record); err != nil {
		h.log.ErrorContext(ctx, "Failed to store meal", "user_id", req.UserID, "id", record.ID, "error", err)
		resp.CorrelationID = ""
		return resp, fmt.Errorf("failed to store meal %s: %w", record.ID, err)
	}

	h.log.InfoContext(ctx, "Meal logged", "user_id", req.UserID, "id", record.ID, "missing", len(Missing(record)))
	return resp, nil
}

// handleReply reports found=false when the correlated record does not exist
// or no longer needs the asked field, so the caller logs a new entry instead.
func (h *Handler) handleReply(ctx context.Context, req content.Request) (content.Response, bool, error) {
	id := req.ReplyTo.CorrelationID

	var record Record
	found, err := h.records.GetRecord(ctx, Collection, id, &record)
	if err != nil {
		h.log.WarnContext(ctx, "Failed to load meal for reply", "id", id, "error", err)
		return content.Response{}, false, nil
	}
	if !found {
		return content.Response{}, false, nil
	}

	missing := Missing(record)
	if len(missing) == 0 {
		return content.Response{}, false, nil
	}
	asked := missing[0]
	if s := req.ReplyTo.Subject; s != "" {
		if !slices.Contains(missing, s) {
			return content.Response{}, false, nil
		}
		asked = s
	}

	answer := content.StripTopic(Topic, req.Text)
	prompt := fmt.Sprintf(answerPrompt, FollowUpQuestion([]string{asked}), answer, strings.Join(missing, ", "))
	partial := h.extract(ctx, prompt, missing, Attributes{asked: answer}).Only(missing)

	updated := Merge(record, partial)
	resp := h.respond(updated, "✏️ Updated")

	ok, err := h.records.UpdateRecord(ctx, Collection, id, partial.Map())
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to update meal", "id", id, "error", err)
		resp.CorrelationID = ""
		return resp, true, fmt.Errorf("failed to update meal %s: %w", id, err)
	}
	if !ok {
		return content.Response{}, false, nil
	}

	h.log.InfoContext(ctx, "Meal updated from reply", "user_id", req.UserID, "id", id, "filled", len(partial))
	return resp, true, nil
}

// extract asks the model for the named attributes. On any failure it
// returns fallback unchanged.
func (h *Handler) extract(ctx context.Context, prompt string, names []string, fallback Attributes) Attributes {
	schema := &ai.Schema{
		Type:       ai.TypeObject,
		Properties: make(map[string]*ai.Schema, len(names)),
		Required:   names,
	}
	for _, name := range names {
		schema.Properties[name] = &ai.Schema{
			Type:        ai.TypeString,
			Description: fieldDescriptions[name],
		}
	}

	attrs, usedFallback := ai.ObjectOr(ctx, h.ai, h.aiTimeout, prompt, schema, fallback)
	if usedFallback {
		h.log.WarnContext(ctx, "Meal extraction failed, using fallback", "fields", names)
		return fallback
	}
	// A model that answers nothing still must not lose the user's words.
	if len(attrs.Only(names)) == 0 {
		return fallback
	}
	return attrs
}

var fieldDescriptions = map[string]string{
	FieldFoodDescription: "What was eaten, without quantities or context. Empty string if unknown.",
	FieldContext:         "Social context, e.g. alone, with family, with colleagues. Empty string if unknown.",
	FieldWorkState:       "Whether the user was working, on a break, or off work. Empty string if unknown.",
	FieldCurrentActivity: "What the user was doing while eating. Empty string if unknown.",
	FieldEatingTrigger:   "Why the user ate: hunger, habit, stress, boredom, social. Empty string if unknown.",
}

func (h *Handler) respond(r Record, verb string) content.Response {
	var b strings.Builder
	b.WriteString(verb)
	if desc, ok := r.Get(FieldFoodDescription); ok {
		fmt.Fprintf(&b, ": %s", desc)
	}
	b.WriteString(".")

	resp := content.NewResponse(b.String())
	resp.Topic = Topic
	if missing := Missing(r); len(missing) > 0 {
		resp.Text += "\n\n" + FollowUpQuestion(missing)
		resp.CorrelationID = r.ID
		resp.Subject = missing[0]
	}
	return resp
}
