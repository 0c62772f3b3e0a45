package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/edgard/checkinbot/internal/ai"
	"github.com/edgard/checkinbot/internal/content"
	"github.com/edgard/checkinbot/internal/journal"
	"github.com/edgard/checkinbot/internal/text"
)

const enrichPrompt = `You keep a personal activity journal for the user and check in on them from time to time.
Local time: %s (%s).
Photo attached: %t.
Message: %q

Return:
- reply: a short, warm acknowledgement in the user's language, one or two sentences.
- next_checkin_minutes: minutes until it makes sense to ask what they are doing again, based on how long this activity usually lasts. Between %d and %d.
- summary: the activity in a few words, as a journal line written by the user.
- tags: up to three short lowercase tags, or an empty list.`

var enrichSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"reply":                {Type: ai.TypeString, Description: "Reply sent to the user."},
		"next_checkin_minutes": {Type: ai.TypeInteger, Description: "Minutes until the next check-in."},
		"summary":              {Type: ai.TypeString, Description: "One-line journal summary of the activity."},
		"tags":                 {Type: ai.TypeArray, Items: &ai.Schema{Type: ai.TypeString}},
	},
	Required: []string{"reply", "next_checkin_minutes", "summary", "tags"},
}

// enrichment is the model's reading of a plain activity message. Some
// models return the minutes as a string, so the field is decoded loosely.
type enrichment struct {
	Reply              string   `json:"reply"`
	NextCheckinMinutes any      `json:"next_checkin_minutes"`
	Summary            string   `json:"summary"`
	Tags               []string `json:"tags"`
}

// journalEntry is the default path for messages no handler claims: enrich,
// append one journal line and propose the next check-in delay. Failures
// degrade the reply but never abort the turn.
func (o *Orchestrator) journalEntry(ctx context.Context, req content.Request, photoRef string, hasPhoto bool) (content.Response, time.Duration) {
	raw := strings.TrimSpace(req.Classifier())

	fallback := enrichment{
		Reply:              o.msgs.FallbackReply,
		NextCheckinMinutes: o.settings.FallbackDelayMinutes,
		Summary:            raw,
	}
	prompt := fmt.Sprintf(enrichPrompt,
		req.Now.In(req.Location).Format("Mon 2006-01-02 15:04"), req.Timezone,
		hasPhoto, raw, o.settings.MinDelayMinutes, o.settings.MaxDelayMinutes)

	result, usedFallback := ai.ObjectOr(ctx, o.ai, o.settings.AITimeout, prompt, enrichSchema, fallback)
	if usedFallback {
		o.log.WarnContext(ctx, "Enrichment failed, using fallback reply", "user_id", req.UserID)
	}

	reply := result.Reply
	if !usedFallback {
		reply = text.PlainText(reply)
	}
	if reply == "" {
		reply = o.msgs.FallbackReply
	}

	// A missing, null or non-positive proposal is no proposal at all.
	minutes, err := cast.ToIntE(result.NextCheckinMinutes)
	if err != nil || usedFallback || minutes <= 0 {
		minutes = o.settings.FallbackDelayMinutes
	}
	minutes = journal.ClampMinutes(minutes, o.settings.MinDelayMinutes, o.settings.MaxDelayMinutes)

	summary := result.Summary
	if strings.TrimSpace(summary) == "" {
		summary = raw
	}

	entry := journal.Entry{Timestamp: req.Now, Text: summary, PhotoRef: photoRef, Tags: result.Tags}
	resp := content.NewResponse(reply)

	storeCtx, cancel := o.storeCtx(ctx)
	defer cancel()
	if err := o.records.AppendLine(storeCtx, journal.DateKey(req.Now, req.Location), entry.Line(req.Location)); err != nil {
		o.log.ErrorContext(ctx, "Failed to append journal line", "user_id", req.UserID, "error", err)
		resp.Text += o.msgs.SaveFailedSuffix
	}

	o.log.InfoContext(ctx, "Journal entry recorded",
		"user_id", req.UserID,
		"next_checkin_minutes", minutes,
		"has_photo", hasPhoto,
		"fallback", usedFallback)
	return resp, time.Duration(minutes) * time.Minute
}
