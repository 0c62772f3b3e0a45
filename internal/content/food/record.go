// Package food implements the "food:" content handler. Each meal becomes one
// structured record; replies to the bot's follow-up question fill in the
// attributes that were left unknown.
package food

import (
	"fmt"
	"strings"
	"time"
)

// Attribute names, in the order follow-up questions are asked.
const (
	FieldFoodDescription = "food_description"
	FieldContext         = "context"
	FieldWorkState       = "work_state"
	FieldCurrentActivity = "current_activity"
	FieldEatingTrigger   = "eating_trigger"
)

// Fields lists every attribute in question order.
var Fields = []string{
	FieldFoodDescription,
	FieldContext,
	FieldWorkState,
	FieldCurrentActivity,
	FieldEatingTrigger,
}

var questions = map[string]string{
	FieldFoodDescription: "What did you eat?",
	FieldContext:         "Were you eating alone or with someone?",
	FieldWorkState:       "Were you working while you ate, or taking a break?",
	FieldCurrentActivity: "What were you doing right before or while eating?",
	FieldEatingTrigger:   "What made you eat just now? Hunger, habit, stress, something else?",
}

const genericQuestion = "What's your %s?"

// Record is one logged meal. A nil attribute is unknown, which is distinct
// from an empty answer.
type Record struct {
	ID        string    `json:"id"`
	MessageID int       `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	LoggedAt  time.Time `json:"logged_at"`

	FoodDescription *string `json:"food_description"`
	Context         *string `json:"context"`
	WorkState       *string `json:"work_state"`
	CurrentActivity *string `json:"current_activity"`
	EatingTrigger   *string `json:"eating_trigger"`

	PhotoRef string `json:"photo_ref,omitempty"`
}

func (r *Record) field(name string) **string {
	switch name {
	case FieldFoodDescription:
		return &r.FoodDescription
	case FieldContext:
		return &r.Context
	case FieldWorkState:
		return &r.WorkState
	case FieldCurrentActivity:
		return &r.CurrentActivity
	case FieldEatingTrigger:
		return &r.EatingTrigger
	}
	return nil
}

// Get returns the attribute value and whether it is known.
func (r Record) Get(name string) (string, bool) {
	p := r.field(name)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Attributes is a partial set of attribute values keyed by field name.
type Attributes map[string]string

// Merge copies every non-blank value in partial onto existing. It never
// clears a populated field.
func Merge(existing Record, partial Attributes) Record {
	for name, value := range partial {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if p := existing.field(name); p != nil {
			v := value
			*p = &v
		}
	}
	return existing
}

// Missing returns the unknown attributes in question order.
func Missing(r Record) []string {
	var missing []string
	for _, name := range Fields {
		if _, ok := r.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// FollowUpQuestion asks about the first missing attribute only, so every
// reply answers exactly one question. It returns "" when nothing is missing.
func FollowUpQuestion(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	if q, ok := questions[missing[0]]; ok {
		return q
	}
	return fmt.Sprintf(genericQuestion, strings.ReplaceAll(missing[0], "_", " "))
}

// Only keeps the entries of a whose keys are in names.
func (a Attributes) Only(names []string) Attributes {
	out := make(Attributes, len(names))
	for _, name := range names {
		if v := strings.TrimSpace(a[name]); v != "" {
			out[name] = v
		}
	}
	return out
}

// Map converts a to the partial-update form used by the record store.
func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
