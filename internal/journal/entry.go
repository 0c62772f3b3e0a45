package journal

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	dateKeyLayout = "2006-01-02"
	clockLayout   = "15:04"
)

// Entry is one journal line. Corrections are new entries, never edits.
type Entry struct {
	Timestamp time.Time
	Text      string
	PhotoRef  string
	Tags      []string
}

// Line renders the entry in loc as "- [HH:MM] text", with an optional
// markdown image before the text and hashtags after it.
func (e Entry) Line(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- [%s]", e.Timestamp.In(loc).Format(clockLayout))
	if e.PhotoRef != "" {
		fmt.Fprintf(&b, " ![photo](%s)", e.PhotoRef)
	}
	if text := SingleLine(e.Text); text != "" {
		b.WriteString(" ")
		b.WriteString(text)
	}
	for _, tag := range e.Tags {
		tag = strings.TrimLeft(strings.Join(strings.Fields(tag), "_"), "#")
		if tag != "" {
			b.WriteString(" #")
			b.WriteString(tag)
		}
	}
	return b.String()
}

// DateKey returns the YYYY-MM-DD key of t's day in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateKeyLayout)
}

// ClockTime returns HH:MM of t in loc.
func ClockTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(clockLayout)
}

// LoadLocation resolves name, then fallback, then UTC. It returns the
// location together with the name that was actually used.
func LoadLocation(name, fallback string) (*time.Location, string) {
	for _, candidate := range []string{name, fallback} {
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc, candidate
		}
	}
	return time.UTC, "UTC"
}

// ValidTimezone reports whether name is a loadable IANA zone.
func ValidTimezone(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// SingleLine collapses every run of whitespace, newlines included, into a
// single space so a value can never break the one-entry-per-line layout.
func SingleLine(text string) string {
	var b strings.Builder
	var space bool

	for _, r := range text {
		switch {
		case r == '\u3000':
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r) || r == '\u00A0':
			if !space {
				b.WriteRune(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}

	return strings.TrimSpace(b.String())
}

// ClampMinutes bounds v to [lo, hi].
func ClampMinutes(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
