// Package text turns model output into plain text that is safe to send as
// an unformatted Telegram message.
package text

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	blockTagRegex         = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?h[1-6]>|</?blockquote>`)
	listItemRegex         = regexp.MustCompile(`<li>\s*`)
	multipleNewlinesRegex = regexp.MustCompile(`\n\s*\n+`)
	controlCharsRegex     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
	markdown   goldmark.Markdown
)

func initPolicy() {
	policy = bluemonday.StrictPolicy()
	markdown = goldmark.New()
}

// PlainText strips markdown and HTML from s, keeping paragraph breaks and
// rendering list items with a bullet.
func PlainText(s string) string {
	s = strings.TrimSpace(controlCharsRegex.ReplaceAllString(s, ""))
	if s == "" {
		return ""
	}
	policyOnce.Do(initPolicy)

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err != nil {
		return s
	}

	out := blockTagRegex.ReplaceAllString(buf.String(), "\n")
	out = listItemRegex.ReplaceAllString(out, "• ")
	out = policy.Sanitize(out)
	out = multipleNewlinesRegex.ReplaceAllString(out, "\n\n")
	out = html.UnescapeString(out)

	return strings.TrimSpace(out)
}
