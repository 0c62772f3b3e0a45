package text_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgard/checkinbot/internal/text"
)

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "   ", expected: ""},
		{name: "plain", input: "Nice, keep going!", expected: "Nice, keep going!"},
		{name: "emphasis", input: "**Great** job, _really_!", expected: "Great job, really!"},
		{name: "heading and paragraph", input: "# Title\n\nBody text", expected: "Title\n\nBody text"},
		{name: "list", input: "- one\n- two", expected: "• one\n• two"},
		{name: "entities", input: "Tom & Jerry", expected: "Tom & Jerry"},
		{name: "raw html removed", input: "hi <b>there</b>", expected: "hi there"},
		{name: "control chars", input: "a\x00b\x07c", expected: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expected, text.PlainText(tt.input))
		})
	}
}
