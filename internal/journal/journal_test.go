package journal

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID      string  `json:"id"`
	Food    *string `json:"food"`
	Context *string `json:"context"`
	Count   int     `json:"count"`
}

func strPtr(s string) *string { return &s }

func TestEntryLine(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	ts := time.Date(2025, 3, 10, 8, 5, 0, 0, time.UTC)

	tests := []struct {
		name     string
		entry    Entry
		loc      *time.Location
		expected string
	}{
		{
			name:     "plain text",
			entry:    Entry{Timestamp: ts, Text: "working on the bot"},
			loc:      time.UTC,
			expected: "- [08:05] working on the bot",
		},
		{
			name:     "local zone",
			entry:    Entry{Timestamp: ts, Text: "coffee"},
			loc:      berlin,
			expected: "- [09:05] coffee",
		},
		{
			name:     "photo prefix",
			entry:    Entry{Timestamp: ts, Text: "lunch", PhotoRef: "media/a.jpg"},
			loc:      time.UTC,
			expected: "- [08:05] ![photo](media/a.jpg) lunch",
		},
		{
			name:     "multiline text and tags",
			entry:    Entry{Timestamp: ts, Text: "line one\n\tline two", Tags: []string{"#work", "deep focus", ""}},
			loc:      nil,
			expected: "- [08:05] line one line two #work #deep_focus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expected, tt.entry.Line(tt.loc))
		})
	}
}

func TestDateKeyUsesLocalDay(t *testing.T) {
	t.Parallel()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	ts := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)

	require.Equal(t, "2025-03-10", DateKey(ts, time.UTC))
	require.Equal(t, "2025-03-11", DateKey(ts, tokyo))
}

func TestLoadLocation(t *testing.T) {
	t.Parallel()

	loc, name := LoadLocation("America/New_York", "UTC")
	require.Equal(t, "America/New_York", name)
	require.Equal(t, "America/New_York", loc.String())

	_, name = LoadLocation("Not/AZone", "Europe/Paris")
	require.Equal(t, "Europe/Paris", name)

	loc, name = LoadLocation("", "bogus")
	require.Equal(t, "UTC", name)
	require.Equal(t, time.UTC, loc)

	require.True(t, ValidTimezone("Europe/Lisbon"))
	require.False(t, ValidTimezone("Mars/Olympus"))
	require.False(t, ValidTimezone(" "))
}

func TestClampMinutes(t *testing.T) {
	t.Parallel()

	require.Equal(t, 5, ClampMinutes(1, 5, 1440))
	require.Equal(t, 90, ClampMinutes(90, 5, 1440))
	require.Equal(t, 1440, ClampMinutes(5000, 5, 1440))
}

func TestFSStore_AppendLine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs, "data", nil)

	require.NoError(t, store.AppendLine(ctx, "2025-03-10", "- [08:05] one"))
	require.NoError(t, store.AppendLine(ctx, "2025-03-10", "- [09:00] two\nlines"))

	data, err := afero.ReadFile(fs, "data/journal/2025-03-10.md")
	require.NoError(t, err)
	require.Equal(t, "- [08:05] one\n- [09:00] two lines\n", string(data))

	require.Error(t, store.AppendLine(ctx, "../escape", "x"))
}

func TestFSStore_UploadBinary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs, "data", nil)

	ref, err := store.UploadBinary(ctx, "photo.jpg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	require.Equal(t, "media/photo.jpg", ref)

	exists, err := afero.Exists(fs, "data/media/photo.jpg")
	require.NoError(t, err)
	require.True(t, exists)

	_, err = store.UploadBinary(ctx, "empty.jpg", nil)
	require.Error(t, err)
}

func TestFSStore_Records(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewFSStore(afero.NewMemMapFs(), "data", nil)

	var got testRecord
	found, err := store.GetRecord(ctx, "food", "1", &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.AppendRecord(ctx, "food", "1", testRecord{Food: strPtr("cereal"), Count: 3}))
	require.NoError(t, store.AppendRecord(ctx, "food", "2", testRecord{Food: strPtr("toast")}))

	found, err = store.GetRecord(ctx, "food", "1", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", got.ID)
	require.Equal(t, "cereal", *got.Food)
	require.Nil(t, got.Context)
	require.Equal(t, 3, got.Count)

	// Nil values never clear a populated field.
	found, err = store.UpdateRecord(ctx, "food", "1", map[string]any{
		"context": "alone",
		"food":    nil,
	})
	require.NoError(t, err)
	require.True(t, found)

	got = testRecord{}
	found, err = store.GetRecord(ctx, "food", "1", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "cereal", *got.Food)
	require.Equal(t, "alone", *got.Context)

	// Other records are untouched by the rewrite.
	var other testRecord
	found, err = store.GetRecord(ctx, "food", "2", &other)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "toast", *other.Food)

	found, err = store.UpdateRecord(ctx, "food", "missing", map[string]any{"food": "x"})
	require.NoError(t, err)
	require.False(t, found)
}

func TestFSStore_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFSStore(afero.NewMemMapFs(), "data", nil)
	require.ErrorIs(t, store.AppendLine(ctx, "2025-03-10", "x"), context.Canceled)
}

func TestPhotoName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 10, 8, 5, 9, 0, time.UTC)
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

	name := PhotoName(ts, 42, jpeg)
	require.Regexp(t, `^20250310-080509-42-[0-9a-f]{8}\.jpg$`, name)
	require.Equal(t, name, PhotoName(ts, 42, jpeg))
	require.NotEqual(t, name, PhotoName(ts, 43, jpeg))
	require.NotEqual(t, name, PhotoName(ts.Add(time.Nanosecond), 42, jpeg))

	require.Equal(t, ".txt", PhotoExtension([]byte("plain words")))
}
