// Package journal persists the user's activity log: one markdown file per
// day, JSON-lines record collections and uploaded media, all on an afero
// filesystem.
package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const (
	journalDir = "journal"
	recordsDir = "records"
	mediaDir   = "media"

	// IDField is the key under which every record carries its id.
	IDField = "id"
)

var errInvalidPath = errors.New("invalid path")

// Store is the durable record storage consumed by the orchestrator and the
// content handlers.
type Store interface {
	// AppendLine appends one line to the day's journal identified by dateKey (YYYY-MM-DD).
	AppendLine(ctx context.Context, dateKey, text string) error

	// UploadBinary stores data under the media directory and returns a reference
	// relative to the store root.
	UploadBinary(ctx context.Context, name string, data []byte) (string, error)

	// AppendRecord appends record as one JSON object to the collection, tagged with id.
	AppendRecord(ctx context.Context, collection, id string, record any) error

	// GetRecord decodes the record with id into out and reports whether it exists.
	GetRecord(ctx context.Context, collection, id string, out any) (bool, error)

	// UpdateRecord merges partial into the stored record. Nil values are
	// skipped so a populated field is never cleared.
	UpdateRecord(ctx context.Context, collection, id string, partial map[string]any) (bool, error)
}

type fsStore struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFSStore creates a Store rooted at root on fs.
func NewFSStore(fs afero.Fs, root string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &fsStore{
		fs:     fs,
		root:   root,
		logger: logger.With("component", "journal"),
	}
}

func (s *fsStore) AppendLine(ctx context.Context, dateKey, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := s.resolve(journalDir, dateKey+".md")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendBytes(name, []byte(SingleLine(text)+"\n")); err != nil {
		return fmt.Errorf("failed to append journal line for %s: %w", dateKey, err)
	}
	s.logger.DebugContext(ctx, "Journal line appended", "date", dateKey)
	return nil
}

func (s *fsStore) UploadBinary(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("cannot upload empty file")
	}
	full, err := s.resolve(mediaDir, name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file %s: %w", name, err)
	}

	ref := path.Join(mediaDir, path.Clean(name))
	s.logger.DebugContext(ctx, "Media uploaded", "ref", ref, "bytes", len(data))
	return ref, nil
}

func (s *fsStore) AppendRecord(ctx context.Context, collection, id string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return errors.New("record id cannot be empty")
	}
	name, err := s.resolve(recordsDir, collection+".jsonl")
	if err != nil {
		return err
	}

	fields, err := toMap(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}
	fields[IDField] = id

	line, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendBytes(name, append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append record %s to %s: %w", id, collection, err)
	}
	s.logger.DebugContext(ctx, "Record appended", "collection", collection, "id", id)
	return nil
}

func (s *fsStore) GetRecord(ctx context.Context, collection, id string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := s.resolve(recordsDir, collection+".jsonl")
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	records, err := s.readRecords(name)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	idx := findRecord(records, id)
	if idx < 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}

	raw, err := json.Marshal(records[idx])
	if err != nil {
		return false, fmt.Errorf("failed to re-encode record %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return true, nil
}

func (s *fsStore) UpdateRecord(ctx context.Context, collection, id string, partial map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := s.resolve(recordsDir, collection+".jsonl")
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords(name)
	if err != nil {
		return false, err
	}

	idx := findRecord(records, id)
	if idx < 0 {
		s.logger.DebugContext(ctx, "Record not found for update", "collection", collection, "id", id)
		return false, nil
	}

	for k, v := range partial {
		if v == nil || k == IDField {
			continue
		}
		records[idx][k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return false, fmt.Errorf("failed to encode record: %w", err)
		}
	}

	// Write to a sibling file and rename so a crash never truncates the collection.
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		return false, fmt.Errorf("failed to replace %s: %w", name, err)
	}

	s.logger.DebugContext(ctx, "Record updated", "collection", collection, "id", id, "fields", len(partial))
	return true, nil
}

func (s *fsStore) appendBytes(name string, data []byte) error {
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return err
	}
	f, err := s.fs.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *fsStore) readRecords(name string) ([]map[string]any, error) {
	data, err := afero.ReadFile(s.fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var records []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			s.logger.Warn("Skipping malformed record line", "file", name, "line", lineNo, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", name, err)
	}
	return records, nil
}

// resolve joins dir and name under the root, rejecting names that escape dir.
func (s *fsStore) resolve(dir, name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	if name == "" || clean == "/" || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", errInvalidPath, name)
	}
	return path.Join(s.root, dir, clean), nil
}

// findRecord returns the index of the last record carrying id, or -1.
func findRecord(records []map[string]any, id string) int {
	for i := len(records) - 1; i >= 0; i-- {
		if v, ok := records[i][IDField].(string); ok && v == id {
			return i
		}
	}
	return -1
}

func toMap(record any) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
