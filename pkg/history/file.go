package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/types"
)

// FileStore keeps the history as a single JSON array on disk.
//
// A missing file, or one that is not a JSON array, reads as an empty history
// and is replaced on the next Add. Individual elements that fail to decode
// are hidden from reads but kept on disk. Writers are serialized in-process only; two processes
// sharing one file can lose updates.
type FileStore struct {
	mu     sync.Mutex
	path   string
	limit  int
	logger *logging.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger used to report unreadable history files.
func WithLogger(logger *logging.Logger) FileStoreOption {
	return func(fs *FileStore) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// NewFileStore creates a store backed by path, creating its directory.
func NewFileStore(path string, limit int, opts ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("history: init directory %s: %w", filepath.Dir(path), err)
	}

	fs := &FileStore{
		path:   path,
		limit:  normalizeLimit(limit),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// Add prepends entry, truncates to the limit and rewrites the file
// atomically via a temporary file. Existing elements are written back
// byte-for-byte, including ones that could not be decoded.
func (fs *FileStore) Add(_ context.Context, entry *types.HistoryEntry) error {
	if entry == nil {
		return fmt.Errorf("history: nil entry")
	}

	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history: encode entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	records := append([]record{{raw: doc, entry: entry}}, fs.load()...)
	if len(records) > fs.limit {
		records = records[:fs.limit]
	}

	raws := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		raws = append(raws, r.raw)
	}
	b, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("history: atomic rename %s: %w", fs.path, err)
	}
	return nil
}

// List returns all readable entries, newest first.
func (fs *FileStore) List(_ context.Context) ([]*types.HistoryEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return entriesOf(fs.load()), nil
}

// GetByName returns the newest entry recorded for projectName.
func (fs *FileStore) GetByName(_ context.Context, projectName string) (*types.HistoryEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, e := range entriesOf(fs.load()) {
		if e.ProjectName == projectName {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

// record is one element of the history array. entry is nil when raw could
// not be decoded.
type record struct {
	raw   json.RawMessage
	entry *types.HistoryEntry
}

// load reads the file element by element. A missing file, or one that is
// not a JSON array, reads as empty. Callers must hold fs.mu.
func (fs *FileStore) load() []record {
	b, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		fs.logger.Warnf("Unreadable history file %s, treating as empty: %v", fs.path, err)
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		fs.logger.Warnf("Malformed history file %s, treating as empty: %v", fs.path, err)
		return nil
	}

	records := make([]record, 0, len(raws))
	for i, raw := range raws {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		r := record{raw: raw}
		var entry types.HistoryEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			fs.logger.Warnf("Skipping unreadable history element %d in %s: %v", i, fs.path, err)
		} else {
			r.entry = &entry
		}
		records = append(records, r)
	}
	return records
}

func entriesOf(records []record) []*types.HistoryEntry {
	out := make([]*types.HistoryEntry, 0, len(records))
	for _, r := range records {
		if r.entry != nil {
			out = append(out, r.entry)
		}
	}
	return out
}
