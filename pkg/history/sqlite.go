package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/types"
)

// SQLiteStore keeps the history in a SQLite table, one JSON document per row.
type SQLiteStore struct {
	db     *sql.DB
	limit  int
	logger *logging.Logger
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(ctx context.Context, path string, limit int, logger *logging.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("history: init directory %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// A single connection serializes writers the same way FileStore's mutex does.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if logger == nil {
		logger = logging.Nop()
	}
	store := &SQLiteStore{db: db, limit: normalizeLimit(limit), logger: logger}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS qa_history (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL,
	project_name TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	entry        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_qa_history_project_name_seq ON qa_history (project_name, seq DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Add inserts entry and evicts rows beyond the limit in one transaction.
func (s *SQLiteStore) Add(ctx context.Context, entry *types.HistoryEntry) error {
	if entry == nil {
		return fmt.Errorf("history: nil entry")
	}

	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `INSERT INTO qa_history (id, project_name, created_at, entry) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, entry.ID, entry.ProjectName, entry.Timestamp.UTC().Format(time.RFC3339Nano), string(doc)); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	evict := `DELETE FROM qa_history WHERE seq NOT IN (SELECT seq FROM qa_history ORDER BY seq DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, evict, s.limit); err != nil {
		return fmt.Errorf("failed to evict old history entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns all entries, newest first. Rows that fail to decode are skipped.
func (s *SQLiteStore) List(ctx context.Context) ([]*types.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, entry FROM qa_history ORDER BY seq DESC LIMIT ?`, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []*types.HistoryEntry{}
	for rows.Next() {
		var seq int64
		var doc string
		if err := rows.Scan(&seq, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry, err := decodeEntry(doc)
		if err != nil {
			s.logger.Warnf("Skipping unreadable history row %d: %v", seq, err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// GetByName returns the newest readable entry for projectName.
func (s *SQLiteStore) GetByName(ctx context.Context, projectName string) (*types.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, entry FROM qa_history WHERE project_name = ? ORDER BY seq DESC`, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var doc string
		if err := rows.Scan(&seq, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry, err := decodeEntry(doc)
		if err != nil {
			s.logger.Warnf("Skipping unreadable history row %d: %v", seq, err)
			continue
		}
		return entry, nil
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return nil, ErrNotFound
}

func decodeEntry(doc string) (*types.HistoryEntry, error) {
	var entry types.HistoryEntry
	if err := json.Unmarshal([]byte(doc), &entry); err != nil {
		return nil, err
	}
	if entry.ProjectName == "" && entry.ID == "" {
		return nil, errors.New("empty history document")
	}
	return &entry, nil
}
