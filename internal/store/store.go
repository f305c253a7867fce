// Package store provides a SQLite-backed history of answered questions.
// Every ask that reaches the pipeline is recorded with its answer, sources,
// and latency, and survives server restarts. The history feeds the
// /api/history endpoint.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one answered question.
type Entry struct {
	// ID is the auto-assigned row id, descending in /api/history output.
	ID int64 `json:"id"`
	// Question is the user's question as received.
	Question string `json:"question"`
	// Answer is the final answer text, including any refusal string.
	Answer string `json:"answer"`
	// Sources lists the provenance strings returned with the answer.
	Sources []string `json:"sources"`
	// Duration is how long the ask took. Serialized as integer milliseconds
	// under "duration_ms".
	Duration time.Duration `json:"-"`
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// entryJSON is the wire shape of Entry: the duration travels as integer
// milliseconds, matching the "duration_ms" key.
type entryJSON struct {
	ID         int64     `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Sources    []string  `json:"sources"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// MarshalJSON emits the duration in milliseconds rather than the raw
// nanosecond count a time.Duration would serialize to.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		ID:         e.ID,
		Question:   e.Question,
		Answer:     e.Answer,
		Sources:    e.Sources,
		DurationMS: e.Duration.Milliseconds(),
		CreatedAt:  e.CreatedAt,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var j entryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*e = Entry{
		ID:        j.ID,
		Question:  j.Question,
		Answer:    j.Answer,
		Sources:   j.Sources,
		Duration:  time.Duration(j.DurationMS) * time.Millisecond,
		CreatedAt: j.CreatedAt,
	}
	return nil
}

// HistoryStore persists and retrieves answered questions. Implementations
// must be safe for concurrent use.
type HistoryStore interface {
	// Append persists one answered question.
	Append(ctx context.Context, question, answer string, sources []string, duration time.Duration) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.demandqa/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".demandqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS qa_history (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      TEXT    NOT NULL,  -- JSON array of provenance strings
    duration_ms  INTEGER NOT NULL,
    created_at   INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_qa_history_created
    ON qa_history (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists one answered question.
func (s *SQLiteStore) Append(ctx context.Context, question, answer string, sources []string, duration time.Duration) error {
	if sources == nil {
		sources = []string{}
	}
	srcJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: marshal sources: %w", err)
	}
	const q = `INSERT INTO qa_history (question, answer, sources, duration_ms, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, question, answer, string(srcJSON), duration.Milliseconds(), time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT id, question, answer, sources, duration_ms, created_at
FROM   qa_history
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			srcJSON string
			durMS   int64
			ts      int64
		)
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &srcJSON, &durMS, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(srcJSON), &e.Sources); err != nil {
			return nil, fmt.Errorf("store: recent sources: %w", err)
		}
		e.Duration = time.Duration(durMS) * time.Millisecond
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
