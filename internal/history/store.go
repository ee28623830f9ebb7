package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/send"
)

const (
	DefaultMaxEntries = 200
	snippetLimit      = 512
)

// Entry is one completed send. URL is the display resolution, so secrets
// appear masked.
type Entry struct {
	ID          string
	ExecutedAt  time.Time
	Environment string
	RequestName string
	Method      string
	URL         string
	StatusCode  int
	Status      string
	SizeBytes   int
	Duration    time.Duration
	BodySnippet string
	Error       string
	Timing      *TimingSummary
}

func (e Entry) Failed() bool {
	return e.Error != ""
}

type Store struct {
	db         *sql.DB
	maxEntries int
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id           TEXT PRIMARY KEY,
	executed_at  INTEGER NOT NULL,
	environment  TEXT NOT NULL DEFAULT '',
	request_name TEXT NOT NULL DEFAULT '',
	method       TEXT NOT NULL,
	url          TEXT NOT NULL,
	status_code  INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT '',
	size_bytes   INTEGER NOT NULL DEFAULT 0,
	duration_ns  INTEGER NOT NULL DEFAULT 0,
	body_snippet TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	timing       TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_executed_at ON history(executed_at DESC);
`

// Open creates the database file and schema if needed. maxEntries <= 0 uses
// DefaultMaxEntries.
func Open(path string, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "create history dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "open history database")
	}
	// sqlite allows one writer; sends record from their own goroutines
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeHistory, err, "initialize history schema")
	}
	return &Store{db: db, maxEntries: maxEntries}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts entry and drops the oldest rows beyond the size limit.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}
	var timing sql.NullString
	if entry.Timing != nil {
		data, err := json.Marshal(entry.Timing)
		if err != nil {
			return errdef.Wrap(errdef.CodeHistory, err, "encode timing")
		}
		timing = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "begin history write")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (
			id, executed_at, environment, request_name, method, url,
			status_code, status, size_bytes, duration_ns, body_snippet, error, timing
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ExecutedAt.UnixNano(),
		entry.Environment,
		entry.RequestName,
		entry.Method,
		entry.URL,
		entry.StatusCode,
		entry.Status,
		entry.SizeBytes,
		int64(entry.Duration),
		entry.BodySnippet,
		entry.Error,
		timing,
	)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "insert history entry")
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY executed_at DESC, rowid DESC LIMIT ?
		)`, s.maxEntries)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "trim history")
	}
	if err := tx.Commit(); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "commit history write")
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, executed_at, environment, request_name, method, url,
		       status_code, status, size_bytes, duration_ns, body_snippet, error, timing
		FROM history
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "query history")
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			executed int64
			duration int64
			timing   sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &executed, &e.Environment, &e.RequestName, &e.Method, &e.URL,
			&e.StatusCode, &e.Status, &e.SizeBytes, &duration, &e.BodySnippet, &e.Error, &timing,
		); err != nil {
			return nil, errdef.Wrap(errdef.CodeHistory, err, "scan history row")
		}
		e.ExecutedAt = time.Unix(0, executed)
		e.Duration = time.Duration(duration)
		if timing.Valid && timing.String != "" {
			var sum TimingSummary
			if err := json.Unmarshal([]byte(timing.String), &sum); err == nil {
				e.Timing = &sum
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "read history rows")
	}
	return entries, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "clear history")
	}
	return nil
}

// Record stores a finished send; it satisfies send.Recorder.
func (s *Store) Record(res send.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Append(ctx, EntryFromResult(res))
}

func EntryFromResult(res send.Result) Entry {
	e := Entry{
		ExecutedAt:  res.StartedAt,
		Environment: res.Environment,
		RequestName: res.RequestName,
		Method:      string(res.Method),
		URL:         res.DisplayURL,
	}
	if res.Err != nil {
		e.Error = errdef.Message(res.Err)
	}
	if resp := res.Response; resp != nil {
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status()
		e.SizeBytes = resp.SizeBytes
		e.Duration = resp.Timing.Total
		e.BodySnippet = snippet(resp.Body)
		e.Timing = NewTimingSummary(resp)
	}
	return e
}

func snippet(body httpclient.Body) string {
	switch body.Kind {
	case httpclient.BodyText:
		return truncateRunes(strings.TrimSpace(body.Text), snippetLimit)
	case httpclient.BodyBinary:
		return "<binary>"
	default:
		return ""
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
