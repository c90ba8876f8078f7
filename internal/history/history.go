// Package history keeps the terminal client's record of submitted attempts
// in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("history: attempt not found")

// Entry is one locally recorded attempt.
type Entry struct {
	AttemptID     string
	TestID        string
	Title         string
	Score         float64
	TotalMarks    float64
	Percentage    float64
	Correct       int
	Wrong         int
	Unattempted   int
	TimeTaken     int
	AutoSubmitted bool
	SubmittedAt   time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path. ":memory:"
// gives a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		attempt_id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		total_marks REAL NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		correct INTEGER NOT NULL DEFAULT 0,
		wrong INTEGER NOT NULL DEFAULT 0,
		unattempted INTEGER NOT NULL DEFAULT 0,
		time_taken INTEGER NOT NULL DEFAULT 0,
		auto_submitted INTEGER NOT NULL DEFAULT 0,
		submitted_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_test ON attempts(test_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_submitted ON attempts(submitted_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores e. Recording the same attempt twice keeps the first copy.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.AttemptID == "" {
		return errors.New("history: attempt id is required")
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO attempts
			(attempt_id, test_id, title, score, total_marks, percentage,
			 correct, wrong, unattempted, time_taken, auto_submitted, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AttemptID, e.TestID, e.Title, e.Score, e.TotalMarks, e.Percentage,
		e.Correct, e.Wrong, e.Unattempted, e.TimeTaken, e.AutoSubmitted, e.SubmittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// List returns the most recent attempts first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT attempt_id, test_id, title, score, total_marks, percentage,
		correct, wrong, unattempted, time_taken, auto_submitted, submitted_at
		FROM attempts ORDER BY submitted_at DESC, attempt_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one attempt by id.
func (s *Store) Get(ctx context.Context, attemptID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT attempt_id, test_id, title, score, total_marks, percentage,
		correct, wrong, unattempted, time_taken, auto_submitted, submitted_at
		FROM attempts WHERE attempt_id = ?`, attemptID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Attempted reports whether any attempt of testID is recorded.
func (s *Store) Attempted(ctx context.Context, testID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE test_id = ?`, testID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count attempts: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var e Entry
	err := r.Scan(&e.AttemptID, &e.TestID, &e.Title, &e.Score, &e.TotalMarks, &e.Percentage,
		&e.Correct, &e.Wrong, &e.Unattempted, &e.TimeTaken, &e.AutoSubmitted, &e.SubmittedAt)
	return e, err
}
