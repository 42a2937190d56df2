// Package store persists the log of previously asked exploratory questions.
// The unique constraint on question text is the authoritative dedup gate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS generated_questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT UNIQUE NOT NULL,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// Open opens the question database at path, creating the file and schema if
// missing. The caller owns the returned handle.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question database: %w", err)
	}
	// Single connection: sqlite allows one writer at a time and the store
	// has no concurrent readers worth pooling for.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping question database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize question database schema: %w", err)
	}
	return db, nil
}

type Config struct {
	Logger *slog.Logger
	DB     *sql.DB
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	return nil
}

type Store struct {
	log *slog.Logger
	db  *sql.DB
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log: cfg.Logger,
		db:  cfg.DB,
	}, nil
}

// Exists reports whether the exact question text has been asked before.
func (s *Store) Exists(ctx context.Context, question string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generated_questions WHERE question = ?`, question).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check question existence: %w", err)
	}
	return count > 0, nil
}

// Save inserts the question if absent. It returns false without error when
// the question is already present; the unique constraint makes the check
// atomic, so concurrent callers never both report success for the same text.
func (s *Store) Save(ctx context.Context, question string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO generated_questions (question) VALUES (?)`, question)
	if err != nil {
		return false, fmt.Errorf("failed to save question: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return inserted > 0, nil
}

// Recent returns up to limit question texts, most recent first. The id
// tiebreak keeps the order stable for questions saved within the same
// timestamp granularity.
func (s *Store) Recent(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question FROM generated_questions ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent questions: %w", err)
	}
	defer rows.Close()

	var questions []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent questions: %w", err)
	}
	return questions, nil
}

// Count returns the total number of stored questions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generated_questions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}
