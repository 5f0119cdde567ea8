package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hydronet/internal/repository"
)

var _ repository.Repository = (*Repository)(nil)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New opens or creates the database at dbPath. ":memory:" gives a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		sep := "?"
		if strings.Contains(dbPath, "?") {
			sep = "&"
		}
		dsn = dbPath + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS answers (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		question TEXT,
		answered_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		elements_before INTEGER NOT NULL DEFAULT 0,
		elements_after INTEGER NOT NULL DEFAULT 0,
		aggregates TEXT,
		pending INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// ============================================================================
// Answers
// ============================================================================

// SaveAnswers inserts or replaces answers in one transaction
func (r *Repository) SaveAnswers(ctx context.Context, answers []repository.Answer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO answers (`+answerColumns+`)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			question = excluded.question,
			answered_at = excluded.answered_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range answers {
		args, err := answerInsertArgs(a)
		if err != nil {
			return fmt.Errorf("answer %s: %w", a.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to save answer %s: %w", a.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAnswer returns the answer stored under key
func (r *Repository) GetAnswer(ctx context.Context, key string) (*repository.Answer, error) {
	var row answerRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+answerColumns+` FROM answers WHERE key = ?
	`, key).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("answer %s: %w", key, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query answer: %w", err)
	}
	return row.toDomain()
}

// ListAnswers returns all answers ordered by key
func (r *Repository) ListAnswers(ctx context.Context) ([]repository.Answer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+answerColumns+` FROM answers ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	var out []repository.Answer
	for rows.Next() {
		var row answerRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// LoadAnswers returns all stored answer values by key
func (r *Repository) LoadAnswers(ctx context.Context) (map[string]any, error) {
	answers, err := r.ListAnswers(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(answers))
	for _, a := range answers {
		out[a.Key] = a.Value
	}
	return out, nil
}

// DeleteAnswer removes the answer stored under key
func (r *Repository) DeleteAnswer(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM answers WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete answer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("answer %s: %w", key, repository.ErrNotFound)
	}
	return nil
}

// ============================================================================
// Runs
// ============================================================================

// SaveRun inserts or replaces a run record
func (r *Repository) SaveRun(ctx context.Context, run *repository.Run) error {
	args, err := runInsertArgs(run)
	if err != nil {
		return fmt.Errorf("run %s: %w", run.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			finished_at = excluded.finished_at,
			elements_before = excluded.elements_before,
			elements_after = excluded.elements_after,
			aggregates = excluded.aggregates,
			pending = excluded.pending,
			error = excluded.error
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun returns a run by id
func (r *Repository) GetRun(ctx context.Context, id string) (*repository.Run, error) {
	var row runRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE id = ?
	`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return row.toDomain()
}

// ListRuns returns runs, most recent first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]repository.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []repository.Run
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
