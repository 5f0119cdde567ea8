package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hydronet/internal/repository"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeToNull stores a zero time as NULL
func timeToNull(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// nullToTime parses a stored timestamp, NULL gives the zero time
func nullToTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, ns.String)
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals v to a nullable JSON string.
// Returns empty NullString for nil or empty maps
func marshalToNull(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if m, ok := v.(map[string]int); ok && len(m) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a column to a table:
// 1. Add field to the row struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update the columns constant - APPEND to end
// 4. Update toDomain() and the insert args
// 5. Add the column in sqlite.go migrate()
//
// CRITICAL: Column order must match between the columns constant, scanArgs()
// and the insert args.

// ============================================================================
// Answer Row Scanner
// ============================================================================

// answerRow holds all columns from an answer query for scanning
type answerRow struct {
	Key        string
	ValueJSON  string
	Question   sql.NullString
	AnsweredAt sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match answerColumns order exactly
func (r *answerRow) scanArgs() []any {
	return []any{
		&r.Key,        // 1
		&r.ValueJSON,  // 2
		&r.Question,   // 3
		&r.AnsweredAt, // 4
	}
}

func (r *answerRow) toDomain() (*repository.Answer, error) {
	a := &repository.Answer{
		Key:      r.Key,
		Question: nullToString(r.Question),
	}
	if err := json.Unmarshal([]byte(r.ValueJSON), &a.Value); err != nil {
		return nil, fmt.Errorf("unmarshal answer value: %w", err)
	}
	at, err := nullToTime(r.AnsweredAt)
	if err != nil {
		return nil, fmt.Errorf("parse answered_at: %w", err)
	}
	a.AnsweredAt = at
	return a, nil
}

const answerColumns = `key, value, question, answered_at`

func answerInsertArgs(a repository.Answer) ([]any, error) {
	value, err := json.Marshal(a.Value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	at := a.AnsweredAt
	if at.IsZero() {
		at = time.Now()
	}
	return []any{a.Key, string(value), stringToNull(a.Question), formatTime(at)}, nil
}

// ============================================================================
// Run Row Scanner
// ============================================================================

// runRow holds all columns from a run query for scanning
type runRow struct {
	ID             string
	Source         sql.NullString
	StartedAt      sql.NullString
	FinishedAt     sql.NullString
	ElementsBefore int
	ElementsAfter  int
	AggregatesJSON sql.NullString
	Pending        int
	Error          sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match runColumns order exactly
func (r *runRow) scanArgs() []any {
	return []any{
		&r.ID,             // 1
		&r.Source,         // 2
		&r.StartedAt,      // 3
		&r.FinishedAt,     // 4
		&r.ElementsBefore, // 5
		&r.ElementsAfter,  // 6
		&r.AggregatesJSON, // 7
		&r.Pending,        // 8
		&r.Error,          // 9
	}
}

func (r *runRow) toDomain() (*repository.Run, error) {
	run := &repository.Run{
		ID:             r.ID,
		Source:         nullToString(r.Source),
		ElementsBefore: r.ElementsBefore,
		ElementsAfter:  r.ElementsAfter,
		Pending:        r.Pending,
		Error:          nullToString(r.Error),
	}
	var err error
	if run.StartedAt, err = nullToTime(r.StartedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = nullToTime(r.FinishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if err := unmarshalJSONField(r.AggregatesJSON, &run.Aggregates); err != nil {
		return nil, fmt.Errorf("unmarshal aggregates: %w", err)
	}
	return run, nil
}

const runColumns = `id, source, started_at, finished_at, elements_before,
	elements_after, aggregates, pending, error`

func runInsertArgs(run *repository.Run) ([]any, error) {
	aggregates, err := marshalToNull(run.Aggregates)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregates: %w", err)
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	return []any{
		run.ID,
		stringToNull(run.Source),
		formatTime(started),
		timeToNull(run.FinishedAt),
		run.ElementsBefore,
		run.ElementsAfter,
		aggregates,
		run.Pending,
		stringToNull(run.Error),
	}, nil
}
