package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Answer is an external answer to a decision, stored under its global key so
// a later run can replay it
type Answer struct {
	Key        string    `json:"key"`
	Value      any       `json:"value"`
	Question   string    `json:"question,omitempty"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Run records one simplification run
type Run struct {
	ID             string         `json:"id"`
	Source         string         `json:"source,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	ElementsBefore int            `json:"elements_before"`
	ElementsAfter  int            `json:"elements_after"`
	Aggregates     map[string]int `json:"aggregates,omitempty"`
	Pending        int            `json:"pending"`
	Error          string         `json:"error,omitempty"`
}

// AnswerStore persists decision answers
type AnswerStore interface {
	SaveAnswers(ctx context.Context, answers []Answer) error
	GetAnswer(ctx context.Context, key string) (*Answer, error)
	ListAnswers(ctx context.Context) ([]Answer, error)
	// LoadAnswers returns all answer values by key, ready for replay
	LoadAnswers(ctx context.Context) (map[string]any, error)
	DeleteAnswer(ctx context.Context, key string) error
}

// RunStore persists run history
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs first; limit <= 0 returns all
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Repository is the complete persistence boundary
type Repository interface {
	AnswerStore
	RunStore

	// Close releases resources
	Close() error
}
