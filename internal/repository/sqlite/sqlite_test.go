package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"hydronet/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// assertNotFound fails the test unless err wraps repository.ErrNotFound
func assertNotFound(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// ============================================================================
// Answers
// ============================================================================

func TestSaveAnswers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := repo.SaveAnswers(ctx, []repository.Answer{
		{Key: "boiler/rated_power", Value: 24.0, Question: "Enter the rated power", AnsweredAt: at},
		{Key: "consumer/has_valve", Value: true},
		{Key: "module/label", Value: "east wing"},
	})
	assertNoError(t, err)

	t.Run("get", func(t *testing.T) {
		a, err := repo.GetAnswer(ctx, "boiler/rated_power")
		assertNoError(t, err)
		assertEqual(t, 24.0, a.Value)
		assertEqual(t, "Enter the rated power", a.Question)
		if !a.AnsweredAt.Equal(at) {
			t.Errorf("answered_at = %v, want %v", a.AnsweredAt, at)
		}
	})

	t.Run("list ordered by key", func(t *testing.T) {
		list, err := repo.ListAnswers(ctx)
		assertNoError(t, err)
		keys := make([]string, len(list))
		for i, a := range list {
			keys[i] = a.Key
		}
		assertEqual(t, []string{"boiler/rated_power", "consumer/has_valve", "module/label"}, keys)
	})

	t.Run("load for replay", func(t *testing.T) {
		answers, err := repo.LoadAnswers(ctx)
		assertNoError(t, err)
		assertEqual(t, map[string]any{
			"boiler/rated_power": 24.0,
			"consumer/has_valve": true,
			"module/label":       "east wing",
		}, answers)
	})

	t.Run("overwrite", func(t *testing.T) {
		assertNoError(t, repo.SaveAnswers(ctx, []repository.Answer{{Key: "boiler/rated_power", Value: 30.0}}))
		a, err := repo.GetAnswer(ctx, "boiler/rated_power")
		assertNoError(t, err)
		assertEqual(t, 30.0, a.Value)
		assertEqual(t, "", a.Question)
	})

	t.Run("delete", func(t *testing.T) {
		assertNoError(t, repo.DeleteAnswer(ctx, "module/label"))
		_, err := repo.GetAnswer(ctx, "module/label")
		assertNotFound(t, err)
		assertNotFound(t, repo.DeleteAnswer(ctx, "module/label"))
	})
}

func TestSaveAnswersRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.SaveAnswers(ctx, []repository.Answer{
		{Key: "a/x", Value: 1.0},
		{Key: "b/x", Value: func() {}},
	})
	if err == nil {
		t.Fatal("expected marshal error")
	}

	answers, err := repo.LoadAnswers(ctx)
	assertNoError(t, err)
	assertEqual(t, 0, len(answers))
}

// ============================================================================
// Runs
// ============================================================================

func TestRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		err := repo.SaveRun(ctx, &repository.Run{
			ID:             id,
			Source:         "plant.yaml",
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			FinishedAt:     base.Add(time.Duration(i)*time.Minute + time.Second),
			ElementsBefore: 20,
			ElementsAfter:  5,
			Aggregates:     map[string]int{"PipeStrand": 5, "Consumer": 2},
			Pending:        i,
		})
		assertNoError(t, err)
	}

	t.Run("get", func(t *testing.T) {
		run, err := repo.GetRun(ctx, "r2")
		assertNoError(t, err)
		assertEqual(t, "plant.yaml", run.Source)
		assertEqual(t, map[string]int{"PipeStrand": 5, "Consumer": 2}, run.Aggregates)
		assertEqual(t, 1, run.Pending)
		if !run.FinishedAt.Equal(base.Add(time.Minute + time.Second)) {
			t.Errorf("finished_at = %v", run.FinishedAt)
		}
	})

	t.Run("most recent first", func(t *testing.T) {
		runs, err := repo.ListRuns(ctx, 2)
		assertNoError(t, err)
		assertEqual(t, 2, len(runs))
		assertEqual(t, "r3", runs[0].ID)
		assertEqual(t, "r2", runs[1].ID)

		all, err := repo.ListRuns(ctx, 0)
		assertNoError(t, err)
		assertEqual(t, 3, len(all))
	})

	t.Run("update with error", func(t *testing.T) {
		assertNoError(t, repo.SaveRun(ctx, &repository.Run{
			ID:        "r1",
			StartedAt: base,
			Error:     "odd number of open consumer ports",
		}))
		run, err := repo.GetRun(ctx, "r1")
		assertNoError(t, err)
		assertEqual(t, "odd number of open consumer ports", run.Error)
		assertEqual(t, 0, len(run.Aggregates))
		if !run.FinishedAt.IsZero() {
			t.Errorf("finished_at = %v, want zero", run.FinishedAt)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetRun(ctx, "nope")
		assertNotFound(t, err)
	})
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydronet.db")
	ctx := context.Background()

	repo, err := New(path)
	assertNoError(t, err)
	assertNoError(t, repo.SaveAnswers(ctx, []repository.Answer{{Key: "k", Value: "v"}}))
	assertNoError(t, repo.Close())

	reopened, err := New(path)
	assertNoError(t, err)
	defer reopened.Close()
	answers, err := reopened.LoadAnswers(ctx)
	assertNoError(t, err)
	assertEqual(t, map[string]any{"k": "v"}, answers)
}
