package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hydronet/internal/aggregation"
	"hydronet/internal/attribute"
	"hydronet/internal/domain"
	"hydronet/internal/metrics"
	"hydronet/internal/repository"
	"hydronet/internal/topology"
)

// ErrNoGraph is returned when an operation needs a loaded graph
var ErrNoGraph = errors.New("no topology loaded")

// StageReport summarises one pipeline stage of a run
type StageReport struct {
	Kind     domain.ElementType `json:"kind"`
	Matches  int                `json:"matches"`
	Merged   int                `json:"merged"`
	Duration time.Duration      `json:"duration_ns"`
}

// Report is the outcome of one simplification run
type Report struct {
	RunID          string                  `json:"run_id"`
	Source         string                  `json:"source,omitempty"`
	Stages         []StageReport           `json:"stages"`
	ElementsBefore int                     `json:"elements_before"`
	ElementsAfter  int                     `json:"elements_after"`
	Pending        attribute.DecisionBatch `json:"pending,omitempty"`
}

// Aggregates counts the aggregates built per kind
func (r *Report) Aggregates() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Stages {
		if s.Merged > 0 {
			out[string(s.Kind)] += s.Merged
		}
	}
	return out
}

// Simplifier runs the aggregation pipeline over a topology graph and carries
// the decision round trip. The engine itself is single threaded; the mutex
// only serialises callers such as HTTP handlers.
type Simplifier struct {
	mu       sync.Mutex
	pipeline *aggregation.Pipeline
	resolver *attribute.Resolver
	repo     repository.Repository
	metrics  *metrics.Registry
	eventBus *EventBus
	logger   *slog.Logger

	graph  *topology.Graph
	source string
}

// NewSimplifier creates a simplifier. repo may be nil, in which case
// answers and runs are not persisted. Nil metrics, event bus or logger are
// replaced by private instances.
func NewSimplifier(pipeline *aggregation.Pipeline, resolver *attribute.Resolver, repo repository.Repository, reg *metrics.Registry, eventBus *EventBus, logger *slog.Logger) *Simplifier {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if eventBus == nil {
		eventBus = NewEventBus()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Simplifier{
		pipeline: pipeline,
		resolver: resolver,
		repo:     repo,
		metrics:  reg,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Pipeline returns the configured pipeline
func (s *Simplifier) Pipeline() *aggregation.Pipeline {
	return s.pipeline
}

// Load makes g the current graph. source names where it came from.
// Decisions raised on the previous graph are dropped; answers given so far
// still apply to the new one.
func (s *Simplifier) Load(g *topology.Graph, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver.Reset()
	s.graph = g
	s.source = source
	s.logger.Info("topology loaded",
		slog.String("source", source),
		slog.Int("elements", len(g.Elements())),
		slog.Int("ports", g.Len()))
	s.eventBus.Publish(Event{
		Type:    EventGraphLoaded,
		Payload: map[string]any{"source": source, "elements": len(g.Elements())},
	})
}

// View calls fn with the current graph while holding the lock
func (s *Simplifier) View(fn func(g *topology.Graph) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return ErrNoGraph
	}
	return fn(s.graph)
}

// Simplify runs the pipeline on the current graph
func (s *Simplifier) Simplify(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, ErrNoGraph
	}
	return s.run(ctx, s.graph, s.source)
}

// Run simplifies g in place and makes it the current graph
func (s *Simplifier) Run(ctx context.Context, g *topology.Graph) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph != g {
		s.resolver.Reset()
		s.graph = g
	}
	return s.run(ctx, g, s.source)
}

func (s *Simplifier) run(ctx context.Context, g *topology.Graph, source string) (*Report, error) {
	report := &Report{
		RunID:          uuid.NewString(),
		Source:         source,
		ElementsBefore: len(g.Elements()),
	}
	record := &repository.Run{
		ID:             report.RunID,
		Source:         source,
		StartedAt:      time.Now(),
		ElementsBefore: report.ElementsBefore,
	}
	log := s.logger.With(slog.String("run_id", report.RunID))
	log.Info("simplification started", slog.Int("elements", report.ElementsBefore))
	s.eventBus.Publish(Event{Type: EventRunStarted, Payload: map[string]any{"run_id": report.RunID}})

	runErr := s.stages(ctx, g, report, log)

	report.ElementsAfter = len(g.Elements())
	report.Pending = s.collectPending(g)
	s.metrics.SetPending(len(report.Pending))

	record.FinishedAt = time.Now()
	record.ElementsAfter = report.ElementsAfter
	record.Aggregates = report.Aggregates()
	record.Pending = len(report.Pending)
	if runErr != nil {
		record.Error = runErr.Error()
	}
	s.saveRun(ctx, record, log)

	if runErr != nil {
		log.Error("simplification failed", slog.Any("error", runErr))
		s.eventBus.Publish(Event{
			Type:    EventRunFailed,
			Payload: map[string]any{"run_id": report.RunID, "error": runErr.Error()},
		})
		return report, runErr
	}

	log.Info("simplification finished",
		slog.Int("elements_before", report.ElementsBefore),
		slog.Int("elements_after", report.ElementsAfter),
		slog.Int("pending", len(report.Pending)),
		slog.Duration("took", record.FinishedAt.Sub(record.StartedAt)))
	s.eventBus.Publish(Event{Type: EventRunFinished, Payload: report})
	if len(report.Pending) > 0 {
		s.eventBus.Publish(Event{Type: EventDecisionsPending, Payload: report.Pending})
	}
	return report, nil
}

// stages runs every enabled matcher in pipeline order. Matches of one stage
// are disjoint, so they are constructed and merged one after another. A
// failing stage leaves the aggregates merged before it in place.
func (s *Simplifier) stages(ctx context.Context, g *topology.Graph, report *Report, log *slog.Logger) error {
	for _, m := range s.pipeline.Enabled() {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind := m.Kind().Type
		start := time.Now()

		matches, err := m.FindMatches(g)
		if err != nil {
			return fmt.Errorf("stage %s: %w", kind, err)
		}

		stage := StageReport{Kind: kind, Matches: len(matches)}
		for _, match := range matches {
			if err := ctx.Err(); err != nil {
				return err
			}
			agg, err := s.merge(g, m.Kind(), match)
			if err != nil {
				s.metrics.RecordMerge(string(kind), metrics.StatusRejected)
				return fmt.Errorf("stage %s: %w", kind, err)
			}
			s.metrics.RecordMerge(string(kind), metrics.StatusMerged)
			stage.Merged++
			log.Debug("aggregate merged",
				slog.String("kind", string(kind)),
				slog.String("guid", agg.GUID),
				slog.Int("constituents", len(agg.Constituents())),
				slog.Int("ports", len(agg.Ports)))
			s.eventBus.Publish(Event{
				Type: EventAggregateMerged,
				Payload: map[string]any{
					"kind":         kind,
					"guid":         agg.GUID,
					"constituents": len(agg.Constituents()),
				},
			})
		}

		stage.Duration = time.Since(start)
		s.metrics.RecordStage(string(kind), stage.Matches, stage.Duration)
		report.Stages = append(report.Stages, stage)
		s.eventBus.Publish(Event{Type: EventStageFinished, Payload: stage})
	}
	return nil
}

func (s *Simplifier) merge(g *topology.Graph, kind *aggregation.Kind, match aggregation.Match) (*domain.Element, error) {
	c, err := aggregation.New(kind, g, match)
	if err != nil {
		return nil, err
	}
	if err := aggregation.CheckBoundary(c.Aggregate); err != nil {
		return nil, err
	}
	aggregation.Apply(g, c)
	return c.Aggregate, nil
}

// collectPending resolves every attribute of the outermost aggregates so
// that all questions are raised, and returns the open decisions.
func (s *Simplifier) collectPending(g *topology.Graph) attribute.DecisionBatch {
	for _, e := range g.Elements() {
		if e.IsAggregate() {
			s.resolver.ResolveAll(e)
		}
	}
	return s.resolver.Pending()
}

// Pending returns the open decisions
func (s *Simplifier) Pending() attribute.DecisionBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Pending()
}

// Answer applies answers to open decisions, persists them and returns the
// decisions that are still open, including any raised by the new values.
func (s *Simplifier) Answer(ctx context.Context, answers map[string]any) (attribute.DecisionBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := make(map[string]string)
	for _, d := range s.resolver.Pending() {
		questions[d.Key] = d.Question
	}

	if err := s.resolver.Resume(answers); err != nil {
		return nil, fmt.Errorf("failed to apply answers: %w", err)
	}

	if s.repo != nil {
		now := time.Now()
		records := make([]repository.Answer, 0, len(answers))
		for k, v := range answers {
			records = append(records, repository.Answer{Key: k, Value: v, Question: questions[k], AnsweredAt: now})
		}
		if err := s.repo.SaveAnswers(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to persist answers: %w", err)
		}
	}

	var pending attribute.DecisionBatch
	if s.graph != nil {
		pending = s.collectPending(s.graph)
	} else {
		pending = s.resolver.Pending()
	}
	s.metrics.SetPending(len(pending))

	s.logger.Info("decisions answered",
		slog.Int("answered", len(answers)),
		slog.Int("pending", len(pending)))
	s.eventBus.Publish(Event{
		Type:    EventDecisionsAnswered,
		Payload: map[string]any{"answered": len(answers), "pending": len(pending)},
	})
	return pending, nil
}

// Replay preloads every stored answer so repeated questions are answered
// without asking. It returns the number of answers loaded.
func (s *Simplifier) Replay(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	answers, err := s.repo.LoadAnswers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load answers: %w", err)
	}
	s.mu.Lock()
	s.resolver.Preload(answers)
	s.mu.Unlock()
	s.logger.Debug("answers replayed", slog.Int("count", len(answers)))
	return len(answers), nil
}

// Attributes resolves every attribute declared for e. Must not be called
// from inside View.
func (s *Simplifier) Attributes(e *domain.Element) ([]string, map[string]attribute.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.ResolveAll(e)
}

// Runs returns recent run records, most recent first
func (s *Simplifier) Runs(ctx context.Context, limit int) ([]repository.Run, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListRuns(ctx, limit)
}

func (s *Simplifier) saveRun(ctx context.Context, run *repository.Run, log *slog.Logger) {
	if s.repo == nil {
		return
	}
	// the run record must survive a cancelled run context
	if err := s.repo.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("failed to save run", slog.Any("error", err))
	}
}
