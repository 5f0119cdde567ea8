package attribute

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// SchemaFunc returns the schema that applies to a subject
type SchemaFunc func(s Subject) *Schema

// Result is the outcome of one Resolve call
type Result struct {
	Value   any
	Status  Status
	Pending DecisionBatch
}

// Float returns the value as float64 if it is available and numeric
func (r Result) Float() (float64, bool) {
	if r.Status != StatusAvailable {
		return 0, false
	}
	return ToFloat(r.Value)
}

// Suspended reports whether the result waits for external answers
func (r Result) Suspended() bool {
	return len(r.Pending) > 0
}

type pendingEntry struct {
	decision *Decision
	slot     *Slot
}

// Resolver resolves attribute slots against their schemas and keeps track of
// open decisions. It is not safe for concurrent use.
type Resolver struct {
	schemas   SchemaFunc
	logger    *slog.Logger
	pending   []pendingEntry
	index     map[string]int
	preloaded map[string]any
	inflight  map[string]bool
}

// NewResolver creates a resolver. A nil logger discards log output.
func NewResolver(schemas SchemaFunc, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		schemas:   schemas,
		logger:    logger,
		index:     make(map[string]int),
		preloaded: make(map[string]any),
		inflight:  make(map[string]bool),
	}
}

// Preload supplies answers known before resolution starts (replayed decisions).
// An Ask source whose key is preloaded yields the answer instead of a decision.
func (r *Resolver) Preload(answers map[string]any) {
	for k, v := range answers {
		r.preloaded[k] = v
	}
}

// Reset forgets the open decisions, for example when the graph they were
// raised on is replaced. Preloaded and answered values are kept, so a
// question answered once is not asked again for the same key.
func (r *Resolver) Reset() {
	r.pending = nil
	r.index = make(map[string]int)
	r.inflight = make(map[string]bool)
}

// Resolve returns the value of the named attribute, consulting sources on first read
func (r *Resolver) Resolve(s Subject, name string) Result {
	slot := s.Slots().Get(name)
	switch slot.Status {
	case StatusAvailable:
		return Result{Value: slot.Value, Status: StatusAvailable}
	case StatusNotAvailable:
		return Result{Status: StatusNotAvailable}
	case StatusRequested:
		return Result{Status: StatusRequested, Pending: DecisionBatch{slot.decision}}
	}

	var schema *Schema
	if r.schemas != nil {
		schema = r.schemas(s)
	}
	decl, ok := schema.Lookup(name)
	if !ok {
		slot.Status = StatusNotAvailable
		return Result{Status: StatusNotAvailable}
	}

	key := DecisionKey(s.ID(), name)
	if r.inflight[key] {
		// cyclic dependency: no value on this path
		return Result{Status: StatusUnknown}
	}
	r.inflight[key] = true
	defer delete(r.inflight, key)

	c := &Context{Subject: s, Decl: decl, r: r}
	for _, src := range decl.Sources {
		v, err := src.fn(c)
		if errors.Is(err, errAsked) {
			slot.Status = StatusRequested
			slot.decision = c.asked
			r.register(c.asked, slot)
			r.logger.Debug("attribute requested",
				slog.String("key", c.asked.Key),
				slog.String("question", c.asked.Question))
			return Result{Status: StatusRequested, Pending: DecisionBatch{c.asked}}
		}
		if len(c.pending) > 0 {
			return Result{Status: StatusUnknown, Pending: c.pending}
		}
		if err != nil {
			r.logger.Debug("attribute source failed",
				slog.String("key", key),
				slog.String("source", src.Label),
				slog.Any("error", err))
			continue
		}
		if v != nil {
			slot.Value = v
			slot.Status = StatusAvailable
			return Result{Value: v, Status: StatusAvailable}
		}
	}

	slot.Status = StatusNotAvailable
	return Result{Status: StatusNotAvailable}
}

// Float resolves name and converts it to float64
func (r *Resolver) Float(s Subject, name string) (float64, bool) {
	return r.Resolve(s, name).Float()
}

// ResolveAll resolves every attribute declared for s, in declaration order
func (r *Resolver) ResolveAll(s Subject) ([]string, map[string]Result) {
	var schema *Schema
	if r.schemas != nil {
		schema = r.schemas(s)
	}
	names := schema.Names()
	results := make(map[string]Result, len(names))
	for _, name := range names {
		results[name] = r.Resolve(s, name)
	}
	return names, results
}

// register indexes a decision. A key raised again for another slot replaces
// the old entry, so answers always reach the live slot.
func (r *Resolver) register(d *Decision, slot *Slot) {
	if i, ok := r.index[d.Key]; ok {
		if r.pending[i].slot != slot {
			r.pending[i] = pendingEntry{decision: d, slot: slot}
		}
		return
	}
	r.index[d.Key] = len(r.pending)
	r.pending = append(r.pending, pendingEntry{decision: d, slot: slot})
}

// Pending returns all open decisions in the order they were raised
func (r *Resolver) Pending() DecisionBatch {
	batch := make(DecisionBatch, 0, len(r.pending))
	for _, e := range r.pending {
		batch = append(batch, e.decision)
	}
	return batch
}

// Resume applies answers to their REQUESTED slots and remembers them for
// later resolutions. Answers are validated as a whole first; on error no
// slot changes.
func (r *Resolver) Resume(answers map[string]any) error {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	converted := make(map[string]any, len(answers))
	for _, k := range keys {
		i, ok := r.index[k]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDecision, k)
		}
		v, err := r.pending[i].decision.Convert(answers[k])
		if err != nil {
			return err
		}
		converted[k] = v
	}

	for _, k := range keys {
		slot := r.pending[r.index[k]].slot
		slot.Value = converted[k]
		slot.Status = StatusAvailable
		slot.decision = nil
		r.preloaded[k] = converted[k]
		r.logger.Debug("attribute answered", slog.String("key", k))
	}

	remaining := r.pending[:0]
	for _, e := range r.pending {
		if _, answered := converted[e.decision.Key]; !answered {
			remaining = append(remaining, e)
		}
	}
	r.pending = remaining
	r.index = make(map[string]int, len(remaining))
	for i, e := range remaining {
		r.index[e.decision.Key] = i
	}
	return nil
}

// Context is handed to sources while one attribute is being resolved
type Context struct {
	Subject Subject
	Decl    *Decl

	r       *Resolver
	pending DecisionBatch
	asked   *Decision
}

// Dependants returns the subjects declared by the attribute's DependantFunc
func (c *Context) Dependants() []Subject {
	if c.Decl == nil || c.Decl.Dependant == nil {
		return nil
	}
	return c.Decl.Dependant(c.Subject)
}

// Resolve reads another attribute. Pending decisions it runs into are collected
// and suspend the current computation.
func (c *Context) Resolve(s Subject, name string) (any, bool) {
	res := c.r.Resolve(s, name)
	if res.Suspended() {
		c.pending = c.pending.merge(res.Pending)
	}
	return res.Value, res.Status == StatusAvailable
}

// Float reads another attribute as float64
func (c *Context) Float(s Subject, name string) (float64, bool) {
	v, ok := c.Resolve(s, name)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// Bool reads another attribute as bool
func (c *Context) Bool(s Subject, name string) (bool, bool) {
	v, ok := c.Resolve(s, name)
	if !ok {
		return false, false
	}
	return ToBool(v)
}

// Suspended reports whether a dependency is waiting for an answer
func (c *Context) Suspended() bool {
	return len(c.pending) > 0
}

func (c *Context) ask(question string, kind AnswerKind) (any, error) {
	key := DecisionKey(c.Subject.ID(), c.Decl.Name)
	d := &Decision{
		Key:      key,
		Question: fmt.Sprintf("%s [%s]", question, c.Subject.ID()),
		Unit:     c.Decl.Unit,
		Kind:     kind,
	}
	if v, ok := c.r.preloaded[key]; ok {
		return d.Convert(v)
	}
	d.Related = append(d.Related, c.Subject.ID())
	for _, dep := range c.Dependants() {
		d.Related = append(d.Related, dep.ID())
	}
	c.asked = d
	return nil, errAsked
}
