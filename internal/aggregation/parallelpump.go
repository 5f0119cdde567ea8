package aggregation

import (
	"hydronet/internal/attribute"
	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// ParallelPumpMatcher finds pumps sitting in parallel branches
type ParallelPumpMatcher struct {
	Base
	resolver  *attribute.Resolver
	grouping  string
	threshold int
}

// NewParallelPumpMatcher creates the matcher. Pumps are grouped by the
// grouping attribute; an empty grouping accepts any parallel pumps.
func NewParallelPumpMatcher(resolver *attribute.Resolver, grouping string, threshold int) *ParallelPumpMatcher {
	if threshold < 1 {
		threshold = 1
	}
	return &ParallelPumpMatcher{
		Base: NewBase(parallelPumpKind, Classes{
			Whitelist: domain.NewTypeSet(domain.TypePump),
		}),
		resolver:  resolver,
		grouping:  grouping,
		threshold: threshold,
	}
}

// FindMatches returns one match per pump bank
func (m *ParallelPumpMatcher) FindMatches(g *topology.Graph) ([]Match, error) {
	eg := g.ElementGraph()
	wanted := m.classes.Whitelist
	inert := m.kind.Aggregatable.Minus(wanted)

	var matches []Match
	for _, group := range topology.Parallels(eg, wanted, inert, m.groupFunc(), m.threshold) {
		matches = append(matches, Match{Elements: group})
	}
	return matches, nil
}

func (m *ParallelPumpMatcher) groupFunc() topology.GroupFunc {
	if m.grouping == "" {
		return func(*domain.Element) any { return nil }
	}
	return func(e *domain.Element) any {
		if m.resolver == nil {
			return nil
		}
		v, ok := m.resolver.Float(e, m.grouping)
		if !ok {
			return nil
		}
		return v
	}
}
