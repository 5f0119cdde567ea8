package aggregation

import (
	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

var generatorTypes = domain.NewTypeSet(domain.TypeBoiler, domain.TypeHeatPump, domain.TypeChiller, domain.TypeCoolingTower)

// ConsumerMatcher finds consumer circuits: whatever hangs off a distributor
// and contains a heat emitter but no generator
type ConsumerMatcher struct {
	Base
}

// NewConsumerMatcher creates the matcher
func NewConsumerMatcher() *ConsumerMatcher {
	return &ConsumerMatcher{
		Base: NewBase(consumerKind, Classes{
			Whitelist: domain.NewTypeSet(consumerTypes...),
			Blacklist: generatorTypes,
			Boundary:  domain.NewTypeSet(domain.TypeDistributor),
		}),
	}
}

// FindMatches returns the qualifying components left after removing the boundary
func (m *ConsumerMatcher) FindMatches(g *topology.Graph) ([]Match, error) {
	eg := g.ElementGraph()
	rest := topology.RemoveClassesFrom(eg, m.classes.Boundary)

	var matches []Match
	for _, comp := range rest.ConnectedComponents() {
		if !hasAny(comp, m.classes.Whitelist) || hasAny(comp, m.classes.Blacklist) {
			continue
		}
		if !m.aggregatable(comp) {
			continue
		}
		matches = append(matches, Match{Elements: inGraphOrder(eg, comp)})
	}
	return matches, nil
}

// inGraphOrder sorts elements by their position in eg
func inGraphOrder(eg *topology.ElementGraph, elements []*domain.Element) []*domain.Element {
	in := make(map[*domain.Element]bool, len(elements))
	for _, e := range elements {
		in[e] = true
	}
	out := make([]*domain.Element, 0, len(elements))
	for _, e := range eg.Elements() {
		if in[e] {
			out = append(out, e)
		}
	}
	return out
}
