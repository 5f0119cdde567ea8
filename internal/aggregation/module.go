package aggregation

import (
	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// ModuleMatcher joins a distributor with the consumer circuits it feeds.
// Circuits that are neither consumers nor generators are left outside; the
// distributor ports facing them are recorded so they become paired edge
// ports of the module.
type ModuleMatcher struct {
	Base
}

// NewModuleMatcher creates the matcher
func NewModuleMatcher() *ModuleMatcher {
	return &ModuleMatcher{
		Base: NewBase(moduleKind, Classes{
			Whitelist: domain.NewTypeSet(append(consumerTypes, domain.TypeConsumer)...),
			Blacklist: generatorTypes.Union(domain.NewTypeSet(
				domain.TypeDistributor,
				domain.TypeConsumerHeatingDistributorModule,
				domain.TypeGeneratorOneFluid,
			)),
			Boundary: domain.NewTypeSet(domain.TypeDistributor),
		}),
	}
}

// FindMatches returns one match per distributor with at least one consumer circuit
func (m *ModuleMatcher) FindMatches(g *topology.Graph) ([]Match, error) {
	eg := g.ElementGraph()
	claimed := make(map[*domain.Element]bool)

	var matches []Match
	for _, d := range eg.Elements() {
		if !m.classes.Boundary.Has(d.Type) || claimed[d] {
			continue
		}

		members := []*domain.Element{d}
		var undefined []*domain.Port
		consumers := 0

		for _, comp := range eg.Without(d).ConnectedComponents() {
			if !adjacentTo(eg, comp, d) || hasAny(comp, m.classes.Blacklist) {
				continue
			}
			if hasAny(comp, m.classes.Whitelist) {
				if !m.aggregatable(comp) || anyClaimed(comp, claimed) {
					continue
				}
				members = append(members, comp...)
				consumers++
				continue
			}
			undefined = append(undefined, facingPorts(g, d, comp)...)
		}

		if consumers == 0 {
			continue
		}
		for _, e := range members {
			claimed[e] = true
		}
		matches = append(matches, Match{
			Elements: inGraphOrder(eg, members),
			Metadata: map[string]any{MetaUndefinedConsumerPorts: undefined},
		})
	}
	return matches, nil
}

func adjacentTo(eg *topology.ElementGraph, comp []*domain.Element, d *domain.Element) bool {
	for _, e := range comp {
		if eg.HasEdge(e, d) {
			return true
		}
	}
	return false
}

func anyClaimed(comp []*domain.Element, claimed map[*domain.Element]bool) bool {
	for _, e := range comp {
		if claimed[e] {
			return true
		}
	}
	return false
}

// facingPorts returns the ports of d connected to an element of comp, in port order
func facingPorts(g *topology.Graph, d *domain.Element, comp []*domain.Element) []*domain.Port {
	in := make(map[*domain.Element]bool, len(comp))
	for _, e := range comp {
		in[e] = true
	}
	var out []*domain.Port
	for _, p := range d.Ports {
		for _, nb := range g.Neighbors(p) {
			if in[nb.Owner] {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
