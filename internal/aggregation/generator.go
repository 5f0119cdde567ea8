package aggregation

import (
	"log/slog"

	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// GeneratorMatcher finds generator loops: boilers together with the pumps,
// valves and pipes that form their circuits towards a distributor.
type GeneratorMatcher struct {
	Base
	logger *slog.Logger
}

// NewGeneratorMatcher creates the matcher
func NewGeneratorMatcher(logger *slog.Logger) *GeneratorMatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GeneratorMatcher{
		Base: NewBase(generatorKind, Classes{
			Whitelist: domain.NewTypeSet(domain.TypeBoiler),
			Boundary: domain.NewTypeSet(
				domain.TypeDistributor,
				domain.TypeConsumerHeatingDistributorModule,
			),
		}),
		logger: logger,
	}
}

type elementSet struct {
	order []*domain.Element
	in    map[*domain.Element]bool
}

func newElementSet(elements ...*domain.Element) *elementSet {
	s := &elementSet{in: make(map[*domain.Element]bool)}
	s.add(elements...)
	return s
}

func (s *elementSet) add(elements ...*domain.Element) {
	for _, e := range elements {
		if !s.in[e] {
			s.in[e] = true
			s.order = append(s.order, e)
		}
	}
}

func (s *elementSet) remove(e *domain.Element) {
	if !s.in[e] {
		return
	}
	delete(s.in, e)
	for i, x := range s.order {
		if x == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *elementSet) has(e *domain.Element) bool {
	return s.in[e]
}

type generatorCluster struct {
	nodes  *elementSet
	bypass []*domain.Element
}

// FindMatches returns one match per generator cluster.
//
// Cycles through a boiler and a boundary element are clustered; clusters
// sharing a boiler merge. Nodes claimed by more than one cluster stay with
// the later one. Cycles that do not reach the boundary are attached to the
// first cluster they touch when their remaining nodes are inert; those nodes
// are recorded as bypass.
func (m *GeneratorMatcher) FindMatches(g *topology.Graph) ([]Match, error) {
	eg := g.ElementGraph()
	wanted := m.classes.Whitelist
	boundary := m.classes.Boundary
	inert := m.kind.Aggregatable.Minus(wanted)
	r := topology.RemoveNotWantedNodes(eg, wanted.Union(boundary).Union(inert))

	var boundaryCycles [][]*domain.Element
	for _, cycle := range topology.AllCyclesWithWanted(r, wanted) {
		if len(cycle) > 2 && hasAny(cycle, boundary) {
			boundaryCycles = append(boundaryCycles, cycle)
		}
	}
	clusters := m.cluster(boundaryCycles, wanted, boundary)
	if len(clusters) == 0 {
		return nil, nil
	}

	// shared nodes go to the later cluster
	for i := range clusters {
		for j := i + 1; j < len(clusters); j++ {
			for _, e := range append([]*domain.Element(nil), clusters[i].nodes.order...) {
				if clusters[j].nodes.has(e) {
					m.logger.Debug("generator clusters overlap",
						slog.String("element", e.GUID),
						slog.Int("kept_by", j))
					clusters[i].nodes.remove(e)
				}
			}
		}
	}

	claimed := make(map[*domain.Element]bool)
	for _, c := range clusters {
		for _, e := range c.nodes.order {
			claimed[e] = true
		}
	}

	for _, cycle := range r.SimpleCycles() {
		if len(cycle) <= 2 || hasAny(cycle, boundary) {
			continue
		}
		m.attachBypass(clusters, cycle, inert, claimed)
	}

	var matches []Match
	for _, c := range clusters {
		if !hasAny(c.nodes.order, wanted) {
			continue
		}
		matches = append(matches, Match{
			Elements: inGraphOrder(eg, c.nodes.order),
			Metadata: map[string]any{
				MetaBypassElements: inGraphOrder(eg, c.bypass),
				MetaNonRelevant:    m.nonRelevant(r, c, wanted, inert, claimed),
			},
		})
	}
	return matches, nil
}

// cluster unions boundary cycles sharing a wanted element and drops the
// boundary nodes
func (m *GeneratorMatcher) cluster(cycles [][]*domain.Element, wanted, boundary domain.TypeSet) []*generatorCluster {
	parent := make([]int, len(cycles))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	owner := make(map[*domain.Element]int)
	for i, cycle := range cycles {
		for _, e := range cycle {
			if !wanted.Has(e.Type) {
				continue
			}
			if j, ok := owner[e]; ok {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[max(ri, rj)] = min(ri, rj)
				}
			} else {
				owner[e] = i
			}
		}
	}

	index := make(map[int]*generatorCluster)
	var clusters []*generatorCluster
	for i, cycle := range cycles {
		root := find(i)
		c, ok := index[root]
		if !ok {
			c = &generatorCluster{nodes: newElementSet()}
			index[root] = c
			clusters = append(clusters, c)
		}
		for _, e := range cycle {
			if !boundary.Has(e.Type) {
				c.nodes.add(e)
			}
		}
	}
	return clusters
}

// attachBypass adds the unclaimed inert nodes of a local cycle to the first
// cluster the cycle touches
func (m *GeneratorMatcher) attachBypass(clusters []*generatorCluster, cycle []*domain.Element, inert domain.TypeSet, claimed map[*domain.Element]bool) {
	var extra []*domain.Element
	for _, e := range cycle {
		if claimed[e] {
			continue
		}
		if !inert.Has(e.Type) {
			return
		}
		extra = append(extra, e)
	}
	if len(extra) == 0 {
		return
	}
	for _, c := range clusters {
		touches := false
		for _, e := range cycle {
			if c.nodes.has(e) {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		c.nodes.add(extra...)
		c.bypass = append(c.bypass, extra...)
		for _, e := range extra {
			claimed[e] = true
		}
		return
	}
	m.logger.Debug("local cycle touches no generator cluster", slog.Int("size", len(cycle)))
}

// nonRelevant collects the unclaimed inert runs hanging off the cluster's
// wanted elements. They are reported but not aggregated.
func (m *GeneratorMatcher) nonRelevant(r *topology.ElementGraph, c *generatorCluster, wanted, inert domain.TypeSet, claimed map[*domain.Element]bool) []*domain.Element {
	out := newElementSet()
	for _, w := range c.nodes.order {
		if !wanted.Has(w.Type) {
			continue
		}
		for _, nb := range r.Neighbors(w) {
			if claimed[nb] || !inert.Has(nb.Type) {
				continue
			}
			for _, e := range topology.PathWithoutJunctions(r, nb, false) {
				if !claimed[e] && inert.Has(e.Type) {
					out.add(e)
				}
			}
		}
	}
	return out.order
}
