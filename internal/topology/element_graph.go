package topology

import "hydronet/internal/domain"

// ElementGraph is the contraction of a Graph: nodes are elements, an edge
// exists iff a connection links ports of the two elements. It is a snapshot;
// rebuild it from the Graph after every Merge.
type ElementGraph struct {
	g *ugraph[*domain.Element]
}

// NewElementGraph builds an element graph directly from port connections
func NewElementGraph(elements []*domain.Element) *ElementGraph {
	return New(elements).ElementGraph()
}

// Len returns the number of elements
func (eg *ElementGraph) Len() int {
	return eg.g.order()
}

// Elements returns the elements in insertion order
func (eg *ElementGraph) Elements() []*domain.Element {
	return eg.g.nodeList()
}

// HasElement reports whether e is a node
func (eg *ElementGraph) HasElement(e *domain.Element) bool {
	return eg.g.hasNode(e)
}

// Neighbors returns the elements adjacent to e
func (eg *ElementGraph) Neighbors(e *domain.Element) []*domain.Element {
	nbs := eg.g.neighbors(e)
	out := make([]*domain.Element, len(nbs))
	copy(out, nbs)
	return out
}

// Degree returns the number of distinct neighbours of e
func (eg *ElementGraph) Degree(e *domain.Element) int {
	return eg.g.degree(e)
}

// HasEdge reports whether a and b are adjacent
func (eg *ElementGraph) HasEdge(a, b *domain.Element) bool {
	return eg.g.hasEdge(a, b)
}

// Edges returns every element pair once
func (eg *ElementGraph) Edges() [][2]*domain.Element {
	return eg.g.edges()
}

// Copy returns an independent copy
func (eg *ElementGraph) Copy() *ElementGraph {
	return &ElementGraph{g: eg.g.copy()}
}

// Subgraph returns the graph induced by elements
func (eg *ElementGraph) Subgraph(elements []*domain.Element) *ElementGraph {
	keep := make(map[*domain.Element]bool, len(elements))
	for _, e := range elements {
		keep[e] = true
	}
	return eg.filter(func(e *domain.Element) bool { return keep[e] })
}

// Without returns a copy with the given elements removed
func (eg *ElementGraph) Without(elements ...*domain.Element) *ElementGraph {
	drop := make(map[*domain.Element]bool, len(elements))
	for _, e := range elements {
		drop[e] = true
	}
	return eg.filter(func(e *domain.Element) bool { return !drop[e] })
}

func (eg *ElementGraph) filter(keep func(*domain.Element) bool) *ElementGraph {
	return &ElementGraph{g: eg.g.subgraph(keep)}
}

// ConnectedComponents returns the components in element order
func (eg *ElementGraph) ConnectedComponents() [][]*domain.Element {
	return eg.g.components()
}

// ShortestPath returns a shortest element path from a to b, or nil
func (eg *ElementGraph) ShortestPath(a, b *domain.Element) []*domain.Element {
	return eg.g.shortestPath(a, b)
}

// CycleBasis returns a fundamental cycle basis of the element graph
func (eg *ElementGraph) CycleBasis() [][]*domain.Element {
	return eg.g.cycleBasis()
}

// SimpleCycles returns every simple cycle with at least three elements
func (eg *ElementGraph) SimpleCycles() [][]*domain.Element {
	return eg.g.simpleCycles()
}
