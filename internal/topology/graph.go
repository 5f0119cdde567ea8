package topology

import (
	"errors"
	"fmt"
	"sort"

	"hydronet/internal/domain"
)

// ErrElementNotInGraph is returned when a requested element has no port in the graph
var ErrElementNotInGraph = errors.New("element not in graph")

// Graph is the port-level topology: nodes are ports, edges are connections
// between ports of different elements and inner connections within one element.
type Graph struct {
	g *ugraph[*domain.Port]
}

// New builds a graph from elements. Inner connections come from the type
// registry, inter-element connections from each port's Connection. A
// connection to a port outside the element set is not added.
func New(elements []*domain.Element) *Graph {
	g := &Graph{g: newUGraph[*domain.Port]()}
	for _, e := range elements {
		for _, p := range e.Ports {
			g.g.addNode(p)
		}
	}
	for _, e := range elements {
		for _, c := range e.InnerConnections() {
			g.g.addEdge(c.A, c.B)
		}
	}
	for _, e := range elements {
		for _, p := range e.Ports {
			if p.Connection != nil && g.g.hasNode(p.Connection) {
				g.g.addEdge(p, p.Connection)
			}
		}
	}
	return g
}

// Copy returns an independent graph sharing the same ports
func (g *Graph) Copy() *Graph {
	return &Graph{g: g.g.copy()}
}

// Len returns the number of ports
func (g *Graph) Len() int {
	return g.g.order()
}

// Ports returns the ports in insertion order
func (g *Graph) Ports() []*domain.Port {
	return g.g.nodeList()
}

// HasPort reports whether p is a node of the graph
func (g *Graph) HasPort(p *domain.Port) bool {
	return g.g.hasNode(p)
}

// Neighbors returns the ports adjacent to p
func (g *Graph) Neighbors(p *domain.Port) []*domain.Port {
	nbs := g.g.neighbors(p)
	out := make([]*domain.Port, len(nbs))
	copy(out, nbs)
	return out
}

// HasEdge reports whether a and b are connected
func (g *Graph) HasEdge(a, b *domain.Port) bool {
	return g.g.hasEdge(a, b)
}

// Edges returns all connections, inner and inter-element
func (g *Graph) Edges() []domain.Connection {
	raw := g.g.edges()
	out := make([]domain.Connection, len(raw))
	for i, e := range raw {
		out[i] = domain.NewConnection(e[0], e[1])
	}
	return out
}

// Elements returns the distinct owners of the graph's ports in port order
func (g *Graph) Elements() []*domain.Element {
	seen := make(map[*domain.Element]bool)
	var out []*domain.Element
	for _, p := range g.g.nodes {
		if !seen[p.Owner] {
			seen[p.Owner] = true
			out = append(out, p.Owner)
		}
	}
	return out
}

// HasElement reports whether any port of e is in the graph
func (g *Graph) HasElement(e *domain.Element) bool {
	for _, p := range e.Ports {
		if g.g.hasNode(p) {
			return true
		}
	}
	return false
}

// ElementGraph computes the element-level contraction of the graph. It is
// rebuilt on every call so it never reflects a stale state.
func (g *Graph) ElementGraph() *ElementGraph {
	eg := newUGraph[*domain.Element]()
	for _, e := range g.Elements() {
		eg.addNode(e)
	}
	for _, edge := range g.g.edges() {
		a, b := edge[0].Owner, edge[1].Owner
		if a != b {
			eg.addEdge(a, b)
		}
	}
	return &ElementGraph{g: eg}
}

// Cycles returns the cycle basis of the port graph without the degenerate
// cycles that stay inside a single element.
func (g *Graph) Cycles() [][]*domain.Port {
	var out [][]*domain.Port
	for _, cycle := range g.g.cycleBasis() {
		owners := make(map[*domain.Element]bool)
		for _, p := range cycle {
			owners[p.Owner] = true
		}
		if len(owners) > 1 {
			out = append(out, cycle)
		}
	}
	return out
}

// SubgraphFromElements returns the port subgraph induced by the ports of elements
func (g *Graph) SubgraphFromElements(elements []*domain.Element) (*Graph, error) {
	keep := make(map[*domain.Port]bool)
	for _, e := range elements {
		if !g.HasElement(e) {
			return nil, fmt.Errorf("%w: %s", ErrElementNotInGraph, e)
		}
		for _, p := range e.Ports {
			keep[p] = true
		}
	}
	return &Graph{g: g.g.subgraph(func(p *domain.Port) bool { return keep[p] })}, nil
}

// Merge is the only operation that rewrites the graph. Ports mapped to nil
// are deleted together with their connections. Every other mapped port is
// relabelled to its replacement: its edges move to the replacement and the
// partner's Connection is re-pointed. Afterwards inner and add are added as
// edges.
//
// The mapping must cover every port of the merged elements; a port without an
// entry keeps its identity. This is not checked.
func (g *Graph) Merge(mapping map[*domain.Port]*domain.Port, inner, add []domain.Connection) {
	olds := make([]*domain.Port, 0, len(mapping))
	for p := range mapping {
		olds = append(olds, p)
	}
	sort.Slice(olds, func(i, j int) bool { return olds[i].ID < olds[j].ID })

	for _, old := range olds {
		if mapping[old] != nil || !g.g.hasNode(old) {
			continue
		}
		if partner := old.Connection; partner != nil && partner.Connection == old {
			if _, mapped := mapping[partner]; !mapped && g.g.hasNode(partner) {
				partner.Connection = nil
			}
		}
		g.g.removeNode(old)
	}

	for _, old := range olds {
		repl := mapping[old]
		if repl == nil || !g.g.hasNode(old) {
			continue
		}
		g.g.addNode(repl)
		nbs := make([]*domain.Port, len(g.g.neighbors(old)))
		copy(nbs, g.g.neighbors(old))
		for _, nb := range nbs {
			if nb == repl {
				continue
			}
			g.g.addEdge(repl, nb)
			if nb.Connection == old {
				nb.Connection = repl
				if repl.Connection == nil {
					repl.Connection = nb
				}
			}
		}
		g.g.removeNode(old)
	}

	for _, c := range inner {
		g.g.addEdge(c.A, c.B)
	}
	for _, c := range add {
		g.g.addEdge(c.A, c.B)
	}
}
