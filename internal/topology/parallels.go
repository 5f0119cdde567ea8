package topology

import (
	"reflect"

	"hydronet/internal/domain"
)

// GroupFunc returns the value elements are grouped by. Unresolved values are nil.
type GroupFunc func(e *domain.Element) any

// FindBypassesInCycle splits cycle at its junctions (elements with more than
// two neighbours in eg) and returns the arcs between consecutive junctions
// that contain no wanted element. Each arc includes its two junctions.
func FindBypassesInCycle(eg *ElementGraph, cycle []*domain.Element, wanted domain.TypeSet) [][]*domain.Element {
	var junctions []int
	for i, e := range cycle {
		if eg.Degree(e) > 2 {
			junctions = append(junctions, i)
		}
	}
	if len(junctions) < 2 {
		return nil
	}

	var bypasses [][]*domain.Element
	for k, start := range junctions {
		end := junctions[(k+1)%len(junctions)]
		var arc []*domain.Element
		for i := start; ; i = (i + 1) % len(cycle) {
			arc = append(arc, cycle[i])
			if i == end {
				break
			}
		}
		if !containsType(arc, wanted) {
			bypasses = append(bypasses, arc)
		}
	}
	return bypasses
}

// Parallels finds groups of wanted elements arranged in parallel branches.
//
// The graph is restricted to wanted and inert types, bypass arcs without a
// wanted element are stripped from every cycle through a wanted element, and
// the cycles of the stripped graph are clustered: cycles sharing a wanted
// element end up in the same group. With group set, a group is kept only if
// all its wanted elements have equal values and there are at least threshold
// of them. Groups never share elements; an element claimed by an earlier
// group is left out of later ones.
func Parallels(eg *ElementGraph, wanted, inert domain.TypeSet, group GroupFunc, threshold int) [][]*domain.Element {
	restricted := RemoveNotWantedNodes(eg, wanted.Union(inert))
	stripped := restricted.Copy()

	for _, cycle := range restricted.CycleBasis() {
		if !containsType(cycle, wanted) {
			continue
		}
		for _, arc := range FindBypassesInCycle(restricted, cycle, wanted) {
			interior := arc[1 : len(arc)-1]
			if len(interior) == 0 {
				stripped.g.removeEdge(arc[0], arc[len(arc)-1])
				continue
			}
			for _, e := range interior {
				stripped.g.removeNode(e)
			}
		}
	}

	var cycles [][]*domain.Element
	for _, cycle := range stripped.CycleBasis() {
		if containsType(cycle, wanted) {
			cycles = append(cycles, cycle)
		}
	}

	// union cycles sharing a wanted element
	uf := newUnionFind(len(cycles))
	owner := make(map[*domain.Element]int)
	for i, cycle := range cycles {
		for _, e := range cycle {
			if !wanted.Has(e.Type) {
				continue
			}
			if j, ok := owner[e]; ok {
				uf.union(i, j)
			} else {
				owner[e] = i
			}
		}
	}

	var order []int
	members := make(map[int][]int)
	for i := range cycles {
		r := uf.find(i)
		if _, ok := members[r]; !ok {
			order = append(order, r)
		}
		members[r] = append(members[r], i)
	}

	claimed := make(map[*domain.Element]bool)
	var groups [][]*domain.Element
	for _, r := range order {
		seen := make(map[*domain.Element]bool)
		var nodes, wantedNodes []*domain.Element
		for _, ci := range members[r] {
			for _, e := range cycles[ci] {
				if seen[e] || claimed[e] {
					continue
				}
				seen[e] = true
				nodes = append(nodes, e)
				if wanted.Has(e.Type) {
					wantedNodes = append(wantedNodes, e)
				}
			}
		}
		if group != nil && !sameGroup(wantedNodes, group, threshold) {
			continue
		}
		for _, e := range nodes {
			claimed[e] = true
		}
		groups = append(groups, restricted.orderByGraph(nodes))
	}
	return groups
}

func sameGroup(elements []*domain.Element, group GroupFunc, threshold int) bool {
	if len(elements) == 0 || len(elements) < threshold {
		return false
	}
	first := group(elements[0])
	for _, e := range elements[1:] {
		if !reflect.DeepEqual(first, group(e)) {
			return false
		}
	}
	return true
}

// orderByGraph sorts elements by their position in eg
func (eg *ElementGraph) orderByGraph(elements []*domain.Element) []*domain.Element {
	in := make(map[*domain.Element]bool, len(elements))
	for _, e := range elements {
		in[e] = true
	}
	out := make([]*domain.Element, 0, len(elements))
	for _, e := range eg.g.nodes {
		if in[e] {
			out = append(out, e)
		}
	}
	return out
}

func containsType(elements []*domain.Element, types domain.TypeSet) bool {
	for _, e := range elements {
		if types.Has(e.Type) {
			return true
		}
	}
	return false
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return uf.parent[i]
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		uf.parent[rb] = ra
	} else {
		uf.parent[ra] = rb
	}
}
