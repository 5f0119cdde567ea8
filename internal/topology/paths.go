package topology

import (
	"container/list"

	"hydronet/internal/domain"
)

// RemoveNotWantedNodes returns a copy restricted to elements of the wanted types
func RemoveNotWantedNodes(eg *ElementGraph, wanted domain.TypeSet) *ElementGraph {
	return eg.filter(func(e *domain.Element) bool { return wanted.Has(e.Type) })
}

// RemoveClassesFrom returns a copy without elements of the given types
func RemoveClassesFrom(eg *ElementGraph, classes domain.TypeSet) *ElementGraph {
	return eg.filter(func(e *domain.Element) bool { return !classes.Has(e.Type) })
}

// TypeChains extracts maximal runs of elements of the given types. Only
// elements with at most two neighbours in eg take part. A component with
// exactly two ends yields the path between them in connection order; other
// components (single elements, rings) are returned as-is when includeSingles
// is set.
func TypeChains(eg *ElementGraph, types domain.TypeSet, includeSingles bool) [][]*domain.Element {
	restricted := eg.filter(func(e *domain.Element) bool {
		return types.Has(e.Type) && eg.Degree(e) <= 2
	})

	var chains [][]*domain.Element
	for _, comp := range restricted.g.components() {
		var ends []*domain.Element
		for _, e := range comp {
			if restricted.Degree(e) == 1 {
				ends = append(ends, e)
			}
		}
		if len(ends) != 2 {
			if includeSingles {
				chains = append(chains, comp)
			}
			continue
		}
		chains = append(chains, restricted.g.shortestPath(ends[0], ends[1]))
	}
	return chains
}

// PathWithoutJunctions returns the run of elements around root that is
// bounded by junctions (more than two neighbours) or dead ends. With
// includeEdges the bounding junctions are part of the result. The result is
// in discovery order, not oriented.
func PathWithoutJunctions(eg *ElementGraph, root *domain.Element, includeEdges bool) []*domain.Element {
	if !eg.HasElement(root) {
		return nil
	}
	if eg.Degree(root) > 2 {
		if includeEdges {
			return []*domain.Element{root}
		}
		return nil
	}

	visited := map[*domain.Element]bool{root: true}
	out := []*domain.Element{root}
	queue := list.New()
	queue.PushBack(root)

	for queue.Len() > 0 {
		e := queue.Remove(queue.Front()).(*domain.Element)
		for _, nb := range eg.g.neighbors(e) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			if eg.Degree(nb) > 2 {
				if includeEdges {
					out = append(out, nb)
				}
				continue
			}
			out = append(out, nb)
			queue.PushBack(nb)
		}
	}
	return out
}

// ConnectionsBetween finds the simple connections between wanted elements.
// Each result holds the wanted elements at the ends and the inert elements
// linking them. Elements of neither set block a connection.
func ConnectionsBetween(eg *ElementGraph, wanted, inert domain.TypeSet) [][]*domain.Element {
	var out [][]*domain.Element

	for _, edge := range eg.g.edges() {
		if wanted.Has(edge[0].Type) && wanted.Has(edge[1].Type) {
			out = append(out, []*domain.Element{edge[0], edge[1]})
		}
	}

	inertOnly := RemoveNotWantedNodes(eg, inert.Minus(wanted))
	for _, comp := range inertOnly.g.components() {
		seen := make(map[*domain.Element]bool)
		var ends []*domain.Element
		for _, e := range comp {
			for _, nb := range eg.g.neighbors(e) {
				if wanted.Has(nb.Type) && !seen[nb] {
					seen[nb] = true
					ends = append(ends, nb)
				}
			}
		}
		if len(ends) < 2 {
			continue
		}
		conn := append(ends[:1:1], comp...)
		conn = append(conn, ends[1:]...)
		out = append(out, conn)
	}
	return out
}

// DirPathsBetween returns every simple path from one element to another.
// Intermediate elements must be of the through types (nil allows any);
// maxDepth bounds the number of hops, 0 means unbounded.
func DirPathsBetween(eg *ElementGraph, from, to *domain.Element, through domain.TypeSet, maxDepth int) [][]*domain.Element {
	var allow func(*domain.Element) bool
	if through != nil {
		allow = func(e *domain.Element) bool { return through.Has(e.Type) }
	}
	return eg.g.allPaths(from, to, allow, maxDepth)
}

// AllCyclesWithWanted returns every simple cycle containing an element of the
// wanted types
func AllCyclesWithWanted(eg *ElementGraph, wanted domain.TypeSet) [][]*domain.Element {
	var out [][]*domain.Element
	for _, cycle := range eg.g.simpleCycles() {
		for _, e := range cycle {
			if wanted.Has(e.Type) {
				out = append(out, cycle)
				break
			}
		}
	}
	return out
}
