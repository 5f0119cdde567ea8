package topology

import "container/list"

// ugraph is a simple undirected graph with deterministic iteration order.
// Nodes iterate in insertion order, neighbours in edge insertion order.
type ugraph[N comparable] struct {
	nodes []N
	pos   map[N]int
	adj   map[N][]N
}

func newUGraph[N comparable]() *ugraph[N] {
	return &ugraph[N]{
		pos: make(map[N]int),
		adj: make(map[N][]N),
	}
}

func (g *ugraph[N]) addNode(n N) {
	if _, ok := g.pos[n]; ok {
		return
	}
	g.pos[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.adj[n] = nil
}

func (g *ugraph[N]) hasNode(n N) bool {
	_, ok := g.pos[n]
	return ok
}

// addEdge adds both endpoints if needed. Self loops and duplicates are ignored.
func (g *ugraph[N]) addEdge(a, b N) {
	g.addNode(a)
	g.addNode(b)
	if a == b || g.hasEdge(a, b) {
		return
	}
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

func (g *ugraph[N]) hasEdge(a, b N) bool {
	for _, n := range g.adj[a] {
		if n == b {
			return true
		}
	}
	return false
}

func (g *ugraph[N]) removeEdge(a, b N) {
	g.adj[a] = without(g.adj[a], b)
	g.adj[b] = without(g.adj[b], a)
}

func (g *ugraph[N]) removeNode(n N) {
	i, ok := g.pos[n]
	if !ok {
		return
	}
	for _, nb := range g.adj[n] {
		g.adj[nb] = without(g.adj[nb], n)
	}
	delete(g.adj, n)
	delete(g.pos, n)
	g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
	for j := i; j < len(g.nodes); j++ {
		g.pos[g.nodes[j]] = j
	}
}

func (g *ugraph[N]) neighbors(n N) []N {
	return g.adj[n]
}

func (g *ugraph[N]) degree(n N) int {
	return len(g.adj[n])
}

func (g *ugraph[N]) order() int {
	return len(g.nodes)
}

func (g *ugraph[N]) nodeList() []N {
	out := make([]N, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// edges returns every edge once, ordered by the position of its first endpoint
func (g *ugraph[N]) edges() [][2]N {
	var out [][2]N
	for _, a := range g.nodes {
		for _, b := range g.adj[a] {
			if g.pos[a] < g.pos[b] {
				out = append(out, [2]N{a, b})
			}
		}
	}
	return out
}

func (g *ugraph[N]) copy() *ugraph[N] {
	return g.subgraph(func(N) bool { return true })
}

// subgraph returns the graph induced by the nodes keep accepts
func (g *ugraph[N]) subgraph(keep func(N) bool) *ugraph[N] {
	out := newUGraph[N]()
	for _, n := range g.nodes {
		if keep(n) {
			out.addNode(n)
		}
	}
	for _, n := range out.nodes {
		for _, nb := range g.adj[n] {
			if out.hasNode(nb) {
				out.adj[n] = append(out.adj[n], nb)
			}
		}
	}
	return out
}

// components returns the connected components in node order using BFS
func (g *ugraph[N]) components() [][]N {
	visited := make(map[N]bool, len(g.nodes))
	var out [][]N

	for _, start := range g.nodes {
		if visited[start] {
			continue
		}
		var comp []N
		queue := list.New()
		queue.PushBack(start)
		visited[start] = true

		for queue.Len() > 0 {
			n := queue.Remove(queue.Front()).(N)
			comp = append(comp, n)
			for _, nb := range g.adj[n] {
				if !visited[nb] {
					visited[nb] = true
					queue.PushBack(nb)
				}
			}
		}
		out = append(out, comp)
	}
	return out
}

// shortestPath returns a BFS shortest path from a to b, or nil
func (g *ugraph[N]) shortestPath(a, b N) []N {
	if !g.hasNode(a) || !g.hasNode(b) {
		return nil
	}
	if a == b {
		return []N{a}
	}

	parent := map[N]N{a: a}
	queue := list.New()
	queue.PushBack(a)

	for queue.Len() > 0 {
		n := queue.Remove(queue.Front()).(N)
		for _, nb := range g.adj[n] {
			if _, seen := parent[nb]; seen {
				continue
			}
			parent[nb] = n
			if nb == b {
				return reconstructPath(parent, a, b)
			}
			queue.PushBack(nb)
		}
	}
	return nil
}

func reconstructPath[N comparable](parent map[N]N, a, b N) []N {
	var rev []N
	for cur := b; ; cur = parent[cur] {
		rev = append(rev, cur)
		if cur == a {
			break
		}
	}
	path := make([]N, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path
}

// cycleBasis returns a fundamental cycle basis (Paton's algorithm). Roots are
// taken in node order so the basis is deterministic.
func (g *ugraph[N]) cycleBasis() [][]N {
	remaining := make(map[N]bool, len(g.nodes))
	for _, n := range g.nodes {
		remaining[n] = true
	}

	var cycles [][]N
	for _, root := range g.nodes {
		if !remaining[root] {
			continue
		}
		stack := []N{root}
		pred := map[N]N{root: root}
		used := map[N]map[N]bool{root: {}}

		for len(stack) > 0 {
			z := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			zused := used[z]

			for _, nbr := range g.adj[z] {
				if _, seen := used[nbr]; !seen {
					pred[nbr] = z
					stack = append(stack, nbr)
					used[nbr] = map[N]bool{z: true}
				} else if !zused[nbr] {
					pn := used[nbr]
					cycle := []N{nbr, z}
					p := pred[z]
					for !pn[p] {
						cycle = append(cycle, p)
						p = pred[p]
					}
					cycle = append(cycle, p)
					cycles = append(cycles, cycle)
					used[nbr][z] = true
				}
			}
		}
		for n := range pred {
			delete(remaining, n)
		}
	}
	return cycles
}

// simpleCycles enumerates every simple cycle of length >= 3 exactly once.
// Each cycle starts at its lowest-positioned node.
func (g *ugraph[N]) simpleCycles() [][]N {
	var cycles [][]N
	for i, start := range g.nodes {
		onPath := map[N]bool{start: true}
		path := []N{start}

		var visit func(n N)
		visit = func(n N) {
			for _, nb := range g.adj[n] {
				if nb == start && len(path) >= 3 {
					// each undirected cycle is found twice, keep one orientation
					if g.pos[path[1]] < g.pos[path[len(path)-1]] {
						c := make([]N, len(path))
						copy(c, path)
						cycles = append(cycles, c)
					}
					continue
				}
				if onPath[nb] || g.pos[nb] <= i {
					continue
				}
				onPath[nb] = true
				path = append(path, nb)
				visit(nb)
				path = path[:len(path)-1]
				onPath[nb] = false
			}
		}
		visit(start)
	}
	return cycles
}

// allPaths returns every simple path from a to b. Intermediate nodes must
// satisfy allow; maxDepth bounds the number of edges (0 means unbounded).
func (g *ugraph[N]) allPaths(a, b N, allow func(N) bool, maxDepth int) [][]N {
	if !g.hasNode(a) || !g.hasNode(b) {
		return nil
	}
	var paths [][]N
	visited := map[N]bool{}
	var path []N

	var walk func(n N)
	walk = func(n N) {
		path = append(path, n)
		visited[n] = true

		if n == b {
			p := make([]N, len(path))
			copy(p, path)
			paths = append(paths, p)
		} else if maxDepth == 0 || len(path) <= maxDepth {
			for _, nb := range g.adj[n] {
				if visited[nb] {
					continue
				}
				if nb != b && allow != nil && !allow(nb) {
					continue
				}
				walk(nb)
			}
		}

		// backtrack
		visited[n] = false
		path = path[:len(path)-1]
	}
	walk(a)
	return paths
}

func without[N comparable](s []N, x N) []N {
	out := s[:0]
	for _, n := range s {
		if n != x {
			out = append(out, n)
		}
	}
	return out
}
