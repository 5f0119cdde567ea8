// Package topology holds the port graph of a hydronic network and the graph
// primitives the pattern matchers are built on.
//
// # Graphs
//
// Graph has one node per port. Edges are inter-element connections and the
// inner connections an element type declares (both ports of a pipe, all port
// pairs of a tee). ElementGraph is the contraction where nodes are elements;
// it is recomputed from the Graph on every call and never patched.
//
// # Primitives
//
// All primitives work on copies and never mutate their input:
//
//   - Cycles / CycleBasis: fundamental cycles (Paton)
//   - TypeChains: maximal runs of degree-bounded elements of given types
//   - Parallels: parallel branches of wanted elements, with bypass stripping
//     and optional grouping by an attribute value
//   - FindBypassesInCycle, PathWithoutJunctions, ConnectionsBetween,
//     DirPathsBetween, AllCyclesWithWanted, RemoveNotWantedNodes,
//     RemoveClassesFrom
//
// # Rewriting
//
// Merge is the only operation that changes a Graph. It deletes ports mapped
// to nil, relabels the others to their replacement and adds the given extra
// connections. The caller is responsible for a complete mapping.
package topology
