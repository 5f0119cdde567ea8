// Package aggregation recognises recurring sub-topologies in a port graph
// and collapses each into one aggregate element.
//
// # Kinds
//
// Every aggregate type is described by a Kind: the element types it may
// hold, the attribute schema its values are computed from and, for
// distributor modules, which original ports share an edge port. Kinds are
// registered with the domain type registry at init.
//
// # Matchers
//
// A Matcher scans the current graph and returns disjoint matches. The
// default Pipeline runs them in a fixed order:
//
//	UnderfloorHeating -> PipeStrand -> ParallelPump -> Consumer ->
//	ConsumerHeatingDistributorModule -> GeneratorOneFluid
//
// Later stages see the aggregates built by earlier ones, so a consumer may
// contain strands and a module may contain consumers.
//
// # Construction
//
// New turns a match into a Construction without touching the graph: the
// aggregate, its edge ports and the port mapping. Apply merges it.
// CheckBoundary verifies that no edge port leads back into the aggregate.
package aggregation
