// Package domain defines the core types of a hydronic network model.
//
// This package contains the entities the topology and aggregation packages
// operate on: elements, their ports, the connections between ports and the
// static registry of element types.
//
// # Core Types
//
// Element is a component of the network (pipe, pump, boiler, radiator,
// distributor, ...) with a stable GUID, an ordered list of ports, imported
// properties and lazily resolved attribute slots. An Element whose
// Aggregation is set is a composite that replaced a matched sub-topology.
//
// Port is a flow terminal owned by exactly one Element. A port has at most
// one Connection to a port of another element. Edge ports of aggregates
// carry the original ports they stand for in Originals.
//
// # Type Registry
//
// Every ElementType is registered once in an explicit table holding its
// inner-connection routing and its attribute schema. Base types are
// registered by this package; aggregate kinds are registered by the
// aggregation package. Lookups never rely on reflection.
//
// # Units
//
// Positions are in millimetres. Attribute values use the units declared in
// their schema: lengths in metres, diameters and pitches in millimetres,
// power in kilowatts, temperatures in degrees Celsius.
package domain
