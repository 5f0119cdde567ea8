package domain

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"hydronet/internal/attribute"
)

// ElementType names a kind of element
type ElementType string

// Base element types
const (
	TypePipe         ElementType = "Pipe"
	TypePipeFitting  ElementType = "PipeFitting"
	TypePump         ElementType = "Pump"
	TypeValve        ElementType = "Valve"
	TypeBoiler       ElementType = "Boiler"
	TypeSpaceHeater  ElementType = "SpaceHeater"
	TypeDistributor  ElementType = "Distributor"
	TypeHeatPump     ElementType = "HeatPump"
	TypeChiller      ElementType = "Chiller"
	TypeCoolingTower ElementType = "CoolingTower"
	TypeStorage      ElementType = "Storage"
)

// Aggregate kinds
const (
	TypePipeStrand                       ElementType = "PipeStrand"
	TypeUnderfloorHeating                ElementType = "UnderfloorHeating"
	TypeParallelPump                     ElementType = "ParallelPump"
	TypeConsumer                         ElementType = "Consumer"
	TypeConsumerHeatingDistributorModule ElementType = "ConsumerHeatingDistributorModule"
	TypeGeneratorOneFluid                ElementType = "GeneratorOneFluid"
)

var (
	// ErrUnknownType is returned for names missing from the registry
	ErrUnknownType = errors.New("unknown element type")
	// ErrDuplicateType is returned when a type is registered twice
	ErrDuplicateType = errors.New("element type already registered")
)

// Routing describes how an element connects its ports internally
type Routing int

const (
	// RoutingAllPairs connects every pair of ports
	RoutingAllPairs Routing = iota
	// RoutingTwoPort connects the two ports of a 2-port element, nothing otherwise
	RoutingTwoPort
	// RoutingNone has no internal flow path
	RoutingNone
)

// TypeInfo is one entry of the type registry
type TypeInfo struct {
	Type        ElementType
	Description string
	Aggregate   bool
	Routing     Routing
	Schema      *attribute.Schema
}

var (
	registryMu sync.RWMutex
	registry   = make(map[ElementType]*TypeInfo)
)

// Register adds a type to the registry
func Register(info TypeInfo) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if info.Type == "" {
		return fmt.Errorf("%w: empty type name", ErrUnknownType)
	}
	if _, exists := registry[info.Type]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, info.Type)
	}
	entry := info
	registry[info.Type] = &entry
	return nil
}

// MustRegister registers every entry and panics on the first error
func MustRegister(infos ...TypeInfo) {
	for _, info := range infos {
		if err := Register(info); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the registry entry of t
func Lookup(t ElementType) (*TypeInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[t]
	return info, ok
}

// ParseElementType resolves a registered type by name
func ParseElementType(name string) (ElementType, error) {
	t := ElementType(name)
	if _, ok := Lookup(t); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// RegisteredTypes returns all registered types in name order
func RegisteredTypes() []ElementType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]ElementType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SchemaOf returns the attribute schema of an element's type. It satisfies
// attribute.SchemaFunc.
func SchemaOf(s attribute.Subject) *attribute.Schema {
	e, ok := s.(*Element)
	if !ok {
		return nil
	}
	info, ok := Lookup(e.Type)
	if !ok {
		return nil
	}
	return info.Schema
}

// TypeSet is a set of element types
type TypeSet map[ElementType]struct{}

// NewTypeSet creates a set from the given types
func NewTypeSet(types ...ElementType) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set
func (s TypeSet) Has(t ElementType) bool {
	_, ok := s[t]
	return ok
}

// Union returns a new set containing the types of s and other
func (s TypeSet) Union(other TypeSet) TypeSet {
	out := make(TypeSet, len(s)+len(other))
	for t := range s {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Minus returns a new set with the types of other removed
func (s TypeSet) Minus(other TypeSet) TypeSet {
	out := make(TypeSet, len(s))
	for t := range s {
		if !other.Has(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// Sorted returns the types in name order
func (s TypeSet) Sorted() []ElementType {
	types := make([]ElementType, 0, len(s))
	for t := range s {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
