package domain

import (
	"fmt"

	"hydronet/internal/attribute"
)

// Aggregation describes the constituents of a composite element
type Aggregation struct {
	Elements []*Element
	Metadata map[string]any
}

// Element is a component of the network
type Element struct {
	GUID       string
	Type       ElementType
	Name       string
	Ports      []*Port
	Properties map[string]any
	Psets      map[string]map[string]any
	Side       FlowSide

	// Aggregation is set when the element replaced a matched sub-topology
	Aggregation *Aggregation
	// AggregatedInto points to the aggregate that consumed this element
	AggregatedInto *Element

	slots *attribute.Slots
}

// NewElement creates an element with nPorts unconnected ports
func NewElement(guid string, t ElementType, nPorts int) *Element {
	e := &Element{
		GUID:       guid,
		Type:       t,
		Properties: make(map[string]any),
		Psets:      make(map[string]map[string]any),
		Side:       SideUnknown,
		slots:      attribute.NewSlots(),
	}
	for i := 0; i < nPorts; i++ {
		e.AddPort(Position{}, FlowUnknown)
	}
	return e
}

// AddPort appends a new port to the element
func (e *Element) AddPort(pos Position, dir FlowDirection) *Port {
	p := &Port{
		ID:            fmt.Sprintf("%s:%d", e.GUID, len(e.Ports)),
		Owner:         e,
		Index:         len(e.Ports),
		FlowDirection: dir,
		Position:      pos,
		side:          SideUnknown,
	}
	e.Ports = append(e.Ports, p)
	return p
}

func (e *Element) String() string {
	return fmt.Sprintf("%s(%s)", e.Type, e.GUID)
}

// ID returns the GUID
func (e *Element) ID() string {
	return e.GUID
}

// Slots returns the attribute slots of the element
func (e *Element) Slots() *attribute.Slots {
	if e.slots == nil {
		e.slots = attribute.NewSlots()
	}
	return e.slots
}

// SetProperty sets an imported property value
func (e *Element) SetProperty(key string, value any) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	e.Properties[key] = value
}

// Property gets an imported property value
func (e *Element) Property(key string) (any, bool) {
	if e.Properties == nil {
		return nil, false
	}
	v, ok := e.Properties[key]
	return v, ok
}

// SetPropertySetValue sets one value in a named property set
func (e *Element) SetPropertySetValue(set, key string, value any) {
	if e.Psets == nil {
		e.Psets = make(map[string]map[string]any)
	}
	if e.Psets[set] == nil {
		e.Psets[set] = make(map[string]any)
	}
	e.Psets[set][key] = value
}

// PropertySets returns the imported property sets
func (e *Element) PropertySets() map[string]map[string]any {
	return e.Psets
}

// IsAggregate reports whether the element is a composite
func (e *Element) IsAggregate() bool {
	return e.Aggregation != nil
}

// Constituents returns the elements an aggregate was built from
func (e *Element) Constituents() []*Element {
	if e.Aggregation == nil {
		return nil
	}
	return e.Aggregation.Elements
}

// Outermost follows AggregatedInto to the aggregate currently standing for e
func (e *Element) Outermost() *Element {
	cur := e
	for cur.AggregatedInto != nil {
		cur = cur.AggregatedInto
	}
	return cur
}

// InnerConnections returns the internal flow paths between the element's ports
func (e *Element) InnerConnections() []Connection {
	routing := RoutingAllPairs
	if info, ok := Lookup(e.Type); ok {
		routing = info.Routing
	}

	switch routing {
	case RoutingNone:
		return nil
	case RoutingTwoPort:
		if len(e.Ports) != 2 {
			return nil
		}
	}

	var conns []Connection
	for i := 0; i < len(e.Ports); i++ {
		for j := i + 1; j < len(e.Ports); j++ {
			conns = append(conns, NewConnection(e.Ports[i], e.Ports[j]))
		}
	}
	return conns
}
