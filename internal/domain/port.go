package domain

import (
	"fmt"
	"math"
	"strings"
)

// FlowDirection is the direction of flow through a port relative to its owner
type FlowDirection string

const (
	FlowSource  FlowDirection = "source"
	FlowSink    FlowDirection = "sink"
	FlowBoth    FlowDirection = "both"
	FlowUnknown FlowDirection = "unknown"
)

// ParseFlowDirection maps a loose textual direction to a FlowDirection
func ParseFlowDirection(s string) FlowDirection {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "out", "outlet":
		return FlowSource
	case "sink", "in", "inlet":
		return FlowSink
	case "both", "sourceandsink":
		return FlowBoth
	default:
		return FlowUnknown
	}
}

// FlowSide classifies a port as part of the supply or return side of a loop
type FlowSide string

const (
	SideSupply  FlowSide = "supply"
	SideReturn  FlowSide = "return"
	SideUnknown FlowSide = "unknown"
)

// ParseFlowSide maps a loose textual side to a FlowSide
func ParseFlowSide(s string) FlowSide {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supply", "flow", "vl":
		return SideSupply
	case "return", "rl":
		return SideReturn
	default:
		return SideUnknown
	}
}

// Position is a point in model space, in millimetres
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Distance returns the euclidean distance to o
func (p Position) Distance(o Position) float64 {
	return math.Sqrt((p.X-o.X)*(p.X-o.X) + (p.Y-o.Y)*(p.Y-o.Y) + (p.Z-o.Z)*(p.Z-o.Z))
}

// Port is a flow terminal owned by exactly one element
type Port struct {
	ID            string
	Owner         *Element
	Index         int
	Connection    *Port
	FlowDirection FlowDirection
	Position      Position

	// Originals lists the ports an aggregate edge port stands for
	Originals []*Port

	side FlowSide
}

func (p *Port) String() string {
	return p.ID
}

// IsConnected reports whether the port has a partner
func (p *Port) IsConnected() bool {
	return p.Connection != nil
}

// SetFlowSide records the side assigned by the importer
func (p *Port) SetFlowSide(s FlowSide) {
	p.side = s
}

// FlowSide returns the explicit side, else the side all originals agree on,
// else the owner's side.
func (p *Port) FlowSide() FlowSide {
	if p.side != "" && p.side != SideUnknown {
		return p.side
	}
	if len(p.Originals) > 0 {
		side := p.Originals[0].FlowSide()
		for _, o := range p.Originals[1:] {
			if o.FlowSide() != side {
				return SideUnknown
			}
		}
		return side
	}
	if p.Owner != nil && p.Owner.Side != "" {
		return p.Owner.Side
	}
	return SideUnknown
}

// Leaves follows Originals down to ports that wrap nothing
func (p *Port) Leaves() []*Port {
	if len(p.Originals) == 0 {
		return []*Port{p}
	}
	var out []*Port
	for _, o := range p.Originals {
		out = append(out, o.Leaves()...)
	}
	return out
}

// Connect links two ports of different elements. Both must be free.
func Connect(a, b *Port) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: nil port", ErrInvalidConnection)
	}
	if a == b || (a.Owner != nil && a.Owner == b.Owner) {
		return fmt.Errorf("%w: %s and %s share an owner", ErrInvalidConnection, a.ID, b.ID)
	}
	if a.Connection != nil && a.Connection != b {
		return fmt.Errorf("%w: %s", ErrPortConnected, a.ID)
	}
	if b.Connection != nil && b.Connection != a {
		return fmt.Errorf("%w: %s", ErrPortConnected, b.ID)
	}
	a.Connection = b
	b.Connection = a
	return nil
}

// Disconnect removes the connection of p on both sides
func Disconnect(p *Port) {
	if p.Connection == nil {
		return
	}
	if p.Connection.Connection == p {
		p.Connection.Connection = nil
	}
	p.Connection = nil
}
