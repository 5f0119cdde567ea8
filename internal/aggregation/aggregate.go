package aggregation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

var (
	// ErrNotAggregatable is returned when a match contains a type the kind cannot hold
	ErrNotAggregatable = errors.New("element type not aggregatable")
	// ErrOddOpenPorts is returned when undefined consumer ports cannot be paired
	ErrOddOpenPorts = errors.New("odd number of open consumer ports")
	// ErrFlowDirectionConflict is returned when originals of an edge port disagree
	ErrFlowDirectionConflict = errors.New("flow directions of original ports disagree")
	// ErrNestedOriginals is returned when an original itself wraps more than one port
	ErrNestedOriginals = errors.New("original port wraps more than one port")
	// ErrBoundaryViolation is returned when an edge port faces a constituent
	ErrBoundaryViolation = errors.New("edge port faces a constituent")
	// ErrEmptyMatch is returned for a match without elements
	ErrEmptyMatch = errors.New("match has no elements")
)

// Construction is an aggregate together with the rewrite that inserts it
type Construction struct {
	Aggregate *domain.Element
	// Mapping sends every constituent port to its edge port or to nil
	Mapping map[*domain.Port]*domain.Port
	// Inner are the aggregate's own inner connections
	Inner []domain.Connection
}

// New constructs an aggregate of kind from a match found in g. The graph
// is not modified; call Apply to merge the result.
func New(kind *Kind, g *topology.Graph, m Match) (*Construction, error) {
	if len(m.Elements) == 0 {
		return nil, fmt.Errorf("%s: %w", kind.Type, ErrEmptyMatch)
	}
	for _, e := range m.Elements {
		if !kind.Aggregatable.Has(e.Type) {
			return nil, fmt.Errorf("%s cannot hold %s: %w", kind.Type, e, ErrNotAggregatable)
		}
	}

	sub, err := g.SubgraphFromElements(m.Elements)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind.Type, err)
	}

	agg := domain.NewElement(AggregateGUID(kind.Type, m.Elements), kind.Type, 0)
	agg.Name = fmt.Sprintf("%s of %d elements", kind.Type, len(m.Elements))
	agg.Aggregation = &domain.Aggregation{
		Elements: append([]*domain.Element(nil), m.Elements...),
		Metadata: m.Metadata,
	}
	if agg.Aggregation.Metadata == nil {
		agg.Aggregation.Metadata = make(map[string]any)
	}

	var grouped [][]*domain.Port
	if kind.GroupedPorts != nil {
		if grouped, err = kind.GroupedPorts(m); err != nil {
			return nil, fmt.Errorf("%s: %w", kind.Type, err)
		}
	}

	mapping, err := deriveEdgePorts(agg, g, sub, m.Elements, grouped)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind.Type, err)
	}

	return &Construction{
		Aggregate: agg,
		Mapping:   mapping,
		Inner:     agg.InnerConnections(),
	}, nil
}

// Apply merges a construction into g and links the constituents to the aggregate
func Apply(g *topology.Graph, c *Construction) {
	g.Merge(c.Mapping, c.Inner, nil)
	for _, e := range c.Aggregate.Constituents() {
		e.AggregatedInto = c.Aggregate
	}
}

// deriveEdgePorts adds one edge port per boundary port of the match to agg
// and returns the replacement mapping. A port is on the boundary when it
// faces a non-constituent or has no partner at all. Each group in grouped
// becomes a single edge port wrapping all of its ports.
func deriveEdgePorts(agg *domain.Element, g, sub *topology.Graph, constituents []*domain.Element, grouped [][]*domain.Port) (map[*domain.Port]*domain.Port, error) {
	member := make(map[*domain.Element]bool, len(constituents))
	for _, e := range constituents {
		member[e] = true
	}

	mapping := make(map[*domain.Port]*domain.Port)
	for _, p := range sub.Ports() {
		mapping[p] = nil
	}

	inGroup := make(map[*domain.Port]bool)
	for _, group := range grouped {
		for _, p := range group {
			inGroup[p] = true
		}
	}

	for _, p := range sub.Ports() {
		if inGroup[p] || !isBoundary(g, p, member) {
			continue
		}
		ep, err := addEdgePort(agg, []*domain.Port{p})
		if err != nil {
			return nil, err
		}
		mapping[p] = ep
	}

	for _, group := range grouped {
		for _, p := range group {
			if !sub.HasPort(p) {
				return nil, fmt.Errorf("grouped port %s is not part of the match", p)
			}
		}
		ep, err := addEdgePort(agg, group)
		if err != nil {
			return nil, err
		}
		for _, p := range group {
			mapping[p] = ep
		}
	}
	return mapping, nil
}

func isBoundary(g *topology.Graph, p *domain.Port, member map[*domain.Element]bool) bool {
	external := false
	interElement := false
	for _, nb := range g.Neighbors(p) {
		if nb.Owner == p.Owner {
			continue
		}
		interElement = true
		if !member[nb.Owner] {
			external = true
		}
	}
	if !interElement {
		// a dangling end, or a partner that lives outside the graph
		return p.Connection == nil || !member[p.Connection.Owner]
	}
	return external
}

func addEdgePort(agg *domain.Element, originals []*domain.Port) (*domain.Port, error) {
	for _, o := range originals {
		if len(o.Originals) > 1 {
			return nil, fmt.Errorf("%s: %w", o, ErrNestedOriginals)
		}
	}
	dir, err := deriveFlowDirection(originals)
	if err != nil {
		return nil, err
	}
	ep := agg.AddPort(meanPosition(originals), dir)
	ep.Originals = append([]*domain.Port(nil), originals...)
	return ep, nil
}

// deriveFlowDirection combines the directions of originals. Unknown
// directions are ignored. A source paired with a sink, as for the two ends
// of a loop, yields both.
func deriveFlowDirection(originals []*domain.Port) (domain.FlowDirection, error) {
	var known []domain.FlowDirection
	for _, o := range originals {
		if o.FlowDirection != domain.FlowUnknown && o.FlowDirection != "" {
			known = append(known, o.FlowDirection)
		}
	}
	if len(known) == 0 {
		return domain.FlowUnknown, nil
	}

	same := true
	for _, d := range known[1:] {
		if d != known[0] {
			same = false
			break
		}
	}
	if same {
		return known[0], nil
	}
	if len(known) == 2 &&
		((known[0] == domain.FlowSource && known[1] == domain.FlowSink) ||
			(known[0] == domain.FlowSink && known[1] == domain.FlowSource)) {
		return domain.FlowBoth, nil
	}

	names := make([]string, len(originals))
	for i, o := range originals {
		names[i] = fmt.Sprintf("%s=%s", o, o.FlowDirection)
	}
	return "", fmt.Errorf("%w: %s", ErrFlowDirectionConflict, strings.Join(names, ", "))
}

func meanPosition(ports []*domain.Port) domain.Position {
	var pos domain.Position
	for _, p := range ports {
		pos.X += p.Position.X
		pos.Y += p.Position.Y
		pos.Z += p.Position.Z
	}
	n := float64(len(ports))
	return domain.Position{X: pos.X / n, Y: pos.Y / n, Z: pos.Z / n}
}

// CheckBoundary verifies that no edge port of agg leads back into the
// aggregate. Nested originals are followed down to the imported ports. It
// holds for a fresh construction as well as after Apply.
func CheckBoundary(agg *domain.Element) error {
	member := make(map[*domain.Element]bool)
	for _, e := range agg.Constituents() {
		member[e] = true
	}
	for _, ep := range agg.Ports {
		if partner := ep.Connection; partner != nil && (member[partner.Owner] || partner.Owner == agg) {
			return fmt.Errorf("%w: %s connects to %s", ErrBoundaryViolation, ep, partner)
		}
		for _, leaf := range ep.Leaves() {
			partner := leaf.Connection
			if partner == nil {
				continue
			}
			outer := partner.Owner.Outermost()
			if member[partner.Owner] || member[outer] || outer == agg {
				return fmt.Errorf("%w: %s wraps %s which connects to %s",
					ErrBoundaryViolation, ep, leaf, partner)
			}
		}
	}
	return nil
}

// AggregateGUID derives a deterministic identifier from the kind and the
// constituents' GUIDs
func AggregateGUID(kind domain.ElementType, elements []*domain.Element) string {
	guids := make([]string, len(elements))
	for i, e := range elements {
		guids[i] = e.GUID
	}
	sort.Strings(guids)
	sum := blake2b.Sum256([]byte(strings.Join(guids, "\x00")))
	return fmt.Sprintf("Agg%s_%x", kind, sum[:8])
}
