package aggregation

import (
	"errors"
	"fmt"

	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// ErrUnsupportedPattern is returned by a matcher that has no algorithm of its own
var ErrUnsupportedPattern = errors.New("pattern matching not supported")

// Match is one candidate sub-topology together with pattern specific data
type Match struct {
	Elements []*domain.Element
	Metadata map[string]any
}

// Matcher finds sub-topologies of one aggregate kind.
//
// FindMatches never mutates g. Matches returned by one call never share an
// element, so they can be merged one after another in any order.
type Matcher interface {
	// Kind returns the aggregate kind built from the matches
	Kind() *Kind

	// AggregatableTypes returns the element types a match may contain
	AggregatableTypes() domain.TypeSet

	// FindMatches scans the current graph
	FindMatches(g *topology.Graph) ([]Match, error)
}

// Classes delimit the search of a matcher beyond its aggregatable types
type Classes struct {
	Whitelist domain.TypeSet
	Blacklist domain.TypeSet
	Boundary  domain.TypeSet
}

// Base carries the common matcher data. It does not match anything itself.
type Base struct {
	kind    *Kind
	classes Classes
}

// NewBase creates a base for kind
func NewBase(kind *Kind, classes Classes) Base {
	if classes.Whitelist == nil {
		classes.Whitelist = domain.NewTypeSet()
	}
	if classes.Blacklist == nil {
		classes.Blacklist = domain.NewTypeSet()
	}
	if classes.Boundary == nil {
		classes.Boundary = domain.NewTypeSet()
	}
	return Base{kind: kind, classes: classes}
}

// Kind returns the aggregate kind
func (b Base) Kind() *Kind {
	return b.kind
}

// AggregatableTypes returns the kind's aggregatable types
func (b Base) AggregatableTypes() domain.TypeSet {
	if b.kind == nil {
		return domain.NewTypeSet()
	}
	return b.kind.Aggregatable
}

// FindMatches reports that the base has no pattern
func (b Base) FindMatches(*topology.Graph) ([]Match, error) {
	name := "base"
	if b.kind != nil {
		name = string(b.kind.Type)
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedPattern)
}

func (b Base) aggregatable(elements []*domain.Element) bool {
	for _, e := range elements {
		if !b.kind.Aggregatable.Has(e.Type) {
			return false
		}
	}
	return true
}

func hasAny(elements []*domain.Element, types domain.TypeSet) bool {
	for _, e := range elements {
		if types.Has(e.Type) {
			return true
		}
	}
	return false
}
