// Package loader reads hydronic topologies from YAML documents.
package loader

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

var (
	// ErrInvalidDocument is returned when a document fails validation
	ErrInvalidDocument = errors.New("invalid topology document")
	// ErrUnknownReference is returned when a connection names a missing element or port
	ErrUnknownReference = errors.New("unknown element or port reference")
	// ErrDuplicateElement is returned when two elements share an id
	ErrDuplicateElement = errors.New("duplicate element id")
)

var validate = validator.New()

// TopologyYAML represents the YAML file structure
type TopologyYAML struct {
	Version     string            `yaml:"version"`
	Description string            `yaml:"description,omitempty"`
	Elements    []ElementYAML     `yaml:"elements" validate:"required,min=1,dive"`
	Connections []ConnectionYAML  `yaml:"connections,omitempty" validate:"dive"`
	Chains      [][]string        `yaml:"chains,omitempty" validate:"dive,min=2"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
}

// ElementYAML represents one element. Elements without id get a random
// GUID and can then be referenced by name.
type ElementYAML struct {
	ID           string                    `yaml:"id,omitempty"`
	Type         string                    `yaml:"type" validate:"required"`
	Name         string                    `yaml:"name,omitempty"`
	Side         string                    `yaml:"side,omitempty"`
	Ports        []PortYAML                `yaml:"ports,omitempty" validate:"dive"`
	PortCount    int                       `yaml:"port_count,omitempty" validate:"gte=0"`
	Properties   map[string]any            `yaml:"properties,omitempty"`
	PropertySets map[string]map[string]any `yaml:"property_sets,omitempty"`
}

// PortYAML represents a port with optional position (mm), flow and side
type PortYAML struct {
	Position *domain.Position `yaml:"position,omitempty"`
	Flow     string           `yaml:"flow,omitempty"`
	Side     string           `yaml:"side,omitempty"`
}

// ConnectionYAML links two ports written as "element:index"
type ConnectionYAML struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}

// LoadYAML loads a topology from a YAML file
func LoadYAML(path string) (*topology.Graph, *TopologyYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML parses a topology from YAML bytes
func ParseYAML(data []byte) (*topology.Graph, *TopologyYAML, error) {
	var doc TopologyYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	g, err := convertYAMLToGraph(&doc)
	if err != nil {
		return nil, nil, err
	}
	return g, &doc, nil
}

func convertYAMLToGraph(doc *TopologyYAML) (*topology.Graph, error) {
	elements := make([]*domain.Element, 0, len(doc.Elements))
	byRef := make(map[string]*domain.Element, len(doc.Elements))

	for i := range doc.Elements {
		y := &doc.Elements[i]
		e, err := convertElement(y)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if _, dup := byRef[e.GUID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateElement, e.GUID)
		}
		byRef[e.GUID] = e
		elements = append(elements, e)
	}
	// names are a fallback reference, ids win
	for _, e := range elements {
		if e.Name == "" {
			continue
		}
		if _, taken := byRef[e.Name]; !taken {
			byRef[e.Name] = e
		}
	}

	for _, c := range doc.Connections {
		a, err := resolvePort(byRef, c.From)
		if err != nil {
			return nil, err
		}
		b, err := resolvePort(byRef, c.To)
		if err != nil {
			return nil, err
		}
		if err := domain.Connect(a, b); err != nil {
			return nil, fmt.Errorf("connect %s -> %s: %w", c.From, c.To, err)
		}
	}

	// a chain links port 1 of each element to port 0 of the next
	for _, chain := range doc.Chains {
		for i := 1; i < len(chain); i++ {
			a, err := resolvePort(byRef, chain[i-1]+":1")
			if err != nil {
				return nil, err
			}
			b, err := resolvePort(byRef, chain[i]+":0")
			if err != nil {
				return nil, err
			}
			if err := domain.Connect(a, b); err != nil {
				return nil, fmt.Errorf("chain %s -> %s: %w", chain[i-1], chain[i], err)
			}
		}
	}

	return topology.New(elements), nil
}

func convertElement(y *ElementYAML) (*domain.Element, error) {
	t, err := domain.ParseElementType(y.Type)
	if err != nil {
		return nil, err
	}
	if info, _ := domain.Lookup(t); info.Aggregate {
		return nil, fmt.Errorf("%w: %s is an aggregate kind", ErrInvalidDocument, t)
	}

	id := y.ID
	if id == "" {
		id = uuid.NewString()
	}

	e := domain.NewElement(id, t, 0)
	e.Name = y.Name
	if y.Side != "" {
		e.Side = domain.ParseFlowSide(y.Side)
	}
	for k, v := range y.Properties {
		e.SetProperty(k, v)
	}
	for set, props := range y.PropertySets {
		for k, v := range props {
			e.SetPropertySetValue(set, k, v)
		}
	}

	for _, p := range y.Ports {
		var pos domain.Position
		if p.Position != nil {
			pos = *p.Position
		}
		dir := domain.FlowUnknown
		if p.Flow != "" {
			dir = domain.ParseFlowDirection(p.Flow)
		}
		port := e.AddPort(pos, dir)
		if p.Side != "" {
			port.SetFlowSide(domain.ParseFlowSide(p.Side))
		}
	}

	n := y.PortCount
	if n == 0 && len(y.Ports) == 0 {
		n = 2
	}
	for len(e.Ports) < n {
		e.AddPort(domain.Position{}, domain.FlowUnknown)
	}
	return e, nil
}

// resolvePort looks up "element:index"
func resolvePort(byRef map[string]*domain.Element, ref string) (*domain.Port, error) {
	i := strings.LastIndex(ref, ":")
	if i <= 0 {
		return nil, fmt.Errorf("%w: %q is not element:index", ErrUnknownReference, ref)
	}
	e, ok := byRef[ref[:i]]
	if !ok {
		return nil, fmt.Errorf("%w: element %q", ErrUnknownReference, ref[:i])
	}
	idx, err := strconv.Atoi(ref[i+1:])
	if err != nil || idx < 0 || idx >= len(e.Ports) {
		return nil, fmt.Errorf("%w: port %q of %s", ErrUnknownReference, ref[i+1:], e.GUID)
	}
	return e.Ports[idx], nil
}
