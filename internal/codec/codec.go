// Package codec writes and reads debug dumps of a topology graph.
//
// A dump is an adjacency list either over ports or over elements. Dumps carry
// no compatibility guarantees and cannot be turned back into a graph; they
// exist to diff runs and to feed external viewers.
package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"hydronet/internal/topology"
)

// ErrUnknownFormat is returned for a format or file extension with no codec
var ErrUnknownFormat = errors.New("unknown dump format")

// View selects the node set of a dump
type View string

const (
	ViewPorts    View = "ports"
	ViewElements View = "elements"
)

// ParseView maps a query value to a View, defaulting to ports
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ports", "port":
		return ViewPorts, nil
	case "elements", "element":
		return ViewElements, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// Dump is an adjacency list of a graph
type Dump struct {
	View      View                `json:"view" yaml:"view"`
	Nodes     []Node              `json:"nodes" yaml:"nodes"`
	Adjacency map[string][]string `json:"adjacency" yaml:"adjacency"`
}

// Node is one port or element of a dump
type Node struct {
	ID           string   `json:"id" yaml:"id"`
	Type         string   `json:"type" yaml:"type"`
	Element      string   `json:"element,omitempty" yaml:"element,omitempty"`
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	Flow         string   `json:"flow,omitempty" yaml:"flow,omitempty"`
	Side         string   `json:"side,omitempty" yaml:"side,omitempty"`
	Ports        int      `json:"ports,omitempty" yaml:"ports,omitempty"`
	Constituents []string `json:"constituents,omitempty" yaml:"constituents,omitempty"`
}

// Importer reads a dump
type Importer interface {
	Parse(r io.Reader) (*Dump, error)
	Format() string
}

// Exporter writes a dump
type Exporter interface {
	Export(d *Dump, w io.Writer) error
	Format() string
}

// Codec both reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// Build dumps g in the given view
func Build(g *topology.Graph, v View) *Dump {
	if v == ViewElements {
		return elementDump(g)
	}
	return portDump(g)
}

func portDump(g *topology.Graph) *Dump {
	d := &Dump{View: ViewPorts, Adjacency: make(map[string][]string)}
	for _, p := range g.Ports() {
		d.Nodes = append(d.Nodes, Node{
			ID:      p.ID,
			Type:    string(p.Owner.Type),
			Element: p.Owner.GUID,
			Flow:    string(p.FlowDirection),
			Side:    string(p.FlowSide()),
		})
		neighbors := make([]string, 0, 2)
		for _, n := range g.Neighbors(p) {
			neighbors = append(neighbors, n.ID)
		}
		slices.Sort(neighbors)
		d.Adjacency[p.ID] = neighbors
	}
	return d
}

func elementDump(g *topology.Graph) *Dump {
	eg := g.ElementGraph()
	d := &Dump{View: ViewElements, Adjacency: make(map[string][]string)}
	for _, e := range eg.Elements() {
		n := Node{
			ID:    e.GUID,
			Type:  string(e.Type),
			Name:  e.Name,
			Ports: len(e.Ports),
		}
		for _, c := range e.Constituents() {
			n.Constituents = append(n.Constituents, c.GUID)
		}
		d.Nodes = append(d.Nodes, n)

		neighbors := make([]string, 0, 2)
		for _, o := range eg.Neighbors(e) {
			neighbors = append(neighbors, o.GUID)
		}
		slices.Sort(neighbors)
		d.Adjacency[e.GUID] = neighbors
	}
	return d
}

// PortGraphJSON writes the port adjacency of g as indented JSON
func PortGraphJSON(g *topology.Graph, w io.Writer) error {
	return NewJSONCodec().Export(Build(g, ViewPorts), w)
}

// ElementGraphJSON writes the element adjacency of g as indented JSON
func ElementGraphJSON(g *topology.Graph, w io.Writer) error {
	return NewJSONCodec().Export(Build(g, ViewElements), w)
}

// ForPath picks a codec from the file extension: .json, .yaml/.yml, or
// either of them followed by .sz for snappy framing.
func ForPath(path string) (Codec, error) {
	name := strings.ToLower(path)
	if base, ok := strings.CutSuffix(name, ".sz"); ok {
		inner, err := ForPath(base)
		if err != nil {
			return nil, err
		}
		return NewSnappyCodec(inner), nil
	}
	switch {
	case strings.HasSuffix(name, ".json"):
		return NewJSONCodec(), nil
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// WriteFile dumps g to path in the format its extension names
func WriteFile(path string, g *topology.Graph, v View) error {
	c, err := ForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump: %w", err)
	}
	if err := c.Export(Build(g, v), f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a dump written by WriteFile
func ReadFile(path string) (*Dump, error) {
	c, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()
	return c.Parse(f)
}
