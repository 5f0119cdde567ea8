package codec

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// newLoop builds boiler -> p1 -> p2 -> boiler
func newLoop(t *testing.T) *topology.Graph {
	t.Helper()
	boiler := domain.NewElement("boiler", domain.TypeBoiler, 2)
	p1 := domain.NewElement("p1", domain.TypePipe, 2)
	p2 := domain.NewElement("p2", domain.TypePipe, 2)
	p2.Name = "return"
	require.NoError(t, domain.Connect(boiler.Ports[1], p1.Ports[0]))
	require.NoError(t, domain.Connect(p1.Ports[1], p2.Ports[0]))
	require.NoError(t, domain.Connect(p2.Ports[1], boiler.Ports[0]))
	boiler.Ports[1].SetFlowSide(domain.SideSupply)
	return topology.New([]*domain.Element{boiler, p1, p2})
}

func TestBuild(t *testing.T) {
	g := newLoop(t)

	t.Run("ports", func(t *testing.T) {
		d := Build(g, ViewPorts)
		assert.Equal(t, ViewPorts, d.View)
		assert.Len(t, d.Nodes, 6)
		// inner edge plus the connection
		assert.Equal(t, []string{"boiler:0", "p1:0"}, d.Adjacency["boiler:1"])
		for id, neighbors := range d.Adjacency {
			for _, n := range neighbors {
				assert.Contains(t, d.Adjacency[n], id, "adjacency of %s is not symmetric", n)
			}
		}
		assert.Equal(t, "supply", d.Nodes[1].Side)
		assert.Equal(t, "boiler", d.Nodes[1].Element)
	})

	t.Run("elements", func(t *testing.T) {
		d := Build(g, ViewElements)
		assert.Equal(t, ViewElements, d.View)
		assert.Len(t, d.Nodes, 3)
		assert.Equal(t, []string{"boiler", "p1"}, d.Adjacency["p2"])
		for _, n := range d.Nodes {
			assert.Equal(t, 2, n.Ports)
			if n.ID == "p2" {
				assert.Equal(t, "return", n.Name)
			}
		}
	})
}

func TestElementGraphJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ElementGraphJSON(newLoop(t), &buf))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "elements", raw["view"])
	assert.Contains(t, raw["adjacency"], "p1")

	buf.Reset()
	require.NoError(t, PortGraphJSON(newLoop(t), &buf))
	assert.Contains(t, buf.String(), `"p1:1"`)
}

func TestCodecs(t *testing.T) {
	want := Build(newLoop(t), ViewPorts)

	tests := []struct {
		name   string
		codec  Codec
		format string
	}{
		{"json", NewJSONCodec(), "json"},
		{"yaml", NewYAMLCodec(), "yaml"},
		{"snappy json", NewSnappyCodec(NewJSONCodec()), "json.sz"},
		{"snappy yaml", NewSnappyCodec(NewYAMLCodec()), "yaml.sz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.format, tt.codec.Format())

			var buf bytes.Buffer
			require.NoError(t, tt.codec.Export(want, &buf))
			got, err := tt.codec.Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("snappy rejects plain input", func(t *testing.T) {
		_, err := NewSnappyCodec(NewJSONCodec()).Parse(bytes.NewBufferString(`{"view":"ports"}`))
		assert.Error(t, err)
	})
}

func TestFiles(t *testing.T) {
	g := newLoop(t)
	dir := t.TempDir()

	for _, name := range []string{"dump.json", "dump.yml", "dump.json.sz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, g, ViewElements))
			d, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, Build(g, ViewElements), d)
		})
	}

	t.Run("unknown extension", func(t *testing.T) {
		assert.ErrorIs(t, WriteFile(filepath.Join(dir, "dump.txt"), g, ViewPorts), ErrUnknownFormat)
		_, err := ForPath("dump.sz")
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})
}

func TestParseView(t *testing.T) {
	tests := []struct {
		in      string
		want    View
		wantErr bool
	}{
		{"", ViewPorts, false},
		{"ports", ViewPorts, false},
		{"Elements", ViewElements, false},
		{"cycles", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseView(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}
