package aggregation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydronet/internal/attribute"
	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// ============================================================================
// Test Helpers
// ============================================================================

func link(t *testing.T, a *domain.Element, ai int, b *domain.Element, bi int) {
	t.Helper()
	require.NoError(t, domain.Connect(a.Ports[ai], b.Ports[bi]))
}

// loose creates n unconnected pipes
func loose(prefix string, n int) []*domain.Element {
	els := make([]*domain.Element, n)
	for i := range els {
		els[i] = domain.NewElement(fmt.Sprintf("%s%d", prefix, i), domain.TypePipe, 2)
	}
	return els
}

// pipes creates n connected pipes, port 1 of each linked to port 0 of the next
func pipes(t *testing.T, prefix string, n int) []*domain.Element {
	t.Helper()
	els := loose(prefix, n)
	for i := 1; i < n; i++ {
		link(t, els[i-1], 1, els[i], 0)
	}
	return els
}

func newResolver() *attribute.Resolver {
	return attribute.NewResolver(domain.SchemaOf, nil)
}

// simplify runs every enabled stage once and returns the aggregates in
// creation order. Each aggregate is boundary checked right after its merge.
func simplify(t *testing.T, g *topology.Graph, p *Pipeline) []*domain.Element {
	t.Helper()
	var created []*domain.Element
	for _, m := range p.Enabled() {
		matches, err := m.FindMatches(g)
		require.NoError(t, err, m.Kind().Type)
		for _, match := range matches {
			c, err := New(m.Kind(), g, match)
			require.NoError(t, err, m.Kind().Type)
			Apply(g, c)
			require.NoError(t, CheckBoundary(c.Aggregate))
			created = append(created, c.Aggregate)
		}
	}
	return created
}

func ofType(elements []*domain.Element, typ domain.ElementType) []*domain.Element {
	var out []*domain.Element
	for _, e := range elements {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func typesOf(elements []*domain.Element) []domain.ElementType {
	out := make([]domain.ElementType, len(elements))
	for i, e := range elements {
		out[i] = e.Type
	}
	return out
}

// plant is a small heating system:
//
//	boiler -> gs1 -> pump -> gs2 -> dist[0]
//	boiler <- gr2 <- gr1 <----------- dist[1]
//	dist[2] -> a0 a1 radA a2 a3 -> dist[3]
//	dist[4] -> b0 b1 radB b2 b3 -> dist[5]
//	dist[6] -> u1 -> valve -> u2 -> dist[7]
type plant struct {
	boiler, pump, gs1, gs2, gr1, gr2, dist *domain.Element
	radA, radB                              *domain.Element
	u1, valve, u2                           *domain.Element
	all                                     []*domain.Element
}

func newPlant(t *testing.T) *plant {
	t.Helper()
	p := &plant{
		boiler: domain.NewElement("boiler", domain.TypeBoiler, 2),
		pump:   domain.NewElement("pump", domain.TypePump, 2),
		gs1:    domain.NewElement("gs1", domain.TypePipe, 2),
		gs2:    domain.NewElement("gs2", domain.TypePipe, 2),
		gr1:    domain.NewElement("gr1", domain.TypePipe, 2),
		gr2:    domain.NewElement("gr2", domain.TypePipe, 2),
		dist:   domain.NewElement("dist", domain.TypeDistributor, 8),
		u1:     domain.NewElement("u1", domain.TypePipe, 2),
		valve:  domain.NewElement("valve", domain.TypeValve, 2),
		u2:     domain.NewElement("u2", domain.TypePipe, 2),
	}
	p.boiler.SetProperty("rated_power", 24.0)
	p.pump.SetProperty("rated_power", 0.1)

	link(t, p.boiler, 1, p.gs1, 0)
	link(t, p.gs1, 1, p.pump, 0)
	link(t, p.pump, 1, p.gs2, 0)
	link(t, p.gs2, 1, p.dist, 0)
	link(t, p.dist, 1, p.gr1, 0)
	link(t, p.gr1, 1, p.gr2, 0)
	link(t, p.gr2, 1, p.boiler, 0)
	p.all = []*domain.Element{p.boiler, p.gs1, p.pump, p.gs2, p.dist, p.gr1, p.gr2}

	circuit := func(prefix string, out, back int, power float64) *domain.Element {
		run := loose(prefix, 4)
		rad := domain.NewElement("rad"+prefix, domain.TypeSpaceHeater, 2)
		rad.SetProperty("rated_power", power)
		rad.SetProperty("flow_temperature", 70.0)
		link(t, p.dist, out, run[0], 0)
		link(t, run[0], 1, run[1], 0)
		link(t, run[1], 1, rad, 0)
		link(t, rad, 1, run[2], 0)
		link(t, run[2], 1, run[3], 0)
		link(t, run[3], 1, p.dist, back)
		p.all = append(p.all, run[0], run[1], rad, run[2], run[3])
		return rad
	}
	p.radA = circuit("a", 2, 3, 1.5)
	p.radB = circuit("b", 4, 5, 2.0)

	link(t, p.dist, 6, p.u1, 0)
	link(t, p.u1, 1, p.valve, 0)
	link(t, p.valve, 1, p.u2, 0)
	link(t, p.u2, 1, p.dist, 7)
	p.dist.Ports[6].FlowDirection = domain.FlowSource
	p.dist.Ports[7].FlowDirection = domain.FlowSink
	p.all = append(p.all, p.u1, p.valve, p.u2)
	return p
}

// pumpBank builds two pumps in parallel between two tees, optionally with a
// plain pipe bypass.
//
//	in - tee1 -+- a1 - pump1 - a2 -+- tee2 - out
//	           +- b1 - pump2 - b2 -+
//	           +------ bypass -----+
type pumpBank struct {
	in, out, tee1, tee2, pump1, pump2, bypass *domain.Element
	all                                       []*domain.Element
}

func newPumpBank(t *testing.T, withBypass bool, power1, power2 float64) *pumpBank {
	t.Helper()
	teePorts := 3
	if withBypass {
		teePorts = 4
	}
	pb := &pumpBank{
		in:    domain.NewElement("in", domain.TypePipe, 2),
		out:   domain.NewElement("out", domain.TypePipe, 2),
		tee1:  domain.NewElement("tee1", domain.TypePipeFitting, teePorts),
		tee2:  domain.NewElement("tee2", domain.TypePipeFitting, teePorts),
		pump1: domain.NewElement("pump1", domain.TypePump, 2),
		pump2: domain.NewElement("pump2", domain.TypePump, 2),
	}
	for _, pump := range []*domain.Element{pb.pump1, pb.pump2} {
		pump.SetProperty("rated_height", 6.0)
		pump.SetProperty("rated_volume_flow", 2.0)
	}
	pb.pump1.SetProperty("rated_power", power1)
	pb.pump2.SetProperty("rated_power", power2)

	a := loose("pa", 2)
	b := loose("pb", 2)

	link(t, pb.in, 1, pb.tee1, 0)
	link(t, pb.tee1, 1, a[0], 0)
	link(t, a[0], 1, pb.pump1, 0)
	link(t, pb.pump1, 1, a[1], 0)
	link(t, a[1], 1, pb.tee2, 0)
	link(t, pb.tee1, 2, b[0], 0)
	link(t, b[0], 1, pb.pump2, 0)
	link(t, pb.pump2, 1, b[1], 0)
	link(t, b[1], 1, pb.tee2, 1)
	link(t, pb.tee2, 2, pb.out, 0)
	pb.all = []*domain.Element{pb.in, pb.tee1, a[0], pb.pump1, a[1], b[0], pb.pump2, b[1], pb.tee2, pb.out}
	if withBypass {
		pb.bypass = domain.NewElement("bypass", domain.TypePipe, 2)
		link(t, pb.tee1, 3, pb.bypass, 0)
		link(t, pb.bypass, 1, pb.tee2, 3)
		pb.all = append(pb.all, pb.bypass)
	}
	return pb
}

// serpentine lays out runs of 2 m along x, stacked 200 mm apart in y and
// joined by 0.2 m turns. All pipes are 12 mm.
func serpentine(t *testing.T, runs int) []*domain.Element {
	t.Helper()
	var els []*domain.Element
	x, y := 0.0, 0.0
	add := func(x1, y1 float64) {
		e := domain.NewElement(fmt.Sprintf("s%d", len(els)), domain.TypePipe, 2)
		e.Ports[0].Position = domain.Position{X: x, Y: y}
		e.Ports[1].Position = domain.Position{X: x1, Y: y1}
		e.SetProperty("diameter", 12.0)
		if len(els) > 0 {
			link(t, els[len(els)-1], 1, e, 0)
		}
		els = append(els, e)
		x, y = x1, y1
	}
	for i := 0; i < runs; i++ {
		if i > 0 {
			add(x, y+200)
		}
		if x == 0 {
			add(2000, y)
		} else {
			add(0, y)
		}
	}
	return els
}

// ============================================================================
// Construction
// ============================================================================

func TestNew(t *testing.T) {
	t.Run("pipe strand of a chain", func(t *testing.T) {
		run := pipes(t, "p", 3)
		g := topology.New(run)

		c, err := New(pipeStrandKind, g, Match{Elements: run})
		require.NoError(t, err)

		agg := c.Aggregate
		assert.True(t, agg.IsAggregate())
		assert.True(t, strings.HasPrefix(agg.GUID, "AggPipeStrand_"))
		require.Len(t, agg.Ports, 2)
		assert.Equal(t, []*domain.Port{run[0].Ports[0]}, agg.Ports[0].Originals)
		assert.Equal(t, []*domain.Port{run[2].Ports[1]}, agg.Ports[1].Originals)
		assert.Len(t, c.Mapping, 6)
		assert.Len(t, c.Inner, 1)
		assert.Same(t, agg.Ports[0], c.Mapping[run[0].Ports[0]])
		assert.Nil(t, c.Mapping[run[1].Ports[0]])
		assert.True(t, g.HasElement(run[0]), "construction leaves the graph alone")
	})

	t.Run("guid does not depend on element order", func(t *testing.T) {
		run := pipes(t, "p", 3)
		reversed := []*domain.Element{run[2], run[1], run[0]}
		assert.Equal(t,
			AggregateGUID(domain.TypePipeStrand, run),
			AggregateGUID(domain.TypePipeStrand, reversed))
		assert.NotEqual(t,
			AggregateGUID(domain.TypePipeStrand, run),
			AggregateGUID(domain.TypeConsumer, run))
	})

	t.Run("type outside the aggregatable set", func(t *testing.T) {
		run := pipes(t, "p", 2)
		pump := domain.NewElement("pump", domain.TypePump, 2)
		link(t, run[1], 1, pump, 0)
		g := topology.New(append(run, pump))

		_, err := New(pipeStrandKind, g, Match{Elements: []*domain.Element{run[0], run[1], pump}})
		assert.ErrorIs(t, err, ErrNotAggregatable)
	})

	t.Run("empty match", func(t *testing.T) {
		_, err := New(pipeStrandKind, topology.New(nil), Match{})
		assert.ErrorIs(t, err, ErrEmptyMatch)
	})

	t.Run("element missing from graph", func(t *testing.T) {
		run := pipes(t, "p", 2)
		g := topology.New(run[:1])
		_, err := New(pipeStrandKind, g, Match{Elements: run})
		assert.ErrorIs(t, err, topology.ErrElementNotInGraph)
	})

	t.Run("odd number of undefined consumer ports", func(t *testing.T) {
		p := newPlant(t)
		g := topology.New(p.all)
		match := Match{
			Elements: []*domain.Element{p.dist},
			Metadata: map[string]any{MetaUndefinedConsumerPorts: []*domain.Port{p.dist.Ports[6]}},
		}
		_, err := New(moduleKind, g, match)
		assert.ErrorIs(t, err, ErrOddOpenPorts)
	})
}

func TestDeriveFlowDirection(t *testing.T) {
	port := func(d domain.FlowDirection) *domain.Port {
		return &domain.Port{ID: string(d), FlowDirection: d}
	}
	tests := []struct {
		name    string
		dirs    []domain.FlowDirection
		want    domain.FlowDirection
		wantErr error
	}{
		{"single source", []domain.FlowDirection{domain.FlowSource}, domain.FlowSource, nil},
		{"unknown ignored", []domain.FlowDirection{domain.FlowUnknown, domain.FlowSink}, domain.FlowSink, nil},
		{"all unknown", []domain.FlowDirection{domain.FlowUnknown, domain.FlowUnknown}, domain.FlowUnknown, nil},
		{"loop pair", []domain.FlowDirection{domain.FlowSink, domain.FlowSource}, domain.FlowBoth, nil},
		{"agreeing", []domain.FlowDirection{domain.FlowSink, domain.FlowSink}, domain.FlowSink, nil},
		{"conflict", []domain.FlowDirection{domain.FlowSource, domain.FlowBoth}, "", ErrFlowDirectionConflict},
		{"three way conflict", []domain.FlowDirection{domain.FlowSource, domain.FlowSink, domain.FlowSink}, "", ErrFlowDirectionConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var originals []*domain.Port
			for _, d := range tt.dirs {
				originals = append(originals, port(d))
			}
			got, err := deriveFlowDirection(originals)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNestedOriginals(t *testing.T) {
	inner := domain.NewElement("inner", domain.TypePipe, 2)
	wrapper := &domain.Port{ID: "w", Originals: inner.Ports}
	agg := domain.NewElement("agg", domain.TypePipeStrand, 0)

	_, err := addEdgePort(agg, []*domain.Port{wrapper})
	assert.ErrorIs(t, err, ErrNestedOriginals)
	assert.Empty(t, agg.Ports)
}

// ============================================================================
// Merge
// ============================================================================

func TestApply(t *testing.T) {
	run := pipes(t, "p", 4)
	pumpA := domain.NewElement("pumpA", domain.TypePump, 2)
	pumpB := domain.NewElement("pumpB", domain.TypePump, 2)
	link(t, pumpA, 1, run[0], 0)
	link(t, run[3], 1, pumpB, 0)
	g := topology.New(append([]*domain.Element{pumpA, pumpB}, run...))
	before := g.Len()

	c, err := New(pipeStrandKind, g, Match{Elements: run})
	require.NoError(t, err)
	Apply(g, c)

	for _, e := range run {
		assert.False(t, g.HasElement(e), e.GUID)
		assert.Same(t, c.Aggregate, e.AggregatedInto)
	}
	assert.True(t, g.HasElement(c.Aggregate))
	assert.Equal(t, before-8+len(c.Aggregate.Ports), g.Len())

	eg := g.ElementGraph()
	assert.Equal(t, 3, eg.Len())
	assert.True(t, eg.HasEdge(pumpA, c.Aggregate))
	assert.True(t, eg.HasEdge(c.Aggregate, pumpB))
	assert.Same(t, c.Aggregate.Ports[0], pumpA.Ports[1].Connection)
	assert.Same(t, c.Aggregate.Ports[1], pumpB.Ports[0].Connection)
	assert.NoError(t, CheckBoundary(c.Aggregate))
}

func TestCheckBoundary(t *testing.T) {
	t.Run("edge port wired back into a constituent", func(t *testing.T) {
		run := pipes(t, "p", 3)
		g := topology.New(run)
		c, err := New(pipeStrandKind, g, Match{Elements: run})
		require.NoError(t, err)

		c.Aggregate.Ports[0].Connection = run[1].Ports[0]
		assert.ErrorIs(t, CheckBoundary(c.Aggregate), ErrBoundaryViolation)
	})

	t.Run("original facing a sibling constituent", func(t *testing.T) {
		run := pipes(t, "p", 3)
		g := topology.New(run)
		c, err := New(pipeStrandKind, g, Match{Elements: run})
		require.NoError(t, err)

		// pretend the inner joint p1-p2 were exposed
		c.Aggregate.Ports[1].Originals = []*domain.Port{run[1].Ports[1]}
		assert.ErrorIs(t, CheckBoundary(c.Aggregate), ErrBoundaryViolation)
	})

	t.Run("exposed inner joint is caught before the merge", func(t *testing.T) {
		run := pipes(t, "p", 3)
		g := topology.New(run)
		exposed := *pipeStrandKind
		exposed.GroupedPorts = func(Match) ([][]*domain.Port, error) {
			return [][]*domain.Port{{run[0].Ports[1]}}, nil
		}
		c, err := New(&exposed, g, Match{Elements: run})
		require.NoError(t, err)

		assert.ErrorIs(t, CheckBoundary(c.Aggregate), ErrBoundaryViolation)
		assert.False(t, g.HasElement(c.Aggregate))
		assert.Nil(t, run[0].AggregatedInto)
	})

	t.Run("all six kinds after a full pass", func(t *testing.T) {
		p := newPlant(t)
		pb := newPumpBank(t, true, 0.5, 0.5)
		floor := serpentine(t, 11)
		all := append(append(append([]*domain.Element{}, p.all...), pb.all...), floor...)
		g := topology.New(all)

		pipeline := DefaultPipeline(newResolver(), DefaultOptions(), nil)
		created := simplify(t, g, pipeline)

		built := domain.NewTypeSet(typesOf(created)...)
		for _, k := range Kinds() {
			assert.True(t, built.Has(k.Type), "no %s built", k.Type)
		}
		for _, agg := range created {
			assert.NoError(t, CheckBoundary(agg), agg.String())
		}
	})
}

func TestAggregatableSubset(t *testing.T) {
	p := newPlant(t)
	g := topology.New(p.all)
	created := simplify(t, g, DefaultPipeline(newResolver(), DefaultOptions(), nil))
	require.NotEmpty(t, created)

	for _, agg := range created {
		kind, ok := KindOf(agg.Type)
		require.True(t, ok)
		for _, e := range agg.Constituents() {
			assert.True(t, kind.Aggregatable.Has(e.Type), "%s holds %s", agg, e)
		}
	}
}

func TestUnsupportedPattern(t *testing.T) {
	b := NewBase(pipeStrandKind, Classes{})
	_, err := b.FindMatches(topology.New(nil))
	assert.True(t, errors.Is(err, ErrUnsupportedPattern))
	assert.Equal(t, pipeStrandKind.Aggregatable, b.AggregatableTypes())
}
