package aggregation

import (
	"math"
	"sort"

	"hydronet/internal/attribute"
	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// UnderfloorHeatingMatcher finds planar serpentines of pipes. Chains that
// fail a gate are left to the pipe strand matcher.
type UnderfloorHeatingMatcher struct {
	Base
	resolver *attribute.Resolver
	opts     UnderfloorOptions
}

// NewUnderfloorHeatingMatcher creates the matcher
func NewUnderfloorHeatingMatcher(resolver *attribute.Resolver, opts UnderfloorOptions) *UnderfloorHeatingMatcher {
	return &UnderfloorHeatingMatcher{
		Base:     NewBase(underfloorHeatingKind, Classes{}),
		resolver: resolver,
		opts:     opts,
	}
}

// FindMatches returns the chains that look like a heating serpentine
func (m *UnderfloorHeatingMatcher) FindMatches(g *topology.Graph) ([]Match, error) {
	eg := g.ElementGraph()
	var matches []Match
	for _, chain := range topology.TypeChains(eg, m.kind.Aggregatable, false) {
		if meta, ok := m.evaluate(chain); ok {
			matches = append(matches, Match{Elements: chain, Metadata: meta})
		}
	}
	return matches, nil
}

// evaluate runs the gates in order and returns the serpentine metadata
func (m *UnderfloorHeatingMatcher) evaluate(chain []*domain.Element) (map[string]any, bool) {
	if len(chain) < m.opts.MinElements {
		return nil, false
	}

	var ports []*domain.Port
	for _, e := range chain {
		ports = append(ports, e.Ports...)
	}
	if len(ports) == 0 || planeShare(ports) < m.opts.PlaneShare {
		return nil, false
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range ports {
		minX, maxX = math.Min(minX, p.Position.X), math.Max(maxX, p.Position.X)
		minY, maxY = math.Min(minY, p.Position.Y), math.Max(maxY, p.Position.Y)
	}
	xSpan, ySpan := maxX-minX, maxY-minY
	area := xSpan * ySpan
	if area < m.opts.MinArea || area == 0 {
		return nil, false
	}

	var xPitch, yPitch float64
	for _, o := range dominantOrientations(chain, 2) {
		if o.count < 2 {
			continue
		}
		if o.angle < 45 || o.angle > 135 {
			// runs along x are stacked in y
			yPitch = ySpan / float64(o.count-1)
		} else {
			xPitch = xSpan / float64(o.count-1)
		}
	}
	xOK := m.pitchInRange(xPitch)
	yOK := m.pitchInRange(yPitch)
	if !xOK && !yOK {
		return nil, false
	}

	length, diameter, ok := m.pipeDimensions(chain)
	if !ok {
		return nil, false
	}
	ratio := length * 1000 * diameter / area
	if ratio <= m.opts.MinRatio || ratio >= m.opts.MaxRatio {
		return nil, false
	}

	meta := map[string]any{MetaHeatingArea: area / 1e6}
	if xOK {
		meta[MetaXSpacing] = xPitch
	}
	if yOK {
		meta[MetaYSpacing] = yPitch
	}
	return meta, true
}

func (m *UnderfloorHeatingMatcher) pitchInRange(pitch float64) bool {
	return pitch >= m.opts.MinPitch && pitch <= m.opts.MaxPitch && pitch > 0
}

// pipeDimensions returns the total length in m and the length weighted
// diameter in mm of chain
func (m *UnderfloorHeatingMatcher) pipeDimensions(chain []*domain.Element) (float64, float64, bool) {
	if m.resolver == nil {
		return 0, 0, false
	}
	var length, weighted float64
	for _, e := range chain {
		l, ok := m.resolver.Float(e, "length")
		if !ok {
			return 0, 0, false
		}
		d, ok := m.resolver.Float(e, "diameter")
		if !ok {
			return 0, 0, false
		}
		length += l
		weighted += l * d
	}
	if length == 0 {
		return 0, 0, false
	}
	return length, weighted / length, true
}

// planeShare returns the share of ports lying on the most common z level
func planeShare(ports []*domain.Port) float64 {
	counts := make(map[int64]int)
	best := 0
	for _, p := range ports {
		z := int64(math.Round(p.Position.Z))
		counts[z]++
		if counts[z] > best {
			best = counts[z]
		}
	}
	return float64(best) / float64(len(ports))
}

type orientation struct {
	angle int
	count int
}

// dominantOrientations returns the n most frequent element directions in
// whole degrees within [0, 180)
func dominantOrientations(chain []*domain.Element, n int) []orientation {
	counts := make(map[int]int)
	for _, e := range chain {
		if len(e.Ports) < 2 {
			continue
		}
		a, b := e.Ports[0].Position, e.Ports[1].Position
		dx, dy := b.X-a.X, b.Y-a.Y
		if dx == 0 && dy == 0 {
			continue
		}
		angle := int(math.Round(math.Atan2(dy, dx) * 180 / math.Pi))
		angle = ((angle % 180) + 180) % 180
		counts[angle]++
	}

	out := make([]orientation, 0, len(counts))
	for angle, count := range counts {
		out = append(out, orientation{angle: angle, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].angle < out[j].angle
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
