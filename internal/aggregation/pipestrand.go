package aggregation

import (
	"hydronet/internal/domain"
	"hydronet/internal/topology"
)

// PipeStrandMatcher collapses straight runs of pipes and fittings
type PipeStrandMatcher struct {
	Base
	includeSingles bool
}

// NewPipeStrandMatcher creates the matcher. With includeSingles a lone pipe
// between two junctions becomes a strand too.
func NewPipeStrandMatcher(includeSingles bool) *PipeStrandMatcher {
	return &PipeStrandMatcher{
		Base:           NewBase(pipeStrandKind, Classes{}),
		includeSingles: includeSingles,
	}
}

// FindMatches returns one match per maximal chain
func (m *PipeStrandMatcher) FindMatches(g *topology.Graph) ([]Match, error) {
	eg := g.ElementGraph()
	var matches []Match
	for _, chain := range topology.TypeChains(eg, m.kind.Aggregatable, m.includeSingles) {
		if len(chain) == 1 && chain[0].Type == domain.TypePipeStrand {
			continue
		}
		matches = append(matches, Match{Elements: chain})
	}
	return matches, nil
}
