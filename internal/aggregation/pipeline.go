package aggregation

import (
	"errors"
	"fmt"
	"log/slog"

	"hydronet/internal/attribute"
	"hydronet/internal/domain"
)

// ErrUnknownStage is returned when a stage name does not match a registered matcher
var ErrUnknownStage = errors.New("unknown pipeline stage")

// UnderfloorOptions are the gates a pipe chain has to pass to count as
// underfloor heating. Lengths are in millimetres.
type UnderfloorOptions struct {
	MinElements int     `yaml:"min_elements" validate:"min=2"`
	PlaneShare  float64 `yaml:"plane_share" validate:"gt=0,lte=1"`
	MinArea     float64 `yaml:"min_area" validate:"gte=0"`
	MinPitch    float64 `yaml:"min_pitch" validate:"gte=0"`
	MaxPitch    float64 `yaml:"max_pitch" validate:"gtefield=MinPitch"`
	MinRatio    float64 `yaml:"min_ratio" validate:"gte=0"`
	MaxRatio    float64 `yaml:"max_ratio" validate:"gtfield=MinRatio"`
}

// Options tune the matchers of the default pipeline
type Options struct {
	// IncludeSingles lets a lone pipe become a strand of its own
	IncludeSingles bool `yaml:"include_singles"`
	// PumpGrouping is the attribute parallel pumps must agree on, empty disables grouping
	PumpGrouping  string            `yaml:"pump_grouping"`
	PumpThreshold int               `yaml:"pump_threshold" validate:"min=1"`
	Underfloor    UnderfloorOptions `yaml:"underfloor"`
}

// DefaultOptions returns the matcher defaults
func DefaultOptions() Options {
	return Options{
		PumpGrouping:  "rated_power",
		PumpThreshold: 1,
		Underfloor: UnderfloorOptions{
			MinElements: 20,
			PlaneShare:  0.8,
			MinArea:     1e6,
			MinPitch:    90,
			MaxPitch:    210,
			MinRatio:    0.01,
			MaxRatio:    0.09,
		},
	}
}

// Stage is one matcher of a pipeline
type Stage struct {
	Matcher Matcher
	Enabled bool
}

// StageInfo describes a stage for listings
type StageInfo struct {
	Kind        domain.ElementType `json:"kind"`
	Description string             `json:"description"`
	Enabled     bool               `json:"enabled"`
}

// Pipeline is the ordered list of matchers. The order is fixed at
// construction; stages can only be switched off.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// NewPipeline creates a pipeline running matchers in the given order
func NewPipeline(logger *slog.Logger, matchers ...Matcher) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{logger: logger}
	for _, m := range matchers {
		p.stages = append(p.stages, Stage{Matcher: m, Enabled: true})
		logger.Debug("registered matcher",
			slog.String("kind", string(m.Kind().Type)),
			slog.Int("position", len(p.stages)))
	}
	return p
}

// DefaultPipeline creates the six standard matchers in their declared order:
// underfloor heating, pipe strand, parallel pump, consumer, distributor
// module, generator.
func DefaultPipeline(resolver *attribute.Resolver, opts Options, logger *slog.Logger) *Pipeline {
	return NewPipeline(logger,
		NewUnderfloorHeatingMatcher(resolver, opts.Underfloor),
		NewPipeStrandMatcher(opts.IncludeSingles),
		NewParallelPumpMatcher(resolver, opts.PumpGrouping, opts.PumpThreshold),
		NewConsumerMatcher(),
		NewModuleMatcher(),
		NewGeneratorMatcher(logger),
	)
}

// SetEnabled switches the stage of kind on or off
func (p *Pipeline) SetEnabled(kind domain.ElementType, enabled bool) error {
	for i := range p.stages {
		if p.stages[i].Matcher.Kind().Type == kind {
			p.stages[i].Enabled = enabled
			p.logger.Info("pipeline stage toggled",
				slog.String("kind", string(kind)),
				slog.Bool("enabled", enabled))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownStage, kind)
}

// Restrict enables exactly the named stages. An empty list keeps all enabled.
func (p *Pipeline) Restrict(names []string) error {
	if len(names) == 0 {
		return nil
	}
	want := make(map[domain.ElementType]bool, len(names))
	for _, name := range names {
		t := domain.ElementType(name)
		if !p.has(t) {
			return fmt.Errorf("%w: %s", ErrUnknownStage, name)
		}
		want[t] = true
	}
	for i := range p.stages {
		p.stages[i].Enabled = want[p.stages[i].Matcher.Kind().Type]
	}
	return nil
}

func (p *Pipeline) has(kind domain.ElementType) bool {
	for _, s := range p.stages {
		if s.Matcher.Kind().Type == kind {
			return true
		}
	}
	return false
}

// Enabled returns the matchers that will run, in order
func (p *Pipeline) Enabled() []Matcher {
	var out []Matcher
	for _, s := range p.stages {
		if s.Enabled {
			out = append(out, s.Matcher)
		}
	}
	return out
}

// Stages lists all stages in order
func (p *Pipeline) Stages() []StageInfo {
	out := make([]StageInfo, len(p.stages))
	for i, s := range p.stages {
		k := s.Matcher.Kind()
		out[i] = StageInfo{Kind: k.Type, Description: k.Description, Enabled: s.Enabled}
	}
	return out
}
