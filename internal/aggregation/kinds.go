package aggregation

import (
	"fmt"

	"hydronet/internal/attribute"
	"hydronet/internal/domain"
)

// Metadata keys set by matchers
const (
	MetaUndefinedConsumerPorts = "undefined_consumer_ports"
	MetaBypassElements         = "bypass_elements"
	MetaNonRelevant            = "non_relevant"
	MetaHeatingArea            = "heating_area"
	MetaXSpacing               = "x_spacing"
	MetaYSpacing               = "y_spacing"
)

// Kind describes one aggregate type: which constituents it may hold, how its
// attributes are computed and which original ports share an edge port.
type Kind struct {
	Type         domain.ElementType
	Description  string
	Aggregatable domain.TypeSet
	Schema       *attribute.Schema
	// GroupedPorts returns sets of original ports that become one edge port each
	GroupedPorts func(m Match) ([][]*domain.Port, error)
}

var (
	pipeTypes     = []domain.ElementType{domain.TypePipe, domain.TypePipeFitting, domain.TypePipeStrand}
	pumpTypes     = []domain.ElementType{domain.TypePump, domain.TypeParallelPump}
	consumerTypes = []domain.ElementType{domain.TypeSpaceHeater, domain.TypeUnderfloorHeating}
)

func withPipes(types ...domain.ElementType) domain.TypeSet {
	return domain.NewTypeSet(append(types, pipeTypes...)...)
}

func temperature(name string, from attribute.DependantFunc) attribute.Decl {
	return attribute.Decl{
		Name: name,
		Unit: domain.UnitCelsius,
		Sources: []attribute.Source{
			Avg(),
			attribute.Ask("Enter the "+humanize(name), attribute.KindReal),
		},
		Dependant: from,
	}
}

func humanize(name string) string {
	out := []byte(name)
	for i, b := range out {
		if b == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}

var pipeStrandKind = &Kind{
	Type:         domain.TypePipeStrand,
	Description:  "straight run of pipes and fittings",
	Aggregatable: withPipes(),
	Schema: attribute.NewSchema(
		attribute.Decl{Name: "length", Unit: domain.UnitMetre, Sources: []attribute.Source{Sum()}, Dependant: constituents()},
		attribute.Decl{Name: "diameter", Unit: domain.UnitMillimetre, Sources: []attribute.Source{WeightedAvg("length")}, Dependant: constituents()},
	),
}

var underfloorHeatingKind = &Kind{
	Type:         domain.TypeUnderfloorHeating,
	Description:  "planar serpentine of heating pipes",
	Aggregatable: withPipes(),
	Schema: pipeStrandKind.Schema.Extend(
		attribute.Decl{Name: "heating_area", Unit: domain.UnitSquareMetre, Sources: []attribute.Source{Meta(MetaHeatingArea)}},
		attribute.Decl{Name: "x_spacing", Unit: domain.UnitMillimetre, Sources: []attribute.Source{Meta(MetaXSpacing)}},
		attribute.Decl{Name: "y_spacing", Unit: domain.UnitMillimetre, Sources: []attribute.Source{Meta(MetaYSpacing)}},
		attribute.Decl{
			Name:    "rated_power",
			Unit:    domain.UnitKilowatt,
			Sources: []attribute.Source{attribute.Ask("Enter the rated power of the underfloor heating", attribute.KindReal)},
		},
	),
}

var parallelPumpKind = &Kind{
	Type:         domain.TypeParallelPump,
	Description:  "pumps in parallel branches",
	Aggregatable: withPipes(domain.TypePump),
	Schema: attribute.NewSchema(
		attribute.Decl{Name: "rated_power", Unit: domain.UnitKilowatt, Sources: []attribute.Source{Sum()}, Dependant: constituents(domain.TypePump)},
		attribute.Decl{Name: "rated_height", Unit: domain.UnitMetre, Sources: []attribute.Source{Avg()}, Dependant: constituents(domain.TypePump)},
		attribute.Decl{Name: "rated_volume_flow", Unit: domain.UnitFlow, Sources: []attribute.Source{Sum()}, Dependant: constituents(domain.TypePump)},
		attribute.Decl{Name: "diameter", Unit: domain.UnitMillimetre, Sources: []attribute.Source{Avg()}, Dependant: constituents(domain.TypePump)},
		attribute.Decl{Name: "length", Unit: domain.UnitMetre, Sources: []attribute.Source{Sum()}, Dependant: constituents(pipeTypes...)},
	),
}

var consumerKind = &Kind{
	Type:         domain.TypeConsumer,
	Description:  "consumer circuit behind a distributor",
	Aggregatable: withPipes(domain.TypeSpaceHeater, domain.TypeUnderfloorHeating, domain.TypePump, domain.TypeParallelPump, domain.TypeValve),
	Schema: attribute.NewSchema(
		attribute.Decl{Name: "rated_power", Unit: domain.UnitKilowatt, Sources: []attribute.Source{Sum()}, Dependant: constituents(consumerTypes...)},
		attribute.Decl{Name: "has_pump", Sources: []attribute.Source{HasType(pumpTypes...)}},
		attribute.Decl{Name: "rated_pump_power", Unit: domain.UnitKilowatt, Sources: []attribute.Source{SumOf("rated_power")}, Dependant: constituents(pumpTypes...)},
		attribute.Decl{Name: "rated_height", Unit: domain.UnitMetre, Sources: []attribute.Source{Max()}, Dependant: constituents(pumpTypes...)},
		attribute.Decl{Name: "rated_volume_flow", Unit: domain.UnitFlow, Sources: []attribute.Source{Max()}, Dependant: constituents(pumpTypes...)},
		attribute.Decl{Name: "has_valve", Sources: []attribute.Source{HasType(domain.TypeValve)}},
		temperature("flow_temperature", constituents(consumerTypes...)),
		temperature("return_temperature", constituents(consumerTypes...)),
	),
}

var moduleKind = &Kind{
	Type:        domain.TypeConsumerHeatingDistributorModule,
	Description: "distributor with its consumer circuits",
	Aggregatable: withPipes(domain.TypeDistributor, domain.TypeConsumer, domain.TypeSpaceHeater,
		domain.TypeUnderfloorHeating, domain.TypePump, domain.TypeParallelPump, domain.TypeValve),
	Schema: attribute.NewSchema(
		attribute.Decl{
			Name:      "rated_power",
			Unit:      domain.UnitKilowatt,
			Sources:   []attribute.Source{Sum()},
			Dependant: constituents(domain.TypeConsumer, domain.TypeSpaceHeater, domain.TypeUnderfloorHeating),
		},
		attribute.Decl{
			Name:      "has_pump",
			Sources:   []attribute.Source{AnyTrue(), HasType(pumpTypes...)},
			Dependant: constituents(domain.TypeConsumer),
		},
		temperature("flow_temperature", constituents(domain.TypeConsumer)),
		temperature("return_temperature", constituents(domain.TypeConsumer)),
		attribute.Decl{
			Name: "open_consumer_pairs",
			Sources: []attribute.Source{attribute.Compute("undefined port pairs", func(c *attribute.Context) (any, error) {
				agg, ok := c.Subject.(*domain.Element)
				if !ok || agg.Aggregation == nil {
					return nil, nil
				}
				ports, _ := agg.Aggregation.Metadata[MetaUndefinedConsumerPorts].([]*domain.Port)
				return float64(len(ports) / 2), nil
			})},
		},
	),
	GroupedPorts: pairUndefinedPorts,
}

var generatorKind = &Kind{
	Type:         domain.TypeGeneratorOneFluid,
	Description:  "generator loop with pumps and bypasses",
	Aggregatable: withPipes(domain.TypeBoiler, domain.TypePump, domain.TypeParallelPump, domain.TypeValve, domain.TypeStorage),
	Schema: attribute.NewSchema(
		attribute.Decl{Name: "rated_power", Unit: domain.UnitKilowatt, Sources: []attribute.Source{Sum()}, Dependant: constituents(domain.TypeBoiler)},
		attribute.Decl{
			Name: "has_bypass",
			Sources: []attribute.Source{attribute.Compute("bypass elements", func(c *attribute.Context) (any, error) {
				agg, ok := c.Subject.(*domain.Element)
				if !ok || agg.Aggregation == nil {
					return nil, nil
				}
				bypass, _ := agg.Aggregation.Metadata[MetaBypassElements].([]*domain.Element)
				return len(bypass) > 0, nil
			})},
		},
		attribute.Decl{Name: "has_pump", Sources: []attribute.Source{HasType(pumpTypes...)}},
		attribute.Decl{Name: "rated_pump_power", Unit: domain.UnitKilowatt, Sources: []attribute.Source{SumOf("rated_power")}, Dependant: constituents(pumpTypes...)},
		temperature("flow_temperature", constituents(domain.TypeBoiler)),
		temperature("return_temperature", constituents(domain.TypeBoiler)),
	),
}

// pairUndefinedPorts pairs consecutive undefined consumer ports
func pairUndefinedPorts(m Match) ([][]*domain.Port, error) {
	ports, _ := m.Metadata[MetaUndefinedConsumerPorts].([]*domain.Port)
	if len(ports)%2 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrOddOpenPorts, len(ports))
	}
	var pairs [][]*domain.Port
	for i := 0; i < len(ports); i += 2 {
		pairs = append(pairs, []*domain.Port{ports[i], ports[i+1]})
	}
	return pairs, nil
}

// kinds is the static table of aggregate kinds, in pipeline order
var kinds = []*Kind{
	underfloorHeatingKind,
	pipeStrandKind,
	parallelPumpKind,
	consumerKind,
	moduleKind,
	generatorKind,
}

func init() {
	for _, k := range kinds {
		domain.MustRegister(domain.TypeInfo{
			Type:        k.Type,
			Description: k.Description,
			Aggregate:   true,
			Routing:     domain.RoutingTwoPort,
			Schema:      k.Schema,
		})
	}
}

// KindOf returns the aggregate kind registered for t
func KindOf(t domain.ElementType) (*Kind, bool) {
	for _, k := range kinds {
		if k.Type == t {
			return k, true
		}
	}
	return nil, false
}

// Kinds returns the aggregate kinds in pipeline order
func Kinds() []*Kind {
	out := make([]*Kind, len(kinds))
	copy(out, kinds)
	return out
}
