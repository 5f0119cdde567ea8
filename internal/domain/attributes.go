package domain

import (
	"hydronet/internal/attribute"
)

// Units used in attribute declarations
const (
	UnitMetre       = "m"
	UnitMillimetre  = "mm"
	UnitKilowatt    = "kW"
	UnitFlow        = "m3/h"
	UnitCelsius     = "degC"
	UnitSquareMetre = "m2"
	UnitCubicMetre  = "m3"
)

const (
	commonSets   = `(?i)^pset_.*common$`
	quantitySets = `(?i)^qto_`
)

func init() {
	MustRegister(baseTypes()...)
}

// baseTypes is the static registry table of non-aggregate element types
func baseTypes() []TypeInfo {
	return []TypeInfo{
		{Type: TypePipe, Description: "straight pipe segment", Routing: RoutingAllPairs, Schema: pipeSchema},
		{Type: TypePipeFitting, Description: "bend, tee or reducer", Routing: RoutingAllPairs, Schema: fittingSchema},
		{Type: TypePump, Description: "circulation pump", Routing: RoutingAllPairs, Schema: pumpSchema},
		{Type: TypeValve, Description: "valve", Routing: RoutingAllPairs, Schema: valveSchema},
		{Type: TypeBoiler, Description: "fuel fired boiler", Routing: RoutingAllPairs, Schema: boilerSchema},
		{Type: TypeSpaceHeater, Description: "radiator or convector", Routing: RoutingAllPairs, Schema: spaceHeaterSchema},
		{Type: TypeDistributor, Description: "header or manifold", Routing: RoutingAllPairs, Schema: distributorSchema},
		{Type: TypeHeatPump, Description: "heat pump", Routing: RoutingAllPairs, Schema: generatorSchema},
		{Type: TypeChiller, Description: "chiller", Routing: RoutingAllPairs, Schema: generatorSchema},
		{Type: TypeCoolingTower, Description: "cooling tower", Routing: RoutingAllPairs, Schema: generatorSchema},
		{Type: TypeStorage, Description: "buffer or hot water storage", Routing: RoutingAllPairs, Schema: storageSchema},
	}
}

func diameterDecl() attribute.Decl {
	return attribute.Decl{
		Name: "diameter",
		Unit: UnitMillimetre,
		Sources: []attribute.Source{
			attribute.Property("diameter", "nominal_diameter"),
			attribute.PropertySetPattern(commonSets, `(?i)^(nominal_?)?diameter$`),
		},
	}
}

func ratedPowerDecl(extra ...attribute.Source) attribute.Decl {
	sources := []attribute.Source{
		attribute.Property("rated_power", "nominal_power"),
		attribute.PropertySetPattern(commonSets, `(?i)^(rated_?|nominal_?)?power$`),
	}
	return attribute.Decl{
		Name:    "rated_power",
		Unit:    UnitKilowatt,
		Sources: append(sources, extra...),
	}
}

func temperatureDecl(name string) attribute.Decl {
	return attribute.Decl{
		Name: name,
		Unit: UnitCelsius,
		Sources: []attribute.Source{
			attribute.Property(name),
			attribute.PropertySetPattern(commonSets, `(?i)^`+name+`$`),
		},
	}
}

// lengthFromPorts derives a two-port element's length in metres from its
// port positions.
func lengthFromPorts(c *attribute.Context) (any, error) {
	e, ok := c.Subject.(*Element)
	if !ok || len(e.Ports) != 2 {
		return nil, nil
	}
	d := e.Ports[0].Position.Distance(e.Ports[1].Position)
	if d == 0 {
		return nil, nil
	}
	return d / 1000, nil
}

var pipeSchema = attribute.NewSchema(
	attribute.Decl{
		Name: "length",
		Unit: UnitMetre,
		Sources: []attribute.Source{
			attribute.Property("length"),
			attribute.PropertySetPattern(quantitySets, `(?i)^length$`),
			attribute.Compute("port distance", lengthFromPorts),
		},
	},
	diameterDecl(),
)

var fittingSchema = pipeSchema.Extend(
	attribute.Decl{
		Name: "length",
		Unit: UnitMetre,
		Sources: []attribute.Source{
			attribute.Property("length"),
			attribute.PropertySetPattern(quantitySets, `(?i)^length$`),
			attribute.Compute("port distance", lengthFromPorts),
			attribute.Default(0.0),
		},
	},
)

var pumpSchema = attribute.NewSchema(
	ratedPowerDecl(),
	attribute.Decl{
		Name: "rated_height",
		Unit: UnitMetre,
		Sources: []attribute.Source{
			attribute.Property("rated_height", "head"),
			attribute.PropertySetPattern(commonSets, `(?i)^(rated_?|nominal_?)?(height|head)$`),
		},
	},
	attribute.Decl{
		Name: "rated_volume_flow",
		Unit: UnitFlow,
		Sources: []attribute.Source{
			attribute.Property("rated_volume_flow", "volume_flow"),
			attribute.PropertySetPattern(commonSets, `(?i)^(rated_?|nominal_?)?(volume_?)?flow(_?rate)?$`),
		},
	},
	diameterDecl(),
)

var valveSchema = attribute.NewSchema(
	diameterDecl(),
	attribute.Decl{
		Name: "nominal_pressure_difference",
		Unit: "Pa",
		Sources: []attribute.Source{
			attribute.Property("nominal_pressure_difference", "kv_pressure_drop"),
		},
	},
)

var boilerSchema = attribute.NewSchema(
	ratedPowerDecl(attribute.Ask("Enter the rated power of the boiler", attribute.KindReal)),
	temperatureDecl("flow_temperature"),
	temperatureDecl("return_temperature"),
	attribute.Decl{
		Name: "efficiency",
		Sources: []attribute.Source{
			attribute.Property("efficiency"),
			attribute.PropertySetPattern(commonSets, `(?i)^(nominal_?)?efficiency$`),
		},
	},
)

var spaceHeaterSchema = attribute.NewSchema(
	ratedPowerDecl(),
	temperatureDecl("flow_temperature"),
	temperatureDecl("return_temperature"),
)

var generatorSchema = attribute.NewSchema(
	ratedPowerDecl(),
)

var distributorSchema = attribute.NewSchema(
	diameterDecl(),
	attribute.Decl{
		Name: "number_of_ports",
		Sources: []attribute.Source{
			attribute.Compute("port count", func(c *attribute.Context) (any, error) {
				e, ok := c.Subject.(*Element)
				if !ok {
					return nil, nil
				}
				return float64(len(e.Ports)), nil
			}),
		},
	},
)

var storageSchema = attribute.NewSchema(
	attribute.Decl{
		Name: "volume",
		Unit: UnitCubicMetre,
		Sources: []attribute.Source{
			attribute.Property("volume", "nominal_volume"),
			attribute.PropertySetPattern(commonSets, `(?i)^(nominal_?|storage_?)?volume$`),
		},
	},
	attribute.Decl{
		Name: "height",
		Unit: UnitMetre,
		Sources: []attribute.Source{
			attribute.Property("height"),
		},
	},
	diameterDecl(),
)
