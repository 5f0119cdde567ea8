package aggregation

import (
	"hydronet/internal/attribute"
	"hydronet/internal/domain"
)

// constituents selects the constituents of the given types, all when types is empty
func constituents(types ...domain.ElementType) attribute.DependantFunc {
	set := domain.NewTypeSet(types...)
	return func(s attribute.Subject) []attribute.Subject {
		agg, ok := s.(*domain.Element)
		if !ok {
			return nil
		}
		var out []attribute.Subject
		for _, e := range agg.Constituents() {
			if len(set) == 0 || set.Has(e.Type) {
				out = append(out, e)
			}
		}
		return out
	}
}

// collect reads attr from every dependant. ok is false when nothing is
// available or a dependant waits for a decision.
func collect(c *attribute.Context, attr string) ([]float64, bool) {
	var vals []float64
	for _, dep := range c.Dependants() {
		if v, ok := c.Float(dep, attr); ok {
			vals = append(vals, v)
		}
	}
	if c.Suspended() || len(vals) == 0 {
		return nil, false
	}
	return vals, true
}

func reduceOf(label, attr string, fn func([]float64) float64) attribute.Source {
	return attribute.Compute(label+" "+attr, func(c *attribute.Context) (any, error) {
		name := attr
		if name == "" {
			name = c.Decl.Name
		}
		vals, ok := collect(c, name)
		if !ok {
			return nil, nil
		}
		return fn(vals), nil
	})
}

// Sum adds the same-named attribute of the dependants
func Sum() attribute.Source { return reduceOf("sum of", "", sum) }

// SumOf adds attr of the dependants
func SumOf(attr string) attribute.Source { return reduceOf("sum of", attr, sum) }

// Avg averages the same-named attribute of the dependants
func Avg() attribute.Source { return reduceOf("average of", "", avg) }

// Max takes the maximum of the same-named attribute of the dependants
func Max() attribute.Source { return reduceOf("max of", "", maxOf) }

// WeightedAvg averages the same-named attribute weighted by weight. Without
// any usable weight it falls back to the plain average.
func WeightedAvg(weight string) attribute.Source {
	return attribute.Compute("weighted average by "+weight, func(c *attribute.Context) (any, error) {
		var total, weights float64
		var plain []float64
		for _, dep := range c.Dependants() {
			v, ok := c.Float(dep, c.Decl.Name)
			if !ok {
				continue
			}
			plain = append(plain, v)
			if w, ok := c.Float(dep, weight); ok && w > 0 {
				total += v * w
				weights += w
			}
		}
		if c.Suspended() || len(plain) == 0 {
			return nil, nil
		}
		if weights == 0 {
			return avg(plain), nil
		}
		return total / weights, nil
	})
}

// AnyTrue is true when a dependant's same-named boolean attribute is true
func AnyTrue() attribute.Source {
	return attribute.Compute("any of", func(c *attribute.Context) (any, error) {
		found := false
		for _, dep := range c.Dependants() {
			if v, ok := c.Bool(dep, c.Decl.Name); ok && v {
				found = true
			}
		}
		if c.Suspended() {
			return nil, nil
		}
		if found {
			return true, nil
		}
		return nil, nil
	})
}

// HasType is true when a constituent is of one of types
func HasType(types ...domain.ElementType) attribute.Source {
	set := domain.NewTypeSet(types...)
	return attribute.Compute("has type", func(c *attribute.Context) (any, error) {
		agg, ok := c.Subject.(*domain.Element)
		if !ok {
			return nil, nil
		}
		for _, e := range agg.Constituents() {
			if set.Has(e.Type) {
				return true, nil
			}
		}
		return false, nil
	})
}

// Meta reads a value the matcher stored in the aggregate's metadata
func Meta(key string) attribute.Source {
	return attribute.Compute("metadata "+key, func(c *attribute.Context) (any, error) {
		agg, ok := c.Subject.(*domain.Element)
		if !ok || agg.Aggregation == nil {
			return nil, nil
		}
		return agg.Aggregation.Metadata[key], nil
	})
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}

func avg(vals []float64) float64 {
	return sum(vals) / float64(len(vals))
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
