package attribute

import (
	"errors"
	"regexp"
	"sort"
)

// SourceKind identifies how a source produces its value
type SourceKind string

const (
	SourceProperty    SourceKind = "property"
	SourcePropertySet SourceKind = "property_set"
	SourceCompute     SourceKind = "compute"
	SourceDefault     SourceKind = "default"
	SourceAsk         SourceKind = "ask"
)

// errAsked signals that a source registered a decision instead of a value
var errAsked = errors.New("attribute: decision requested")

// Source is one way of producing an attribute value
type Source struct {
	Kind  SourceKind
	Label string
	fn    func(c *Context) (any, error)
}

// Property reads the first present key from the subject's imported properties
func Property(keys ...string) Source {
	return Source{
		Kind:  SourceProperty,
		Label: firstOr(keys, "property"),
		fn: func(c *Context) (any, error) {
			for _, key := range keys {
				if v, ok := c.Subject.Property(key); ok && v != nil {
					return v, nil
				}
			}
			return nil, nil
		},
	}
}

// PropertySetPattern searches the subject's property sets. Set and property names
// are matched with the given regular expressions; sets and properties are visited
// in sorted order so the first hit is deterministic.
func PropertySetPattern(setPattern, propPattern string) Source {
	setRe := regexp.MustCompile(setPattern)
	propRe := regexp.MustCompile(propPattern)
	return Source{
		Kind:  SourcePropertySet,
		Label: setPattern + "." + propPattern,
		fn: func(c *Context) (any, error) {
			sets := c.Subject.PropertySets()
			for _, setName := range sortedKeys(sets) {
				if !setRe.MatchString(setName) {
					continue
				}
				props := sets[setName]
				for _, propName := range sortedKeys(props) {
					if propRe.MatchString(propName) && props[propName] != nil {
						return props[propName], nil
					}
				}
			}
			return nil, nil
		},
	}
}

// ComputeFunc derives a value, usually from other attributes
type ComputeFunc func(c *Context) (any, error)

// Compute wraps a computation function
func Compute(label string, fn ComputeFunc) Source {
	return Source{Kind: SourceCompute, Label: label, fn: fn}
}

// Default always yields v
func Default(v any) Source {
	return Source{
		Kind:  SourceDefault,
		Label: "default",
		fn: func(*Context) (any, error) {
			return v, nil
		},
	}
}

// Ask requests the value from an external decision handler
func Ask(question string, kind AnswerKind) Source {
	return Source{
		Kind:  SourceAsk,
		Label: "ask",
		fn: func(c *Context) (any, error) {
			return c.ask(question, kind)
		},
	}
}

func firstOr(keys []string, fallback string) string {
	if len(keys) == 0 {
		return fallback
	}
	return keys[0]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
