package attribute

// Subject is anything that carries attribute slots
type Subject interface {
	// ID returns the stable identity used in decision keys
	ID() string
	// Slots returns the subject's slot set
	Slots() *Slots
	// Property returns a directly imported property value
	Property(key string) (any, bool)
	// PropertySets returns imported property sets (set name -> property -> value)
	PropertySets() map[string]map[string]any
}

// DependantFunc selects the subjects a computation reads from
type DependantFunc func(s Subject) []Subject

// Decl declares one named attribute of an element type
type Decl struct {
	Name      string
	Unit      string
	Sources   []Source
	Dependant DependantFunc
}

// Schema is the ordered attribute declaration of an element type
type Schema struct {
	decls []Decl
	index map[string]int
}

// NewSchema creates a schema from declarations. A later declaration with the same
// name replaces the earlier one in place.
func NewSchema(decls ...Decl) *Schema {
	s := &Schema{index: make(map[string]int)}
	for _, d := range decls {
		s.add(d)
	}
	return s
}

func (s *Schema) add(d Decl) {
	if i, ok := s.index[d.Name]; ok {
		s.decls[i] = d
		return
	}
	s.index[d.Name] = len(s.decls)
	s.decls = append(s.decls, d)
}

// Extend returns a new schema with the receiver's declarations followed by decls
func (s *Schema) Extend(decls ...Decl) *Schema {
	out := NewSchema()
	if s != nil {
		for _, d := range s.decls {
			out.add(d)
		}
	}
	for _, d := range decls {
		out.add(d)
	}
	return out
}

// Lookup returns the declaration for name
func (s *Schema) Lookup(name string) (*Decl, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.decls[i], true
}

// Names returns attribute names in declaration order
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.decls))
	for i, d := range s.decls {
		names[i] = d.Name
	}
	return names
}

// Unit returns the declared unit of name, or "" if undeclared
func (s *Schema) Unit(name string) string {
	if d, ok := s.Lookup(name); ok {
		return d.Unit
	}
	return ""
}
