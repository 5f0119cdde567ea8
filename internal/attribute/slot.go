package attribute

import "sort"

// Status is the resolution state of a single attribute slot
type Status int

const (
	// StatusUnknown means no source has been consulted yet
	StatusUnknown Status = iota
	// StatusRequested means the value was asked for and no answer arrived yet
	StatusRequested
	// StatusAvailable means the slot holds a value
	StatusAvailable
	// StatusNotAvailable means every source came back empty
	StatusNotAvailable
)

// String returns the string representation of a status
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusRequested:
		return "REQUESTED"
	case StatusAvailable:
		return "AVAILABLE"
	case StatusNotAvailable:
		return "NOT_AVAILABLE"
	default:
		return "INVALID"
	}
}

// Terminal reports whether the status can no longer change on its own
func (s Status) Terminal() bool {
	return s == StatusAvailable || s == StatusNotAvailable
}

// Slot is the (value, status) record of one attribute on one element
type Slot struct {
	Value    any
	Status   Status
	decision *Decision
}

// Decision returns the open decision of a REQUESTED slot
func (s *Slot) Decision() *Decision {
	return s.decision
}

// Slots holds the attribute slots of one element, keyed by attribute name
type Slots struct {
	m map[string]*Slot
}

// NewSlots creates an empty slot set
func NewSlots() *Slots {
	return &Slots{m: make(map[string]*Slot)}
}

// Get returns the slot for name, creating an UNKNOWN slot on first access
func (s *Slots) Get(name string) *Slot {
	if s.m == nil {
		s.m = make(map[string]*Slot)
	}
	slot, ok := s.m[name]
	if !ok {
		slot = &Slot{Status: StatusUnknown}
		s.m[name] = slot
	}
	return slot
}

// Set stores a known value, marking the slot AVAILABLE.
// Used by importers that already hold a value; it does not override a
// terminal slot or one waiting for an answer.
func (s *Slots) Set(name string, value any) bool {
	slot := s.Get(name)
	if slot.Status.Terminal() || slot.Status == StatusRequested {
		return false
	}
	slot.Value = value
	slot.Status = StatusAvailable
	slot.decision = nil
	return true
}

// Names returns the names of all slots touched so far, sorted
func (s *Slots) Names() []string {
	names := make([]string, 0, len(s.m))
	for name := range s.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
