package attribute

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDecision is returned when an answer names no open decision
	ErrUnknownDecision = errors.New("attribute: unknown decision key")
	// ErrInvalidAnswer is returned when an answer cannot be converted to the expected kind
	ErrInvalidAnswer = errors.New("attribute: invalid answer")
)

// AnswerKind is the expected type of an answer
type AnswerKind string

const (
	KindReal AnswerKind = "real"
	KindBool AnswerKind = "bool"
	KindText AnswerKind = "text"
)

// Decision is a question about one attribute slot, waiting for an external answer
type Decision struct {
	Key      string     `json:"key" yaml:"key"`
	Question string     `json:"question" yaml:"question"`
	Related  []string   `json:"related,omitempty" yaml:"related,omitempty"`
	Unit     string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Kind     AnswerKind `json:"kind" yaml:"kind"`
}

// DecisionKey builds the stable global key of a subject's attribute
func DecisionKey(subjectID, name string) string {
	return subjectID + "/" + name
}

// Convert turns a raw answer into the decision's kind
func (d *Decision) Convert(answer any) (any, error) {
	switch d.Kind {
	case KindReal:
		if f, ok := ToFloat(answer); ok {
			return f, nil
		}
	case KindBool:
		if b, ok := ToBool(answer); ok {
			return b, nil
		}
	case KindText:
		if answer != nil {
			return fmt.Sprint(answer), nil
		}
	}
	return nil, fmt.Errorf("%w: %v for %s (%s)", ErrInvalidAnswer, answer, d.Key, d.Kind)
}

// DecisionBatch is an ordered set of decisions asked together
type DecisionBatch []*Decision

// Keys returns the keys in batch order
func (b DecisionBatch) Keys() []string {
	keys := make([]string, len(b))
	for i, d := range b {
		keys[i] = d.Key
	}
	return keys
}

// merge appends the decisions of other that are not yet in b
func (b DecisionBatch) merge(other DecisionBatch) DecisionBatch {
	seen := make(map[string]bool, len(b))
	for _, d := range b {
		seen[d.Key] = true
	}
	for _, d := range other {
		if !seen[d.Key] {
			seen[d.Key] = true
			b = append(b, d)
		}
	}
	return b
}
