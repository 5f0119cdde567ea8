// Package attribute implements lazy, multi-source resolution of element attributes.
//
// Every element type declares its attributes once in a Schema: an ordered list of
// Decl values, each naming the attribute, its physical unit and the ordered Sources
// that may produce a value. Values live in per-element Slots and are only computed
// when first read.
//
// # Status Machine
//
// A slot starts UNKNOWN. The first Resolve tries the sources in order:
//
//   - the first source returning a non-nil value wins; the slot becomes AVAILABLE
//   - an Ask source registers a Decision; the slot becomes REQUESTED
//   - if every source comes back empty the slot becomes NOT_AVAILABLE
//
// AVAILABLE and NOT_AVAILABLE are terminal; later reads never probe the sources
// again. REQUESTED only moves to AVAILABLE, through Resolver.Resume.
//
// # Decisions
//
// Values that cannot be found locally are asked for. The Resolver collects open
// decisions into an ordered DecisionBatch; each decision carries a stable global
// key, a question and the IDs of related elements. Answers come back as a
// key → value map. A computation that depends on a REQUESTED slot reports the
// pending decisions and leaves its own slot UNKNOWN, so it is evaluated again once
// the answers are in.
package attribute
