package macro

import "github.com/buildpal-oss/buildpal/internal/intern"

// Pair is a (name, value) macro observation — used for the ordered
// Used/Defined lists spec §3 attaches to Header Contexts and Cache
// Entries, as distinct from the lexicographically-ordered State.
type Pair struct {
	Name  intern.MacroName
	Value intern.MacroValue
}

// Observed records, in first-read order, every macro a Header Context
// reads during a scan — spec §3's Header Context `used` field. Unlike
// State, iteration order here is insertion order: the Result Cache tree
// shape is fixed by "the insertion order of used keys", not by name, so
// Observed must preserve discovery order rather than sort it.
type Observed struct {
	pairs []Pair
	index map[intern.MacroName]int
}

// NewObserved creates an empty ordered observation set.
func NewObserved() *Observed {
	return &Observed{index: make(map[intern.MacroName]int, 16)}
}

// Record stores (name, value) the first time name is seen; later calls
// for an already-recorded name are no-ops, matching spec §4.5.5's
// "record (name, current-value) ... only if not already present
// (first-read semantics)".
func (o *Observed) Record(name intern.MacroName, value intern.MacroValue) {
	if _, ok := o.index[name]; ok {
		return
	}
	o.index[name] = len(o.pairs)
	o.pairs = append(o.pairs, Pair{Name: name, Value: value})
}

// Has reports whether name has already been recorded.
func (o *Observed) Has(name intern.MacroName) bool {
	_, ok := o.index[name]
	return ok
}

// Pairs returns the recorded (name, value) pairs in first-read order.
// The caller must not mutate the returned slice.
func (o *Observed) Pairs() []Pair {
	return o.pairs
}

// Len reports how many distinct names have been recorded.
func (o *Observed) Len() int {
	return len(o.pairs)
}
