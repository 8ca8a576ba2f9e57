// Package macro implements spec §4.3's Macro State: the ordered mapping
// from macro name to macro value that reflects a scan's current
// preprocessor environment.
//
// Grounded on original_source/Extensions/HeaderScanner/macroState_.hpp:
// the same get/define/undefine/merge operation set and the
// undefined-on-miss semantics, adapted from an unordered_map (the
// original's std::unordered_map<MacroName, MacroValue>) to a structure
// that keeps lexicographic order explicit, because spec §4.3 fixes
// iteration order as "lexicographic over MacroName" for cache
// serialization stability — a guarantee a Go map cannot give on its own.
package macro

import (
	"sort"

	"github.com/buildpal-oss/buildpal/internal/intern"
)

// State is one scan's macro environment. It is not safe for concurrent
// use — spec §4.3: "Not thread-safe; each scan owns its own Macro
// State."
type State struct {
	reg    *intern.Registry
	values map[intern.MacroName]intern.MacroValue
	order  []intern.MacroName // kept sorted by interned text
}

// New creates an empty Macro State bound to reg, whose Undefined()
// sentinel backs every absent lookup.
func New(reg *intern.Registry) *State {
	return &State{
		reg:    reg,
		values: make(map[intern.MacroName]intern.MacroValue, 64),
	}
}

// Get returns the current value of name, or the registry's Undefined()
// sentinel if name has never been defined (or was undefined).
func (s *State) Get(name intern.MacroName) intern.MacroValue {
	if v, ok := s.values[name]; ok {
		return v
	}
	return s.reg.Undefined()
}

// Define sets name to value, inserting it into the ordered key set if
// it wasn't already present.
func (s *State) Define(name intern.MacroName, value intern.MacroValue) {
	if _, ok := s.values[name]; !ok {
		s.insertOrdered(name)
	}
	s.values[name] = value
}

// Undefine is equivalent to Define(name, Undefined()), per spec §3.
func (s *State) Undefine(name intern.MacroName) {
	s.Define(name, s.reg.Undefined())
}

// Merge applies other's values pairwise: for every key in other, this
// state's value is set to other's; keys absent from other are
// untouched, exactly spec §4.3's merge semantics.
func (s *State) Merge(other *State) {
	for _, name := range other.order {
		s.Define(name, other.values[name])
	}
}

// ForEach visits every (name, value) pair in lexicographic order by
// macro name, as spec §4.3 requires.
func (s *State) ForEach(fn func(name intern.MacroName, value intern.MacroValue)) {
	for _, name := range s.order {
		fn(name, s.values[name])
	}
}

// Len reports how many macros currently have an entry (defined or
// explicitly undefined — both occupy a slot, mirroring the original's
// map-based representation).
func (s *State) Len() int {
	return len(s.order)
}

func (s *State) insertOrdered(name intern.MacroName) {
	i := sort.Search(len(s.order), func(i int) bool {
		return !s.order[i].Less(name)
	})
	s.order = append(s.order, intern.MacroName{})
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = name
}
