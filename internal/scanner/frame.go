package scanner

import (
	"github.com/buildpal-oss/buildpal/internal/header"
	"github.com/buildpal-oss/buildpal/internal/intern"
	"github.com/buildpal-oss/buildpal/internal/macro"
	"github.com/buildpal-oss/buildpal/internal/resultcache"
)

// frame is one Header Context, spec §3: a per-file bookkeeping record
// pushed when the tracker physically or synthetically enters a header
// and finalized on exit.
//
// Grounded on
// original_source/Extensions/HeaderScanner/headerTracker_.hpp's
// HeaderCtx, with `definedHere`/`undefinedHere` folded into one
// discovery-ordered map-plus-order-list (a name redefined then
// undefined, or vice versa, must resolve to its *final* state — see
// finalize below) rather than the original's separately-typed
// MacroState/MacroNames members.
type frame struct {
	descriptor header.Descriptor
	parent     *frame

	// cacheHit is set when this frame replays a Result Cache entry
	// instead of being physically preprocessed; synthetic is set for
	// both cache replays and pragma-once elision. Per spec §4.5.4, a
	// frame is viable for caching iff !synthetic.
	cacheHit  *resultcache.CacheEntry
	synthetic bool

	used    *macro.Observed
	changed *macro.OrderedNames
	defined map[intern.MacroName]intern.MacroValue

	included     []header.Descriptor
	includedSeen map[includeKey]struct{}
}

type includeKey struct {
	dir  intern.Dir
	name intern.HeaderName
}

func newFrame(descriptor header.Descriptor, parent *frame, cacheHit *resultcache.CacheEntry, synthetic bool) *frame {
	return &frame{
		descriptor:   descriptor,
		parent:       parent,
		cacheHit:     cacheHit,
		synthetic:    synthetic,
		used:         macro.NewObserved(),
		changed:      macro.NewOrderedNames(),
		defined:      make(map[intern.MacroName]intern.MacroValue, 8),
		includedSeen: make(map[includeKey]struct{}, 8),
	}
}

// fromCache reports whether this frame is replaying a Result Cache hit,
// spec §3's `cache_hit` attribute being set.
func (f *frame) fromCache() bool {
	return f.cacheHit != nil
}

// viableForCache reports spec §4.5.4: a frame may be inserted into the
// Result Cache only if it was physically preprocessed this time.
func (f *frame) viableForCache() bool {
	return !f.synthetic
}

// recordMacroUsed implements spec §4.5.5's macro_used: ignored if name
// is already in this frame's `changed` set, else recorded on first read
// only.
func (f *frame) recordMacroUsed(name intern.MacroName, currentValue intern.MacroValue) {
	if f.changed.Has(name) {
		return
	}
	f.used.Record(name, currentValue)
}

// recordMacroDefined implements spec §4.5.5's macro_defined bookkeeping
// local to this frame (the caller is responsible for also applying the
// definition to the shared Macro State).
func (f *frame) recordMacroDefined(name intern.MacroName, value intern.MacroValue) {
	f.changed.Add(name)
	f.defined[name] = value
}

// recordMacroUndefined implements spec §4.5.5's macro_undefined
// bookkeeping local to this frame.
func (f *frame) recordMacroUndefined(name intern.MacroName) {
	f.changed.Add(name)
	delete(f.defined, name)
}

// addIncluded unions h into this frame's transitively included set,
// deduplicating by (dir, name) identity.
func (f *frame) addIncluded(h header.Descriptor) {
	key := includeKey{dir: h.Dir, name: h.Name}
	if _, ok := f.includedSeen[key]; ok {
		return
	}
	f.includedSeen[key] = struct{}{}
	f.included = append(f.included, h)
}

// finalize resolves this frame's `changed` names to their final
// defined/undefined split, spec §3: a name this frame both defined and
// later undefined ends up in `undefined`, never `defined`, and vice
// versa — only the name's state at frame exit matters, not its history.
func (f *frame) finalize() (defined []macro.Pair, undefined []intern.MacroName) {
	for _, name := range f.changed.Names() {
		if v, ok := f.defined[name]; ok {
			defined = append(defined, macro.Pair{Name: name, Value: v})
		} else {
			undefined = append(undefined, name)
		}
	}
	return defined, undefined
}
