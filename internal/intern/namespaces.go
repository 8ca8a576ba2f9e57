package intern

// Phantom tag types, one per interning namespace named in spec §3
// ("MacroName, MacroValue, Dir, HeaderName. Distinct types, each a
// handle to an Interned String in its own namespace").
type (
	DirTag        struct{}
	HeaderNameTag struct{}
	MacroNameTag  struct{}
	MacroValueTag struct{}
)

type (
	Dir        = Handle[DirTag]
	HeaderName = Handle[HeaderNameTag]
	MacroName  = Handle[MacroNameTag]
	MacroValue = Handle[MacroValueTag]
)

// Registry bundles the four namespaces a scan needs. One Registry is
// shared by every concurrent scan in the process, mirroring the
// per-process singletons the original C++ flyweight storage uses
// (FlyweightStorage<T,Tag>::storage is a static per (T, Tag) pair).
type Registry struct {
	Dirs        *Namespace[DirTag]
	HeaderNames *Namespace[HeaderNameTag]
	MacroNames  *Namespace[MacroNameTag]
	MacroValues *Namespace[MacroValueTag]

	undefined MacroValue
}

// undefinedSentinelText is the canonical byte sequence spec §3 requires
// for the "macro not currently defined" sentinel: a string no real
// macro value (which always starts with whitespace, per the preprocessor
// callback contract) could ever produce.
const undefinedSentinelText = "\x00<undefined>\x00"

// NewRegistry constructs a fresh, empty set of namespaces and interns
// the distinguished "undefined" MacroValue sentinel once.
func NewRegistry() *Registry {
	r := &Registry{
		Dirs:        NewNamespace[DirTag](),
		HeaderNames: NewNamespace[HeaderNameTag](),
		MacroNames:  NewNamespace[MacroNameTag](),
		MacroValues: NewNamespace[MacroValueTag](),
	}
	r.undefined = r.MacroValues.Intern(undefinedSentinelText)
	return r
}

// Undefined returns the canonical "macro not defined" MacroValue. Its
// refcount is held by the Registry for its whole lifetime, so it is
// never swept.
func (r *Registry) Undefined() MacroValue {
	return r.undefined
}

// IsUndefined reports whether v is the Registry's undefined sentinel.
func (r *Registry) IsUndefined(v MacroValue) bool {
	return v.Equal(r.undefined)
}
