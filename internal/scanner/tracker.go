// Package scanner implements spec §4.5's Header Tracker: the
// `idle -> scanning -> idle` state machine driven by an underlying
// preprocessor's callbacks, which maintains a stack of Header Contexts,
// consults the Result Cache on each inclusion, and emits the final
// transitive header set.
//
// Grounded on
// original_source/Extensions/HeaderScanner/headerTracker_.{hpp,cpp}
// for the state machine itself (inclusionDirective/replaceFile/
// headerSkipped/enterHeader/leaveHeader and their ordering), adapted
// from Clang-callback-shaped methods to the driver-agnostic callback
// table spec §4.5 defines, since no conformant C/C++ preprocessor
// implementation lives in this pack (internal/refpp drives this
// tracker instead, the way `VKCOM-nocc/internal/client` drives its
// includes-collector with its own non-conformant scanner).
package scanner

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/buildpal-oss/buildpal/internal/content"
	"github.com/buildpal-oss/buildpal/internal/fingerprint"
	"github.com/buildpal-oss/buildpal/internal/header"
	"github.com/buildpal-oss/buildpal/internal/intern"
	"github.com/buildpal-oss/buildpal/internal/macro"
	"github.com/buildpal-oss/buildpal/internal/resultcache"
)

// pendingInclude is staged between InclusionDirective and whichever of
// FileChanged(enter) / FileSkipped follows it, spec §4.5.2 steps 1-3.
type pendingInclude struct {
	valid      bool
	descriptor header.Descriptor
	cacheHit   *resultcache.CacheEntry
	synthetic  bool
	content    []byte
}

// Tracker is one scan's Header Tracker. Not safe for concurrent use —
// exactly one goroutine drives a Tracker's callbacks, spec §5: "Each
// scan is synchronous on its thread."
type Tracker struct {
	id           uuid.UUID
	reg          *intern.Registry
	contentCache *content.Cache
	resultCache  *resultcache.Cache
	searchPathID fingerprint.SearchPathID

	state *macro.State

	stack   []*frame
	pending pendingInclude

	missing []string
}

// NewTracker creates a Header Tracker bound to the given caches and
// search-path fingerprint, with state as its Macro State (the caller
// seeds it with the PreprocessingContext's predefined macros before the
// scan begins). Each Tracker is stamped with its own random correlation
// ID so a process running many concurrent scans (spec §5: "Multiple
// scans may run simultaneously, each on its own thread") can tell their
// log lines apart without threading a caller-supplied identifier
// through every callback.
func NewTracker(reg *intern.Registry, contentCache *content.Cache, resultCache *resultcache.Cache, searchPathID fingerprint.SearchPathID, state *macro.State) *Tracker {
	return &Tracker{
		id:           uuid.New(),
		reg:          reg,
		contentCache: contentCache,
		resultCache:  resultCache,
		searchPathID: searchPathID,
		state:        state,
	}
}

// ID returns this scan's correlation identifier.
func (t *Tracker) ID() uuid.UUID {
	return t.id
}

func (t *Tracker) top() *frame {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// EnterSourceFile begins the scan, spec §4.5's enter_source_file. The
// main file's Content Entry is fetched so callers can read it the same
// way any header is read.
func (t *Tracker) EnterSourceFile(path string) (*content.Entry, error) {
	entry, err := t.contentCache.GetOrCreate(path)
	if err != nil {
		return nil, &SourceNotFoundError{Path: path, Err: err}
	}
	descriptor := header.Descriptor{
		Name:     t.reg.HeaderNames.Intern(path),
		Content:  entry,
		Checksum: entry.Checksum,
		Location: header.LocationRelative,
	}
	t.stack = append(t.stack, newFrame(descriptor, nil, nil, false))
	return entry, nil
}

// InclusionDirective handles spec §4.5.2 step 1: an `#include` resolved
// to a file on disk. found=false means the file could not be located —
// name is recorded in the missing-headers set and the directive is
// otherwise ignored.
func (t *Tracker) InclusionDirective(dir, name, resolvedPath string, isQuoted, isSystemDir, found bool) (*content.Entry, error) {
	if !found {
		t.missing = append(t.missing, name)
		return nil, nil
	}

	entry, err := t.contentCache.GetOrCreate(resolvedPath)
	if err != nil {
		return nil, &ReadError{Path: resolvedPath, Err: err}
	}

	parent := t.top()
	location := header.LocationRegular
	switch {
	case parent != nil && parent.descriptor.Location == header.LocationRelative && isQuoted && dir == parentDir(parent):
		location = header.LocationRelative
	case isSystemDir:
		location = header.LocationSystem
	}

	descriptor := header.Descriptor{
		Dir:      t.reg.Dirs.Intern(dir),
		Name:     t.reg.HeaderNames.Intern(name),
		Content:  entry,
		Checksum: entry.Checksum,
		Location: location,
	}
	t.pending = pendingInclude{valid: true, descriptor: descriptor}
	return entry, nil
}

// parentDir is a placeholder accessor: the directory a frame's own
// descriptor was resolved against. Main-file frames have no search
// directory of their own, so they never satisfy the relative-location
// comparison above.
func parentDir(f *frame) string {
	return f.descriptor.Dir.Text()
}

// ReplaceFile handles spec §4.5.2 step 2: pragma-once elision first,
// then cache replay. Returns the synthesized content to substitute and
// whether any substitution applies; the caller (the driving
// preprocessor) is responsible for actually serving that content
// instead of the real file for this inclusion.
func (t *Tracker) ReplaceFile() (syntheticContent []byte, isReplacement bool) {
	if !t.pending.valid {
		return nil, false
	}
	cur := t.top()
	if cur == nil {
		return nil, false
	}

	fileID := t.pending.descriptor.Content.Identity
	pragmaOnceMacro := pragmaOnceMacroName(t.reg, fileID)
	if v := t.state.Get(pragmaOnceMacro); !t.reg.IsUndefined(v) {
		cur.recordMacroUsed(pragmaOnceMacro, v)
		t.pending.synthetic = true
		t.pending.content = []byte{}
		return t.pending.content, true
	}

	if entry := t.resultCache.Lookup(fileID, t.searchPathID, t.state); entry != nil {
		t.pending.cacheHit = entry
		t.pending.synthetic = true
		t.pending.content = entry.CachedContent()
		return t.pending.content, true
	}

	return nil, false
}

// pragmaOnceMacroName computes the canonical per-file pragma-once
// macro, spec §4.5.2's `__pragma_once_<device>_<inode>`.
func pragmaOnceMacroName(reg *intern.Registry, id fingerprint.FileID) intern.MacroName {
	return reg.MacroNames.Intern(fmt.Sprintf("__pragma_once_%d_%d", id.Device, id.Inode))
}

// FileChangedEnter handles the enter half of spec §4.5's
// file_changed(enter|exit): it pushes a new Header Context built from
// the pending inclusion.
func (t *Tracker) FileChangedEnter() {
	parent := t.top()
	if parent != nil && t.pending.valid {
		parent.addIncluded(t.pending.descriptor)
	}
	next := newFrame(t.pending.descriptor, parent, t.pending.cacheHit, t.pending.synthetic)
	t.stack = append(t.stack, next)
	t.pending = pendingInclude{}
}

// FileChangedExit finalizes the top frame — inserting a Cache Entry if
// viable — and propagates its effects to the parent, spec §4.5.2 step 5
// and §4.5.3.
func (t *Tracker) FileChangedExit() {
	f := t.top()
	if f == nil || f.parent == nil {
		return
	}
	t.stack = t.stack[:len(t.stack)-1]

	if !f.fromCache() && f.viableForCache() {
		defined, undefined := f.finalize()
		entry := t.resultCache.AddEntry(
			f.descriptor.Content.Identity,
			t.searchPathID,
			f.used.Pairs(),
			defined,
			undefined,
			f.included,
		)
		f.cacheHit = entry
	}

	t.propagate(f)
}

func (t *Tracker) propagate(f *frame) {
	parent := f.parent

	var used []macro.Pair
	var headers []header.Descriptor

	if f.fromCache() {
		used = f.cacheHit.Used
		headers = f.cacheHit.Headers
		for _, name := range f.cacheHit.Undefined {
			t.state.Undefine(name)
			parent.changed.Add(name)
		}
		for _, pair := range f.cacheHit.Defined {
			t.state.Define(pair.Name, pair.Value)
			parent.changed.Add(pair.Name)
		}
	} else {
		used = f.used.Pairs()
		headers = f.included
		for _, name := range f.changed.Names() {
			parent.changed.Add(name)
		}
	}

	for _, pair := range used {
		if parent.changed.Has(pair.Name) {
			continue
		}
		parent.recordMacroUsed(pair.Name, pair.Value)
	}
	for _, h := range headers {
		parent.addIncluded(h)
	}
}

// FileSkipped handles spec §4.5.2 step 4: the driving preprocessor
// applied its own include-guard optimisation. guardMacro is the
// controlling macro (or the pragma-once macro) the driver determined
// suppressed re-entry.
func (t *Tracker) FileSkipped(guardMacro intern.MacroName) {
	cur := t.top()
	if cur == nil || !t.pending.valid {
		return
	}
	cur.recordMacroUsed(guardMacro, t.state.Get(guardMacro))
	cur.addIncluded(t.pending.descriptor)
	t.pending = pendingInclude{}
}

// IsDefined reports whether name currently has a value in the shared
// Macro State, without recording a use — callers that need the read
// itself tracked (e.g. an `#ifdef` condition) must also call MacroUsed.
func (t *Tracker) IsDefined(name intern.MacroName) bool {
	return !t.reg.IsUndefined(t.state.Get(name))
}

// MacroUsed handles spec §4.5.5's macro_used.
func (t *Tracker) MacroUsed(name intern.MacroName) {
	f := t.top()
	if f == nil || f.fromCache() {
		return
	}
	f.recordMacroUsed(name, t.state.Get(name))
}

// MacroDefined handles spec §4.5.5's macro_defined.
func (t *Tracker) MacroDefined(name intern.MacroName, value intern.MacroValue) {
	f := t.top()
	if f == nil || f.fromCache() {
		return
	}
	t.state.Define(name, value)
	f.recordMacroDefined(name, value)
}

// MacroUndefined handles spec §4.5.5's macro_undefined.
func (t *Tracker) MacroUndefined(name intern.MacroName) {
	f := t.top()
	if f == nil || f.fromCache() {
		return
	}
	t.state.Undefine(name)
	f.recordMacroUndefined(name)
}

// PragmaOnce handles spec §4.5.5's pragma_once: the current frame marks
// its own pragma-once macro as used, then defines it to a sentinel
// non-undefined value so a later re-inclusion is elided by ReplaceFile.
func (t *Tracker) PragmaOnce() {
	f := t.top()
	if f == nil || f.fromCache() {
		return
	}
	name := pragmaOnceMacroName(t.reg, f.descriptor.Content.Identity)
	value := t.reg.MacroValues.Intern(" 1")
	f.recordMacroUsed(name, t.state.Get(name))
	t.state.Define(name, value)
	f.recordMacroDefined(name, value)
}

// EndOfMainFile handles spec §4.5.6: returns the final transitive
// header set and the names that could not be located during the scan.
func (t *Tracker) EndOfMainFile() ([]header.Descriptor, []string) {
	root := t.top()
	if root == nil {
		return nil, t.missing
	}
	return root.included, t.missing
}

// SourceNotFoundError is spec §7's SourceNotFound error kind.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return "scanner: source not found: " + e.Path + ": " + e.Err.Error()
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// ReadError is spec §7's ReadError kind, fatal to the current scan.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return "scanner: reading " + e.Path + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error { return e.Err }
