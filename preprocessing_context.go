package buildpal

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/buildpal-oss/buildpal/internal/scanner"
)

// PreprocessingContext is one scan's configuration, spec §6: an ordered
// include search path, predefined macros, forced includes, and (a
// supplement beyond spec.md) a set of glob patterns identifying headers
// to drop from the emitted set after the scan (the Header Tracker still
// scans them).
//
// Grounded on VKCOM-nocc/internal/client/include-dirs.go's
// IncludeDirsArray, adapted from its "list of dirs with a secondary
// disambiguation flag" shape to spec §6's explicit (path, is_system)
// pairs; ignored-header globs are matched with
// github.com/bmatcuk/doublestar/v4 the way mutagen-io/mutagen matches
// its own ignore patterns.
type PreprocessingContext struct {
	userDirs     []scanner.SearchDir
	systemDirs   []scanner.SearchDir
	macros       []macroDef
	forcedIncludes []string
	ignoreGlobs  []string
}

type macroDef struct {
	name  string
	value string
}

// NewPreprocessingContext returns an empty context; add include paths,
// macros, and forced includes before passing it to Preprocessor.Scan.
func NewPreprocessingContext() *PreprocessingContext {
	return &PreprocessingContext{}
}

// AddIncludePath appends path to the search order, spec §6's
// add_include_path.
func (p *PreprocessingContext) AddIncludePath(path string, isSystem bool) {
	dir := scanner.SearchDir{Path: path, IsSystem: isSystem}
	if isSystem {
		p.systemDirs = append(p.systemDirs, dir)
	} else {
		p.userDirs = append(p.userDirs, dir)
	}
}

// AddMacro seeds the scan's Macro State with name=value before the main
// file is entered, spec §6's add_macro.
func (p *PreprocessingContext) AddMacro(name, value string) {
	p.macros = append(p.macros, macroDef{name: name, value: value})
}

// AddForcedInclude records a path to be scanned as if #include'd at the
// top of the main source file, spec §6's add_forced_include.
func (p *PreprocessingContext) AddForcedInclude(path string) {
	p.forcedIncludes = append(p.forcedIncludes, path)
}

// IgnoreHeaders records doublestar glob patterns; any header whose
// include name (as spelled in the directive, not its resolved path)
// matches one is dropped from the scan's emitted header set (but
// its contents are still scanned for nested includes/macro effects —
// only the Header Descriptor's visibility to the driver is suppressed).
func (p *PreprocessingContext) IgnoreHeaders(globs ...string) {
	p.ignoreGlobs = append(p.ignoreGlobs, globs...)
}

func (p *PreprocessingContext) isIgnored(path string) bool {
	for _, g := range p.ignoreGlobs {
		if ok, _ := doublestar.Match(g, path); ok {
			return true
		}
	}
	return false
}

func (p *PreprocessingContext) resolver() *scanner.Resolver {
	return scanner.NewResolver(p.userDirs, p.systemDirs)
}

func (p *PreprocessingContext) searchPaths() (userPaths, systemPaths []string) {
	for _, d := range p.userDirs {
		userPaths = append(userPaths, d.Path)
	}
	for _, d := range p.systemDirs {
		systemPaths = append(systemPaths, d.Path)
	}
	return userPaths, systemPaths
}
