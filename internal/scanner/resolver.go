package scanner

import (
	"os"
	"path/filepath"
)

// SearchDir is one entry of an ordered include search path, spec §6's
// `add_include_path(path, is_system)`.
type SearchDir struct {
	Path     string
	IsSystem bool
}

// Resolver finds the file an `#include` directive names, in the order
// a real preprocessor would try candidates: for a quoted include, the
// including file's own directory first, then every configured search
// directory (user paths before system paths); for an angled include,
// straight to the search directories.
//
// Grounded on VKCOM-nocc/internal/client/own-includes-parser.go's
// resolveIncludedArg, adapted from its PCH-aware multi-branch walk
// (quote/angle/include_next) down to the plain quote/angle cases spec
// §4.5.2 actually describes — `#include_next` is absent from the
// callback table spec §4.5 enumerates.
type Resolver struct {
	userDirs   []SearchDir
	systemDirs []SearchDir
}

// NewResolver builds a Resolver from ordered user and system search
// directories.
func NewResolver(userDirs, systemDirs []SearchDir) *Resolver {
	return &Resolver{userDirs: userDirs, systemDirs: systemDirs}
}

// Resolve searches for name as included from a file in currentDir.
// resolvedDir is the directory the file was actually found in (for
// quoted includes found relative to currentDir, resolvedDir ==
// currentDir); isSystemDir reports whether that directory was
// registered as a system path.
func (r *Resolver) Resolve(currentDir, name string, isAngled bool) (resolvedPath, resolvedDir string, isSystemDir, found bool) {
	if !isAngled {
		if p, ok := statFile(filepath.Join(currentDir, name)); ok {
			return p, currentDir, false, true
		}
	}
	for _, d := range r.userDirs {
		if p, ok := statFile(filepath.Join(d.Path, name)); ok {
			return p, d.Path, d.IsSystem, true
		}
	}
	for _, d := range r.systemDirs {
		if p, ok := statFile(filepath.Join(d.Path, name)); ok {
			return p, d.Path, d.IsSystem, true
		}
	}
	return "", "", false, false
}

func statFile(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
