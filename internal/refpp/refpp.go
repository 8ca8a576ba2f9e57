// Package refpp is a non-conformant, directive-only C/C++ preprocessor
// that drives an internal/scanner.Tracker the way a real preprocessor's
// callbacks would. It recognizes `#include`, `#define`, `#undef`,
// `#ifdef`/`#ifndef`/`#else`/`#endif`, and `#pragma once` — nothing
// about macro expansion or token pasting, and no conditional
// expressions: `#if` and `#elif` lines are not recognized and are
// skipped like any other unknown directive.
//
// It exists because this repository's Non-goals explicitly exclude
// "full standards-conformant preprocessing (the scanner observes an
// existing preprocessor engine)" — so a real implementation wires the
// Header Tracker up to an actual preprocessor (e.g. a cgo binding to
// Clang's Lexer, mirroring
// original_source/Extensions/HeaderScanner/headerScanner_.cpp). refpp
// is this repository's stand-in collaborator for tests and the
// cmd/bpscan demo, grounded on
// original_source/Extensions/HeaderScanner/naivePreprocessor_.cpp
// (which exists in the original for exactly the same "skip the real
// preprocessor when you don't need full conformance" reason) and
// VKCOM-nocc/internal/client/own-includes-parser.go's byte-buffer
// scanning idiom.
//
// Scope deliberately stops short of the original's "complex file"
// detection (naivePreprocessor_.cpp's NaiveCache distinguishes headers
// whose includes it can statically enumerate from ones it can't,
// falling back to a real preprocessor for the latter) — there is no
// real preprocessor to fall back to here, so that distinction has
// nothing to select between.
package refpp

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/buildpal-oss/buildpal/internal/header"
	"github.com/buildpal-oss/buildpal/internal/intern"
	"github.com/buildpal-oss/buildpal/internal/scanner"
)

// Scan drives tracker through mainPath and its transitive includes,
// resolving `#include` directives with resolver, and returns the final
// header set and missing-name list, spec §4.5.6.
func Scan(tracker *scanner.Tracker, resolver *scanner.Resolver, reg *intern.Registry, mainPath string) ([]header.Descriptor, []string, error) {
	return ScanWithForcedIncludes(tracker, resolver, reg, mainPath, nil)
}

// ScanWithForcedIncludes is Scan plus spec §6's add_forced_include
// paths: each is processed exactly like an `#include <path>` appearing
// before the main file's own text, in the order given.
func ScanWithForcedIncludes(tracker *scanner.Tracker, resolver *scanner.Resolver, reg *intern.Registry, mainPath string, forcedIncludes []string) ([]header.Descriptor, []string, error) {
	entry, err := tracker.EnterSourceFile(mainPath)
	if err != nil {
		return nil, nil, err
	}

	for _, path := range forcedIncludes {
		if err := includeResolvedPath(tracker, resolver, reg, path); err != nil {
			return nil, nil, err
		}
	}

	if err := processBody(tracker, resolver, reg, filepath.Dir(mainPath), entry.Bytes); err != nil {
		return nil, nil, err
	}
	headers, missing := tracker.EndOfMainFile()
	return headers, missing, nil
}

// includeResolvedPath processes a forced include: it is already a
// filesystem path rather than a spelled-out directive argument, so it
// is handed to the tracker as an angled include resolved directly
// against its own directory.
func includeResolvedPath(tracker *scanner.Tracker, resolver *scanner.Resolver, reg *intern.Registry, path string) error {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	return includeDirective(tracker, resolver, reg, dir, name, path, dir, true, false, true)
}

// condState is one nesting level of #ifdef/#ifndef/#else.
type condState struct {
	// active is whether lines at this nesting level should be
	// processed — it is false once any enclosing level is inactive,
	// or once this level's own condition was false (before #else) or
	// true (after #else).
	active      bool
	branchTaken bool
}

func processBody(tracker *scanner.Tracker, resolver *scanner.Resolver, reg *intern.Registry, currentDir string, body []byte) error {
	scan := bufio.NewScanner(bytes.NewReader(body))
	scan.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var conds []condState

	activeNow := func() bool {
		for _, c := range conds {
			if !c.active {
				return false
			}
		}
		return true
	}

	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if !strings.HasPrefix(line, "#") {
			continue
		}
		directive, rest := splitDirective(line[1:])

		switch directive {
		case "ifdef", "ifndef":
			name := reg.MacroNames.Intern(strings.TrimSpace(rest))
			defined := activeNow()
			if defined {
				tracker.MacroUsed(name)
				defined = tracker.IsDefined(name)
			}
			if directive == "ifndef" {
				defined = !defined
			}
			conds = append(conds, condState{active: activeNow() && defined, branchTaken: defined})
			continue
		case "else":
			if len(conds) == 0 {
				continue
			}
			top := &conds[len(conds)-1]
			parentActive := true
			for _, c := range conds[:len(conds)-1] {
				if !c.active {
					parentActive = false
					break
				}
			}
			top.active = parentActive && !top.branchTaken
			top.branchTaken = true
			continue
		case "endif":
			if len(conds) > 0 {
				conds = conds[:len(conds)-1]
			}
			continue
		}

		if !activeNow() {
			continue
		}

		switch directive {
		case "include", "include_next":
			name, isAngled, ok := parseIncludeArg(rest)
			if !ok {
				continue
			}
			resolvedPath, resolvedDir, isSystemDir, found := resolver.Resolve(currentDir, name, isAngled)
			if err := includeDirective(tracker, resolver, reg, resolvedDir, name, resolvedPath, resolvedDir, isAngled, isSystemDir, found); err != nil {
				return err
			}

		case "define":
			name, value := parseDefineArg(rest)
			tracker.MacroDefined(reg.MacroNames.Intern(name), reg.MacroValues.Intern(value))

		case "undef":
			tracker.MacroUndefined(reg.MacroNames.Intern(strings.TrimSpace(rest)))

		case "pragma":
			if strings.TrimSpace(rest) == "once" {
				tracker.PragmaOnce()
			}
		}
	}
	return scan.Err()
}

// includeDirective drives one resolved inclusion through the tracker's
// InclusionDirective/ReplaceFile/FileChanged(Enter|Exit) sequence,
// recursing into the included file's body unless a pragma-once or
// Result Cache replacement applies.
func includeDirective(tracker *scanner.Tracker, resolver *scanner.Resolver, reg *intern.Registry, dir, name, resolvedPath, resolvedDir string, isAngled, isSystemDir, found bool) error {
	entry, err := tracker.InclusionDirective(dir, name, resolvedPath, !isAngled, isSystemDir, found)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	_, isReplacement := tracker.ReplaceFile()
	tracker.FileChangedEnter()
	if !isReplacement {
		if err := processBody(tracker, resolver, reg, filepath.Dir(resolvedPath), entry.Bytes); err != nil {
			tracker.FileChangedExit()
			return err
		}
	}
	tracker.FileChangedExit()
	return nil
}

func splitDirective(s string) (directive, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && !isSpace(s[i]) {
		i++
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

// parseIncludeArg reads the `"name"` or `<name>` argument of an
// #include/#include_next directive.
func parseIncludeArg(rest string) (name string, isAngled, ok bool) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return "", false, false
	}
	switch rest[0] {
	case '"':
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return "", false, false
		}
		return rest[1 : 1+end], false, true
	case '<':
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return "", false, false
		}
		return rest[1:end], true, true
	default:
		return "", false, false
	}
}

// parseDefineArg splits `NAME value` or bare `NAME` the way spec §4.4.3
// requires the stored value to retain its leading whitespace.
func parseDefineArg(rest string) (name, value string) {
	rest = strings.TrimLeft(rest, " \t")
	i := 0
	for i < len(rest) && rest[i] != ' ' && rest[i] != '\t' && rest[i] != '(' {
		i++
	}
	name = rest[:i]
	value = rest[i:]
	return name, value
}
