package refpp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/buildpal-oss/buildpal/internal/content"
	"github.com/buildpal-oss/buildpal/internal/fingerprint"
	"github.com/buildpal-oss/buildpal/internal/intern"
	"github.com/buildpal-oss/buildpal/internal/macro"
	"github.com/buildpal-oss/buildpal/internal/resultcache"
	"github.com/buildpal-oss/buildpal/internal/scanner"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

type harness struct {
	reg          *intern.Registry
	contentCache *content.Cache
	resultCache  *resultcache.Cache
	resolver     *scanner.Resolver
	dir          string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	reg := intern.NewRegistry()
	return &harness{
		reg:          reg,
		contentCache: content.New(),
		resultCache:  resultcache.New(reg),
		resolver:     scanner.NewResolver([]scanner.SearchDir{{Path: dir}}, nil),
		dir:          dir,
	}
}

func (h *harness) newTracker() *scanner.Tracker {
	searchPathID := fingerprint.CombineSearchPath([]string{h.dir}, nil)
	return scanner.NewTracker(h.reg, h.contentCache, h.resultCache, searchPathID, macro.New(h.reg))
}

func TestScanCollectsDirectIncludes(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.dir, "a.h", "int a;\n")
	writeFile(t, h.dir, "b.h", "int b;\n")
	main := writeFile(t, h.dir, "main.c", "#include \"a.h\"\n#include <b.h>\n")

	tracker := h.newTracker()
	headers, missing, err := Scan(tracker, h.resolver, h.reg, main)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("unexpected missing headers: %v", missing)
	}
	if len(headers) != 2 {
		t.Fatalf("want 2 headers, got %d", len(headers))
	}
	names := map[string]bool{}
	for _, hd := range headers {
		names[hd.Name.Text()] = true
	}
	if !names["a.h"] || !names["b.h"] {
		t.Fatalf("missing expected header names: %v", names)
	}
}

func TestScanRecordsTransitiveIncludes(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.dir, "leaf.h", "int leaf;\n")
	writeFile(t, h.dir, "mid.h", "#include \"leaf.h\"\n")
	main := writeFile(t, h.dir, "main.c", "#include \"mid.h\"\n")

	tracker := h.newTracker()
	headers, _, err := Scan(tracker, h.resolver, h.reg, main)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("want 2 transitive headers (mid.h, leaf.h), got %d: %v", len(headers), headers)
	}
}

func TestScanSuppressesPragmaOnceReinclusion(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.dir, "once.h", "#pragma once\nint once;\n")
	main := writeFile(t, h.dir, "main.c", "#include \"once.h\"\n#include \"once.h\"\n")

	tracker := h.newTracker()
	headers, _, err := Scan(tracker, h.resolver, h.reg, main)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(headers) != 1 {
		t.Fatalf("want 1 header recorded despite two #include lines, got %d", len(headers))
	}
}

func TestScanHonorsIfndefGuard(t *testing.T) {
	h := newHarness(t)
	guarded := "#ifndef GUARD_H\n#define GUARD_H\nint guarded;\n#endif\n"
	writeFile(t, h.dir, "guarded.h", guarded)
	main := writeFile(t, h.dir, "main.c", "#include \"guarded.h\"\n#include \"guarded.h\"\n")

	tracker := h.newTracker()
	headers, missing, err := Scan(tracker, h.resolver, h.reg, main)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("unexpected missing: %v", missing)
	}
	if len(headers) != 1 {
		t.Fatalf("want 1 header, got %d", len(headers))
	}
}

func TestScanSkipsElseBranch(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.dir, "taken.h", "int taken;\n")
	writeFile(t, h.dir, "skipped.h", "int skipped;\n")
	body := "#define FLAG\n" +
		"#ifdef FLAG\n#include \"taken.h\"\n#else\n#include \"skipped.h\"\n#endif\n"
	main := writeFile(t, h.dir, "main.c", body)

	tracker := h.newTracker()
	headers, _, err := Scan(tracker, h.resolver, h.reg, main)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(headers) != 1 || headers[0].Name.Text() != "taken.h" {
		t.Fatalf("want only taken.h, got %v", headers)
	}
}

func TestScanRecordsMissingHeader(t *testing.T) {
	h := newHarness(t)
	main := writeFile(t, h.dir, "main.c", "#include \"nope.h\"\n")

	tracker := h.newTracker()
	headers, missing, err := Scan(tracker, h.resolver, h.reg, main)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(headers) != 0 {
		t.Fatalf("want no headers, got %v", headers)
	}
	if len(missing) != 1 || missing[0] != "nope.h" {
		t.Fatalf("want [nope.h] missing, got %v", missing)
	}
}

func TestScanSecondPassHitsResultCache(t *testing.T) {
	h := newHarness(t)
	writeFile(t, h.dir, "leaf.h", "int leaf;\n")
	main := writeFile(t, h.dir, "main.c", "#include \"leaf.h\"\n")

	first := h.newTracker()
	if _, _, err := Scan(first, h.resolver, h.reg, main); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	hitsBefore, _ := h.resultCache.Stats()

	second := h.newTracker()
	headers, _, err := Scan(second, h.resolver, h.reg, main)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(headers) != 1 {
		t.Fatalf("want 1 header on replay, got %d", len(headers))
	}
	hitsAfter, _ := h.resultCache.Stats()
	if hitsAfter <= hitsBefore {
		t.Fatalf("want result cache hit count to increase, before=%d after=%d", hitsBefore, hitsAfter)
	}
}
