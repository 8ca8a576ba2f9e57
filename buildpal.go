// Package buildpal is the library surface spec §6 describes: a header
// scanner and preprocessing-result cache shared by however many
// concurrent scans a build system wants to run against one source tree.
//
// Grounded on VKCOM-nocc's root package shape (a small constructor
// plus option-style setters wiring caches/logging/metrics together,
// mirrored from internal/client and internal/server's daemon
// bootstrapping) adapted to a library entry point rather than a daemon
// process.
package buildpal

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/buildpal-oss/buildpal/internal/content"
	"github.com/buildpal-oss/buildpal/internal/corelog"
	"github.com/buildpal-oss/buildpal/internal/fingerprint"
	"github.com/buildpal-oss/buildpal/internal/header"
	"github.com/buildpal-oss/buildpal/internal/intern"
	"github.com/buildpal-oss/buildpal/internal/macro"
	"github.com/buildpal-oss/buildpal/internal/metrics"
	"github.com/buildpal-oss/buildpal/internal/refpp"
	"github.com/buildpal-oss/buildpal/internal/resultcache"
	"github.com/buildpal-oss/buildpal/internal/scanner"
)

// Cache bundles the Interner, Content Cache, and Result Cache shared by
// every Preprocessor built from it, spec §6's new_cache().
type Cache struct {
	reg          *intern.Registry
	contentCache *content.Cache
	resultCache  *resultcache.Cache
	log          *corelog.Logger
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithMetrics registers the Content Cache and Result Cache's Prometheus
// counters against reg. Omit this option to run without metrics (the
// caches are nil-safe without it).
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.contentCache.SetMetrics(metrics.NewContentCache(reg))
		c.resultCache.SetMetrics(metrics.NewResultCache(reg))
	}
}

// WithLogger attaches a logger used for scan-start/scan-end diagnostics.
func WithLogger(log *corelog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// NewCache creates an empty Cache, spec §6's new_cache().
func NewCache(opts ...Option) *Cache {
	reg := intern.NewRegistry()
	c := &Cache{
		reg:          reg,
		contentCache: content.New(),
		resultCache:  resultcache.New(reg),
		log:          corelog.Nop(),
	}
	c.resultCache.SubscribeTo(c.contentCache)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewPreprocessor creates a Preprocessor bound to this Cache, spec §6's
// new_preprocessor(cache?).
func (c *Cache) NewPreprocessor() *Preprocessor {
	return &Preprocessor{cache: c}
}

// CacheStats is spec §6's cache.stats() made structured instead of a
// bare tuple, split per sub-cache since both the Content Cache and
// Result Cache keep independent hit/miss counters.
type CacheStats struct {
	Content CounterPair
	Result  CounterPair
}

// CounterPair is a hits/misses snapshot.
type CounterPair struct {
	Hits   int64
	Misses int64
}

// Stats reports cumulative hit/miss counts for both caches.
func (c *Cache) Stats() CacheStats {
	ch, cm := c.contentCache.Stats()
	rh, rm := c.resultCache.Stats()
	return CacheStats{
		Content: CounterPair{Hits: ch, Misses: cm},
		Result:  CounterPair{Hits: rh, Misses: rm},
	}
}

// ClearContentCache drops every Content Entry and cascades invalidation
// into the Result Cache, spec §6's clear_content_cache().
func (c *Cache) ClearContentCache() {
	c.contentCache.Clear()
}

// LanguageFlag names one of spec §6's preprocessor.set_language_flag
// toggles.
type LanguageFlag int

const (
	// FlagMSMode enables MS-specific language semantics.
	FlagMSMode LanguageFlag = iota
	// FlagMSExt enables MS extensions.
	FlagMSExt
)

// Preprocessor runs scans against its Cache, spec §6's Preprocessor.
// A Preprocessor is reusable across scans; each Scan call builds its
// own Header Tracker and Macro State, so concurrent Scan calls on one
// Preprocessor are safe (the Cache's own internal locking is what
// actually serializes cache access, per spec §5).
type Preprocessor struct {
	cache *Cache
	flags map[LanguageFlag]bool
}

// SetLanguageFlag toggles a recognized language flag, spec §6's
// preprocessor.set_language_flag. Neither flag currently affects
// internal/refpp's directive-only scan (it doesn't model MS-specific
// syntax or extensions at all); a real preprocessor wired in later
// reads these the way spec §9 anticipates.
func (p *Preprocessor) SetLanguageFlag(flag LanguageFlag, enabled bool) {
	if p.flags == nil {
		p.flags = make(map[LanguageFlag]bool, 2)
	}
	p.flags[flag] = enabled
}

// LanguageFlag reports whether flag is currently enabled.
func (p *Preprocessor) LanguageFlag(flag LanguageFlag) bool {
	return p.flags[flag]
}

// HeaderFile is one header within a HeaderGroup, spec §6's
// `(name, is_relative, content)` tuple element.
type HeaderFile struct {
	Name       string
	IsRelative bool
	Content    ContentHandle
}

// ContentHandle exposes a Content Entry's bytes and checksum to the
// driver without leaking the internal/content package's mutable cache
// bookkeeping, spec §6: "a content handle whose bytes and checksum are
// directly readable."
type ContentHandle struct {
	entry *content.Entry
}

// Bytes returns the content handle's immutable byte buffer.
func (h ContentHandle) Bytes() []byte { return h.entry.Bytes }

// Checksum returns the content handle's Adler-32 checksum.
func (h ContentHandle) Checksum() uint32 { return h.entry.Checksum }

// HeaderGroup is spec §6's `(dir, is_system, [...])` grouping of
// headers found in one search directory.
type HeaderGroup struct {
	Dir      string
	IsSystem bool
	Headers  []HeaderFile
}

// ScanResult is spec §6's scan() return shape: the emitted header set
// grouped by directory, plus the names that could not be located.
type ScanResult struct {
	Groups  []HeaderGroup
	Missing []string
}

// Scan runs one scan of sourcePath under pctx, spec §6's
// preprocessor.scan. Headers matching pctx's ignore globs are dropped
// from the returned groups (their contents were still scanned, so their
// macro/inclusion effects on other headers are unaffected).
func (p *Preprocessor) Scan(ctx context.Context, pctx *PreprocessingContext, sourcePath string) (ScanResult, error) {
	select {
	case <-ctx.Done():
		return ScanResult{}, ctx.Err()
	default:
	}

	c := p.cache
	userPaths, systemPaths := pctx.searchPaths()
	searchPathID := fingerprint.CombineSearchPath(userPaths, systemPaths)

	state := macro.New(c.reg)
	for _, m := range pctx.macros {
		state.Define(c.reg.MacroNames.Intern(m.name), c.reg.MacroValues.Intern(" "+m.value))
	}

	tracker := scanner.NewTracker(c.reg, c.contentCache, c.resultCache, searchPathID, state)
	log := c.log.ForScan(tracker.ID())
	log.Info(1, "start", sourcePath)

	headers, missing, err := refpp.ScanWithForcedIncludes(tracker, pctx.resolver(), c.reg, sourcePath, pctx.forcedIncludes)
	if err != nil {
		log.Error("failed", err)
		return ScanResult{}, wrapScanError(err)
	}

	result := ScanResult{Missing: missing}
	result.Groups = groupHeaders(pctx, headers)
	log.Info(1, "done", len(result.Groups), "groups", len(missing), "missing")
	return result, nil
}

func groupHeaders(pctx *PreprocessingContext, headers []header.Descriptor) []HeaderGroup {
	order := make([]string, 0, len(headers))
	byDir := make(map[string]*HeaderGroup, len(headers))

	for _, h := range headers {
		if pctx.isIgnored(h.Name.Text()) {
			continue
		}
		dir := h.Dir.Text()
		group, ok := byDir[dir]
		if !ok {
			group = &HeaderGroup{Dir: dir, IsSystem: h.Location == header.LocationSystem}
			byDir[dir] = group
			order = append(order, dir)
		}
		group.Headers = append(group.Headers, HeaderFile{
			Name:       h.Name.Text(),
			IsRelative: h.Location == header.LocationRelative,
			Content:    ContentHandle{entry: h.Content},
		})
	}

	groups := make([]HeaderGroup, 0, len(order))
	for _, dir := range order {
		groups = append(groups, *byDir[dir])
	}
	return groups
}
