package resultcache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/buildpal-oss/buildpal/internal/content"
	"github.com/buildpal-oss/buildpal/internal/fingerprint"
	"github.com/buildpal-oss/buildpal/internal/header"
	"github.com/buildpal-oss/buildpal/internal/intern"
	"github.com/buildpal-oss/buildpal/internal/macro"
	"github.com/buildpal-oss/buildpal/internal/metrics"
)

// maintPeriod is spec §4.4.4's MAINT_PERIOD: maintenance runs once
// every this many logical-clock ticks (hits + misses).
const maintPeriod = 2048

// historyWindow bounds how far back a hit keeps an entry alive; spec
// §4.4.4 fixes it at 8 * MAINT_PERIOD.
const historyWindow = 8 * maintPeriod

// Cache is the Result Cache: one decision tree per (file, search path)
// plus a flat index of every live entry for maintenance and content
// invalidation, spec §4.4.
type Cache struct {
	treesMu sync.RWMutex
	trees   map[treeKey]*decisionTree

	indexMu sync.RWMutex
	index   map[*CacheEntry]struct{}

	pendingMu   sync.Mutex
	pendingHits map[*CacheEntry]int64

	reg *intern.Registry

	clock   int64 // atomic logical clock: hits + misses
	hits    int64 // atomic
	misses  int64 // atomic
	counter int64 // atomic virtual-name counter

	metrics *metrics.ResultCache
}

// New creates an empty Result Cache whose Macro State lookups and
// undefined-sentinel comparisons are resolved against reg.
func New(reg *intern.Registry) *Cache {
	return &Cache{
		trees:       make(map[treeKey]*decisionTree),
		index:       make(map[*CacheEntry]struct{}),
		pendingHits: make(map[*CacheEntry]int64),
		reg:         reg,
	}
}

// SetMetrics attaches Prometheus counters; nil disables them. Not safe
// to call concurrently with cache use.
func (c *Cache) SetMetrics(m *metrics.ResultCache) {
	c.metrics = m
}

// SubscribeTo registers the Result Cache's invalidation hook with a
// Content Cache, spec §4.4.5: "On eviction notification from the
// Content Cache ... remove them."
func (c *Cache) SubscribeTo(contentCache *content.Cache) {
	contentCache.Subscribe(c.Invalidate)
}

// Lookup performs spec §4.4.1's three-step descent: find the tree for
// (fileID, searchPathID), walk it against state, and on a hit defer a
// last-hit-time update rather than writing it inline.
func (c *Cache) Lookup(fileID fingerprint.FileID, searchPathID fingerprint.SearchPathID, state *macro.State) *CacheEntry {
	defer c.maybeMaintain()

	key := treeKey{fileID: fileID, searchPathID: searchPathID}
	c.treesMu.RLock()
	tree, ok := c.trees[key]
	c.treesMu.RUnlock()

	now := atomic.AddInt64(&c.clock, 1)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		if c.metrics != nil {
			c.metrics.Misses.Inc()
		}
		return nil
	}

	entry := tree.find(state)
	if entry == nil {
		atomic.AddInt64(&c.misses, 1)
		if c.metrics != nil {
			c.metrics.Misses.Inc()
		}
		return nil
	}

	atomic.AddInt64(&c.hits, 1)
	if c.metrics != nil {
		c.metrics.Hits.Inc()
	}
	c.deferHit(entry, now)
	return entry
}

func (c *Cache) deferHit(entry *CacheEntry, now int64) {
	c.pendingMu.Lock()
	c.pendingHits[entry] = now
	c.pendingMu.Unlock()
}

// AddEntry installs a fresh Cache Entry for (fileID, searchPathID)
// built from one scan's observations, spec §4.4.2. If a concurrent
// scan already won the race for the same leaf, that entry is returned
// instead — add_entry never overwrites a published entry.
func (c *Cache) AddEntry(
	fileID fingerprint.FileID,
	searchPathID fingerprint.SearchPathID,
	used []macro.Pair,
	defined []macro.Pair,
	undefined []intern.MacroName,
	headers []header.Descriptor,
) *CacheEntry {
	key := treeKey{fileID: fileID, searchPathID: searchPathID}

	c.treesMu.Lock()
	tree, ok := c.trees[key]
	if !ok {
		tree = newDecisionTree()
		c.trees[key] = tree
	}
	c.treesMu.Unlock()

	entry, inserted := tree.getOrInsert(c.reg, used, func() *CacheEntry {
		e := &CacheEntry{
			FileID:       fileID,
			SearchPathID: searchPathID,
			Used:         used,
			Defined:      defined,
			Undefined:    undefined,
			Headers:      headers,
			VirtualName:  c.nextVirtualName(),
		}
		e.setLastHitTime(atomic.LoadInt64(&c.clock))
		return e
	})

	if inserted {
		c.indexMu.Lock()
		c.index[entry] = struct{}{}
		c.indexMu.Unlock()
		if c.metrics != nil {
			c.metrics.Inserts.Inc()
		}
	}
	return entry
}

func (c *Cache) nextVirtualName() string {
	n := atomic.AddInt64(&c.counter, 1)
	return fmt.Sprintf("__cached_file_%d", n)
}

// maybeMaintain runs maintenance once every maintPeriod logical-clock
// ticks, spec §4.4.4.
func (c *Cache) maybeMaintain() {
	now := atomic.LoadInt64(&c.clock)
	if now%maintPeriod != 0 {
		return
	}
	c.maintain(now)
}

func (c *Cache) maintain(now int64) {
	c.pendingMu.Lock()
	pending := c.pendingHits
	c.pendingHits = make(map[*CacheEntry]int64)
	c.pendingMu.Unlock()

	for entry, t := range pending {
		entry.setLastHitTime(t)
	}

	var cutoff int64
	if now > historyWindow {
		cutoff = now - historyWindow
	} else {
		cutoff = now / 5
	}

	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	for entry := range c.index {
		if entry.LastHitTime() < cutoff {
			delete(c.index, entry)
			entry.detach()
			if c.metrics != nil {
				c.metrics.Evictions.Inc()
			}
		}
	}
}

// Invalidate removes every Cache Entry keyed by contentEntry's file or
// reading from contentEntry's buffer, spec §4.4.5. Wired as the Result
// Cache's Content Cache eviction subscriber via SubscribeTo.
func (c *Cache) Invalidate(contentEntry *content.Entry) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	for entry := range c.index {
		if entry.FileID == contentEntry.Identity || entry.UsesBuffer(contentEntry) {
			delete(c.index, entry)
			entry.detach()
			if c.metrics != nil {
				c.metrics.Evictions.Inc()
			}
		}
	}
}

// Stats returns cumulative hit/miss counts, spec §6's cache.stats().
func (c *Cache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}
