// Package content implements spec §4.2's Content Cache: one authoritative,
// shared, immutable copy of each source file's bytes, keyed by stable
// filesystem identity, with freshness tracking against mtime.
//
// Grounded on
// original_source/Extensions/HeaderScanner/contentCache_.cpp's
// getOrCreate (double-checked locking against concurrent misses for the
// same file) and VKCOM-nocc/internal/server/file-cache.go's Go idiom of
// an RWMutex-guarded identity map with atomic counters for stats. The
// original's hand-rolled upgradeable-lock double-check is replaced here
// by golang.org/x/sync/singleflight, the idiomatic Go primitive for
// exactly this "many callers miss on the same key, only one should
// actually do the work" shape.
package content

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/buildpal-oss/buildpal/internal/fingerprint"
	"github.com/buildpal-oss/buildpal/internal/metrics"
)

// EvictionCallback is notified when a Content Entry is replaced because
// its backing file changed (spec §4.2.5's eviction notification). The
// Result Cache subscribes to invalidate entries whose headers reference
// the replaced buffer.
type EvictionCallback func(old *Entry)

// Cache is the process-wide Content Cache. It is safe for concurrent use
// from many scans at once.
type Cache struct {
	mu      sync.RWMutex
	entries map[fingerprint.FileID]*Entry

	group singleflight.Group

	subsMu    sync.Mutex
	callbacks []EvictionCallback

	hits   int64 // atomic, diagnostic only
	misses int64 // atomic, diagnostic only

	metrics *metrics.ContentCache
}

// New creates an empty Content Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[fingerprint.FileID]*Entry, 1024),
	}
}

// SetMetrics attaches Prometheus counters; nil disables them. Not safe
// to call concurrently with cache use.
func (c *Cache) SetMetrics(m *metrics.ContentCache) {
	c.metrics = m
}

// Subscribe registers cb to be called whenever a previously cached file
// is evicted due to an mtime change, spec §4.2's subscribe operation.
func (c *Cache) Subscribe(cb EvictionCallback) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

func (c *Cache) notifyEvicted(old *Entry) {
	c.subsMu.Lock()
	cbs := append([]EvictionCallback(nil), c.callbacks...)
	c.subsMu.Unlock()
	for _, cb := range cbs {
		cb(old)
	}
}

// GetOrCreate looks up path's Content Entry by stable filesystem
// identity. On a hit with a matching mtime it returns the existing
// entry; on a stale hit it evicts and re-reads; on a miss it reads and
// installs. Concurrent calls for the same missing or stale path
// converge on one read, per spec §4.2's double-checked-insert
// requirement.
func (c *Cache) GetOrCreate(path string) (*Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	id, err := fingerprint.FileIDOf(info)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	c.mu.RLock()
	existing, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && existing.ModTime.Equal(info.ModTime()) {
		atomic.AddInt64(&c.hits, 1)
		if c.metrics != nil {
			c.metrics.Hits.Inc()
		}
		return existing, nil
	}
	atomic.AddInt64(&c.misses, 1)
	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}

	// Key singleflight on the file's stable identity, not its path
	// string: two path aliases of the same file (a hard link, or a
	// relative vs. resolved-absolute spelling) must converge on one
	// read rather than each racing their own os.Stat+os.ReadFile pass.
	groupKey := fmt.Sprintf("%d:%d", id.Device, id.Inode)
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		// A caller that missed above may only get here after a peer's
		// read has already installed a fresh entry; reuse it.
		c.mu.RLock()
		current, ok := c.entries[id]
		c.mu.RUnlock()
		if ok && current.ModTime.Equal(info.ModTime()) {
			return current, nil
		}
		return c.readAndInstall(path, id, info.ModTime())
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *Cache) readAndInstall(path string, id fingerprint.FileID, mtime time.Time) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	entry := newEntry(id, data, mtime)

	c.mu.Lock()
	old, hadOld := c.entries[id]
	c.entries[id] = entry
	c.mu.Unlock()

	if hadOld && !old.ModTime.Equal(mtime) {
		c.notifyEvicted(old)
	}
	return entry, nil
}

// Clear drops every Content Entry, cascading invalidation into every
// subscriber (the Result Cache), matching spec §6's clear_content_cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[fingerprint.FileID]*Entry, 1024)
	c.mu.Unlock()

	for _, entry := range old {
		c.notifyEvicted(entry)
	}
}

// Stats returns simple diagnostic counters on read amplification. Spec
// §6's cache.stats() names only the Result Cache's hits/misses; the root
// package folds this cache's counters in alongside it as an additional
// field on the public CacheStats rather than a second top-level call.
func (c *Cache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// ReadError wraps a filesystem failure while reading a file into the
// Content Cache, spec §7's ReadError kind.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return "content: reading " + e.Path + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
