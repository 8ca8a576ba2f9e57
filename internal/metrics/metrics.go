// Package metrics wires the Content Cache and Result Cache's hit/miss/
// eviction counters into Prometheus, grounded on the instrumentation
// style of the rest of the pack (prometheus/client_golang counters
// registered against an injected Registerer, never the global default
// registry, so a process embedding this library controls its own
// /metrics surface).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ResultCache holds the Result Cache's counters, spec §6's
// cache.stats() made observable over time instead of snapshotted once.
type ResultCache struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Inserts   prometheus.Counter
	Evictions prometheus.Counter
}

// NewResultCache creates a ResultCache's counters and registers them
// against reg, unless reg is nil.
func NewResultCache(reg prometheus.Registerer) *ResultCache {
	rc := &ResultCache{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildpal", Subsystem: "result_cache", Name: "hits_total",
			Help: "Result Cache lookups that reached a populated leaf.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildpal", Subsystem: "result_cache", Name: "misses_total",
			Help: "Result Cache lookups that found no tree, no branch, or no leaf entry.",
		}),
		Inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildpal", Subsystem: "result_cache", Name: "inserts_total",
			Help: "Cache Entries newly installed at a tree leaf.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildpal", Subsystem: "result_cache", Name: "evictions_total",
			Help: "Cache Entries removed by maintenance or content invalidation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(rc.Hits, rc.Misses, rc.Inserts, rc.Evictions)
	}
	return rc
}

// ContentCache holds the Content Cache's counters.
type ContentCache struct {
	Hits   prometheus.Counter
	Misses prometheus.Counter
}

// NewContentCache creates a ContentCache's counters and registers them
// against reg, unless reg is nil.
func NewContentCache(reg prometheus.Registerer) *ContentCache {
	cc := &ContentCache{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildpal", Subsystem: "content_cache", Name: "hits_total",
			Help: "get_or_create calls served from an entry whose mtime still matched.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildpal", Subsystem: "content_cache", Name: "misses_total",
			Help: "get_or_create calls that read the file from disk.",
		}),
	}
	if reg != nil {
		reg.MustRegister(cc.Hits, cc.Misses)
	}
	return cc
}
