package metrics

import (
	"sync"
	"sync/atomic"
)

// Collector holds hot-path atomic counters for global and per-placeholder metrics.
// All fields are updated with atomic operations for lock-free performance.
type Collector struct {
	global      *counters
	placeholder sync.Map // string -> *counters

	reloads        atomic.Int64
	reloadFailures atomic.Int64
	registrySize   atomic.Int64
}

// counters holds atomic counters for one measurement scope (global or per-placeholder).
type counters struct {
	selections    atomic.Int64
	hits          atomic.Int64
	fetches       atomic.Int64
	fetchFailures atomic.Int64
	fetchedBlocks atomic.Int64

	// Latency histogram of personalization fetches.
	// Each regular bucket[i] = count of fetches with latency in
	// [i*binWidth, (i+1)*binWidth). The last bucket is overflow (> overflowMs).
	latencyBuckets []atomic.Int64
	latencyBinMs   int
	latencyOverMs  int
}

// CountersSnapshot is a point-in-time snapshot of counters for reading.
type CountersSnapshot struct {
	Selections     int64   `json:"selections"`
	Hits           int64   `json:"hits"`
	Fetches        int64   `json:"fetches"`
	FetchFailures  int64   `json:"fetch_failures"`
	FetchedBlocks  int64   `json:"fetched_blocks"`
	LatencyBuckets []int64 `json:"latency_buckets,omitempty"`
	LatencyBinMs   int     `json:"latency_bin_ms,omitempty"`
	LatencyOverMs  int     `json:"latency_overflow_ms,omitempty"`
}

// ReloadSnapshot is a point-in-time view of registry reload counters.
type ReloadSnapshot struct {
	Reloads        int64 `json:"reloads"`
	ReloadFailures int64 `json:"reload_failures"`
	RegistrySize   int64 `json:"registry_size"`
}

// NewCollector creates a new Collector with the given latency histogram parameters.
func NewCollector(latencyBinMs, latencyOverflowMs int) *Collector {
	if latencyBinMs <= 0 {
		latencyBinMs = 50
	}
	if latencyOverflowMs <= 0 {
		latencyOverflowMs = 5000
	}
	return &Collector{
		global: newCounters(latencyBinMs, latencyOverflowMs),
	}
}

func newCounters(binMs, overMs int) *counters {
	regularBuckets := (overMs + binMs - 1) / binMs // ceil(over/bin)
	if regularBuckets <= 0 {
		regularBuckets = 1
	}
	bucketCount := regularBuckets + 1 // +1 overflow bucket
	return &counters{
		latencyBuckets: make([]atomic.Int64, bucketCount),
		latencyBinMs:   binMs,
		latencyOverMs:  overMs,
	}
}

func (c *Collector) getOrCreatePlaceholder(placeholderID string) *counters {
	if placeholderID == "" {
		return nil
	}
	if v, ok := c.placeholder.Load(placeholderID); ok {
		return v.(*counters)
	}
	// Per-placeholder scopes carry no histogram.
	nc := &counters{}
	actual, _ := c.placeholder.LoadOrStore(placeholderID, nc)
	return actual.(*counters)
}

// RecordSelection records one placeholder selection and whether it produced a block.
func (c *Collector) RecordSelection(placeholderID string, hit bool) {
	c.global.selections.Add(1)
	if hit {
		c.global.hits.Add(1)
	}
	if pc := c.getOrCreatePlaceholder(placeholderID); pc != nil {
		pc.selections.Add(1)
		if hit {
			pc.hits.Add(1)
		}
	}
}

// RecordFetch records a completed personalization fetch covering blocks ids.
func (c *Collector) RecordFetch(outcome FetchOutcome, blocks int, latencyMs int64) {
	c.global.fetches.Add(1)
	c.global.fetchedBlocks.Add(int64(blocks))
	if outcome == FetchFailed {
		c.global.fetchFailures.Add(1)
	}
	if latencyMs >= 0 {
		c.recordLatency(c.global, latencyMs)
	}
}

// RecordReload records a registry reload.
func (c *Collector) RecordReload(ev ReloadEvent) {
	c.reloads.Add(1)
	if ev.Failed {
		c.reloadFailures.Add(1)
		return
	}
	c.registrySize.Store(int64(ev.Blocks))
}

func (c *Collector) recordLatency(ct *counters, ms int64) {
	overflowIdx := len(ct.latencyBuckets) - 1
	if overflowIdx < 0 {
		return
	}

	// Overflow bucket counts samples > overflow_ms.
	if ms > int64(ct.latencyOverMs) {
		ct.latencyBuckets[overflowIdx].Add(1)
		return
	}

	// Regular buckets are [lower, upper) with bin width.
	idx := 0
	if ms >= 0 {
		idx = int(ms / int64(ct.latencyBinMs))
	}
	if idx >= overflowIdx {
		idx = overflowIdx - 1
	}
	if idx < 0 {
		idx = 0
	}

	ct.latencyBuckets[idx].Add(1)
}

// Snapshot returns a point-in-time snapshot of the global counters.
func (c *Collector) Snapshot() CountersSnapshot {
	return snapshot(c.global)
}

// ReloadSnapshot returns the reload counters.
func (c *Collector) ReloadSnapshot() ReloadSnapshot {
	return ReloadSnapshot{
		Reloads:        c.reloads.Load(),
		ReloadFailures: c.reloadFailures.Load(),
		RegistrySize:   c.registrySize.Load(),
	}
}

// PlaceholderSnapshot returns a snapshot for a specific placeholder.
func (c *Collector) PlaceholderSnapshot(placeholderID string) (CountersSnapshot, bool) {
	v, ok := c.placeholder.Load(placeholderID)
	if !ok {
		return CountersSnapshot{}, false
	}
	return snapshot(v.(*counters)), true
}

// PlaceholderSnapshots returns snapshots for all known placeholders.
func (c *Collector) PlaceholderSnapshots() map[string]CountersSnapshot {
	result := make(map[string]CountersSnapshot)
	c.placeholder.Range(func(key, value any) bool {
		result[key.(string)] = snapshot(value.(*counters))
		return true
	})
	return result
}

func snapshot(ct *counters) CountersSnapshot {
	s := CountersSnapshot{
		Selections:    ct.selections.Load(),
		Hits:          ct.hits.Load(),
		Fetches:       ct.fetches.Load(),
		FetchFailures: ct.fetchFailures.Load(),
		FetchedBlocks: ct.fetchedBlocks.Load(),
		LatencyBinMs:  ct.latencyBinMs,
		LatencyOverMs: ct.latencyOverMs,
	}
	if len(ct.latencyBuckets) > 0 {
		s.LatencyBuckets = make([]int64, len(ct.latencyBuckets))
		for i := range ct.latencyBuckets {
			s.LatencyBuckets[i] = ct.latencyBuckets[i].Load()
		}
	}
	return s
}
