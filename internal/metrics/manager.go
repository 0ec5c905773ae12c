package metrics

import (
	"sync"
	"time"
)

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	LatencyBinMs      int
	LatencyOverflowMs int
	RealtimeCapacity  int
	SampleInterval    time.Duration
}

// Manager is the central metrics coordinator. It owns the Collector and the
// RealtimeRing; a background ticker drives realtime sampling.
type Manager struct {
	collector *Collector
	ring      *RealtimeRing
	interval  time.Duration

	// Previous cumulative counts for delta calculation.
	prev CountersSnapshot

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Manager{
		collector: NewCollector(cfg.LatencyBinMs, cfg.LatencyOverflowMs),
		ring:      NewRealtimeRing(cfg.RealtimeCapacity),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the realtime sampling ticker.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.sampleLoop()
}

// Stop signals the sampler to stop and waits.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// --- Event handlers (hot-path, called by the engine) ---

// OnSelection records one placeholder selection.
func (m *Manager) OnSelection(placeholderID string, hit bool) {
	m.collector.RecordSelection(placeholderID, hit)
}

// OnPersonalizationFetch records a completed personalization fetch.
func (m *Manager) OnPersonalizationFetch(blocks int, latency time.Duration, err error) {
	outcome := FetchOK
	if err != nil {
		outcome = FetchFailed
	}
	m.collector.RecordFetch(outcome, blocks, latency.Milliseconds())
}

// OnReload records a registry reload.
func (m *Manager) OnReload(blocks int, err error) {
	m.collector.RecordReload(ReloadEvent{Blocks: blocks, Failed: err != nil})
}

// --- Query methods (for API handlers) ---

// Collector returns the underlying collector for snapshot access.
func (m *Manager) Collector() *Collector { return m.collector }

// Ring returns the realtime ring buffer.
func (m *Manager) Ring() *RealtimeRing { return m.ring }

// SampleIntervalSeconds returns the configured realtime interval in seconds.
func (m *Manager) SampleIntervalSeconds() int { return int(m.interval.Seconds()) }

// --- Background loop ---

func (m *Manager) sampleLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case ts := <-ticker.C:
			m.takeSample(ts)
		case <-m.stopCh:
			return
		}
	}
}

// takeSample is only called from the sampling goroutine (or tests).
func (m *Manager) takeSample(ts time.Time) {
	snap := m.collector.Snapshot()
	m.ring.Push(RealtimeSample{
		Timestamp:     ts,
		Selections:    nonNegative(snap.Selections - m.prev.Selections),
		Hits:          nonNegative(snap.Hits - m.prev.Hits),
		Fetches:       nonNegative(snap.Fetches - m.prev.Fetches),
		FetchFailures: nonNegative(snap.FetchFailures - m.prev.FetchFailures),
	})
	m.prev = snap
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
