// Package monitor tracks queue throughput counters and dispatch latency.
package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// QueueMetrics aggregates counters for every path through the pipeline.
type QueueMetrics struct {
	submitted    uint64
	duplicates   uint64
	invalid      uint64
	riskRejected uint64
	executed     uint64
	retries      uint64
	failed       uint64
	canceled     uint64
	sweptStuck   uint64

	// DispatchLatency samples wall-clock time of dispatcher calls.
	DispatchLatency *LatencyHistogram
}

func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{
		DispatchLatency: NewLatencyHistogram(1000),
	}
}

func (m *QueueMetrics) IncSubmitted()    { atomic.AddUint64(&m.submitted, 1) }
func (m *QueueMetrics) IncDuplicates()   { atomic.AddUint64(&m.duplicates, 1) }
func (m *QueueMetrics) IncInvalid()      { atomic.AddUint64(&m.invalid, 1) }
func (m *QueueMetrics) IncRiskRejected() { atomic.AddUint64(&m.riskRejected, 1) }
func (m *QueueMetrics) IncExecuted()     { atomic.AddUint64(&m.executed, 1) }
func (m *QueueMetrics) IncRetries()      { atomic.AddUint64(&m.retries, 1) }
func (m *QueueMetrics) IncFailed()       { atomic.AddUint64(&m.failed, 1) }
func (m *QueueMetrics) IncCanceled()     { atomic.AddUint64(&m.canceled, 1) }
func (m *QueueMetrics) IncSweptStuck()   { atomic.AddUint64(&m.sweptStuck, 1) }

// Snapshot is a point-in-time copy of all counters plus latency stats.
type Snapshot struct {
	Submitted       uint64       `json:"submitted"`
	Duplicates      uint64       `json:"duplicates"`
	Invalid         uint64       `json:"invalid"`
	RiskRejected    uint64       `json:"risk_rejected"`
	Executed        uint64       `json:"executed"`
	Retries         uint64       `json:"retries"`
	Failed          uint64       `json:"failed"`
	Canceled        uint64       `json:"canceled"`
	SweptStuck      uint64       `json:"swept_stuck"`
	DispatchLatency LatencyStats `json:"dispatch_latency"`
}

func (m *QueueMetrics) Snapshot() Snapshot {
	return Snapshot{
		Submitted:       atomic.LoadUint64(&m.submitted),
		Duplicates:      atomic.LoadUint64(&m.duplicates),
		Invalid:         atomic.LoadUint64(&m.invalid),
		RiskRejected:    atomic.LoadUint64(&m.riskRejected),
		Executed:        atomic.LoadUint64(&m.executed),
		Retries:         atomic.LoadUint64(&m.retries),
		Failed:          atomic.LoadUint64(&m.failed),
		Canceled:        atomic.LoadUint64(&m.canceled),
		SweptStuck:      atomic.LoadUint64(&m.sweptStuck),
		DispatchLatency: m.DispatchLatency.Stats(),
	}
}

// LatencyHistogram keeps a sliding window of samples and computes stats
// lazily so hot paths only pay for the append.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts a duration to ms and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99 over the current window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	p := func(q float64) float64 {
		idx := int(float64(n) * q)
		if idx >= n {
			idx = n - 1
		}
		return sorted[idx]
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   p(0.50),
		P95:   p(0.95),
		P99:   p(0.99),
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}
