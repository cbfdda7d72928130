package monitor

import (
	"testing"
	"time"
)

func TestQueueMetricsSnapshot(t *testing.T) {
	m := NewQueueMetrics()
	m.IncSubmitted()
	m.IncSubmitted()
	m.IncExecuted()
	m.IncRetries()
	m.IncFailed()

	s := m.Snapshot()
	if s.Submitted != 2 || s.Executed != 1 || s.Retries != 1 || s.Failed != 1 {
		t.Fatalf("snapshot %+v", s)
	}
	if s.Duplicates != 0 || s.Canceled != 0 {
		t.Fatalf("untouched counters non-zero: %+v", s)
	}
}

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(100)
	for _, ms := range []float64{10, 20, 30, 40, 50} {
		h.Record(ms)
	}

	s := h.Stats()
	if s.Count != 5 {
		t.Fatalf("Count=%d, expected 5", s.Count)
	}
	if s.Min != 10 || s.Max != 50 {
		t.Fatalf("Min=%v Max=%v", s.Min, s.Max)
	}
	if s.Avg != 30 {
		t.Fatalf("Avg=%v, expected 30", s.Avg)
	}
	if s.P50 != 30 {
		t.Fatalf("P50=%v, expected 30", s.P50)
	}
}

func TestLatencyHistogramSlidingWindow(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, ms := range []float64{1, 2, 3, 100} {
		h.Record(ms)
	}

	s := h.Stats()
	if s.Count != 3 {
		t.Fatalf("Count=%d, expected window size 3", s.Count)
	}
	if s.Min != 2 {
		t.Fatalf("Min=%v, oldest sample should have been evicted", s.Min)
	}
	if s.Max != 100 {
		t.Fatalf("Max=%v", s.Max)
	}
}

func TestLatencyHistogramEmpty(t *testing.T) {
	h := NewLatencyHistogram(10)
	if s := h.Stats(); s.Count != 0 || s.Max != 0 {
		t.Fatalf("empty histogram stats %+v", s)
	}
}

func TestRecordDuration(t *testing.T) {
	h := NewLatencyHistogram(10)
	h.RecordDuration(250 * time.Millisecond)

	s := h.Stats()
	if s.Count != 1 || s.Max != 250 {
		t.Fatalf("stats %+v, expected one 250ms sample", s)
	}
}
