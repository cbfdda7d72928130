package journal

import (
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// writeOp is one buffered statement.
type writeOp struct {
	query string
	args  []any
}

// Writer batches journal inserts so a burst of transitions costs one
// transaction instead of one fsync per event.
type Writer struct {
	db          *sql.DB
	log         *zap.Logger
	mu          sync.Mutex
	buffer      []writeOp
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	wg          sync.WaitGroup

	totalWrites  uint64
	totalBatches uint64
	totalErrors  uint64
}

// WriterMetrics reports batching statistics.
type WriterMetrics struct {
	TotalWrites  uint64 `json:"total_writes"`
	TotalBatches uint64 `json:"total_batches"`
	TotalErrors  uint64 `json:"total_errors"`
}

func NewWriter(db *sql.DB, maxSize int, interval time.Duration, logger *zap.Logger) *Writer {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Writer{
		db:          db,
		log:         logger,
		buffer:      make([]writeOp, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
	}

	w.wg.Add(1)
	go w.backgroundFlush()

	return w
}

// Write buffers one statement, flushing when the buffer is full.
func (w *Writer) Write(query string, args ...any) {
	w.mu.Lock()
	w.buffer = append(w.buffer, writeOp{query: query, args: args})
	shouldFlush := len(w.buffer) >= w.maxSize
	w.mu.Unlock()

	if shouldFlush {
		w.Flush()
	}
}

// Flush writes all buffered statements in one transaction.
func (w *Writer) Flush() {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.buffer
	w.buffer = make([]writeOp, 0, w.maxSize)
	w.mu.Unlock()

	tx, err := w.db.Begin()
	if err != nil {
		atomic.AddUint64(&w.totalErrors, 1)
		w.log.Error("journal batch begin failed", zap.Error(err))
		return
	}

	for _, op := range batch {
		if _, err := tx.Exec(op.query, op.args...); err != nil {
			atomic.AddUint64(&w.totalErrors, 1)
			w.log.Error("journal write failed", zap.Error(err))
		}
	}
	if err := tx.Commit(); err != nil {
		atomic.AddUint64(&w.totalErrors, 1)
		w.log.Error("journal batch commit failed", zap.Error(err))
		return
	}

	atomic.AddUint64(&w.totalWrites, uint64(len(batch)))
	atomic.AddUint64(&w.totalBatches, 1)
}

func (w *Writer) backgroundFlush() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush()
		case <-w.done:
			w.Flush()
			return
		}
	}
}

// Metrics returns batching statistics.
func (w *Writer) Metrics() WriterMetrics {
	return WriterMetrics{
		TotalWrites:  atomic.LoadUint64(&w.totalWrites),
		TotalBatches: atomic.LoadUint64(&w.totalBatches),
		TotalErrors:  atomic.LoadUint64(&w.totalErrors),
	}
}

// Close stops the background flusher after a final flush.
func (w *Writer) Close() {
	close(w.done)
	w.wg.Wait()
}
