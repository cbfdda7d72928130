// Package journal persists trade state transitions to sqlite. It is the
// external subscriber the queue reports to: the queue itself stays
// in-memory, the journal provides the durable audit trail.
package journal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"execution-core/internal/events"
)

// Journal consumes every bus event and records an append-only event row plus
// an upserted per-trade snapshot.
type Journal struct {
	db     *sql.DB
	writer *Writer
	log    *zap.Logger

	unsub     func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New attaches a journal to the bus. Call Run to start consuming.
func New(db *sql.DB, bus *events.Bus, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Journal{
		db:     db,
		writer: NewWriter(db, 50, 250*time.Millisecond, logger),
		log:    logger,
	}
	ch, unsub := bus.SubscribeAll(1024)
	j.unsub = unsub

	j.wg.Add(1)
	go j.consume(ch)
	return j
}

// Run blocks until ctx is canceled, then detaches and flushes.
func (j *Journal) Run(ctx context.Context) {
	<-ctx.Done()
	j.Close()
}

func (j *Journal) consume(ch <-chan events.TradeEvent) {
	defer j.wg.Done()
	for ev := range ch {
		j.record(ev)
	}
}

func (j *Journal) record(ev events.TradeEvent) {
	j.writer.Write(`
		INSERT INTO trade_events (trade_id, dedup_key, topic, symbol, side, status, retry_count, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.TradeID, ev.DedupKey, string(ev.Topic), ev.Symbol, string(ev.Side),
		string(ev.Status), ev.RetryCount, ev.Reason, ev.At)

	j.writer.Write(`
		INSERT INTO trades (id, dedup_key, symbol, side, status, retry_count, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			retry_count = excluded.retry_count,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		ev.TradeID, ev.DedupKey, ev.Symbol, string(ev.Side),
		string(ev.Status), ev.RetryCount, ev.Reason, ev.At)
}

// Flush forces buffered rows out, for tests and shutdown paths.
func (j *Journal) Flush() {
	j.writer.Flush()
}

// Metrics returns the underlying writer's statistics.
func (j *Journal) Metrics() WriterMetrics {
	return j.writer.Metrics()
}

// Close detaches from the bus, drains buffered events, and flushes. The
// caller owns the *sql.DB and closes it separately.
func (j *Journal) Close() {
	j.closeOnce.Do(func() {
		j.unsub()
		j.wg.Wait()
		j.writer.Close()
	})
}
