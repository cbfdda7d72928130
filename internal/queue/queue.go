// Package queue serializes trade requests from multiple producers into a
// worker pool that risk-checks, dispatches, and retries them, with duplicate
// submissions collapsed by idempotency key.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/internal/registry"
	"execution-core/internal/trade"
)

var (
	// ErrNotFound is returned by Status and Cancel for an unknown trade id.
	ErrNotFound = errors.New("trade not found")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("queue closed")

	// ErrQueueFull is returned by Submit when the pending channel is at
	// capacity; the admitted record is failed rather than blocking the
	// producer.
	ErrQueueFull = errors.New("queue capacity exceeded")
)

// SubmissionResult reports the outcome of Submit. Duplicate means an
// existing record was found for the request's idempotency key; ID and Status
// then describe that record.
type SubmissionResult struct {
	ID        string
	Status    trade.Status
	Duplicate bool
}

// Queue is the execution queue core. Construct with New, wire optional
// collaborators, then Start.
type Queue struct {
	cfg        Config
	gate       RiskGate
	dispatcher Dispatcher
	reg        *registry.Registry
	log        *zap.Logger

	bus     *events.Bus
	metrics *monitor.QueueMetrics
	limiter *rate.Limiter

	pending chan string

	mu       sync.Mutex
	started  bool
	closed   bool
	runCtx   context.Context
	runStop  context.CancelFunc
	wg       sync.WaitGroup // workers + sweeper
	retryWG  sync.WaitGroup // scheduled requeue timers
}

// New builds a queue around the injected risk gate and dispatcher. A nil
// logger is replaced with a no-op one.
func New(gate RiskGate, dispatcher Dispatcher, cfg Config, logger *zap.Logger) *Queue {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		cfg:        cfg,
		gate:       gate,
		dispatcher: dispatcher,
		reg:        registry.New(),
		log:        logger,
		metrics:    monitor.NewQueueMetrics(),
		pending:    make(chan string, cfg.QueueSize),
	}
	if cfg.DispatchRate > 0 {
		q.limiter = rate.NewLimiter(cfg.DispatchRate, cfg.DispatchBurst)
	}
	return q
}

// SetBus attaches an event bus for state-transition notifications.
func (q *Queue) SetBus(bus *events.Bus) {
	q.bus = bus
}

// Start launches the worker pool and liveness sweeper. Workers stop when ctx
// is canceled or Close is called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.runCtx, q.runStop = context.WithCancel(ctx)

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(q.runCtx)
	}
	if q.cfg.SweepInterval > 0 {
		q.wg.Add(1)
		go q.sweeper(q.runCtx)
	}
	q.log.Info("execution queue started",
		zap.Int("workers", q.cfg.Workers),
		zap.Int("queue_size", q.cfg.QueueSize),
		zap.Int("max_retries", q.cfg.MaxRetries))
}

// Submit admits a request: duplicate lookup first, then validation, then a
// PENDING record registered and enqueued. It returns as soon as the record
// is queued (or the duplicate is found); risk and dispatch outcomes are
// observed through Status.
func (q *Queue) Submit(req trade.Request) (SubmissionResult, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return SubmissionResult{}, ErrClosed
	}

	key := req.DedupKey()
	if rec, ok := q.reg.Lookup(key); ok {
		q.metrics.IncDuplicates()
		q.publish(events.TopicDuplicate, rec)
		return SubmissionResult{ID: rec.ID, Status: rec.Status, Duplicate: true}, nil
	}

	if err := req.Validate(); err != nil {
		q.metrics.IncInvalid()
		return SubmissionResult{}, err
	}
	req, dropped := req.Normalize()
	if dropped {
		q.log.Warn("market order carried a price, dropping it",
			zap.String("symbol", req.Symbol), zap.String("dedup_key", key))
	}

	rec := &trade.Record{
		ID:       uuid.NewString(),
		DedupKey: key,
		Request:  req,
		Status:   trade.StatusPending,
	}
	snap, admitted := q.reg.Admit(rec)
	if !admitted {
		// Lost a concurrent race for the same key.
		q.metrics.IncDuplicates()
		q.publish(events.TopicDuplicate, snap)
		return SubmissionResult{ID: snap.ID, Status: snap.Status, Duplicate: true}, nil
	}

	q.metrics.IncSubmitted()
	q.publish(events.TopicSubmitted, snap)

	select {
	case q.pending <- snap.ID:
	default:
		failed, _ := q.reg.Transition(snap.ID, []trade.Status{trade.StatusPending}, trade.StatusFailed,
			func(r *trade.Record) { r.LastError = ErrQueueFull.Error() })
		q.metrics.IncFailed()
		q.publish(events.TopicFailed, failed)
		q.log.Error("pending queue full, failing submission",
			zap.String("trade_id", snap.ID), zap.String("symbol", req.Symbol))
		return SubmissionResult{ID: snap.ID, Status: failed.Status}, ErrQueueFull
	}

	return SubmissionResult{ID: snap.ID, Status: trade.StatusPending}, nil
}

// Status returns a read-only snapshot of the record's current state.
func (q *Queue) Status(id string) (trade.Record, error) {
	rec, ok := q.reg.Get(id)
	if !ok {
		return trade.Record{}, ErrNotFound
	}
	return rec, nil
}

// Cancel transitions a still-PENDING record to CANCELED. It returns false
// once a worker has picked the record up or it has reached a terminal state;
// in-flight execution cannot be recalled from the venue.
func (q *Queue) Cancel(id string) (bool, error) {
	if _, ok := q.reg.Get(id); !ok {
		return false, ErrNotFound
	}
	snap, ok := q.reg.Transition(id, []trade.Status{trade.StatusPending}, trade.StatusCanceled, nil)
	if !ok {
		return false, nil
	}
	q.metrics.IncCanceled()
	q.publish(events.TopicCanceled, snap)
	q.log.Info("trade canceled", zap.String("trade_id", id))
	return true, nil
}

// Records returns snapshots of every record the registry holds.
func (q *Queue) Records() []trade.Record {
	return q.reg.Records()
}

// Metrics returns a snapshot of queue counters and dispatch latency.
func (q *Queue) Metrics() monitor.Snapshot {
	return q.metrics.Snapshot()
}

// Depth returns the current pending-channel depth.
func (q *Queue) Depth() int {
	return len(q.pending)
}

// Close stops accepting submissions, waits for in-flight attempts to finish,
// and abandons scheduled retries. Records stay readable through Status.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	q.mu.Unlock()

	if started {
		q.runStop()
		q.wg.Wait()
	}
	q.log.Info("execution queue stopped")
}

func (q *Queue) publish(topic events.Topic, rec trade.Record) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(topic, events.FromRecord(rec))
}
