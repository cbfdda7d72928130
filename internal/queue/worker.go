package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"execution-core/internal/events"
	"execution-core/internal/trade"
)

var (
	fromPending   = []trade.Status{trade.StatusPending}
	fromExecuting = []trade.Status{trade.StatusExecuting}
)

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.pending:
			q.process(ctx, id)
		}
	}
}

// process runs one attempt for one record: risk check while PENDING, claim
// to EXECUTING, dispatch, then settle per the retry policy. A record is
// owned by exactly one worker between dequeue and settle.
func (q *Queue) process(ctx context.Context, id string) {
	rec, ok := q.reg.Get(id)
	if !ok {
		q.log.Warn("dequeued id missing from registry", zap.String("trade_id", id))
		return
	}
	if rec.Status != trade.StatusPending {
		// canceled (or already reclaimed) between enqueue and pickup
		return
	}

	dec, err := q.checkRisk(ctx, rec.Request)
	if err != nil {
		if q.cfg.RiskFailOpen {
			q.log.Warn("risk gate error, failing open",
				zap.String("trade_id", id), zap.Error(err))
			dec = Decision{Allowed: true}
		} else {
			dec = Decision{Allowed: false, Reason: fmt.Sprintf("risk check error: %v", err)}
		}
	}
	if !dec.Allowed {
		snap, ok := q.reg.Transition(id, fromPending, trade.StatusRiskRejected,
			func(r *trade.Record) { r.LastError = dec.Reason })
		if ok {
			q.metrics.IncRiskRejected()
			q.publish(events.TopicRiskRejected, snap)
			q.log.Info("trade rejected by risk gate",
				zap.String("trade_id", id),
				zap.String("symbol", rec.Request.Symbol),
				zap.String("reason", dec.Reason))
		}
		return
	}

	snap, ok := q.reg.Transition(id, fromPending, trade.StatusExecuting, nil)
	if !ok {
		// cancel won the race during the risk check
		return
	}
	q.publish(events.TopicExecuting, snap)

	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			// shutdown while waiting for budget: release the claim without
			// charging a retry
			q.reg.Transition(id, fromExecuting, trade.StatusPending, nil)
			return
		}
	}

	start := time.Now()
	result, err := q.dispatch(ctx, snap.Request)
	q.metrics.DispatchLatency.RecordDuration(time.Since(start))

	if err != nil {
		q.failAttempt(id, err.Error(), false)
		return
	}

	done, ok := q.reg.Transition(id, fromExecuting, trade.StatusExecuted,
		func(r *trade.Record) {
			r.Result = result
			r.LastError = ""
		})
	if !ok {
		// The liveness sweep reclaimed the record mid-dispatch; the requeued
		// attempt will settle it.
		q.log.Warn("dispatch finished after liveness reclaim", zap.String("trade_id", id))
		return
	}
	q.metrics.IncExecuted()
	q.publish(events.TopicExecuted, done)
	q.log.Info("trade executed",
		zap.String("trade_id", id),
		zap.String("symbol", done.Request.Symbol),
		zap.String("side", string(done.Request.Side)))
}

// failAttempt charges one dispatch failure: back to PENDING with a scheduled
// requeue while retries remain, terminal FAILED otherwise.
func (q *Queue) failAttempt(id, errMsg string, fromSweep bool) {
	requeue := false
	snap, ok := q.reg.Resolve(id, fromExecuting, func(r *trade.Record) trade.Status {
		r.LastError = errMsg
		if r.RetryCount < q.cfg.MaxRetries {
			r.RetryCount++
			requeue = true
			return trade.StatusPending
		}
		return trade.StatusFailed
	})
	if !ok {
		return
	}

	if requeue {
		delay := q.backoff(snap.RetryCount)
		q.metrics.IncRetries()
		q.publish(events.TopicRetryQueued, snap)
		q.log.Warn("dispatch failed, retry scheduled",
			zap.String("trade_id", id),
			zap.Int("retry", snap.RetryCount),
			zap.Duration("backoff", delay),
			zap.Bool("from_sweep", fromSweep),
			zap.String("error", errMsg))
		q.scheduleRequeue(id, delay)
		return
	}

	q.metrics.IncFailed()
	q.publish(events.TopicFailed, snap)
	q.log.Error("dispatch retries exhausted",
		zap.String("trade_id", id),
		zap.Int("retries", snap.RetryCount),
		zap.String("error", errMsg))
}

// backoff returns base << retry capped at the configured ceiling.
func (q *Queue) backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if retry > 20 {
		retry = 20
	}
	d := q.cfg.BaseBackoff << uint(retry)
	if d > q.cfg.BackoffCap {
		d = q.cfg.BackoffCap
	}
	return d
}

// scheduleRequeue re-inserts the record id after the backoff delay without
// holding a worker. Retried records re-enter the back of the queue.
func (q *Queue) scheduleRequeue(id string, delay time.Duration) {
	q.retryWG.Add(1)
	time.AfterFunc(delay, func() {
		defer q.retryWG.Done()

		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}

		select {
		case q.pending <- id:
		default:
			// channel full: push the backoff out rather than block the timer
			q.scheduleRequeue(id, q.cfg.BaseBackoff)
		}
	})
}

// sweeper periodically reclaims records stuck in EXECUTING beyond the
// liveness threshold and charges them as dispatch failures.
func (q *Queue) sweeper(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rec := range q.reg.StuckExecuting(q.cfg.ExecutingTimeout) {
				q.log.Error("record stuck in EXECUTING, reclaiming",
					zap.String("trade_id", rec.ID),
					zap.Duration("age", time.Since(rec.UpdatedAt)))
				q.metrics.IncSweptStuck()
				q.publish(events.TopicSweptStuck, rec)
				q.failAttempt(rec.ID, "execution liveness timeout", true)
			}
		}
	}
}

// checkRisk invokes the gate with a panic guard so a misbehaving collaborator
// cannot take down the worker pool.
func (q *Queue) checkRisk(ctx context.Context, req trade.Request) (dec Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("risk gate panic: %v", r)
		}
	}()
	return q.gate.Check(ctx, req)
}

// dispatch invokes the dispatcher with the same panic guard; a panic is an
// ordinary dispatch failure.
func (q *Queue) dispatch(ctx context.Context, req trade.Request) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	return q.dispatcher.Execute(ctx, req)
}
