// Package registry holds trade records keyed by both the queue-assigned id
// and the caller's idempotency key. It is the only shared mutable state in
// the pipeline; every status change goes through Transition so readers
// observe the state machine atomically.
package registry

import (
	"sync"
	"time"

	"execution-core/internal/trade"
)

// Registry is a concurrent-safe record store. It never evicts: one record
// exists per distinct dedup key for the registry's lifetime.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*trade.Record
	byKey map[string]string // dedup key -> record id
}

func New() *Registry {
	return &Registry{
		byID:  make(map[string]*trade.Record),
		byKey: make(map[string]string),
	}
}

// Admit registers rec under its dedup key. If a record already exists for
// that key the existing record's snapshot is returned with admitted=false
// and rec is discarded, so concurrent duplicate submissions collapse into
// one record.
func (r *Registry) Admit(rec *trade.Record) (trade.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[rec.DedupKey]; ok {
		return *r.byID[id], false
	}

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.byID[rec.ID] = rec
	r.byKey[rec.DedupKey] = rec.ID
	return *rec, true
}

// Get returns a snapshot of the record with the given id.
func (r *Registry) Get(id string) (trade.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return trade.Record{}, false
	}
	return *rec, true
}

// Lookup returns a snapshot of the record registered under the dedup key.
func (r *Registry) Lookup(key string) (trade.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return trade.Record{}, false
	}
	return *r.byID[id], true
}

// Transition atomically moves the record from one of the given statuses to
// the target status, applying mutate (may be nil) under the lock. It refuses
// transitions out of terminal states and from statuses not in from, so the
// cancel/pickup race resolves to whichever caller gets the lock first.
// Returns the post-transition snapshot and whether the transition applied.
func (r *Registry) Transition(id string, from []trade.Status, to trade.Status, mutate func(*trade.Record)) (trade.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return trade.Record{}, false
	}
	if rec.Status.Terminal() {
		return *rec, false
	}

	allowed := false
	for _, s := range from {
		if rec.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return *rec, false
	}

	rec.Status = to
	if mutate != nil {
		mutate(rec)
	}
	rec.UpdatedAt = time.Now()
	return *rec, true
}

// Resolve is Transition with the target status chosen under the lock, for
// transitions whose outcome depends on the record's current fields (retry
// accounting). decide mutates the record and returns the next status.
func (r *Registry) Resolve(id string, from []trade.Status, decide func(*trade.Record) trade.Status) (trade.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return trade.Record{}, false
	}
	if rec.Status.Terminal() {
		return *rec, false
	}

	allowed := false
	for _, s := range from {
		if rec.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return *rec, false
	}

	rec.Status = decide(rec)
	rec.UpdatedAt = time.Now()
	return *rec, true
}

// StuckExecuting returns snapshots of records that have sat in EXECUTING
// longer than the threshold, for the liveness sweep.
func (r *Registry) StuckExecuting(olderThan time.Duration) []trade.Record {
	cutoff := time.Now().Add(-olderThan)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stuck []trade.Record
	for _, rec := range r.byID {
		if rec.Status == trade.StatusExecuting && rec.UpdatedAt.Before(cutoff) {
			stuck = append(stuck, *rec)
		}
	}
	return stuck
}

// Records returns snapshots of every record, for operational inspection.
func (r *Registry) Records() []trade.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]trade.Record, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, *rec)
	}
	return out
}

// Len returns the number of registered records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
