package queue

import (
	"time"

	"golang.org/x/time/rate"
)

// Config holds the queue's construction-time knobs.
type Config struct {
	// Workers is the fixed worker pool size.
	Workers int

	// QueueSize bounds the pending channel. Submit never blocks on a full
	// queue; the record is failed and ErrQueueFull returned.
	QueueSize int

	// MaxRetries is the number of re-dispatches after the initial attempt.
	MaxRetries int

	// BaseBackoff and BackoffCap bound the exponential retry delay.
	BaseBackoff time.Duration
	BackoffCap  time.Duration

	// SweepInterval and ExecutingTimeout drive the liveness sweep that
	// reclaims records stuck in EXECUTING (crashed worker safety net).
	// SweepInterval <= 0 disables the sweep.
	SweepInterval    time.Duration
	ExecutingTimeout time.Duration

	// RiskFailOpen treats risk gate errors as approvals instead of
	// rejections. Default is fail-closed.
	RiskFailOpen bool

	// DispatchRate caps dispatcher calls per second across all workers
	// (venue API budget). Zero means unlimited.
	DispatchRate  rate.Limit
	DispatchBurst int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.ExecutingTimeout <= 0 {
		c.ExecutingTimeout = 2 * time.Minute
	}
	if c.DispatchBurst <= 0 {
		c.DispatchBurst = 1
	}
	return c
}
