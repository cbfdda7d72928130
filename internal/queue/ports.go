package queue

import (
	"context"

	"execution-core/internal/trade"
)

// Decision is the risk gate's verdict for one request.
type Decision struct {
	Allowed bool
	Reason  string
}

// RiskGate decides whether a trade may proceed to dispatch. Implementations
// may block (network calls); the queue only invokes them from workers. An
// error is handled per the fail-open/fail-closed policy.
type RiskGate interface {
	Check(ctx context.Context, req trade.Request) (Decision, error)
}

// RiskGateFunc adapts a plain function to the RiskGate interface.
type RiskGateFunc func(ctx context.Context, req trade.Request) (Decision, error)

func (f RiskGateFunc) Check(ctx context.Context, req trade.Request) (Decision, error) {
	return f(ctx, req)
}

// Dispatcher performs the trade against the external venue. The returned
// payload becomes the record's Result on success. A retried record invokes
// the dispatcher again; tolerating that (e.g. via a client-order-id) is the
// venue side's responsibility.
type Dispatcher interface {
	Execute(ctx context.Context, req trade.Request) (any, error)
}

// DispatcherFunc adapts a plain function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, req trade.Request) (any, error)

func (f DispatcherFunc) Execute(ctx context.Context, req trade.Request) (any, error) {
	return f(ctx, req)
}
