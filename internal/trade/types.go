package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is a known enum value.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType is the execution style of a trade.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// Valid reports whether the order type is a known enum value.
func (t OrderType) Valid() bool {
	return t == OrderMarket || t == OrderLimit
}

// Request describes one desired trade. It is treated as immutable once
// submitted; the queue never mutates it apart from dropping a spurious
// market-order price during normalization.
type Request struct {
	Symbol   string
	Side     Side
	Type     OrderType
	Quantity decimal.Decimal

	// Price is required for LIMIT orders and absent (zero) for MARKET orders.
	Price decimal.Decimal

	// Correlation metadata, opaque to the queue.
	PositionID string
	StrategyID string
	UserID     string

	// SignalMetadata carries the originating signal payload through
	// unchanged. The queue never reads it.
	SignalMetadata map[string]any

	// IdempotencyKey collapses duplicate submissions. When empty the queue
	// derives one from the request fields (see DedupKey).
	IdempotencyKey string
}

// Status is the lifecycle state of a trade record.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusRiskRejected Status = "RISK_REJECTED"
	StatusExecuting    Status = "EXECUTING"
	StatusExecuted     Status = "EXECUTED"
	StatusFailed       Status = "FAILED"
	StatusCanceled     Status = "CANCELED"
)

// Terminal reports whether no further transition out of the status is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusRiskRejected, StatusExecuted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Record tracks one admitted trade through to a terminal outcome. Mutation
// happens only inside the registry's transition path; everyone else works
// with value copies.
type Record struct {
	ID       string
	DedupKey string
	Request  Request

	Status     Status
	RetryCount int
	LastError  string

	// Result is the dispatcher's success payload, set only when Status is
	// EXECUTED.
	Result any

	CreatedAt time.Time
	UpdatedAt time.Time
}
