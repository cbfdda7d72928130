// Package events carries trade state-transition notifications. Durable
// persistence of records is not the queue's job; subscribers (the journal,
// metrics exporters) hang off this bus instead.
package events

import (
	"time"

	"execution-core/internal/trade"
)

// Topic enumerates the transition notifications published by the queue.
type Topic string

const (
	TopicSubmitted    Topic = "trade.submitted"
	TopicDuplicate    Topic = "trade.duplicate"
	TopicRiskRejected Topic = "trade.risk_rejected"
	TopicExecuting    Topic = "trade.executing"
	TopicExecuted     Topic = "trade.executed"
	TopicRetryQueued  Topic = "trade.retry_queued"
	TopicFailed       Topic = "trade.failed"
	TopicCanceled     Topic = "trade.canceled"
	TopicSweptStuck   Topic = "trade.swept_stuck"
)

// TradeEvent is the payload for every topic above: a snapshot of the record
// at the moment of the transition.
type TradeEvent struct {
	Topic      Topic        `json:"topic"` // stamped by Bus.Publish
	TradeID    string       `json:"trade_id"`
	DedupKey   string       `json:"dedup_key"`
	Symbol     string       `json:"symbol"`
	Side       trade.Side   `json:"side"`
	Status     trade.Status `json:"status"`
	RetryCount int          `json:"retry_count"`
	Reason     string       `json:"reason,omitempty"`
	At         time.Time    `json:"at"`
}

// FromRecord builds the event payload for a record snapshot.
func FromRecord(rec trade.Record) TradeEvent {
	return TradeEvent{
		TradeID:    rec.ID,
		DedupKey:   rec.DedupKey,
		Symbol:     rec.Request.Symbol,
		Side:       rec.Request.Side,
		Status:     rec.Status,
		RetryCount: rec.RetryCount,
		Reason:     rec.LastError,
		At:         rec.UpdatedAt,
	}
}
