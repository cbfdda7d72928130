package trade

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

var decimalZero = decimal.Decimal{}

// DedupKey returns the caller-supplied idempotency key, or derives a stable
// one from the request's business fields when the caller did not set one.
// Two requests describing the same economic trade derive the same key.
func (r Request) DedupKey() string {
	if r.IdempotencyKey != "" {
		return r.IdempotencyKey
	}

	parts := []string{
		r.Symbol,
		string(r.Side),
		string(r.Type),
		r.Quantity.String(),
		r.Price.String(),
		r.PositionID,
		r.StrategyID,
		r.UserID,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
