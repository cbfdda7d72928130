package trade

import "fmt"

// ValidationError reports a structurally invalid request. It is returned
// synchronously at submission time; no record is created for it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid trade request: %s: %s", e.Field, e.Reason)
}

// Validate checks the request per the admission rules. A MARKET order with a
// price is not an error; Normalize drops the price and the queue logs a
// warning.
func (r Request) Validate() error {
	if r.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if !r.Side.Valid() {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", string(r.Side))}
	}
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown order type %q", string(r.Type))}
	}
	if !r.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if r.Type == OrderLimit && !r.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "required for LIMIT orders and must be positive"}
	}
	return nil
}

// Normalize returns the request with a spurious MARKET price cleared and
// reports whether it did so.
func (r Request) Normalize() (Request, bool) {
	if r.Type == OrderMarket && !r.Price.IsZero() {
		r.Price = decimalZero
		return r, true
	}
	return r, false
}
