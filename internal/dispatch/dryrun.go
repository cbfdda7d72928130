// Package dispatch provides a venue-free Dispatcher that simulates fills.
// It backs the demo wiring and gives tests a controllable failure source;
// production composition roots swap in a real exchange client behind the
// same interface.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"execution-core/internal/trade"
)

// DryRunConfig tunes the simulation.
type DryRunConfig struct {
	InitialBalance decimal.Decimal
	FeeRate        decimal.Decimal // decimal fraction, e.g. 0.0004 = 4 bps
	SlippageBps    float64         // max random slippage applied on fills
	LatencyMin     time.Duration   // simulated venue latency bounds
	LatencyMax     time.Duration
	FailureRate    float64 // probability in [0,1) of a simulated venue error
}

// Fill is the success payload stored on an executed record.
type Fill struct {
	VenueOrderID string          `json:"venue_order_id"`
	Symbol       string          `json:"symbol"`
	Side         trade.Side      `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Fee          decimal.Decimal `json:"fee"`
	FilledAt     time.Time       `json:"filled_at"`
}

// DryRun simulates order execution with latency, slippage, fees, and a
// balance/position book. Safe for concurrent use by the worker pool.
type DryRun struct {
	cfg DryRunConfig
	log *zap.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	balance   decimal.Decimal
	positions map[string]decimal.Decimal // symbol -> signed quantity
	refPrices map[string]decimal.Decimal // used to price MARKET orders
}

func NewDryRun(cfg DryRunConfig, logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LatencyMax > 0 && cfg.LatencyMin > cfg.LatencyMax {
		cfg.LatencyMin, cfg.LatencyMax = cfg.LatencyMax, cfg.LatencyMin
	}
	return &DryRun{
		cfg:       cfg,
		log:       logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		balance:   cfg.InitialBalance,
		positions: make(map[string]decimal.Decimal),
		refPrices: make(map[string]decimal.Decimal),
	}
}

// SetReferencePrice seeds the mark price used to fill MARKET orders.
func (d *DryRun) SetReferencePrice(symbol string, price decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refPrices[symbol] = price
}

// Execute simulates one fill. Errors (unknown symbol price, insufficient
// balance, injected venue errors) are ordinary dispatch failures the queue
// retries.
func (d *DryRun) Execute(ctx context.Context, req trade.Request) (any, error) {
	if err := d.sleepLatency(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.FailureRate > 0 && d.rng.Float64() < d.cfg.FailureRate {
		return nil, fmt.Errorf("simulated venue error for %s", req.Symbol)
	}

	price := req.Price
	if req.Type == trade.OrderMarket {
		ref, ok := d.refPrices[req.Symbol]
		if !ok {
			return nil, fmt.Errorf("no reference price for %s", req.Symbol)
		}
		price = ref
	}
	price = d.applySlippage(price, req.Side)

	notional := req.Quantity.Mul(price)
	fee := notional.Mul(d.cfg.FeeRate)

	qty := d.positions[req.Symbol]
	switch req.Side {
	case trade.SideBuy:
		cost := notional.Add(fee)
		if cost.GreaterThan(d.balance) {
			return nil, fmt.Errorf("insufficient balance: need %s, have %s", cost, d.balance)
		}
		d.balance = d.balance.Sub(cost)
		d.positions[req.Symbol] = qty.Add(req.Quantity)
	case trade.SideSell:
		d.balance = d.balance.Add(notional.Sub(fee))
		d.positions[req.Symbol] = qty.Sub(req.Quantity)
	}

	fill := Fill{
		VenueOrderID: uuid.NewString(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Quantity:     req.Quantity,
		Price:        price,
		Fee:          fee,
		FilledAt:     time.Now(),
	}
	d.log.Debug("dry-run fill",
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.String("qty", fill.Quantity.String()),
		zap.String("price", fill.Price.String()))
	return fill, nil
}

// Balance returns the simulated quote balance.
func (d *DryRun) Balance() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.balance
}

// Positions returns a copy of the simulated position book.
func (d *DryRun) Positions() map[string]decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(d.positions))
	for sym, qty := range d.positions {
		out[sym] = qty
	}
	return out
}

func (d *DryRun) sleepLatency(ctx context.Context) error {
	if d.cfg.LatencyMax <= 0 {
		return nil
	}
	span := d.cfg.LatencyMax - d.cfg.LatencyMin
	delay := d.cfg.LatencyMin
	if span > 0 {
		d.mu.Lock()
		delay += time.Duration(d.rng.Int63n(int64(span) + 1))
		d.mu.Unlock()
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DryRun) applySlippage(price decimal.Decimal, side trade.Side) decimal.Decimal {
	if d.cfg.SlippageBps <= 0 {
		return price
	}
	noise := d.rng.Float64() * d.cfg.SlippageBps / 10000.0
	factor := decimal.NewFromFloat(1 + noise)
	if side == trade.SideSell {
		factor = decimal.NewFromFloat(1 - noise)
	}
	return price.Mul(factor)
}
