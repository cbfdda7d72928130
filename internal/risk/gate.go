// Package risk provides a rule-based gate for the execution queue. The queue
// itself only depends on the gate interface; this implementation covers the
// common pre-trade limits for composition roots that do not call out to an
// external risk service.
package risk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"execution-core/internal/queue"
	"execution-core/internal/trade"
)

// Config defines the gate's limits. Zero-valued limits are disabled.
type Config struct {
	// MinOrderNotional / MaxOrderNotional bound quantity*price for orders
	// with a known price (LIMIT). MARKET orders carry no price and are only
	// subject to the quantity and symbol rules.
	MinOrderNotional decimal.Decimal
	MaxOrderNotional decimal.Decimal

	// MaxQuantity bounds the order quantity for any order type.
	MaxQuantity decimal.Decimal

	// AllowedSymbols, when non-empty, restricts trading to the listed
	// instruments.
	AllowedSymbols []string

	// MaxTradesPerDay caps approvals per UTC day. Zero disables the cap.
	MaxTradesPerDay int
}

// DefaultConfig returns limits suitable for the dry-run demo.
func DefaultConfig() Config {
	return Config{
		MinOrderNotional: decimal.NewFromInt(10),
		MaxOrderNotional: decimal.NewFromInt(10000),
		MaxQuantity:      decimal.NewFromInt(100),
		MaxTradesPerDay:  200,
	}
}

// Gate evaluates requests against Config. Safe for concurrent use.
type Gate struct {
	mu      sync.RWMutex
	cfg     Config
	allowed map[string]struct{}
	log     *zap.Logger

	dayKey    string
	dayTrades int

	checksTotal     uint64
	rejectionsTotal uint64
}

func NewGate(cfg Config, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{cfg: cfg, log: logger}
	if len(cfg.AllowedSymbols) > 0 {
		g.allowed = make(map[string]struct{}, len(cfg.AllowedSymbols))
		for _, s := range cfg.AllowedSymbols {
			g.allowed[s] = struct{}{}
		}
	}
	return g
}

// Check applies the configured rules in order and returns the first
// violation as the rejection reason.
func (g *Gate) Check(_ context.Context, req trade.Request) (queue.Decision, error) {
	atomic.AddUint64(&g.checksTotal, 1)

	if dec := g.evaluate(req); !dec.Allowed {
		atomic.AddUint64(&g.rejectionsTotal, 1)
		g.log.Debug("risk gate rejection",
			zap.String("symbol", req.Symbol), zap.String("reason", dec.Reason))
		return dec, nil
	}
	return queue.Decision{Allowed: true}, nil
}

func (g *Gate) evaluate(req trade.Request) queue.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.allowed != nil {
		if _, ok := g.allowed[req.Symbol]; !ok {
			return reject("symbol %s not in allow-list", req.Symbol)
		}
	}

	if g.cfg.MaxQuantity.IsPositive() && req.Quantity.GreaterThan(g.cfg.MaxQuantity) {
		return reject("quantity %s exceeds max %s", req.Quantity, g.cfg.MaxQuantity)
	}

	if req.Type == trade.OrderLimit {
		notional := req.Quantity.Mul(req.Price)
		if g.cfg.MinOrderNotional.IsPositive() && notional.LessThan(g.cfg.MinOrderNotional) {
			return reject("order notional %s below min %s", notional, g.cfg.MinOrderNotional)
		}
		if g.cfg.MaxOrderNotional.IsPositive() && notional.GreaterThan(g.cfg.MaxOrderNotional) {
			return reject("order notional %s exceeds max %s", notional, g.cfg.MaxOrderNotional)
		}
	}

	if g.cfg.MaxTradesPerDay > 0 {
		today := dayKeyNow()
		if g.dayKey != today {
			g.dayKey = today
			g.dayTrades = 0
		}
		if g.dayTrades >= g.cfg.MaxTradesPerDay {
			return reject("daily trade limit reached: %d/%d", g.dayTrades, g.cfg.MaxTradesPerDay)
		}
		g.dayTrades++
	}

	return queue.Decision{Allowed: true}
}

// Stats returns the check and rejection counters.
func (g *Gate) Stats() (checks, rejections uint64) {
	return atomic.LoadUint64(&g.checksTotal), atomic.LoadUint64(&g.rejectionsTotal)
}

// UpdateConfig swaps the gate's limits.
func (g *Gate) UpdateConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
	g.allowed = nil
	if len(cfg.AllowedSymbols) > 0 {
		g.allowed = make(map[string]struct{}, len(cfg.AllowedSymbols))
		for _, s := range cfg.AllowedSymbols {
			g.allowed[s] = struct{}{}
		}
	}
}

func reject(format string, args ...any) queue.Decision {
	return queue.Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

func dayKeyNow() string {
	return time.Now().UTC().Format("2006-01-02")
}
