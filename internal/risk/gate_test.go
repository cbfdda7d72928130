package risk

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"execution-core/internal/trade"
)

func limitReq(symbol string, qty, price int64) trade.Request {
	return trade.Request{
		Symbol:   symbol,
		Side:     trade.SideBuy,
		Type:     trade.OrderLimit,
		Quantity: decimal.NewFromInt(qty),
		Price:    decimal.NewFromInt(price),
	}
}

func TestGateRules(t *testing.T) {
	cfg := Config{
		MinOrderNotional: decimal.NewFromInt(100),
		MaxOrderNotional: decimal.NewFromInt(10000),
		MaxQuantity:      decimal.NewFromInt(50),
		AllowedSymbols:   []string{"BTCUSDT", "ETHUSDT"},
	}

	tests := []struct {
		name    string
		req     trade.Request
		allowed bool
	}{
		{"within limits", limitReq("BTCUSDT", 2, 1000), true},
		{"below min notional", limitReq("BTCUSDT", 1, 50), false},
		{"above max notional", limitReq("BTCUSDT", 10, 5000), false},
		{"quantity too large", limitReq("ETHUSDT", 60, 100), false},
		{"symbol not allowed", limitReq("DOGEUSDT", 2, 1000), false},
		{
			// MARKET orders carry no price; notional rules do not apply.
			name: "market order skips notional rules",
			req: trade.Request{
				Symbol:   "BTCUSDT",
				Side:     trade.SideBuy,
				Type:     trade.OrderMarket,
				Quantity: decimal.NewFromInt(1),
			},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(cfg, nil)
			dec, err := g.Check(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if dec.Allowed != tt.allowed {
				t.Fatalf("Allowed=%v (reason %q), expected %v", dec.Allowed, dec.Reason, tt.allowed)
			}
			if !dec.Allowed && dec.Reason == "" {
				t.Fatalf("rejection without a reason")
			}
		})
	}
}

func TestGateDailyTradeLimit(t *testing.T) {
	g := NewGate(Config{MaxTradesPerDay: 2}, nil)
	req := limitReq("BTCUSDT", 1, 100)

	for i := 0; i < 2; i++ {
		dec, err := g.Check(context.Background(), req)
		if err != nil || !dec.Allowed {
			t.Fatalf("check %d: allowed=%v err=%v", i, dec.Allowed, err)
		}
	}

	dec, err := g.Check(context.Background(), req)
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("third trade allowed past the daily limit")
	}

	checks, rejections := g.Stats()
	if checks != 3 || rejections != 1 {
		t.Fatalf("stats checks=%d rejections=%d, expected 3/1", checks, rejections)
	}
}

func TestGateZeroLimitsDisabled(t *testing.T) {
	g := NewGate(Config{}, nil)
	dec, err := g.Check(context.Background(), limitReq("ANY", 1000000, 1000000))
	if err != nil || !dec.Allowed {
		t.Fatalf("empty config should allow everything: allowed=%v err=%v", dec.Allowed, err)
	}
}

func TestGateUpdateConfig(t *testing.T) {
	g := NewGate(Config{}, nil)
	req := limitReq("DOGEUSDT", 1, 1000)

	if dec, _ := g.Check(context.Background(), req); !dec.Allowed {
		t.Fatalf("expected allowed before update")
	}

	g.UpdateConfig(Config{AllowedSymbols: []string{"BTCUSDT"}})
	if dec, _ := g.Check(context.Background(), req); dec.Allowed {
		t.Fatalf("expected rejection after allow-list update")
	}
}
