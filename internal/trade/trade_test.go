package trade

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantField string // empty means valid
	}{
		{
			name: "valid market buy",
			req: Request{
				Symbol:   "BTCUSDT",
				Side:     SideBuy,
				Type:     OrderMarket,
				Quantity: decimal.RequireFromString("0.01"),
			},
		},
		{
			name: "valid limit sell",
			req: Request{
				Symbol:   "ETHUSDT",
				Side:     SideSell,
				Type:     OrderLimit,
				Quantity: decimal.NewFromInt(1),
				Price:    decimal.NewFromInt(3000),
			},
		},
		{
			name: "empty symbol",
			req: Request{
				Side:     SideBuy,
				Type:     OrderMarket,
				Quantity: decimal.NewFromInt(1),
			},
			wantField: "symbol",
		},
		{
			name: "unknown side",
			req: Request{
				Symbol:   "BTCUSDT",
				Side:     Side("HOLD"),
				Type:     OrderMarket,
				Quantity: decimal.NewFromInt(1),
			},
			wantField: "side",
		},
		{
			name: "unknown order type",
			req: Request{
				Symbol:   "BTCUSDT",
				Side:     SideBuy,
				Type:     OrderType("STOP"),
				Quantity: decimal.NewFromInt(1),
			},
			wantField: "type",
		},
		{
			name: "zero quantity",
			req: Request{
				Symbol: "BTCUSDT",
				Side:   SideBuy,
				Type:   OrderMarket,
			},
			wantField: "quantity",
		},
		{
			name: "negative quantity",
			req: Request{
				Symbol:   "BTCUSDT",
				Side:     SideBuy,
				Type:     OrderMarket,
				Quantity: decimal.NewFromInt(-1),
			},
			wantField: "quantity",
		},
		{
			name: "limit without price",
			req: Request{
				Symbol:   "BTCUSDT",
				Side:     SideBuy,
				Type:     OrderLimit,
				Quantity: decimal.NewFromInt(1),
			},
			wantField: "price",
		},
		{
			name: "limit with negative price",
			req: Request{
				Symbol:   "BTCUSDT",
				Side:     SideBuy,
				Type:     OrderLimit,
				Quantity: decimal.NewFromInt(1),
				Price:    decimal.NewFromInt(-5),
			},
			wantField: "price",
		},
		{
			name: "market with price is not an error",
			req: Request{
				Symbol:   "BTCUSDT",
				Side:     SideBuy,
				Type:     OrderMarket,
				Quantity: decimal.NewFromInt(1),
				Price:    decimal.NewFromInt(100),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate returned error: %v", err)
				}
				return
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Fatalf("Field=%q, expected %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestNormalizeDropsMarketPrice(t *testing.T) {
	req := Request{
		Symbol:   "BTCUSDT",
		Side:     SideBuy,
		Type:     OrderMarket,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	}

	norm, dropped := req.Normalize()
	if !dropped {
		t.Fatalf("expected price to be dropped")
	}
	if !norm.Price.IsZero() {
		t.Fatalf("Price=%s, expected zero", norm.Price)
	}

	limit := Request{
		Symbol:   "BTCUSDT",
		Side:     SideBuy,
		Type:     OrderLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	}
	norm, dropped = limit.Normalize()
	if dropped {
		t.Fatalf("limit order price should not be dropped")
	}
	if !norm.Price.Equal(limit.Price) {
		t.Fatalf("Price=%s, expected %s", norm.Price, limit.Price)
	}
}

func TestDedupKey(t *testing.T) {
	base := Request{
		Symbol:   "BTCUSDT",
		Side:     SideBuy,
		Type:     OrderLimit,
		Quantity: decimal.RequireFromString("0.5"),
		Price:    decimal.NewFromInt(60000),
		UserID:   "u1",
	}

	if base.DedupKey() != base.DedupKey() {
		t.Fatalf("derived key not stable")
	}

	other := base
	other.Side = SideSell
	if base.DedupKey() == other.DedupKey() {
		t.Fatalf("different trades derived the same key")
	}

	keyed := base
	keyed.IdempotencyKey = "client-key-1"
	if keyed.DedupKey() != "client-key-1" {
		t.Fatalf("caller-supplied key not honored, got %q", keyed.DedupKey())
	}
}
