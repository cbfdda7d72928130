package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"execution-core/internal/trade"
)

func TestDryRunFillsAndTracksBalance(t *testing.T) {
	d := NewDryRun(DryRunConfig{
		InitialBalance: decimal.NewFromInt(10000),
	}, nil)

	req := trade.Request{
		Symbol:   "BTCUSDT",
		Side:     trade.SideBuy,
		Type:     trade.OrderLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	}

	res, err := d.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	fill, ok := res.(Fill)
	if !ok {
		t.Fatalf("result type %T, expected Fill", res)
	}
	if fill.VenueOrderID == "" {
		t.Fatalf("fill missing venue order id")
	}
	if !fill.Price.Equal(req.Price) {
		t.Fatalf("fill price %s, expected %s with zero slippage", fill.Price, req.Price)
	}

	if want := decimal.NewFromInt(9900); !d.Balance().Equal(want) {
		t.Fatalf("balance %s, expected %s", d.Balance(), want)
	}
	if qty := d.Positions()["BTCUSDT"]; !qty.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("position %s, expected 1", qty)
	}

	// Selling returns the notional (no fee configured).
	sell := req
	sell.Side = trade.SideSell
	if _, err := d.Execute(context.Background(), sell); err != nil {
		t.Fatalf("sell error: %v", err)
	}
	if want := decimal.NewFromInt(10000); !d.Balance().Equal(want) {
		t.Fatalf("balance after round trip %s, expected %s", d.Balance(), want)
	}
	if qty := d.Positions()["BTCUSDT"]; !qty.IsZero() {
		t.Fatalf("position after round trip %s, expected 0", qty)
	}
}

func TestDryRunChargesFee(t *testing.T) {
	d := NewDryRun(DryRunConfig{
		InitialBalance: decimal.NewFromInt(1000),
		FeeRate:        decimal.RequireFromString("0.001"),
	}, nil)

	req := trade.Request{
		Symbol:   "ETHUSDT",
		Side:     trade.SideBuy,
		Type:     trade.OrderLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	}
	res, err := d.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	fill := res.(Fill)
	if want := decimal.RequireFromString("0.1"); !fill.Fee.Equal(want) {
		t.Fatalf("fee %s, expected %s", fill.Fee, want)
	}
	if want := decimal.RequireFromString("899.9"); !d.Balance().Equal(want) {
		t.Fatalf("balance %s, expected %s", d.Balance(), want)
	}
}

func TestDryRunInsufficientBalance(t *testing.T) {
	d := NewDryRun(DryRunConfig{InitialBalance: decimal.NewFromInt(50)}, nil)

	req := trade.Request{
		Symbol:   "BTCUSDT",
		Side:     trade.SideBuy,
		Type:     trade.OrderLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	}
	if _, err := d.Execute(context.Background(), req); err == nil || !strings.Contains(err.Error(), "insufficient balance") {
		t.Fatalf("err=%v, expected insufficient balance", err)
	}
	// Failed dispatch must not move the book.
	if !d.Balance().Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance changed on failed execution: %s", d.Balance())
	}
}

func TestDryRunMarketUsesReferencePrice(t *testing.T) {
	d := NewDryRun(DryRunConfig{InitialBalance: decimal.NewFromInt(10000)}, nil)

	req := trade.Request{
		Symbol:   "BTCUSDT",
		Side:     trade.SideBuy,
		Type:     trade.OrderMarket,
		Quantity: decimal.NewFromInt(1),
	}
	if _, err := d.Execute(context.Background(), req); err == nil {
		t.Fatalf("market order without reference price should fail")
	}

	d.SetReferencePrice("BTCUSDT", decimal.NewFromInt(250))
	res, err := d.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if fill := res.(Fill); !fill.Price.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("fill price %s, expected reference 250", fill.Price)
	}
}

func TestDryRunInjectedFailures(t *testing.T) {
	d := NewDryRun(DryRunConfig{
		InitialBalance: decimal.NewFromInt(10000),
		FailureRate:    1.0,
	}, nil)

	req := trade.Request{
		Symbol:   "BTCUSDT",
		Side:     trade.SideSell,
		Type:     trade.OrderLimit,
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	}
	if _, err := d.Execute(context.Background(), req); err == nil || !strings.Contains(err.Error(), "simulated venue error") {
		t.Fatalf("err=%v, expected simulated venue error", err)
	}
}
