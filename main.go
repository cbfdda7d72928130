package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"execution-core/internal/dispatch"
	"execution-core/internal/events"
	"execution-core/internal/journal"
	"execution-core/internal/queue"
	"execution-core/internal/risk"
	"execution-core/internal/trade"
	"execution-core/pkg/config"
	"execution-core/pkg/logging"
)

// main wires the execution queue with its collaborators (rule-based risk
// gate, dry-run dispatcher, sqlite journal) and runs a few demo submissions.
// Production deployments embed the queue as a library and inject real
// risk/venue clients instead.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.Named("execution-core")
	log.Info("starting", zap.Int("workers", cfg.Workers), zap.Bool("journal", cfg.EnableJournal))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	defer bus.Close()

	var jrnl *journal.Journal
	if cfg.EnableJournal {
		db, err := journal.Open(cfg.JournalDBPath)
		if err != nil {
			log.Fatal("journal init failed", zap.Error(err))
		}
		defer db.Close()
		jrnl = journal.New(db, bus, logger.Named("journal"))
		defer jrnl.Close()
	}

	gate := risk.NewGate(risk.Config{
		MinOrderNotional: decimal.NewFromFloat(cfg.RiskMinOrderNotional),
		MaxOrderNotional: decimal.NewFromFloat(cfg.RiskMaxOrderNotional),
		MaxQuantity:      decimal.NewFromFloat(cfg.RiskMaxQuantity),
		AllowedSymbols:   cfg.RiskAllowedSymbols,
		MaxTradesPerDay:  cfg.RiskMaxTradesPerDay,
	}, logger.Named("risk"))

	venue := dispatch.NewDryRun(dispatch.DryRunConfig{
		InitialBalance: decimal.NewFromFloat(cfg.DryRunInitialBalance),
		FeeRate:        decimal.NewFromFloat(cfg.DryRunFeeRate),
		SlippageBps:    cfg.DryRunSlippageBps,
		LatencyMin:     time.Duration(cfg.DryRunLatencyMinMs) * time.Millisecond,
		LatencyMax:     time.Duration(cfg.DryRunLatencyMaxMs) * time.Millisecond,
		FailureRate:    cfg.DryRunFailureRate,
	}, logger.Named("dispatch"))
	venue.SetReferencePrice("BTCUSDT", decimal.NewFromInt(65000))
	venue.SetReferencePrice("ETHUSDT", decimal.NewFromInt(3400))

	q := queue.New(gate, venue, queue.Config{
		Workers:          cfg.Workers,
		QueueSize:        cfg.QueueSize,
		MaxRetries:       cfg.MaxRetries,
		BaseBackoff:      time.Duration(cfg.BaseBackoffMs) * time.Millisecond,
		BackoffCap:       time.Duration(cfg.BackoffCapMs) * time.Millisecond,
		SweepInterval:    time.Duration(cfg.SweepIntervalSec) * time.Second,
		ExecutingTimeout: time.Duration(cfg.ExecutingTimeoutSec) * time.Second,
		RiskFailOpen:     cfg.RiskFailOpen,
		DispatchRate:     rate.Limit(cfg.DispatchRatePerSec),
		DispatchBurst:    cfg.DispatchBurst,
	}, logger.Named("queue"))
	q.Start(ctx)
	defer q.Close()

	runDemo(q, log)

	// Wait for shutdown signal, then drain.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-time.After(5 * time.Second):
		// demo mode: exit once the scenarios have settled
	}

	printSummary(q, venue, log)
}

// runDemo submits a handful of representative trades.
func runDemo(q *queue.Queue, log *zap.Logger) {
	// 1) Market buy, executes against the reference price.
	buy := trade.Request{
		Symbol:   "BTCUSDT",
		Side:     trade.SideBuy,
		Type:     trade.OrderMarket,
		Quantity: decimal.RequireFromString("0.01"),
	}
	res, err := q.Submit(buy)
	if err != nil {
		log.Error("submit failed", zap.Error(err))
		return
	}
	log.Info("submitted market buy", zap.String("trade_id", res.ID))

	// 2) Same request again: collapses onto the first record.
	dup, _ := q.Submit(buy)
	log.Info("duplicate submission", zap.Bool("duplicate", dup.Duplicate), zap.String("trade_id", dup.ID))

	// 3) Limit sell.
	sell := trade.Request{
		Symbol:   "ETHUSDT",
		Side:     trade.SideSell,
		Type:     trade.OrderLimit,
		Quantity: decimal.RequireFromString("0.5"),
		Price:    decimal.NewFromInt(3500),
	}
	if res, err = q.Submit(sell); err == nil {
		log.Info("submitted limit sell", zap.String("trade_id", res.ID))
	}

	// 4) Oversized order, rejected by the risk gate.
	big := trade.Request{
		Symbol:   "BTCUSDT",
		Side:     trade.SideBuy,
		Type:     trade.OrderLimit,
		Quantity: decimal.NewFromInt(10),
		Price:    decimal.NewFromInt(65000),
	}
	if res, err = q.Submit(big); err == nil {
		log.Info("submitted oversized buy", zap.String("trade_id", res.ID))
	}

	// 5) Structurally invalid request, refused synchronously.
	bad := trade.Request{
		Symbol:   "BTCUSDT",
		Side:     trade.SideBuy,
		Type:     trade.OrderMarket,
		Quantity: decimal.NewFromInt(-1),
	}
	if _, err = q.Submit(bad); err != nil {
		var verr *trade.ValidationError
		if errors.As(err, &verr) {
			log.Info("validation rejected request", zap.String("field", verr.Field), zap.String("reason", verr.Reason))
		}
	}

	// 6) Submit and cancel immediately; usually loses the race to a worker
	// but demonstrates the API.
	small := trade.Request{
		Symbol:         "ETHUSDT",
		Side:           trade.SideBuy,
		Type:           trade.OrderMarket,
		Quantity:       decimal.RequireFromString("0.05"),
		IdempotencyKey: "demo-cancel-1",
	}
	if res, err = q.Submit(small); err == nil {
		ok, _ := q.Cancel(res.ID)
		log.Info("cancel attempt", zap.String("trade_id", res.ID), zap.Bool("canceled", ok))
	}
}

func printSummary(q *queue.Queue, venue *dispatch.DryRun, log *zap.Logger) {
	for _, rec := range q.Records() {
		log.Info("final record",
			zap.String("trade_id", rec.ID),
			zap.String("symbol", rec.Request.Symbol),
			zap.String("status", string(rec.Status)),
			zap.Int("retries", rec.RetryCount),
			zap.String("last_error", rec.LastError))
	}

	m := q.Metrics()
	log.Info("queue metrics",
		zap.Uint64("submitted", m.Submitted),
		zap.Uint64("duplicates", m.Duplicates),
		zap.Uint64("executed", m.Executed),
		zap.Uint64("risk_rejected", m.RiskRejected),
		zap.Uint64("failed", m.Failed),
		zap.Uint64("canceled", m.Canceled),
		zap.Float64("dispatch_p95_ms", m.DispatchLatency.P95))
	log.Info("dry-run balance", zap.String("balance", venue.Balance().String()))
}
