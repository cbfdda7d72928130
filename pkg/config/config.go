// Package config loads settings for the execution queue process. Values come
// from defaults, then an optional YAML file (CONFIG_FILE), then environment
// variables (optionally via .env), highest wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all process-level settings.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Queue
	Workers             int     `yaml:"workers"`
	QueueSize           int     `yaml:"queue_size"`
	MaxRetries          int     `yaml:"max_retries"`
	BaseBackoffMs       int     `yaml:"base_backoff_ms"`
	BackoffCapMs        int     `yaml:"backoff_cap_ms"`
	SweepIntervalSec    int     `yaml:"sweep_interval_sec"`
	ExecutingTimeoutSec int     `yaml:"executing_timeout_sec"`
	RiskFailOpen        bool    `yaml:"risk_fail_open"`
	DispatchRatePerSec  float64 `yaml:"dispatch_rate_per_sec"`
	DispatchBurst       int     `yaml:"dispatch_burst"`

	// Journal
	EnableJournal bool   `yaml:"enable_journal"`
	JournalDBPath string `yaml:"journal_db_path"`

	// Risk gate limits
	RiskMinOrderNotional float64  `yaml:"risk_min_order_notional"`
	RiskMaxOrderNotional float64  `yaml:"risk_max_order_notional"`
	RiskMaxQuantity      float64  `yaml:"risk_max_quantity"`
	RiskAllowedSymbols   []string `yaml:"risk_allowed_symbols"`
	RiskMaxTradesPerDay  int      `yaml:"risk_max_trades_per_day"`

	// Dry-run dispatcher simulation
	DryRunInitialBalance float64 `yaml:"dry_run_initial_balance"`
	DryRunFeeRate        float64 `yaml:"dry_run_fee_rate"`
	DryRunSlippageBps    float64 `yaml:"dry_run_slippage_bps"`
	DryRunLatencyMinMs   int     `yaml:"dry_run_latency_min_ms"`
	DryRunLatencyMaxMs   int     `yaml:"dry_run_latency_max_ms"`
	DryRunFailureRate    float64 `yaml:"dry_run_failure_rate"`
}

func defaults() *Config {
	return &Config{
		LogLevel:             "info",
		Workers:              3,
		QueueSize:            256,
		MaxRetries:           3,
		BaseBackoffMs:        500,
		BackoffCapMs:         30000,
		SweepIntervalSec:     30,
		ExecutingTimeoutSec:  120,
		DispatchBurst:        1,
		EnableJournal:        true,
		JournalDBPath:        "./data/execution.db",
		RiskMinOrderNotional: 10,
		RiskMaxOrderNotional: 10000,
		RiskMaxQuantity:      100,
		RiskMaxTradesPerDay:  200,
		DryRunInitialBalance: 10000,
		DryRunFeeRate:        0.0004,
		DryRunSlippageBps:    2,
	}
}

// Load builds the config from defaults, optional YAML file, and environment.
func Load() (*Config, error) {
	// Ignore error so the process still starts when .env is missing.
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Workers = getEnvInt("QUEUE_WORKERS", c.Workers)
	c.QueueSize = getEnvInt("QUEUE_SIZE", c.QueueSize)
	c.MaxRetries = getEnvInt("QUEUE_MAX_RETRIES", c.MaxRetries)
	c.BaseBackoffMs = getEnvInt("QUEUE_BASE_BACKOFF_MS", c.BaseBackoffMs)
	c.BackoffCapMs = getEnvInt("QUEUE_BACKOFF_CAP_MS", c.BackoffCapMs)
	c.SweepIntervalSec = getEnvInt("QUEUE_SWEEP_INTERVAL_SEC", c.SweepIntervalSec)
	c.ExecutingTimeoutSec = getEnvInt("QUEUE_EXECUTING_TIMEOUT_SEC", c.ExecutingTimeoutSec)
	c.RiskFailOpen = getEnvBool("RISK_FAIL_OPEN", c.RiskFailOpen)
	c.DispatchRatePerSec = getEnvFloat("DISPATCH_RATE_PER_SEC", c.DispatchRatePerSec)
	c.DispatchBurst = getEnvInt("DISPATCH_BURST", c.DispatchBurst)

	c.EnableJournal = getEnvBool("ENABLE_JOURNAL", c.EnableJournal)
	c.JournalDBPath = getEnv("JOURNAL_DB_PATH", c.JournalDBPath)

	c.RiskMinOrderNotional = getEnvFloat("RISK_MIN_ORDER_NOTIONAL", c.RiskMinOrderNotional)
	c.RiskMaxOrderNotional = getEnvFloat("RISK_MAX_ORDER_NOTIONAL", c.RiskMaxOrderNotional)
	c.RiskMaxQuantity = getEnvFloat("RISK_MAX_QUANTITY", c.RiskMaxQuantity)
	if v := os.Getenv("RISK_ALLOWED_SYMBOLS"); v != "" {
		c.RiskAllowedSymbols = splitAndTrim(v)
	}
	c.RiskMaxTradesPerDay = getEnvInt("RISK_MAX_TRADES_PER_DAY", c.RiskMaxTradesPerDay)

	c.DryRunInitialBalance = getEnvFloat("DRY_RUN_INITIAL_BALANCE", c.DryRunInitialBalance)
	c.DryRunFeeRate = getEnvFloat("DRY_RUN_FEE_RATE", c.DryRunFeeRate)
	c.DryRunSlippageBps = getEnvFloat("DRY_RUN_SLIPPAGE_BPS", c.DryRunSlippageBps)
	c.DryRunLatencyMinMs = getEnvInt("DRY_RUN_LATENCY_MIN_MS", c.DryRunLatencyMinMs)
	c.DryRunLatencyMaxMs = getEnvInt("DRY_RUN_LATENCY_MAX_MS", c.DryRunLatencyMaxMs)
	c.DryRunFailureRate = getEnvFloat("DRY_RUN_FAILURE_RATE", c.DryRunFailureRate)
}

func getEnv(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
