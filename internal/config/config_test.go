package config

import (
	"errors"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
)

const validYAML = `
session:
  quote_asset: "USDT"
  base_asset: "BTC"
  trading_mode: "spot"
  run_mode: "simulated"
  interval: "1m"
  quote_per_trade: 100.0
  tick_size: 2
  lot_size: 3
  enable_long: true

strategy:
  name: "macd-cross"
  stop_loss_pct: 0.004
  take_profit_pct: 0.01

feed:
  history_path: "testdata/btcusdt.csv"

journal:
  enabled: false

persistence:
  enabled: false
`

func TestLoadFromBytes_Valid(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Symbol() != "BTCUSDT" {
		t.Errorf("Symbol() = %q, want BTCUSDT", cfg.Symbol())
	}
	if cfg.TradingMode() != types.TradingSpot {
		t.Errorf("TradingMode() = %v, want spot", cfg.TradingMode())
	}
	if cfg.RunMode() != types.RunSimulated {
		t.Errorf("RunMode() = %v, want simulated", cfg.RunMode())
	}
	if got := cfg.PositionTypes(); len(got) != 1 || got[0] != types.PositionLong {
		t.Errorf("PositionTypes() = %v, want [LONG]", got)
	}
	if !cfg.QuotePerTradeDecimal().Equal(decimal.NewFromInt(100)) {
		t.Errorf("QuotePerTradeDecimal() = %v, want 100", cfg.QuotePerTradeDecimal())
	}
	if !cfg.SellFractionDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("SellFractionDecimal() = %v, want 1 when unset", cfg.SellFractionDecimal())
	}
	if p := cfg.Precision(); p.TickSize != 2 || p.LotSize != 3 {
		t.Errorf("Precision() = %+v, want tick 2 lot 3", p)
	}

	// Defaults applied by validation
	if cfg.Execution.PollIntervalSec != 1 {
		t.Errorf("PollIntervalSec default = %d, want 1", cfg.Execution.PollIntervalSec)
	}
	if cfg.Feed.CandleLimit != 500 {
		t.Errorf("CandleLimit default = %d, want 500", cfg.Feed.CandleLimit)
	}
}

func TestLoadFromBytes_EnvExpansion(t *testing.T) {
	os.Setenv("TEST_QUOTE_ASSET", "BUSD")
	defer os.Unsetenv("TEST_QUOTE_ASSET")

	yaml := `
session:
  quote_asset: "${TEST_QUOTE_ASSET}"
  base_asset: "ETH"
  trading_mode: "spot"
  run_mode: "simulated"
  quote_per_trade: 50.0
  enable_long: true
feed:
  history_path: "testdata/ethbusd.csv"
`
	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Session.QuoteAsset != "BUSD" {
		t.Errorf("QuoteAsset = %q, want BUSD", cfg.Session.QuoteAsset)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"missing quote asset", func(cfg *Config) { cfg.Session.QuoteAsset = "" }},
		{"bad trading mode", func(cfg *Config) { cfg.Session.TradingMode = "futures" }},
		{"bad run mode", func(cfg *Config) { cfg.Session.RunMode = "replay" }},
		{"zero allowance", func(cfg *Config) { cfg.Session.QuotePerTrade = 0 }},
		{"short without margin", func(cfg *Config) { cfg.Session.EnableShort = true }},
		{"no position types", func(cfg *Config) { cfg.Session.EnableLong = false }},
		{"sell fraction above one", func(cfg *Config) { cfg.Session.SellFraction = 1.5 }},
		{"live without keys", func(cfg *Config) { cfg.Session.RunMode = "live" }},
		{"simulated without history", func(cfg *Config) { cfg.Feed.HistoryPath = "" }},
		{"persistence without path", func(cfg *Config) { cfg.Persistence.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromBytes([]byte(validYAML))
			if err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, types.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestIsAlertEventEnabled(t *testing.T) {
	cfg := &Config{Alerting: AlertingConfig{Enabled: true, Events: []string{"fill", "error"}}}
	if !cfg.IsAlertEventEnabled("fill") {
		t.Error("fill should be enabled")
	}
	if cfg.IsAlertEventEnabled("startup") {
		t.Error("startup should not be enabled")
	}

	cfg.Alerting.Events = nil
	if !cfg.IsAlertEventEnabled("anything") {
		t.Error("empty event list should enable all")
	}

	cfg.Alerting.Enabled = false
	if cfg.IsAlertEventEnabled("fill") {
		t.Error("disabled alerting should enable nothing")
	}
}
