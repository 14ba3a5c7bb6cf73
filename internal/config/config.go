// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"sessiontrader/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Session     SessionConfig     `yaml:"session"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Feed        FeedConfig        `yaml:"feed"`
	Journal     JournalConfig     `yaml:"journal"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SessionConfig holds the trading session settings.
type SessionConfig struct {
	QuoteAsset    string  `yaml:"quote_asset"`
	BaseAsset     string  `yaml:"base_asset"`
	TradingMode   string  `yaml:"trading_mode"` // spot | margin
	RunMode       string  `yaml:"run_mode"`     // live | simulated
	Interval      string  `yaml:"interval"`     // candle interval, e.g. 1m
	QuotePerTrade float64 `yaml:"quote_per_trade"`
	SellFraction  float64 `yaml:"sell_fraction"` // share of last fill to sell, 0 = all
	TickSize      int     `yaml:"tick_size"`     // price decimal places
	LotSize       int     `yaml:"lot_size"`      // quantity decimal places
	EnableLong    bool    `yaml:"enable_long"`
	EnableShort   bool    `yaml:"enable_short"`
}

// StrategyConfig holds strategy settings.
type StrategyConfig struct {
	Name          string  `yaml:"name"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
}

// ExecutionConfig holds control loop and request pacing settings.
type ExecutionConfig struct {
	PollIntervalSec    int `yaml:"poll_interval_sec"`
	RateLimitPerSecond int `yaml:"rate_limit_per_second"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`
}

// GatewayConfig holds exchange gateway settings.
type GatewayConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// FeedConfig holds market data feed settings.
type FeedConfig struct {
	DepthLevels   int    `yaml:"depth_levels"`
	CandleLimit   int    `yaml:"candle_limit"`
	HistoryPath   string `yaml:"history_path"` // CSV file for simulated runs
	StaleAfterSec int    `yaml:"stale_after_sec"`
}

// JournalConfig holds trade journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// PersistenceConfig holds trade repository settings.
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite file
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled bool     `yaml:"enabled"`
	Events  []string `yaml:"events"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Session validation
	if c.Session.QuoteAsset == "" {
		errs = append(errs, "session.quote_asset is required")
	}
	if c.Session.BaseAsset == "" {
		errs = append(errs, "session.base_asset is required")
	}
	if c.Session.TradingMode != "spot" && c.Session.TradingMode != "margin" {
		errs = append(errs, "session.trading_mode must be 'spot' or 'margin'")
	}
	if c.Session.RunMode != "live" && c.Session.RunMode != "simulated" {
		errs = append(errs, "session.run_mode must be 'live' or 'simulated'")
	}
	if c.Session.QuotePerTrade <= 0 {
		errs = append(errs, "session.quote_per_trade must be positive")
	}
	if c.Session.SellFraction < 0 || c.Session.SellFraction > 1 {
		errs = append(errs, "session.sell_fraction must be between 0 and 1")
	}
	if c.Session.TickSize < 0 || c.Session.LotSize < 0 {
		errs = append(errs, "session.tick_size and session.lot_size must not be negative")
	}
	if c.Session.EnableShort && c.Session.TradingMode != "margin" {
		errs = append(errs, "session.enable_short requires margin trading mode")
	}
	if !c.Session.EnableLong && !c.Session.EnableShort {
		errs = append(errs, "at least one of session.enable_long or session.enable_short is required")
	}

	// Strategy validation
	if c.Strategy.StopLossPct < 0 || c.Strategy.StopLossPct >= 1 {
		errs = append(errs, "strategy.stop_loss_pct must be between 0 and 1")
	}
	if c.Strategy.TakeProfitPct < 0 {
		errs = append(errs, "strategy.take_profit_pct must not be negative")
	}

	// Gateway validation only matters for live runs
	if c.Session.RunMode == "live" {
		if c.Gateway.APIKey == "" || c.Gateway.APISecret == "" {
			errs = append(errs, "gateway.api_key and gateway.api_secret are required for live runs")
		}
	}
	if c.Session.RunMode == "simulated" && c.Feed.HistoryPath == "" {
		errs = append(errs, "feed.history_path is required for simulated runs")
	}

	// Execution validation
	if c.Execution.PollIntervalSec <= 0 {
		c.Execution.PollIntervalSec = 1 // default
	}
	if c.Execution.RateLimitPerSecond <= 0 {
		c.Execution.RateLimitPerSecond = 5 // default
	}
	if c.Execution.RateLimitBurst <= 0 {
		c.Execution.RateLimitBurst = 10 // default
	}

	// Feed validation
	if c.Feed.CandleLimit <= 0 {
		c.Feed.CandleLimit = 500 // default
	}
	if c.Feed.DepthLevels <= 0 {
		c.Feed.DepthLevels = 5 // default
	}

	// Persistence validation
	if c.Persistence.Enabled && c.Persistence.Path == "" {
		errs = append(errs, "persistence.path is required when persistence is enabled")
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		errs = append(errs, "journal.dir is required when the journal is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// Symbol returns the exchange symbol, e.g. BTCUSDT.
func (c *Config) Symbol() string {
	return strings.ToUpper(c.Session.BaseAsset + c.Session.QuoteAsset)
}

// TradingMode returns the typed trading mode.
func (c *Config) TradingMode() types.TradingMode {
	if c.Session.TradingMode == "margin" {
		return types.TradingMargin
	}
	return types.TradingSpot
}

// RunMode returns the typed run mode.
func (c *Config) RunMode() types.RunMode {
	if c.Session.RunMode == "simulated" {
		return types.RunSimulated
	}
	return types.RunLive
}

// PositionTypes returns the enabled position types in evaluation order.
func (c *Config) PositionTypes() []types.PositionType {
	var out []types.PositionType
	if c.Session.EnableLong {
		out = append(out, types.PositionLong)
	}
	if c.Session.EnableShort {
		out = append(out, types.PositionShort)
	}
	return out
}

// Precision returns the symbol's rounding rules.
func (c *Config) Precision() types.PrecisionRules {
	return types.PrecisionRules{
		TickSize: int32(c.Session.TickSize),
		LotSize:  int32(c.Session.LotSize),
	}
}

// QuotePerTradeDecimal returns the per-trade quote allowance as decimal.
func (c *Config) QuotePerTradeDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Session.QuotePerTrade)
}

// SellFractionDecimal returns the sell fraction as decimal, 1 when unset.
func (c *Config) SellFractionDecimal() decimal.Decimal {
	if c.Session.SellFraction == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(c.Session.SellFraction)
}

// StopLossPctDecimal returns the stop-loss offset as decimal.
func (c *Config) StopLossPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Strategy.StopLossPct)
}

// TakeProfitPctDecimal returns the take-profit offset as decimal.
func (c *Config) TakeProfitPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Strategy.TakeProfitPct)
}

// PollInterval returns the control loop tick interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Execution.PollIntervalSec) * time.Second
}

// StaleAfter returns the feed staleness threshold, zero when disabled.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Feed.StaleAfterSec) * time.Second
}

// IsAlertEventEnabled checks if an alert event type is enabled.
func (c *Config) IsAlertEventEnabled(event string) bool {
	if !c.Alerting.Enabled {
		return false
	}
	// If no events specified, all are enabled
	if len(c.Alerting.Events) == 0 {
		return true
	}
	for _, e := range c.Alerting.Events {
		if e == event || e == "all" {
			return true
		}
	}
	return false
}
