// Package main is the entry point for the session trader.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sessiontrader/internal/alerting"
	"sessiontrader/internal/config"
	"sessiontrader/internal/feed"
	"sessiontrader/internal/gateway"
	"sessiontrader/internal/journal"
	"sessiontrader/internal/metrics"
	"sessiontrader/internal/session"
	"sessiontrader/internal/strategy"
	"sessiontrader/internal/types"
)

// Version information (set by build flags).
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const listenKeyKeepAlive = 30 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "simulate":
		cmdSimulate(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Session Trader - Position Trading Session Engine

Usage:
  sessiontrader <command> [options]

Commands:
  run        Start a live trading session
  simulate   Replay a session over historical candles
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  sessiontrader run --config config.yaml
  sessiontrader simulate --config config.yaml
  sessiontrader validate --config config.yaml

Use "sessiontrader <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("sessiontrader version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Symbol: %s\n", cfg.Symbol())
	fmt.Printf("  Trading mode: %s\n", cfg.TradingMode())
	fmt.Printf("  Run mode: %s\n", cfg.RunMode())
	fmt.Printf("  Quote per trade: %s %s\n", cfg.QuotePerTradeDecimal(), cfg.Session.QuoteAsset)
	fmt.Printf("  Position types: %v\n", cfg.PositionTypes())
	fmt.Printf("  Strategy: %s\n", cfg.Strategy.Name)
}

func cmdSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if cfg.RunMode() != types.RunSimulated {
		slog.Error("simulate requires session.run_mode: simulated")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history := feed.NewHistory(cfg.Feed.HistoryPath, cfg.Feed.CandleLimit)
	defer history.Close()

	sess, cleanup, err := buildSession(cfg, logger, session.Options{
		Feed:    history,
		Stepper: history,
	})
	if err != nil {
		slog.Error("failed to build session", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.Info("starting replay",
		"symbol", cfg.Symbol(),
		"history", cfg.Feed.HistoryPath,
		"strategy", cfg.Strategy.Name,
	)

	if err := sess.Start(ctx); err != nil {
		slog.Error("session start failed", "err", err)
		os.Exit(1)
	}
	sess.Wait()

	printReplayResults(sess)
}

func printReplayResults(sess *session.Session) {
	snap := sess.Snapshot()
	trades := 0
	for _, entries := range snap.Ledger {
		trades += len(entries)
	}
	fmt.Println("\n=== REPLAY RESULTS ===")
	fmt.Printf("Symbol:        %s\n", snap.Symbol)
	fmt.Printf("Ledger:        %d entries\n", trades)
	fmt.Printf("Round trips:   %d\n", trades/2)
	fmt.Printf("Total outcome: %s %s\n", snap.OutcomeTotal.StringFixed(8), snap.Pair)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if cfg.RunMode() != types.RunLive {
		fmt.Fprintln(os.Stderr, "run requires session.run_mode: live (use simulate for replays)")
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("sessiontrader starting",
		"version", Version,
		"symbol", cfg.Symbol(),
		"trading_mode", cfg.TradingMode().String(),
		"run_mode", cfg.RunMode().String(),
	)

	gw := gateway.NewBinance(gateway.BinanceOptions{
		APIKey:             cfg.Gateway.APIKey,
		APISecret:          cfg.Gateway.APISecret,
		Testnet:            cfg.Gateway.Testnet,
		RateLimitPerSecond: cfg.Execution.RateLimitPerSecond,
		RateLimitBurst:     cfg.Execution.RateLimitBurst,
		Logger:             logger,
	})

	listenKey, err := gw.ListenKey(ctx)
	if err != nil {
		slog.Error("failed to obtain listen key", "err", err)
		os.Exit(1)
	}
	go keepAliveLoop(ctx, gw, listenKey)

	ws := feed.NewBinanceWS(feed.WSOptions{
		Symbol:      cfg.Symbol(),
		Interval:    cfg.Session.Interval,
		DepthLevels: cfg.Feed.DepthLevels,
		CandleLimit: cfg.Feed.CandleLimit,
		ListenKey:   listenKey,
		Logger:      logger,
	})
	if err := ws.Start(ctx); err != nil {
		slog.Error("failed to start market feed", "err", err)
		os.Exit(1)
	}
	defer ws.Close()

	sess, cleanup, err := buildSession(cfg, logger, session.Options{
		Feed:    ws,
		User:    ws,
		Gateway: gw,
	})
	if err != nil {
		slog.Error("failed to build session", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	var server *metrics.Server
	if cfg.Metrics.Enabled {
		server = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path,
			func() any { return sess.Snapshot() }, sess.Healthy, logger)
		server.Start()
	}

	if err := sess.Start(ctx); err != nil {
		slog.Error("session start failed", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received")

	sess.Stop()
	sess.Wait()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown", "err", err)
		}
	}

	slog.Info("sessiontrader shutdown complete")
}

// buildSession assembles the session around the supplied collaborators.
// The returned cleanup closes whatever persistence was opened.
func buildSession(cfg *config.Config, logger *slog.Logger, opts session.Options) (*session.Session, func(), error) {
	opts.Symbol = cfg.Symbol()
	opts.QuoteAsset = cfg.Session.QuoteAsset
	opts.BaseAsset = cfg.Session.BaseAsset
	opts.TradingMode = cfg.TradingMode()
	opts.RunMode = cfg.RunMode()
	opts.Precision = cfg.Precision()
	opts.QuotePerTrade = cfg.QuotePerTradeDecimal()
	opts.SellFraction = cfg.SellFractionDecimal()
	opts.PositionTypes = cfg.PositionTypes()
	opts.PollInterval = cfg.PollInterval()
	opts.StaleAfter = cfg.StaleAfter()
	opts.Rules = strategy.NewMACDCross(cfg.StopLossPctDecimal(), cfg.TakeProfitPctDecimal())
	opts.Recorder = metrics.NewRecorder()
	opts.Logger = logger

	if cfg.Alerting.Enabled {
		opts.Alerter = alerting.NewConsoleAlerter(logger)
	}

	cleanup := func() {}
	if cfg.Journal.Enabled {
		j, err := journal.NewJournal(cfg.Journal.Dir, cfg.Symbol())
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		opts.Journal = j
	}
	if cfg.Persistence.Enabled {
		repo, err := journal.NewRepository(cfg.Persistence.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open trade repository: %w", err)
		}
		opts.Repo = repo
		cleanup = func() {
			if err := repo.Close(); err != nil {
				slog.Error("close trade repository", "err", err)
			}
		}
	}

	return session.New(opts), cleanup, nil
}

// keepAliveLoop extends the user data stream until the context ends.
func keepAliveLoop(ctx context.Context, gw gateway.Gateway, key string) {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := gw.KeepAlive(ctx, key); err != nil {
				slog.Warn("listen key keepalive failed", "err", err)
			}
		}
	}
}

// buildLogger configures slog from the logging section.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}
