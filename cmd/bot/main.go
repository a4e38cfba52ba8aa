// Package main is the entry point of the portfolio rebalance bot.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/alert"
	"github.com/your-org/crypto-rebalancer/internal/config"
	"github.com/your-org/crypto-rebalancer/internal/csvwriter"
	"github.com/your-org/crypto-rebalancer/internal/engine"
	"github.com/your-org/crypto-rebalancer/internal/exchange/poloniex"
	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/internal/recorder"
	"github.com/your-org/crypto-rebalancer/internal/trader"
	"github.com/your-org/crypto-rebalancer/pkg/calendar"
	"github.com/your-org/crypto-rebalancer/pkg/clock"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	dryRun := flag.Bool("dry-run", false, "Print the trade plan without executing")
	dateStr := flag.String("date", "", "Rebalance date (YYYY-MM-DD), defaults to today")
	yes := flag.Bool("yes", false, "Skip the interactive confirmation prompt")
	migrateOnly := flag.Bool("migrate", false, "Apply database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *migrateOnly {
		if err := recorder.Migrate(cfg.DatabaseURL, "file://db/migrations", logger); err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clk := clock.Real{}
	date := calendar.Midnight(clk.Now())
	if *dateStr != "" {
		parsed, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			logger.Fatal("Invalid -date", zap.String("date", *dateStr), zap.Error(err))
		}
		date = calendar.Midnight(parsed)
	}

	logger.Info("Rebalance bot starting.",
		zap.String("config", *configPath),
		zap.String("date", date.Format("2006-01-02")),
		zap.Bool("dryRun", *dryRun))

	client := poloniex.NewClient(cfg.APIKey, cfg.APISecret)
	provider := marketdata.NewProvider(client, cfg.Region, cfg.Home, cfg.HubCurrencies,
		cfg.BarPeriodSeconds, logger)

	// Live quotes come from the websocket ticker when streaming is on,
	// with the REST ticker as a fallback for pairs the cache misses.
	var cache *marketdata.QuoteCache
	if bool(cfg.StreamQuotes) {
		cache = marketdata.NewQuoteCache(time.Minute)
		stream := poloniex.NewTickerStream(cache.Apply, logger)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Ticker stream stopped", zap.Error(err))
			}
		}()
	}
	quotes := marketdata.NewQuoteService(cache, client)

	eng := engine.New(client, quotes, clk, engine.Config{
		Home:           cfg.Home,
		SpreadFraction: cfg.Execution.SpreadFraction,
		MaxAttempts:    cfg.Execution.MaxFillAttempts,
		PollInterval:   time.Duration(cfg.Execution.PollIntervalSeconds) * time.Second,
	}, logger)

	var notifier alert.Notifier = alert.NewNoOpNotifier()
	if bool(cfg.Alert.Enabled) {
		notifier = alert.NewMailNotifier(cfg.Alert.SMTPHost, cfg.Alert.SMTPPort,
			cfg.Alert.From, cfg.Alert.To, cfg.Alert.Password)
	}
	defer notifier.Close()

	rec, err := recorder.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize run recorder", zap.Error(err))
	}
	defer rec.Close()

	tradeLog, err := csvwriter.NewTradeLog(cfg.TradeLogDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize trade log", zap.Error(err))
	}
	defer tradeLog.Close()

	bot := trader.New(cfg, provider, eng, notifier, rec, tradeLog, clk, logger)
	if err := bot.LoadViews(); err != nil {
		logger.Fatal("Failed to compute views", zap.Error(err))
	}

	plan, err := bot.Plan(date)
	if err != nil {
		logger.Fatal("Failed to build trade plan", zap.Error(err))
	}
	fmt.Println(plan.String())
	currentVol, targetVol := bot.PlanVols(plan)
	fmt.Printf("ex-ante vol: current %.4f, target %.4f\n", currentVol, targetVol)

	if *dryRun {
		logger.Info("Dry run complete, no orders sent.")
		return
	}
	if !*yes && !confirm() {
		logger.Info("Rebalance aborted by operator.")
		return
	}

	result, err := bot.Rebalance(ctx, date)
	if err != nil {
		logger.Fatal("Rebalance failed", zap.Error(err))
	}
	logger.Info("Rebalance complete.",
		zap.String("runID", result.RunID.String()),
		zap.Int("filled", result.Report.Filled),
		zap.Int("unfilled", result.Report.Unfilled),
		zap.Float64("fractionFilled", result.Report.FractionFilled()),
		zap.Float64("navBefore", result.NAVBefore),
		zap.Float64("navAfter", result.NAVAfter))
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// confirm asks the operator before sending live orders.
func confirm() bool {
	fmt.Print("This program will trade with real money. Proceed? [y/N]: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
