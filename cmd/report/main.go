// Package main backtests the factor library and prints a performance table.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/alert"
	"github.com/your-org/crypto-rebalancer/internal/config"
	"github.com/your-org/crypto-rebalancer/internal/exchange/poloniex"
	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/internal/recorder"
	"github.com/your-org/crypto-rebalancer/internal/report"
	"github.com/your-org/crypto-rebalancer/internal/trader"
	"github.com/your-org/crypto-rebalancer/pkg/clock"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	tcost := flag.Float64("tcost", report.DefaultTradeCost, "One-way cost per unit of turnover")
	lag := flag.Int("lag", -1, "Trading lag in weeks, -1 uses the configured value")
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

	tradingLag := cfg.TradingLag
	if *lag >= 0 {
		tradingLag = *lag
	}

	client := poloniex.NewClient(cfg.APIKey, cfg.APISecret)
	provider := marketdata.NewProvider(client, cfg.Region, cfg.Home, cfg.HubCurrencies,
		cfg.BarPeriodSeconds, logger)

	// The report pipeline never trades, so the execution and recording
	// dependencies stay nil or no-op.
	bot := trader.New(cfg, provider, nil, alert.NewNoOpNotifier(),
		recorder.NewWithPool(nil, logger), nil, clock.Real{}, logger)
	if err := bot.LoadViews(); err != nil {
		logger.Fatal("Failed to compute views", zap.Error(err))
	}

	stats := report.FactorStats(bot.Views(), bot.Returns(), tradingLag, *tcost)
	fmt.Print(report.Table(stats))
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
