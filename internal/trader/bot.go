// Package trader wires the data, risk, factor and execution layers into
// the rebalance pipeline.
package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/alert"
	"github.com/your-org/crypto-rebalancer/internal/config"
	"github.com/your-org/crypto-rebalancer/internal/csvwriter"
	"github.com/your-org/crypto-rebalancer/internal/engine"
	"github.com/your-org/crypto-rebalancer/internal/factor"
	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/internal/portfolio"
	"github.com/your-org/crypto-rebalancer/internal/recorder"
	"github.com/your-org/crypto-rebalancer/internal/risk"
	"github.com/your-org/crypto-rebalancer/internal/trade"
	"github.com/your-org/crypto-rebalancer/pkg/calendar"
	"github.com/your-org/crypto-rebalancer/pkg/clock"
)

// Bot runs the full rebalance pipeline: price history in, target views
// out, trades reconciled and executed against the live account.
type Bot struct {
	cfg      *config.Config
	provider *marketdata.Provider
	engine   *engine.Engine
	notifier alert.Notifier
	recorder *recorder.Recorder
	tradeLog *csvwriter.TradeLog
	clock    clock.Clock
	logger   *zap.Logger

	panel   *marketdata.PricePanel
	returns *marketdata.Frame
	model   *risk.Model
	views   *portfolio.ViewPanel
}

// New creates a bot. LoadViews must be called before planning or trading.
func New(cfg *config.Config, provider *marketdata.Provider, eng *engine.Engine,
	notifier alert.Notifier, rec *recorder.Recorder, tradeLog *csvwriter.TradeLog,
	clk clock.Clock, logger *zap.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		provider: provider,
		engine:   eng,
		notifier: notifier,
		recorder: rec,
		tradeLog: tradeLog,
		clock:    clk,
		logger:   logger,
	}
}

// LoadViews pulls price history from the configured start date to now and
// computes the daily target view panel. Factor weights are validated
// before the covariance matrices are warmed, so a misspelled factor name
// fails in seconds instead of after the expensive covgen pass.
func (b *Bot) LoadViews() error {
	start, err := b.cfg.Start()
	if err != nil {
		return err
	}
	end := b.clock.Now().UTC()

	b.logger.Info("loading price panel",
		zap.Time("start", start), zap.Time("end", end),
		zap.Strings("region", b.cfg.Region))
	panel, err := b.provider.PricePanel(start, end)
	if err != nil {
		return fmt.Errorf("failed to load price panel: %w", err)
	}
	b.panel = panel

	snapOffset := time.Duration(b.cfg.SnapTime.Minutes()) * time.Minute
	b.returns = marketdata.DailyReturns(panel, snapOffset)
	dates := b.returns.Dates()

	factors := factor.NewEngine(b.returns, b.logger).Load()
	if err := factor.ValidateWeights(b.cfg.FactorWeights, factors); err != nil {
		return err
	}

	b.model = risk.NewModel(panel, b.cfg.CovWindowDays, b.cfg.CovMinObservations,
		b.cfg.BarPeriodSeconds, b.logger)
	b.model.Warm(dates)

	constructor := portfolio.NewConstructor(portfolio.Config{
		Home:         b.cfg.Home,
		RiskTarget:   b.cfg.RiskTarget,
		NoShort:      bool(b.cfg.NoShort),
		LeverageCap:  b.cfg.LeverageCap,
		ForceMaxCash: bool(b.cfg.ForceMaxCash),
	}, b.model, b.logger)

	views, err := constructor.Build(factors, b.cfg.FactorWeights, dates)
	if err != nil {
		return err
	}
	b.views = views
	b.logger.Info("views computed", zap.Int("dates", len(dates)))
	return nil
}

// Views returns the computed view panel, nil before LoadViews.
func (b *Bot) Views() *portfolio.ViewPanel { return b.views }

// Returns returns the daily returns frame, nil before LoadViews.
func (b *Bot) Returns() *marketdata.Frame { return b.returns }

// Plan reconciles the target view at date against live balances.
func (b *Bot) Plan(date time.Time) (*trade.Plan, error) {
	if b.views == nil {
		return nil, fmt.Errorf("views not loaded")
	}
	snap, err := b.provider.BalanceSnapshot()
	if err != nil {
		return nil, err
	}
	return trade.Generate(b.views, snap, b.cfg.Region, calendar.Midnight(date))
}

// PlanVols returns the ex-ante annualized vol of the current and target
// weights at the plan's date. Only valid after LoadViews.
func (b *Bot) PlanVols(plan *trade.Plan) (current, target float64) {
	cov := b.model.Covariance(plan.Date)
	return cov.PortfolioVol(plan.CurrentWeights()), cov.PortfolioVol(plan.DesiredWeights())
}

// RunResult is the outcome of one executed rebalance.
type RunResult struct {
	RunID     uuid.UUID
	Plan      *trade.Plan
	Report    *engine.Report
	NAVBefore float64
	NAVAfter  float64
}

// Rebalance plans and executes the rebalance for date, then records the
// run to the trade log, the database and the alert channel. Execution
// errors surface alongside whatever partial report exists.
func (b *Bot) Rebalance(ctx context.Context, date time.Time) (*RunResult, error) {
	plan, err := b.Plan(date)
	if err != nil {
		return nil, err
	}

	cov := b.model.Covariance(date)
	b.logger.Info("rebalancing",
		zap.String("date", plan.Date.Format("2006-01-02")),
		zap.Float64("nav", plan.NAV),
		zap.Float64("currentVol", cov.PortfolioVol(plan.CurrentWeights())),
		zap.Float64("targetVol", cov.PortfolioVol(plan.DesiredWeights())))

	orders := engine.SplitTrades(plan.Vector(), b.cfg.Home)
	result := &RunResult{RunID: uuid.New(), Plan: plan, NAVBefore: plan.NAV}

	report, execErr := b.engine.Execute(ctx, orders)
	result.Report = report
	if report == nil {
		return result, execErr
	}

	result.NAVAfter = result.NAVBefore
	if snap, err := b.provider.BalanceSnapshot(); err != nil {
		b.logger.Warn("failed to fetch post-trade balances", zap.Error(err))
	} else {
		result.NAVAfter = snap.NAV
	}

	b.record(ctx, result)
	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// record persists the run everywhere it is supposed to land. Recording
// failures are logged, never fatal: the trades already happened.
func (b *Bot) record(ctx context.Context, result *RunResult) {
	now := b.clock.Now().UTC()

	if b.tradeLog != nil {
		for _, row := range result.Plan.Rows {
			if row.Trade == 0 {
				continue
			}
			err := b.tradeLog.Append(csvwriter.Row{
				Time:  now,
				RunID: result.RunID.String(),
				Asset: row.Asset,
				Units: row.Trade,
				Price: row.Price,
				NAV:   result.NAVBefore,
			})
			if err != nil {
				b.logger.Warn("failed to append trade log row", zap.Error(err))
			}
		}
	}

	run := recorder.Run{
		ID:             result.RunID,
		Time:           now,
		Date:           result.Plan.Date,
		NAVBefore:      result.NAVBefore,
		NAVAfter:       result.NAVAfter,
		Submitted:      result.Report.Submitted,
		Filled:         result.Report.Filled,
		Unfilled:       result.Report.Unfilled,
		Skipped:        result.Report.Skipped,
		FractionFilled: result.Report.FractionFilled(),
	}
	if err := b.recorder.SaveRun(ctx, run); err != nil {
		b.logger.Warn("failed to save run", zap.Error(err))
	}
	var records []recorder.OrderRecord
	for _, row := range result.Plan.Rows {
		if row.Trade == 0 {
			continue
		}
		records = append(records, recorder.OrderRecord{
			RunID:      result.RunID,
			Asset:      row.Asset,
			TradeUnits: row.Trade,
			Price:      row.Price,
		})
	}
	if err := b.recorder.SaveOrders(ctx, records); err != nil {
		b.logger.Warn("failed to save orders", zap.Error(err))
	}

	subject := fmt.Sprintf("rebalance complete %s", result.Plan.Date.Format("2006-01-02"))
	body := fmt.Sprintf("run %s\nsubmitted %d, filled %d, unfilled %d, skipped %d\nNAV %.6f -> %.6f\n\n%s",
		result.RunID, result.Report.Submitted, result.Report.Filled,
		result.Report.Unfilled, result.Report.Skipped,
		result.NAVBefore, result.NAVAfter, result.Plan.String())
	if err := b.notifier.Send(subject, body); err != nil {
		b.logger.Warn("failed to send completion alert", zap.Error(err))
	}
}
