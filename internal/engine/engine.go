// Package engine prices and executes a batch of rebalance orders, driving
// them to fill through bounded cancel-and-resubmit rounds.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/exchange/poloniex"
	"github.com/your-org/crypto-rebalancer/pkg/clock"
)

// TradingAPI is the slice of the exchange client the engine needs.
type TradingAPI interface {
	Ticker() (map[string]poloniex.TickerEntry, error)
	Buy(pair string, rate, amount decimal.Decimal) (*poloniex.OrderResponse, error)
	Sell(pair string, rate, amount decimal.Decimal) (*poloniex.OrderResponse, error)
	OpenOrders() (map[string][]poloniex.OpenOrder, error)
	CancelOrder(orderNumber string) error
}

// Quoter supplies the best bid/ask used to price limit orders.
type Quoter interface {
	BestQuote(pair string) (bid, ask float64, frozen bool, err error)
}

// Config holds the execution knobs.
type Config struct {
	Home           string
	SpreadFraction float64       // limit offset as a fraction of the spread
	MaxAttempts    int           // fill-loop retry budget
	PollInterval   time.Duration // wait between open-order polls
}

// Engine executes a trade batch against the exchange.
type Engine struct {
	api    TradingAPI
	quotes Quoter
	clock  clock.Clock
	cfg    Config
	logger *zap.Logger
}

// New creates an execution engine.
func New(api TradingAPI, quotes Quoter, clk clock.Clock, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{api: api, quotes: quotes, clock: clk, cfg: cfg, logger: logger}
}

// Report summarises one execution batch. An exhausted retry budget is
// reported here as data, never as an error.
type Report struct {
	Received  int // orders handed to Execute
	Submitted int // orders accepted by the exchange at least once
	Skipped   int // dropped per-order (frozen market, rejection)
	Filled    int
	Unfilled  int
}

// FractionFilled returns the share of submitted orders that completed.
func (r Report) FractionFilled() float64 {
	if r.Submitted == 0 {
		return 1
	}
	return float64(r.Filled) / float64(r.Submitted)
}

// tracked is one live order in the fill loop. Resubmission replaces the
// exchange order number but keeps the logical order.
type tracked struct {
	order Order
	pair  string
	side  string
	id    string
}

// Execute validates, prices and submits the batch, then polls open orders
// up to the attempt budget, cancelling and repricing whatever is still
// resting each round. A failure to poll open orders aborts the loop and is
// returned as an error, distinct from a completed report.
func (e *Engine) Execute(ctx context.Context, orders []Order) (*Report, error) {
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}

	report := &Report{Received: len(orders)}
	e.logger.Info("executing order batch", zap.Int("orders", len(orders)))

	markets, err := e.api.Ticker()
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}

	var live []*tracked
	for _, o := range orders {
		t := e.submit(markets, o)
		if t == nil {
			report.Skipped++
			continue
		}
		report.Submitted++
		live = append(live, t)
	}

	for attempt := 1; attempt <= e.cfg.MaxAttempts && len(live) > 0; attempt++ {
		e.logger.Info("waiting for fills",
			zap.Int("attempt", attempt), zap.Int("open", len(live)))
		if err := e.clock.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return report, err
		}

		open, err := e.api.OpenOrders()
		if err != nil {
			// Without the open-order set the loop state is unknowable;
			// stop the round rather than cancel or resubmit blind.
			return report, fmt.Errorf("failed to poll open orders: %w", err)
		}
		openIDs := make(map[string]bool)
		for _, orders := range open {
			for _, o := range orders {
				openIDs[o.OrderNumber] = true
			}
		}

		var still []*tracked
		for _, t := range live {
			if !openIDs[t.id] {
				// No longer resting: treated as filled. A partial fill
				// cancelled mid-round is counted the same way.
				report.Filled++
				e.logger.Info("order filled", zap.String("pair", t.pair), zap.String("id", t.id))
				continue
			}
			if err := e.api.CancelOrder(t.id); err != nil {
				// It may have just filled; re-evaluate next round.
				e.logger.Warn("failed to cancel order",
					zap.String("pair", t.pair), zap.String("id", t.id), zap.Error(err))
				still = append(still, t)
				continue
			}
			if fresh := e.submit(markets, t.order); fresh != nil {
				still = append(still, fresh)
			} else {
				// Cancelled but could not resubmit: the logical order dies here.
				report.Unfilled++
			}
		}
		live = still
	}

	report.Unfilled += len(live)
	e.logger.Info("order batch complete",
		zap.Int("submitted", report.Submitted),
		zap.Int("filled", report.Filled),
		zap.Int("unfilled", report.Unfilled),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// submit resolves the market, prices the order off the live book and sends
// it. Any per-order failure (unlisted or frozen market, exchange
// rejection) logs, returns nil and leaves the rest of the batch alone.
func (e *Engine) submit(markets map[string]poloniex.TickerEntry, o Order) *tracked {
	pair, foreign, ok := resolveMarket(markets, o)
	if !ok {
		e.logger.Warn("no market for order", zap.String("order", o.String()))
		return nil
	}

	side, amount := orderSide(o, foreign)

	bid, ask, frozen, err := e.quotes.BestQuote(pair)
	if err != nil {
		e.logger.Warn("failed to quote market", zap.String("pair", pair), zap.Error(err))
		return nil
	}
	if frozen {
		e.logger.Warn("cannot trade due to exchange restriction", zap.String("pair", pair))
		return nil
	}

	// Offset from the near side by a slice of the spread: aggressive
	// enough to fill fast without crossing the whole spread.
	spread := ask - bid
	var limit float64
	if side == "buy" {
		limit = bid - spread*e.cfg.SpreadFraction
	} else {
		limit = ask + spread*e.cfg.SpreadFraction
	}

	rate := decimal.NewFromFloat(limit).Round(8)
	qty := decimal.NewFromFloat(amount).Round(8)

	var resp *poloniex.OrderResponse
	if side == "buy" {
		resp, err = e.api.Buy(pair, rate, qty)
	} else {
		resp, err = e.api.Sell(pair, rate, qty)
	}
	if err != nil {
		e.logger.Warn("failed to place order",
			zap.String("pair", pair), zap.String("side", side),
			zap.String("rate", rate.String()), zap.String("amount", qty.String()),
			zap.Error(err))
		return nil
	}

	e.logger.Info("order placed",
		zap.String("id", resp.OrderNumber), zap.String("pair", pair),
		zap.String("side", side), zap.String("rate", rate.String()),
		zap.String("amount", qty.String()))
	return &tracked{order: o, pair: pair, side: side, id: resp.OrderNumber}
}

// resolveMarket finds which of the two possible symbol orderings the
// exchange lists and returns the pair plus its quote (second) currency,
// which is the unit orders are sized in.
func resolveMarket(markets map[string]poloniex.TickerEntry, o Order) (pair, foreign string, ok bool) {
	if _, listed := markets[o.BuyAsset+"_"+o.SellAsset]; listed {
		return o.BuyAsset + "_" + o.SellAsset, o.SellAsset, true
	}
	if _, listed := markets[o.SellAsset+"_"+o.BuyAsset]; listed {
		return o.SellAsset + "_" + o.BuyAsset, o.BuyAsset, true
	}
	return "", "", false
}

// orderSide maps the order onto the exchange's pair orientation: buying
// the pair's quote currency is a "buy", disposing of it is a "sell".
func orderSide(o Order, foreign string) (side string, amount float64) {
	if o.BuyAmount != nil {
		if o.BuyAsset == foreign {
			return "buy", *o.BuyAmount
		}
		return "sell", *o.BuyAmount
	}
	if o.SellAsset == foreign {
		return "sell", *o.SellAmount
	}
	return "buy", *o.SellAmount
}
