// Package engine tests the execution engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/exchange/poloniex"
)

// fakeClock sleeps instantly and counts the rounds.
type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	return ctx.Err()
}

type placedOrder struct {
	pair   string
	side   string
	rate   decimal.Decimal
	amount decimal.Decimal
}

// fakeAPI scripts the exchange. openOrders is consumed one response per
// poll; the last entry repeats.
type fakeAPI struct {
	markets    map[string]poloniex.TickerEntry
	placed     []placedOrder
	cancelled  []string
	openOrders []map[string][]poloniex.OpenOrder
	openErr    error
	placeErr   error
	cancelErr  error
	nextID     int
}

func (f *fakeAPI) Ticker() (map[string]poloniex.TickerEntry, error) { return f.markets, nil }

func (f *fakeAPI) place(side, pair string, rate, amount decimal.Decimal) (*poloniex.OrderResponse, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.nextID++
	f.placed = append(f.placed, placedOrder{pair: pair, side: side, rate: rate, amount: amount})
	return &poloniex.OrderResponse{OrderNumber: fmt.Sprintf("%d", f.nextID)}, nil
}

func (f *fakeAPI) Buy(pair string, rate, amount decimal.Decimal) (*poloniex.OrderResponse, error) {
	return f.place("buy", pair, rate, amount)
}

func (f *fakeAPI) Sell(pair string, rate, amount decimal.Decimal) (*poloniex.OrderResponse, error) {
	return f.place("sell", pair, rate, amount)
}

func (f *fakeAPI) OpenOrders() (map[string][]poloniex.OpenOrder, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if len(f.openOrders) == 0 {
		return map[string][]poloniex.OpenOrder{}, nil
	}
	resp := f.openOrders[0]
	if len(f.openOrders) > 1 {
		f.openOrders = f.openOrders[1:]
	}
	return resp, nil
}

func (f *fakeAPI) CancelOrder(orderNumber string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderNumber)
	return nil
}

// fakeQuoter returns a fixed book per pair.
type fakeQuoter struct {
	bid, ask map[string]float64
	frozen   map[string]bool
}

func (q *fakeQuoter) BestQuote(pair string) (float64, float64, bool, error) {
	return q.bid[pair], q.ask[pair], q.frozen[pair], nil
}

func btcMarkets(pairs ...string) map[string]poloniex.TickerEntry {
	m := make(map[string]poloniex.TickerEntry, len(pairs))
	for _, p := range pairs {
		m[p] = poloniex.TickerEntry{}
	}
	return m
}

func newTestEngine(api *fakeAPI, quotes *fakeQuoter, maxAttempts int) (*Engine, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	cfg := Config{
		Home:           "BTC",
		SpreadFraction: 0.05,
		MaxAttempts:    maxAttempts,
		PollInterval:   time.Minute,
	}
	return New(api, quotes, clk, cfg, zap.NewNop()), clk
}

func TestExecute_AllFilledFirstPoll(t *testing.T) {
	api := &fakeAPI{markets: btcMarkets("BTC_ETH", "BTC_XRP")}
	quotes := &fakeQuoter{
		bid: map[string]float64{"BTC_ETH": 0.0300, "BTC_XRP": 0.000010},
		ask: map[string]float64{"BTC_ETH": 0.0320, "BTC_XRP": 0.000012},
	}
	eng, clk := newTestEngine(api, quotes, 59)

	buy, sell := 2.5, 100.0
	orders := []Order{
		{BuyAsset: "BTC", SellAsset: "XRP", SellAmount: &sell},
		{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &buy},
	}

	report, err := eng.Execute(context.Background(), orders)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Received)
	assert.Equal(t, 2, report.Submitted)
	assert.Equal(t, 2, report.Filled)
	assert.Equal(t, 0, report.Unfilled)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1.0, report.FractionFilled())
	assert.Equal(t, 1, clk.sleeps)

	require.Len(t, api.placed, 2)

	// Selling XRP on the BTC_XRP market is a "sell", limited one slice of
	// the spread above the ask.
	assert.Equal(t, "BTC_XRP", api.placed[0].pair)
	assert.Equal(t, "sell", api.placed[0].side)
	wantSell := decimal.NewFromFloat(0.000012 + (0.000012-0.000010)*0.05).Round(8)
	assert.True(t, api.placed[0].rate.Equal(wantSell), "got %s want %s", api.placed[0].rate, wantSell)

	// Buying ETH is a "buy", limited one slice under the bid.
	assert.Equal(t, "BTC_ETH", api.placed[1].pair)
	assert.Equal(t, "buy", api.placed[1].side)
	wantBuy := decimal.NewFromFloat(0.0300 - (0.0320-0.0300)*0.05).Round(8)
	assert.True(t, api.placed[1].rate.Equal(wantBuy), "got %s want %s", api.placed[1].rate, wantBuy)
}

func TestExecute_FrozenMarketSkipped(t *testing.T) {
	api := &fakeAPI{markets: btcMarkets("BTC_ETH")}
	quotes := &fakeQuoter{
		bid:    map[string]float64{"BTC_ETH": 0.03},
		ask:    map[string]float64{"BTC_ETH": 0.032},
		frozen: map[string]bool{"BTC_ETH": true},
	}
	eng, _ := newTestEngine(api, quotes, 59)

	buy := 1.0
	report, err := eng.Execute(context.Background(), []Order{
		{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &buy},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Submitted)
	assert.Empty(t, api.placed)
	assert.Equal(t, 1.0, report.FractionFilled())
}

func TestExecute_UnlistedMarketSkipped(t *testing.T) {
	api := &fakeAPI{markets: btcMarkets("BTC_ETH")}
	quotes := &fakeQuoter{bid: map[string]float64{}, ask: map[string]float64{}}
	eng, _ := newTestEngine(api, quotes, 59)

	buy := 1.0
	report, err := eng.Execute(context.Background(), []Order{
		{BuyAsset: "DGB", SellAsset: "BTC", BuyAmount: &buy},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Submitted)
}

func TestExecute_CancelAndResubmitUntilExhausted(t *testing.T) {
	api := &fakeAPI{markets: btcMarkets("BTC_ETH")}
	quotes := &fakeQuoter{
		bid: map[string]float64{"BTC_ETH": 0.03},
		ask: map[string]float64{"BTC_ETH": 0.032},
	}
	// Every poll reports every order still resting.
	api.openOrders = []map[string][]poloniex.OpenOrder{
		{"BTC_ETH": {{OrderNumber: "1"}}},
		{"BTC_ETH": {{OrderNumber: "2"}}},
		{"BTC_ETH": {{OrderNumber: "3"}}},
	}
	eng, clk := newTestEngine(api, quotes, 3)

	buy := 1.0
	report, err := eng.Execute(context.Background(), []Order{
		{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &buy},
	})
	require.NoError(t, err, "running out of attempts is not an execution failure")
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 0, report.Filled)
	assert.Equal(t, 1, report.Unfilled)
	assert.Equal(t, 3, clk.sleeps)
	assert.Equal(t, []string{"1", "2", "3"}, api.cancelled)
	assert.Len(t, api.placed, 4) // initial submit plus one resubmit per round
	assert.Equal(t, 0.0, report.FractionFilled())
}

func TestExecute_PollFailureIsError(t *testing.T) {
	api := &fakeAPI{
		markets: btcMarkets("BTC_ETH"),
		openErr: errors.New("gateway timeout"),
	}
	quotes := &fakeQuoter{
		bid: map[string]float64{"BTC_ETH": 0.03},
		ask: map[string]float64{"BTC_ETH": 0.032},
	}
	eng, _ := newTestEngine(api, quotes, 59)

	buy := 1.0
	report, err := eng.Execute(context.Background(), []Order{
		{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &buy},
	})
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Submitted)
	assert.Empty(t, api.cancelled)
}

func TestExecute_CancelledContextStopsLoop(t *testing.T) {
	api := &fakeAPI{markets: btcMarkets("BTC_ETH")}
	api.openOrders = []map[string][]poloniex.OpenOrder{
		{"BTC_ETH": {{OrderNumber: "1"}}},
	}
	quotes := &fakeQuoter{
		bid: map[string]float64{"BTC_ETH": 0.03},
		ask: map[string]float64{"BTC_ETH": 0.032},
	}
	eng, _ := newTestEngine(api, quotes, 59)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buy := 1.0
	report, err := eng.Execute(ctx, []Order{
		{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &buy},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Submitted)
}

func TestExecute_InvalidOrderFailsBeforeSubmission(t *testing.T) {
	api := &fakeAPI{markets: btcMarkets("BTC_ETH")}
	eng, _ := newTestEngine(api, &fakeQuoter{}, 59)

	buy, sell := 1.0, 1.0
	_, err := eng.Execute(context.Background(), []Order{
		{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &buy, SellAmount: &sell},
	})
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Empty(t, api.placed)
}

func TestResolveMarket(t *testing.T) {
	markets := btcMarkets("BTC_ETH", "USDT_BTC")
	buy := 1.0

	pair, foreign, ok := resolveMarket(markets, Order{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &buy})
	require.True(t, ok)
	assert.Equal(t, "BTC_ETH", pair)
	assert.Equal(t, "ETH", foreign)

	// Reversed listing resolves to the same market.
	pair, foreign, ok = resolveMarket(markets, Order{BuyAsset: "BTC", SellAsset: "USDT", BuyAmount: &buy})
	require.True(t, ok)
	assert.Equal(t, "USDT_BTC", pair)
	assert.Equal(t, "BTC", foreign)

	_, _, ok = resolveMarket(markets, Order{BuyAsset: "DGB", SellAsset: "BTC", BuyAmount: &buy})
	assert.False(t, ok)
}

func TestOrderSide(t *testing.T) {
	amt := 2.0
	tests := []struct {
		name       string
		order      Order
		foreign    string
		wantSide   string
		wantAmount float64
	}{
		{"buy the quote currency", Order{BuyAsset: "ETH", SellAsset: "BTC", BuyAmount: &amt}, "ETH", "buy", 2.0},
		{"sell the quote currency", Order{BuyAsset: "BTC", SellAsset: "ETH", SellAmount: &amt}, "ETH", "sell", 2.0},
		{"buy amount in the base currency", Order{BuyAsset: "BTC", SellAsset: "ETH", BuyAmount: &amt}, "ETH", "sell", 2.0},
		{"sell amount in the base currency", Order{BuyAsset: "ETH", SellAsset: "BTC", SellAmount: &amt}, "ETH", "buy", 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, amount := orderSide(tt.order, tt.foreign)
			assert.Equal(t, tt.wantSide, side)
			assert.Equal(t, tt.wantAmount, amount)
		})
	}
}
