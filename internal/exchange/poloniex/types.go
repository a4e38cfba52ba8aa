package poloniex

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerEntry is one market's entry in the returnTicker response.
// Poloniex serialises every numeric field as a string.
type TickerEntry struct {
	Last          decimal.Decimal `json:"last"`
	LowestAsk     decimal.Decimal `json:"lowestAsk"`
	HighestBid    decimal.Decimal `json:"highestBid"`
	PercentChange decimal.Decimal `json:"percentChange"`
	BaseVolume    decimal.Decimal `json:"baseVolume"`
	IsFrozen      string          `json:"isFrozen"`
}

// Frozen reports whether the market is administratively halted.
func (t TickerEntry) Frozen() bool { return t.IsFrozen != "0" }

// ChartBar is a single OHLCV candle from returnChartData. Unlike the
// trading endpoints, chart values come back as JSON numbers.
type ChartBar struct {
	Date            int64   `json:"date"` // unix seconds, bar open
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	Open            float64 `json:"open"`
	Close           float64 `json:"close"`
	Volume          float64 `json:"volume"`
	QuoteVolume     float64 `json:"quoteVolume"`
	WeightedAverage float64 `json:"weightedAverage"`
}

// Time returns the bar open time in UTC.
func (b ChartBar) Time() time.Time { return time.Unix(b.Date, 0).UTC() }

// OpenOrder is one resting order in the returnOpenOrders response.
type OpenOrder struct {
	OrderNumber    string          `json:"orderNumber"`
	Type           string          `json:"type"` // "buy" or "sell"
	Rate           decimal.Decimal `json:"rate"`
	StartingAmount decimal.Decimal `json:"startingAmount"`
	Amount         decimal.Decimal `json:"amount"`
	Total          decimal.Decimal `json:"total"`
}

// OrderResponse is returned by the buy and sell commands.
type OrderResponse struct {
	OrderNumber     string           `json:"orderNumber"`
	ResultingTrades []ResultingTrade `json:"resultingTrades"`
}

// ResultingTrade is an immediate (taker) fill reported with an order ack.
type ResultingTrade struct {
	Amount  decimal.Decimal `json:"amount"`
	Rate    decimal.Decimal `json:"rate"`
	Total   decimal.Decimal `json:"total"`
	TradeID string          `json:"tradeID"`
	Type    string          `json:"type"`
}

// CancelResponse is returned by the cancelOrder command.
type CancelResponse struct {
	Success int `json:"success"`
}

// apiError is the error envelope every trading endpoint may return in
// place of its normal payload.
type apiError struct {
	Error string `json:"error"`
}
