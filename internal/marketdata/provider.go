// Package marketdata retrieves price panels, quotes and balances from the
// exchange and reshapes them for the portfolio pipeline.
package marketdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/exchange/poloniex"
)

// API is the slice of the exchange client the provider needs.
type API interface {
	Ticker() (map[string]poloniex.TickerEntry, error)
	ChartData(pair string, start, end int64, period int) ([]poloniex.ChartBar, error)
	Balances() (map[string]decimal.Decimal, error)
}

// Provider fetches market data for a fixed trading region. Prices are
// always expressed in home-currency terms; assets with no direct home
// market are triangulated through the configured hub currencies.
type Provider struct {
	api    API
	region []string
	home   string
	hubs   []string
	period int // bar period in seconds
	logger *zap.Logger
}

// NewProvider creates a market data provider.
func NewProvider(api API, region []string, home string, hubs []string, periodSeconds int, logger *zap.Logger) *Provider {
	return &Provider{
		api:    api,
		region: region,
		home:   home,
		hubs:   hubs,
		period: periodSeconds,
		logger: logger,
	}
}

// PricePanel loads close-price history for every region asset between
// start and end.
func (p *Provider) PricePanel(start, end time.Time) (*PricePanel, error) {
	ticker, err := p.api.Ticker()
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}

	series := make(map[string][]Candle, len(p.region))
	for _, asset := range p.region {
		if asset == p.home {
			continue
		}
		p.logger.Debug("loading price history", zap.String("asset", asset))
		candles, err := p.assetBars(ticker, asset, start, end)
		if err != nil {
			return nil, err
		}
		series[asset] = candles
	}
	return NewPricePanel(p.home, series)
}

// assetBars resolves the home-terms close series for one asset: a direct
// home market, the inverse of an asset-quoted market, or a hub-currency
// triangulation.
func (p *Provider) assetBars(ticker map[string]poloniex.TickerEntry, asset string, start, end time.Time) ([]Candle, error) {
	if _, ok := ticker[p.home+"_"+asset]; ok {
		return p.pairBars(p.home+"_"+asset, start, end, false)
	}
	if _, ok := ticker[asset+"_"+p.home]; ok {
		return p.pairBars(asset+"_"+p.home, start, end, true)
	}
	for _, hub := range p.hubs {
		_, okHub := ticker[p.home+"_"+hub]
		_, okAsset := ticker[hub+"_"+asset]
		if !okHub || !okAsset {
			continue
		}
		hubBars, err := p.pairBars(p.home+"_"+hub, start, end, false)
		if err != nil {
			return nil, err
		}
		assetBars, err := p.pairBars(hub+"_"+asset, start, end, false)
		if err != nil {
			return nil, err
		}
		return multiplyAligned(hubBars, assetBars), nil
	}
	return nil, fmt.Errorf("no market found for %s against %s or hubs %v", asset, p.home, p.hubs)
}

func (p *Provider) pairBars(pair string, start, end time.Time, invert bool) ([]Candle, error) {
	bars, err := p.api.ChartData(pair, start.Unix(), end.Unix(), p.period)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart data for %s: %w", pair, err)
	}
	candles := make([]Candle, 0, len(bars))
	for _, b := range bars {
		close := b.Close
		if invert {
			if close == 0 {
				continue
			}
			close = 1 / close
		}
		candles = append(candles, Candle{Time: b.Time(), Close: close})
	}
	return candles, nil
}

// multiplyAligned multiplies two candle series on their common timestamps,
// pricing an asset through a hub (home→hub × hub→asset).
func multiplyAligned(a, b []Candle) []Candle {
	byTime := make(map[time.Time]float64, len(a))
	for _, c := range a {
		byTime[c.Time] = c.Close
	}
	out := make([]Candle, 0, len(b))
	for _, c := range b {
		if v, ok := byTime[c.Time]; ok {
			out = append(out, Candle{Time: c.Time, Close: v * c.Close})
		}
	}
	return out
}

// CurrentPrices returns the last trade price in home terms for every
// region asset. The home currency is 1 by definition; a region asset with
// no home market is an error, never silently dropped.
func (p *Provider) CurrentPrices() (map[string]float64, error) {
	ticker, err := p.api.Ticker()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker: %w", err)
	}
	prices := make(map[string]float64, len(p.region))
	for _, asset := range p.region {
		if asset == p.home {
			prices[asset] = 1
			continue
		}
		entry, ok := ticker[p.home+"_"+asset]
		if !ok {
			return nil, fmt.Errorf("market %s_%s does not exist", p.home, asset)
		}
		prices[asset] = entry.Last.InexactFloat64()
	}
	return prices, nil
}

// BalanceSnapshot is the account state used to diff a target view against
// live holdings.
type BalanceSnapshot struct {
	Local  map[string]float64 // units of each asset
	Home   map[string]float64 // value of each priced asset in home terms
	Prices map[string]float64
	NAV    float64
}

// BalanceSnapshot fetches current balances and values them at current
// prices. Balances for assets outside the priced region appear in Local
// only.
func (p *Provider) BalanceSnapshot() (*BalanceSnapshot, error) {
	balances, err := p.api.Balances()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	prices, err := p.CurrentPrices()
	if err != nil {
		return nil, err
	}

	snap := &BalanceSnapshot{
		Local:  make(map[string]float64, len(balances)),
		Home:   make(map[string]float64, len(prices)),
		Prices: prices,
	}
	for asset, qty := range balances {
		snap.Local[asset] = qty.InexactFloat64()
	}
	for asset, price := range prices {
		value := snap.Local[asset] * price
		snap.Home[asset] = value
		snap.NAV += value
	}
	return snap, nil
}
