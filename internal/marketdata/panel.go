package marketdata

import (
	"fmt"
	"sort"
	"time"
)

// Candle is one close-price observation.
type Candle struct {
	Time  time.Time
	Close float64
}

// PricePanel maps each asset in the region to its time-ordered close-price
// series in home-currency terms. The home currency itself carries an
// implicit constant price of 1, synthesised over the union of observed
// timestamps so it is never absent from a requested slice.
type PricePanel struct {
	home   string
	series map[string][]Candle
	assets []string
}

// NewPricePanel builds a panel from per-asset candle series. Timestamps
// must be strictly increasing per asset. The home series is synthesised.
func NewPricePanel(home string, series map[string][]Candle) (*PricePanel, error) {
	for asset, candles := range series {
		for i := 1; i < len(candles); i++ {
			if !candles[i].Time.After(candles[i-1].Time) {
				return nil, fmt.Errorf("price series for %s is not strictly increasing at %s",
					asset, candles[i].Time)
			}
		}
	}

	p := &PricePanel{home: home, series: make(map[string][]Candle, len(series)+1)}
	for asset, candles := range series {
		if asset == home {
			continue
		}
		p.series[asset] = candles
	}
	p.series[home] = constantSeries(series)

	for asset := range p.series {
		p.assets = append(p.assets, asset)
	}
	sort.Strings(p.assets)
	return p, nil
}

// constantSeries builds a price-1 series over the union of all observed
// timestamps.
func constantSeries(series map[string][]Candle) []Candle {
	seen := make(map[time.Time]struct{})
	for _, candles := range series {
		for _, c := range candles {
			seen[c.Time] = struct{}{}
		}
	}
	times := make([]time.Time, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := make([]Candle, len(times))
	for i, t := range times {
		out[i] = Candle{Time: t, Close: 1}
	}
	return out
}

// Home returns the panel's home currency.
func (p *PricePanel) Home() string { return p.home }

// Assets returns all assets in the panel, home included, sorted.
func (p *PricePanel) Assets() []string { return p.assets }

// Series returns the full candle series for asset, nil if absent.
func (p *PricePanel) Series(asset string) []Candle { return p.series[asset] }

// Slice returns the candles for asset with from <= Time <= to.
func (p *PricePanel) Slice(asset string, from, to time.Time) []Candle {
	candles := p.series[asset]
	lo := sort.Search(len(candles), func(i int) bool { return !candles[i].Time.Before(from) })
	hi := sort.Search(len(candles), func(i int) bool { return candles[i].Time.After(to) })
	return candles[lo:hi]
}

// Span returns the first and last observation times across all assets.
func (p *PricePanel) Span() (first, last time.Time) {
	for _, candles := range p.series {
		if len(candles) == 0 {
			continue
		}
		if first.IsZero() || candles[0].Time.Before(first) {
			first = candles[0].Time
		}
		if candles[len(candles)-1].Time.After(last) {
			last = candles[len(candles)-1].Time
		}
	}
	return first, last
}
