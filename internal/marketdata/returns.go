package marketdata

import (
	"math"
	"time"

	"github.com/your-org/crypto-rebalancer/pkg/calendar"
)

// ffillLimit bounds how many consecutive missing daily samples are carried
// forward before a gap becomes genuinely undefined.
const ffillLimit = 5

// DailyReturns derives the per-asset daily simple-return frame from a price
// panel: each asset is sampled at the last observation at or before the
// daily snap cutoff, gaps are forward-filled up to ffillLimit days, and the
// filled levels are differenced. The first observation per asset is NaN by
// construction.
func DailyReturns(panel *PricePanel, snapOffset time.Duration) *Frame {
	first, last := panel.Span()
	if first.IsZero() {
		return NewFrame(nil, panel.Assets())
	}
	dates := calendar.Daily(first, last)
	levels := NewFrame(dates, panel.Assets())

	for _, asset := range panel.Assets() {
		for _, c := range panel.Series(asset) {
			day := calendar.Midnight(c.Time)
			if c.Time.Sub(day) > snapOffset {
				continue
			}
			if i, ok := levels.DateIndex(day); ok {
				// Later candles on the same day overwrite, keeping the
				// last sample before the cutoff.
				levels.Set(i, asset, c.Close)
			}
		}
	}

	returns := NewFrame(dates, panel.Assets())
	for _, asset := range panel.Assets() {
		col := levels.Column(asset)
		forwardFill(col, ffillLimit)
		for i := 1; i < len(col); i++ {
			prev, cur := col[i-1], col[i]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				continue
			}
			returns.Set(i, asset, cur/prev-1)
		}
	}
	return returns
}

// forwardFill pads NaN runs in place with the previous value, up to limit
// consecutive entries.
func forwardFill(col []float64, limit int) {
	lastVal := math.NaN()
	gap := 0
	for i, v := range col {
		if !math.IsNaN(v) {
			lastVal = v
			gap = 0
			continue
		}
		gap++
		if gap <= limit && !math.IsNaN(lastVal) {
			col[i] = lastVal
		}
	}
}
