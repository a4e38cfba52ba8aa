// Package risk builds annualized covariance matrices from trailing windows
// of the price panel.
package risk

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/pkg/calendar"
)

const secondsInAYear = 365.0 * 24.0 * 3600.0

// Model computes per-date sample covariance matrices over a trailing
// business-day window, annualized from the bar sampling period. Assets
// with too few observations inside the window are excluded for that date
// only; the matrix degenerates to whatever coverage remains rather than
// failing the run.
type Model struct {
	panel      *marketdata.PricePanel
	windowDays int
	minObs     int
	annualizer float64
	logger     *zap.Logger

	cache map[time.Time]*Matrix
}

// NewModel creates a risk model over panel. windowDays is measured in
// business days, barPeriodSeconds is the panel's sampling period.
func NewModel(panel *marketdata.PricePanel, windowDays, minObs, barPeriodSeconds int, logger *zap.Logger) *Model {
	return &Model{
		panel:      panel,
		windowDays: windowDays,
		minObs:     minObs,
		annualizer: secondsInAYear / float64(barPeriodSeconds),
		logger:     logger,
		cache:      make(map[time.Time]*Matrix),
	}
}

// Covariance returns the annualized covariance matrix for date, computing
// and caching it on first use.
func (m *Model) Covariance(date time.Time) *Matrix {
	date = calendar.Midnight(date)
	if cached, ok := m.cache[date]; ok {
		return cached
	}
	mat := m.compute(date)
	m.cache[date] = mat
	return mat
}

// Warm precomputes the covariance matrix for every date in the rebalance
// calendar (covgen).
func (m *Model) Warm(dates []time.Time) {
	m.logger.Info("running covgen", zap.Int("dates", len(dates)))
	for _, d := range dates {
		m.Covariance(d)
	}
}

func (m *Model) compute(date time.Time) *Matrix {
	start := calendar.AddBusinessDays(date, -m.windowDays)
	end := date.AddDate(0, 0, 1).Add(-time.Nanosecond)

	// Per-asset returns keyed by bar time, restricted to assets with
	// enough raw observations in the window.
	returns := make(map[string]map[int64]float64)
	var assets []string
	for _, asset := range m.panel.Assets() {
		candles := m.panel.Slice(asset, start, end)
		if len(candles) <= m.minObs {
			continue
		}
		r := make(map[int64]float64, len(candles))
		for i := 1; i < len(candles); i++ {
			prev := candles[i-1].Close
			if prev == 0 {
				continue
			}
			r[candles[i].Time.Unix()] = candles[i].Close/prev - 1
		}
		returns[asset] = r
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	mx := newMatrix(assets)
	for i, a := range assets {
		for j := i; j < len(assets); j++ {
			b := assets[j]
			cov := pairwiseCovariance(returns[a], returns[b])
			mx.sym.SetSym(i, j, cov*m.annualizer)
		}
	}
	return mx
}

// pairwiseCovariance computes the sample covariance of two return series
// over their jointly observed bar times, mirroring pandas' pairwise NaN
// handling.
func pairwiseCovariance(a, b map[int64]float64) float64 {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(a))
	for t, va := range a {
		if vb, ok := b[t]; ok {
			xs = append(xs, va)
			ys = append(ys, vb)
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Covariance(xs, ys, nil)
}
