// Package factor generates per-asset signal panels from daily returns.
package factor

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/your-org/crypto-rebalancer/internal/marketdata"
)

// SkewKind selects the rolling skew estimator.
type SkewKind int

const (
	// Centered is the bias-corrected sample skewness over a trailing window.
	Centered SkewKind = iota
	// Adjusted computes skewness from the first four rolling power sums,
	// avoiding a second pass over the raw series.
	Adjusted
)

// Engine computes factor panels from a daily-returns frame. Each factor is
// computed independently per asset column; no cross-asset coupling.
type Engine struct {
	returns *marketdata.Frame
	logger  *zap.Logger
}

// NewEngine creates a factor engine over the daily returns frame.
func NewEngine(returns *marketdata.Frame, logger *zap.Logger) *Engine {
	return &Engine{returns: returns, logger: logger}
}

// Load computes the standard factor library keyed by name: exponentially
// weighted momentum and both skew estimators at one-week, one-month and
// three-month horizons.
func (e *Engine) Load() map[string]*marketdata.Frame {
	e.logger.Info("loading factors")
	factors := map[string]*marketdata.Frame{
		"mom 1w": e.Momentum(5),
		"mom 1m": e.Momentum(20),
		"mom 3m": e.Momentum(60),

		"skew 1w": e.Skew(5, Centered),
		"skew 1m": e.Skew(20, Centered),
		"skew 3m": e.Skew(60, Centered),

		"adj skew 1w": e.Skew(5, Adjusted),
		"adj skew 1m": e.Skew(20, Adjusted),
		"adj skew 3m": e.Skew(60, Adjusted),
	}
	return factors
}

// ValidateWeights checks that every weighted factor name exists in the
// computed library.
func ValidateWeights(weights map[string]float64, factors map[string]*marketdata.Frame) error {
	for name := range weights {
		if _, ok := factors[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUndefinedFactor, name)
		}
	}
	return nil
}

// Momentum is the exponentially weighted moving average of daily returns
// with center-of-mass com. A value is undefined until com observations
// have been seen.
func (e *Engine) Momentum(com int) *marketdata.Frame {
	out := marketdata.NewFrame(e.returns.Dates(), e.returns.Assets())
	alpha := 1.0 / (1.0 + float64(com))
	decay := 1.0 - alpha

	for _, asset := range e.returns.Assets() {
		col := e.returns.Column(asset)
		num, den := 0.0, 0.0
		seen := 0
		for i, v := range col {
			num *= decay
			den *= decay
			if !math.IsNaN(v) {
				num += v
				den += 1
				seen++
			}
			if seen >= com && den > 0 {
				out.Set(i, asset, num/den)
			}
		}
	}
	return out
}

// Skew computes the rolling skewness of daily returns over a trailing
// window, requiring window-5 observed periods.
func (e *Engine) Skew(window int, kind SkewKind) *marketdata.Frame {
	out := marketdata.NewFrame(e.returns.Dates(), e.returns.Assets())
	minPeriods := window - 5
	if minPeriods < 3 {
		minPeriods = 3 // skewness is undefined below three observations
	}

	for _, asset := range e.returns.Assets() {
		col := e.returns.Column(asset)
		for i := range col {
			lo := i - window + 1
			if lo < 0 {
				lo = 0
			}
			vals := col[lo : i+1]
			var s float64
			switch kind {
			case Centered:
				s = centeredSkew(vals, minPeriods)
			case Adjusted:
				s = adjustedSkew(vals, minPeriods)
			}
			if !math.IsNaN(s) {
				out.Set(i, asset, s)
			}
		}
	}
	return out
}

func centeredSkew(vals []float64, minPeriods int) float64 {
	obs := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			obs = append(obs, v)
		}
	}
	if len(obs) < minPeriods {
		return math.NaN()
	}
	return stat.Skew(obs, nil)
}

// adjustedSkew evaluates (m3 - m4*m1/m2) / m2^1.5 over the window's raw
// power sums.
func adjustedSkew(vals []float64, minPeriods int) float64 {
	var m1, m2, m3, m4 float64
	n := 0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		v2 := v * v
		m1 += v
		m2 += v2
		m3 += v2 * v
		m4 += v2 * v2
		n++
	}
	if n < minPeriods || m2 == 0 {
		return math.NaN()
	}
	return (m3 - m4*m1/m2) / math.Pow(m2, 1.5)
}
