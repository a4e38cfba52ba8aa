// Package portfolio turns factor panels into risk-targeted target weight
// vectors.
package portfolio

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/factor"
	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/internal/risk"
)

// Config holds the portfolio construction settings.
type Config struct {
	Home         string
	RiskTarget   float64 // annualized ex-ante vol target
	NoShort      bool
	LeverageCap  float64
	ForceMaxCash bool
}

// Constructor builds risk-scaled views from factors and a risk model.
type Constructor struct {
	cfg    Config
	model  *risk.Model
	logger *zap.Logger
}

// NewConstructor creates a portfolio constructor.
func NewConstructor(cfg Config, model *risk.Model, logger *zap.Logger) *Constructor {
	return &Constructor{cfg: cfg, model: model, logger: logger}
}

// ViewPanel holds one risk-scaled weight vector per date per factor plus
// the blended PORT vector. PORT rows include the home currency and sum to
// 1 by construction.
type ViewPanel struct {
	Dates   []time.Time
	Factors map[string]*marketdata.Frame
	Port    *marketdata.Frame
}

// PortRow returns the blended target weights for date, including the home
// currency. ok is false when date is outside the computed calendar.
func (v *ViewPanel) PortRow(date time.Time) (map[string]float64, bool) {
	i, ok := v.Port.DateIndex(date)
	if !ok {
		return nil, false
	}
	return v.Port.Row(i), true
}

// Build runs viewgen: per factor, drop the home column, Grinold-adjust by
// asset vol, scale to the per-factor risk target; then blend by the fixed
// factor weights, clamp shorts, re-target risk, cap leverage and assign
// the residual to the home currency.
func (c *Constructor) Build(factors map[string]*marketdata.Frame, weights map[string]float64, dates []time.Time) (*ViewPanel, error) {
	if err := factor.ValidateWeights(weights, factors); err != nil {
		return nil, err
	}

	nonHome := c.nonHomeAssets(factors)

	c.logger.Info("running factor viewgen")
	views := make(map[string]*marketdata.Frame, len(factors))
	for name, raw := range factors {
		c.logger.Debug("scaling factor view", zap.String("factor", name))
		views[name] = c.factorView(raw, nonHome, dates)
	}

	c.logger.Info("running portfolio viewgen")
	port := c.blend(views, weights, nonHome, dates)

	return &ViewPanel{Dates: dates, Factors: views, Port: port}, nil
}

func (c *Constructor) nonHomeAssets(factors map[string]*marketdata.Frame) []string {
	seen := make(map[string]struct{})
	for _, f := range factors {
		for _, a := range f.Assets() {
			if a != c.cfg.Home {
				seen[a] = struct{}{}
			}
		}
	}
	assets := make([]string, 0, len(seen))
	for a := range seen {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}

// factorView produces the risk-scaled view for a single factor: raw signal
// divided by the asset's own annualized vol, then the whole dated vector
// scaled so its ex-ante vol equals the risk target. Undefined entries
// become zero weight.
func (c *Constructor) factorView(raw *marketdata.Frame, nonHome []string, dates []time.Time) *marketdata.Frame {
	view := marketdata.NewFrame(dates, nonHome)
	for i, date := range dates {
		cov := c.model.Covariance(date)

		row := make(map[string]float64, len(nonHome))
		if ri, ok := raw.DateIndex(date); ok {
			for _, asset := range nonHome {
				v := raw.At(ri, asset)
				vol := cov.Vol(asset)
				if math.IsNaN(v) || math.IsNaN(vol) || vol == 0 {
					continue
				}
				row[asset] = v / vol
			}
		}

		scale := riskScale(cov.PortfolioVol(row), c.cfg.RiskTarget)
		for _, asset := range nonHome {
			w, ok := row[asset]
			if !ok {
				view.Set(i, asset, 0)
				continue
			}
			view.Set(i, asset, w*scale)
		}
	}
	return view
}

// blend combines the per-factor views into the PORT vector.
func (c *Constructor) blend(views map[string]*marketdata.Frame, weights map[string]float64, nonHome []string, dates []time.Time) *marketdata.Frame {
	weightSum := 0.0
	for _, w := range weights {
		weightSum += w
	}

	assets := append(append([]string(nil), nonHome...), c.cfg.Home)
	sort.Strings(assets)
	port := marketdata.NewFrame(dates, assets)

	for i, date := range dates {
		row := make(map[string]float64, len(nonHome))
		for _, asset := range nonHome {
			acc := 0.0
			for name, w := range weights {
				acc += views[name].At(i, asset) * w
			}
			v := acc / weightSum
			if c.cfg.NoShort && v < 0 {
				v = 0
			}
			row[asset] = v
		}

		// Re-target risk on the blended, clamped vector.
		cov := c.model.Covariance(date)
		scale := riskScale(cov.PortfolioVol(row), c.cfg.RiskTarget)
		leverage := 0.0
		for asset, v := range row {
			v *= scale
			row[asset] = v
			leverage += v
		}

		// Cap gross leverage, scaling down proportionally only. The
		// force-max-cash override always pins leverage to the cap.
		scalar := 1.0
		if leverage > c.cfg.LeverageCap || c.cfg.ForceMaxCash {
			scalar = c.cfg.LeverageCap / leverage
		}
		if leverage == 0 || math.IsNaN(scalar) || math.IsInf(scalar, 0) {
			scalar = 0
		}

		sum := 0.0
		for _, asset := range nonHome {
			v := row[asset] * scalar
			port.Set(i, asset, v)
			sum += v
		}
		port.Set(i, c.cfg.Home, 1-sum)
	}
	return port
}

// riskScale maps an ex-ante vol to the multiplier that hits the risk
// target, zero when the vol is undefined or degenerate so that dates
// without coverage fall back to full cash.
func riskScale(vol, target float64) float64 {
	if math.IsNaN(vol) || vol <= 0 {
		return 0
	}
	return target / vol
}
