// Package trade reconciles a target view against live holdings.
package trade

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/internal/portfolio"
)

var (
	// ErrDateNotComputed means the requested rebalance date is outside the
	// computed view calendar: the portfolio was not generated far enough
	// forward. A sequencing bug, not a data gap.
	ErrDateNotComputed = errors.New("target view not computed for date")
	// ErrUntradable means an asset in the target view has no entry in the
	// exchange balance universe.
	ErrUntradable = errors.New("asset not tradable")
	// ErrRegionMismatch means the resulting trade vector does not cover
	// the configured region exactly.
	ErrRegionMismatch = errors.New("trade vector does not match configured region")
)

// Row is the per-asset reconciliation of a plan.
type Row struct {
	Asset         string
	Price         float64 // home currency per unit
	CurrentUnits  float64
	DesiredUnits  float64
	Trade         float64 // desired - current, local units
	CurrentWeight float64 // fraction of NAV
	DesiredWeight float64
}

// Plan is a fully validated trade vector for one rebalance date.
type Plan struct {
	Date time.Time
	NAV  float64 // in home currency
	Rows []Row
}

// Generate converts the target view at date into local-unit trade amounts
// against current balances. Structural problems (date outside the
// calendar, untradable assets, region mismatch) fail fast before any
// order is constructed.
func Generate(views *portfolio.ViewPanel, snap *marketdata.BalanceSnapshot, region []string, date time.Time) (*Plan, error) {
	weights, ok := views.PortRow(date)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDateNotComputed, date.Format("2006-01-02"))
	}

	plan := &Plan{Date: date, NAV: snap.NAV}
	for asset, weight := range weights {
		price, ok := snap.Prices[asset]
		if !ok || price <= 0 || math.IsNaN(price) {
			continue
		}
		current, ok := snap.Local[asset]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUntradable, asset)
		}
		desired := weight * snap.NAV / price
		plan.Rows = append(plan.Rows, Row{
			Asset:         asset,
			Price:         price,
			CurrentUnits:  current,
			DesiredUnits:  desired,
			Trade:         desired - current,
			CurrentWeight: current * price / snap.NAV,
			DesiredWeight: weight,
		})
	}
	sort.Slice(plan.Rows, func(i, j int) bool { return plan.Rows[i].Asset < plan.Rows[j].Asset })

	if err := plan.checkRegion(region); err != nil {
		return nil, err
	}
	return plan, nil
}

// checkRegion verifies the plan's asset set equals the configured region
// exactly; a mismatch is a configuration error, never silently dropped.
func (p *Plan) checkRegion(region []string) error {
	have := make(map[string]bool, len(p.Rows))
	for _, r := range p.Rows {
		have[r.Asset] = true
	}
	var missing, extra []string
	for _, a := range region {
		if !have[a] {
			missing = append(missing, a)
		}
		delete(have, a)
	}
	for a := range have {
		extra = append(extra, a)
	}
	if len(missing) > 0 || len(extra) > 0 {
		return fmt.Errorf("%w: missing %v, extra %v", ErrRegionMismatch, missing, extra)
	}
	return nil
}

// Vector returns the signed per-asset trade amounts in local units.
func (p *Plan) Vector() map[string]float64 {
	out := make(map[string]float64, len(p.Rows))
	for _, r := range p.Rows {
		out[r.Asset] = r.Trade
	}
	return out
}

// CurrentWeights returns current holdings as fractions of NAV.
func (p *Plan) CurrentWeights() map[string]float64 {
	out := make(map[string]float64, len(p.Rows))
	for _, r := range p.Rows {
		out[r.Asset] = r.CurrentWeight
	}
	return out
}

// DesiredWeights returns the target view as fractions of NAV.
func (p *Plan) DesiredWeights() map[string]float64 {
	out := make(map[string]float64, len(p.Rows))
	for _, r := range p.Rows {
		out[r.Asset] = r.DesiredWeight
	}
	return out
}

// String renders the plan as a fixed-width table for the dry-run output.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rebalance plan for %s (NAV %.4f)\n", p.Date.Format("2006-01-02"), p.NAV)
	fmt.Fprintf(&b, "%-8s %14s %14s %14s %9s %9s\n",
		"asset", "current", "desired", "trade", "cur wgt", "tgt wgt")
	for _, r := range p.Rows {
		fmt.Fprintf(&b, "%-8s %14.6f %14.6f %14.6f %8.2f%% %8.2f%%\n",
			r.Asset, r.CurrentUnits, r.DesiredUnits, r.Trade,
			r.CurrentWeight*100, r.DesiredWeight*100)
	}
	return b.String()
}
