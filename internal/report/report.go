// Package report backtests the computed views against realized returns.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/internal/portfolio"
	"github.com/your-org/crypto-rebalancer/pkg/calendar"
)

// DefaultTradeCost is the assumed one-way cost per unit of turnover.
const DefaultTradeCost = 0.0025

const weeksPerYear = 52.0

// Stats holds the weekly backtest statistics for one view series.
type Stats struct {
	Name         string
	Weeks        int
	AnnualReturn float64 // net, annualized
	AnnualVol    float64
	GrossSharpe  float64
	NetSharpe    float64
	AvgTurnover  float64 // average weekly two-sided turnover / 2
}

// FactorStats resamples each factor view and the blended portfolio to a
// weekly rule and computes gross and cost-adjusted performance. lag is the
// number of weeks between computing a view and trading it; tcost is the
// one-way cost per unit of turnover.
func FactorStats(views *portfolio.ViewPanel, returns *marketdata.Frame, lag int, tcost float64) []Stats {
	names := make([]string, 0, len(views.Factors))
	for name := range views.Factors {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make([]Stats, 0, len(names)+1)
	for _, name := range names {
		stats = append(stats, seriesStats(name, views.Factors[name], views.Dates, returns, lag, tcost))
	}
	stats = append(stats, seriesStats("PORT", views.Port, views.Dates, returns, lag, tcost))
	return stats
}

// seriesStats backtests one weight frame on the weekly grid.
func seriesStats(name string, weights *marketdata.Frame, dates []time.Time, returns *marketdata.Frame, lag int, tcost float64) Stats {
	weekEnds := calendar.LastPerWeek(dates)
	if len(weekEnds) < 2 {
		return Stats{Name: name}
	}

	var gross, net []float64
	var turnoverSum float64
	for k := 1; k < len(weekEnds); k++ {
		// Trade the view computed lag weeks before the week being earned.
		wk := k - 1 - lag
		if wk < 0 {
			continue
		}

		row := definedRow(weights, dates[weekEnds[wk]])
		var prev map[string]float64
		if wk > 0 {
			prev = definedRow(weights, dates[weekEnds[wk-1]])
		}

		ret := 0.0
		for asset, w := range row {
			ret += w * weeklyReturn(returns, dates, weekEnds[k-1], weekEnds[k], asset)
		}

		turnover := weightChange(row, prev) / 2
		turnoverSum += turnover
		gross = append(gross, ret)
		net = append(net, ret-turnover*tcost)
	}

	if len(gross) == 0 {
		return Stats{Name: name}
	}

	netMean, netStd := meanStd(net)
	grossMean, grossStd := meanStd(gross)
	return Stats{
		Name:         name,
		Weeks:        len(gross),
		AnnualReturn: netMean * weeksPerYear,
		AnnualVol:    netStd * math.Sqrt(weeksPerYear),
		GrossSharpe:  sharpe(grossMean, grossStd),
		NetSharpe:    sharpe(netMean, netStd),
		AvgTurnover:  turnoverSum / float64(len(gross)),
	}
}

// weeklyReturn compounds the daily returns for asset over days (from, to].
func weeklyReturn(returns *marketdata.Frame, dates []time.Time, from, to int, asset string) float64 {
	acc := 1.0
	for i := from + 1; i <= to; i++ {
		ri, ok := returns.DateIndex(dates[i])
		if !ok {
			continue
		}
		if r := returns.At(ri, asset); !math.IsNaN(r) {
			acc *= 1 + r
		}
	}
	return acc - 1
}

// definedRow returns the non-NaN weights at date, empty when the date is
// outside the frame.
func definedRow(f *marketdata.Frame, date time.Time) map[string]float64 {
	i, ok := f.DateIndex(date)
	if !ok {
		return nil
	}
	return f.Row(i)
}

// weightChange sums the absolute per-asset weight moves between two rows.
func weightChange(cur, prev map[string]float64) float64 {
	sum := 0.0
	for asset, w := range cur {
		sum += math.Abs(w - prev[asset])
	}
	for asset, w := range prev {
		if _, ok := cur[asset]; !ok {
			sum += math.Abs(w)
		}
	}
	return sum
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

func sharpe(mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(weeksPerYear)
}

// Table renders the stats as a fixed-width text table.
func Table(stats []Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %6s %10s %9s %13s %11s %10s\n",
		"view", "weeks", "ann ret", "ann vol", "gross sharpe", "net sharpe", "turnover")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-14s %6d %9.2f%% %8.2f%% %13.2f %11.2f %10.3f\n",
			s.Name, s.Weeks, s.AnnualReturn*100, s.AnnualVol*100, s.GrossSharpe, s.NetSharpe, s.AvgTurnover)
	}
	return b.String()
}
