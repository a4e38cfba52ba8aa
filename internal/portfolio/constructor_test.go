package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/crypto-rebalancer/internal/factor"
	"github.com/your-org/crypto-rebalancer/internal/marketdata"
	"github.com/your-org/crypto-rebalancer/internal/risk"
)

var viewDate = time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

// testModel builds a risk model where A and B have identical, well-covered
// return series around viewDate.
func testModel(t *testing.T) *risk.Model {
	t.Helper()
	day := func(d int) time.Time {
		return time.Date(2024, 3, 4+d, 0, 0, 0, 0, time.UTC)
	}
	candles := func(closes ...float64) []marketdata.Candle {
		out := make([]marketdata.Candle, len(closes))
		for i, c := range closes {
			out[i] = marketdata.Candle{Time: day(i), Close: c}
		}
		return out
	}
	panel, err := marketdata.NewPricePanel("BTC", map[string][]marketdata.Candle{
		"A": candles(100, 110, 99, 104.5),
		"B": candles(50, 55, 49.5, 52.25),
	})
	require.NoError(t, err)
	return risk.NewModel(panel, 10, 3, 86400, zap.NewNop())
}

func rawFactor(signals map[string]float64) map[string]*marketdata.Frame {
	assets := make([]string, 0, len(signals))
	for a := range signals {
		assets = append(assets, a)
	}
	f := marketdata.NewFrame([]time.Time{viewDate}, assets)
	for a, v := range signals {
		f.Set(0, a, v)
	}
	return map[string]*marketdata.Frame{"mom 1m": f}
}

func buildPort(t *testing.T, cfg Config, signals map[string]float64) map[string]float64 {
	t.Helper()
	c := NewConstructor(cfg, testModel(t), zap.NewNop())
	views, err := c.Build(rawFactor(signals), map[string]float64{"mom 1m": 1.0}, []time.Time{viewDate})
	require.NoError(t, err)
	row, ok := views.PortRow(viewDate)
	require.True(t, ok)
	return row
}

func sumRow(row map[string]float64) float64 {
	s := 0.0
	for _, v := range row {
		s += v
	}
	return s
}

func TestBuild_PortSumsToOne(t *testing.T) {
	cfg := Config{Home: "BTC", RiskTarget: 1.0, NoShort: true, LeverageCap: 0.98}
	row := buildPort(t, cfg, map[string]float64{"A": 2, "B": 1})

	assert.InDelta(t, 1.0, sumRow(row), 1e-9)
	assert.Greater(t, row["A"], row["B"], "stronger signal gets more weight")
	assert.Greater(t, row["B"], 0.0)
}

func TestBuild_NoShortClampsNegatives(t *testing.T) {
	cfg := Config{Home: "BTC", RiskTarget: 1.0, NoShort: true, LeverageCap: 0.98}
	row := buildPort(t, cfg, map[string]float64{"A": 2, "B": -1})

	assert.Zero(t, row["B"])
	assert.Greater(t, row["A"], 0.0)
	assert.InDelta(t, 1.0, sumRow(row), 1e-9)
}

func TestBuild_ShortsSurviveWithoutNoShort(t *testing.T) {
	cfg := Config{Home: "BTC", RiskTarget: 1.0, NoShort: false, LeverageCap: 0.98}
	row := buildPort(t, cfg, map[string]float64{"A": 2, "B": -1})

	assert.Less(t, row["B"], 0.0)
	assert.InDelta(t, 1.0, sumRow(row), 1e-9)
}

func TestBuild_LeverageCapped(t *testing.T) {
	// A huge risk target pushes raw leverage far past the cap.
	cfg := Config{Home: "BTC", RiskTarget: 50.0, NoShort: true, LeverageCap: 0.98}
	row := buildPort(t, cfg, map[string]float64{"A": 2, "B": 1})

	invested := row["A"] + row["B"]
	assert.InDelta(t, 0.98, invested, 1e-9)
	assert.InDelta(t, 0.02, row["BTC"], 1e-9)
}

func TestBuild_ForceMaxCashPinsLeverage(t *testing.T) {
	// A modest target would normally leave leverage under the cap; the
	// override scales it up to the cap anyway.
	cfg := Config{Home: "BTC", RiskTarget: 0.5, NoShort: true, LeverageCap: 0.98, ForceMaxCash: true}
	row := buildPort(t, cfg, map[string]float64{"A": 2, "B": 1})

	assert.InDelta(t, 0.98, row["A"]+row["B"], 1e-9)
	assert.InDelta(t, 0.02, row["BTC"], 1e-9)
}

func TestBuild_NoCoverageFallsBackToCash(t *testing.T) {
	// A date with no covariance coverage must come out fully in the home
	// currency, not NaN.
	cfg := Config{Home: "BTC", RiskTarget: 1.0, NoShort: true, LeverageCap: 0.98}
	bare := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	assets := []string{"A", "B"}
	f := marketdata.NewFrame([]time.Time{bare}, assets)
	f.Set(0, "A", 2)
	f.Set(0, "B", 1)

	c := NewConstructor(cfg, testModel(t), zap.NewNop())
	views, err := c.Build(map[string]*marketdata.Frame{"mom 1m": f},
		map[string]float64{"mom 1m": 1.0}, []time.Time{bare})
	require.NoError(t, err)

	row, ok := views.PortRow(bare)
	require.True(t, ok)
	assert.Zero(t, row["A"])
	assert.Zero(t, row["B"])
	assert.Equal(t, 1.0, row["BTC"])
}

func TestBuild_FactorViewScaledToTarget(t *testing.T) {
	cfg := Config{Home: "BTC", RiskTarget: 1.0, NoShort: true, LeverageCap: 0.98}
	c := NewConstructor(cfg, testModel(t), zap.NewNop())

	views, err := c.Build(rawFactor(map[string]float64{"A": 2, "B": 1}),
		map[string]float64{"mom 1m": 1.0}, []time.Time{viewDate})
	require.NoError(t, err)

	view := views.Factors["mom 1m"]
	i, ok := view.DateIndex(viewDate)
	require.True(t, ok)

	// Grinold adjustment preserves the signal ratio when vols are equal.
	a, b := view.At(i, "A"), view.At(i, "B")
	assert.InDelta(t, 2.0, a/b, 1e-9)

	// The scaled view's ex-ante vol hits the risk target.
	cov := testModel(t).Covariance(viewDate)
	vol := cov.PortfolioVol(map[string]float64{"A": a, "B": b})
	assert.InDelta(t, cfg.RiskTarget, vol, 1e-9)
}

func TestBuild_UnknownFactorWeight(t *testing.T) {
	cfg := Config{Home: "BTC", RiskTarget: 1.0, NoShort: true, LeverageCap: 0.98}
	c := NewConstructor(cfg, testModel(t), zap.NewNop())

	_, err := c.Build(rawFactor(map[string]float64{"A": 1}),
		map[string]float64{"mom 6m": 1.0}, []time.Time{viewDate})
	require.ErrorIs(t, err, factor.ErrUndefinedFactor)
}

func TestRiskScale(t *testing.T) {
	assert.Equal(t, 0.5, riskScale(2, 1))
	assert.Zero(t, riskScale(0, 1))
	assert.Zero(t, riskScale(-1, 1))
	assert.Zero(t, riskScale(math.NaN(), 1))
}
