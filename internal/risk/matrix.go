package risk

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an annualized covariance matrix over a date-dependent asset
// subset. Symmetric by construction; the diagonal holds annualized
// variances.
type Matrix struct {
	assets []string
	index  map[string]int
	sym    *mat.SymDense
}

func newMatrix(assets []string) *Matrix {
	index := make(map[string]int, len(assets))
	for i, a := range assets {
		index[a] = i
	}
	n := len(assets)
	if n == 0 {
		n = 1 // SymDense panics on zero dimension; keep a dummy cell
	}
	return &Matrix{assets: assets, index: index, sym: mat.NewSymDense(n, nil)}
}

// Assets returns the assets covered on this date, sorted.
func (m *Matrix) Assets() []string { return m.assets }

// Has reports whether asset is covered.
func (m *Matrix) Has(asset string) bool {
	_, ok := m.index[asset]
	return ok
}

// Cov returns the covariance between two assets, NaN if either is not
// covered.
func (m *Matrix) Cov(a, b string) float64 {
	i, ok1 := m.index[a]
	j, ok2 := m.index[b]
	if !ok1 || !ok2 {
		return math.NaN()
	}
	return m.sym.At(i, j)
}

// Var returns the annualized variance of asset, NaN if not covered.
func (m *Matrix) Var(asset string) float64 { return m.Cov(asset, asset) }

// Vol returns the annualized volatility of asset, NaN if not covered.
func (m *Matrix) Vol(asset string) float64 { return math.Sqrt(m.Var(asset)) }

// PortfolioVol computes the ex-ante volatility sqrt(w'Σw) of a weight
// vector. Only the intersection of the weight keys and the covered
// assets contributes; everything else is treated as zero weight. NaN
// weights are skipped.
func (m *Matrix) PortfolioVol(weights map[string]float64) float64 {
	if len(m.assets) == 0 {
		return math.NaN()
	}
	w := mat.NewVecDense(len(m.assets), nil)
	any := false
	for asset, v := range weights {
		i, ok := m.index[asset]
		if !ok || math.IsNaN(v) {
			continue
		}
		// A NaN variance poisons the quadratic form; drop the asset.
		if math.IsNaN(m.sym.At(i, i)) {
			continue
		}
		w.SetVec(i, v)
		any = true
	}
	if !any {
		return math.NaN()
	}
	return math.Sqrt(mat.Inner(w, m.sym, w))
}
