package marketdata

import (
	"math"
	"time"
)

// Frame is a date-by-asset matrix of float64 values with NaN marking
// undefined entries. Per-date asset availability is a first-class concern:
// consumers iterate the row map rather than assuming a fixed universe.
type Frame struct {
	dates   []time.Time
	assets  []string
	dateIx  map[time.Time]int
	assetIx map[string]int
	values  [][]float64
}

// NewFrame creates a frame over the given dates and assets with every cell
// initialised to NaN. The date and asset slices are not copied.
func NewFrame(dates []time.Time, assets []string) *Frame {
	f := &Frame{
		dates:   dates,
		assets:  assets,
		dateIx:  make(map[time.Time]int, len(dates)),
		assetIx: make(map[string]int, len(assets)),
		values:  make([][]float64, len(dates)),
	}
	for i, d := range dates {
		f.dateIx[d] = i
	}
	for j, a := range assets {
		f.assetIx[a] = j
	}
	for i := range f.values {
		row := make([]float64, len(assets))
		for j := range row {
			row[j] = math.NaN()
		}
		f.values[i] = row
	}
	return f
}

// Dates returns the frame's date index.
func (f *Frame) Dates() []time.Time { return f.dates }

// Assets returns the frame's asset columns.
func (f *Frame) Assets() []string { return f.assets }

// HasAsset reports whether the frame carries a column for asset.
func (f *Frame) HasAsset(asset string) bool {
	_, ok := f.assetIx[asset]
	return ok
}

// DateIndex returns the row index of date.
func (f *Frame) DateIndex(date time.Time) (int, bool) {
	i, ok := f.dateIx[date]
	return i, ok
}

// Set stores v at row i for asset. Unknown assets are ignored.
func (f *Frame) Set(i int, asset string, v float64) {
	if j, ok := f.assetIx[asset]; ok {
		f.values[i][j] = v
	}
}

// At returns the value at row i for asset, NaN if the asset is unknown.
func (f *Frame) At(i int, asset string) float64 {
	j, ok := f.assetIx[asset]
	if !ok {
		return math.NaN()
	}
	return f.values[i][j]
}

// Column returns a copy of the value series for one asset. A nil return
// means the asset is unknown.
func (f *Frame) Column(asset string) []float64 {
	j, ok := f.assetIx[asset]
	if !ok {
		return nil
	}
	col := make([]float64, len(f.dates))
	for i := range f.dates {
		col[i] = f.values[i][j]
	}
	return col
}

// Row returns the defined (non-NaN) values at row i, keyed by asset.
func (f *Frame) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(f.assets))
	for j, a := range f.assets {
		if v := f.values[i][j]; !math.IsNaN(v) {
			row[a] = v
		}
	}
	return row
}
