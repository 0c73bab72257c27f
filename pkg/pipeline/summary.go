package pipeline

import (
	"github.com/chrissnell/ashdetect/pkg/grid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FieldSummary describes the present values of a raster.
type FieldSummary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Present int     `json:"present"`
	Missing int     `json:"missing"`
}

// Summarize returns the range and mean of f's present values. ok is false
// when every pixel is missing.
func Summarize(f grid.Field) (sum FieldSummary, ok bool) {
	vals := f.Present()
	sum.Present = len(vals)
	sum.Missing = len(f.Vals) - len(vals)
	if len(vals) == 0 {
		return sum, false
	}
	sum.Min = floats.Min(vals)
	sum.Max = floats.Max(vals)
	sum.Mean = stat.Mean(vals, nil)
	return sum, true
}
