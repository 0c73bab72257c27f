// Package nhood computes NaN-aware windowed statistics of a raster.
//
// Each pixel's neighbourhood is the Window x Window box centred on it,
// clipped at the grid boundary. Missing values are skipped; a pixel whose
// neighbourhood holds fewer than MinGood valid values gets missing
// statistics. Large grids are split into row strips with a halo of
// Window/2 rows (see package halo); the strip decomposition does not change
// which values contribute to a pixel, so both paths agree exactly.
package nhood

import (
	"context"
	"fmt"
	"runtime"

	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/chrissnell/ashdetect/pkg/halo"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultWindow            = 5
	DefaultMinGood           = 3
	DefaultParallelThreshold = 1_000_000

	// execution units left to the host when sizing the worker pool
	reservedCPUs = 2
)

// Options controls the neighbourhood filter.
type Options struct {
	// Window is the side of the square neighbourhood. Must be odd.
	Window int
	// MinGood is the minimum number of valid neighbours for a result.
	MinGood int
	// Workers is the number of strips for large grids. Zero or negative
	// runs sequentially.
	Workers int
	// ParallelThreshold is the pixel count above which strips are used.
	ParallelThreshold int
}

// DefaultWorkers is the number of execution units minus those reserved
// for the host, never less than one.
func DefaultWorkers() int {
	n := runtime.NumCPU() - reservedCPUs
	if n < 1 {
		n = 1
	}
	return n
}

// DefaultOptions returns a 5x5 window, min_good 3 and the default pool size.
func DefaultOptions() Options {
	return Options{
		Window:            DefaultWindow,
		MinGood:           DefaultMinGood,
		Workers:           DefaultWorkers(),
		ParallelThreshold: DefaultParallelThreshold,
	}
}

// Validate checks the window geometry. Worker count is not validated: an
// unusable value falls back to sequential execution.
func (o Options) Validate() error {
	if o.Window < 1 || o.Window%2 == 0 {
		return fmt.Errorf("neighbourhood window must be a positive odd integer, got %d", o.Window)
	}
	if o.MinGood < 1 || o.MinGood > o.Window*o.Window {
		return fmt.Errorf("min_good must be in [1, %d] for a %dx%d window, got %d", o.Window*o.Window, o.Window, o.Window, o.MinGood)
	}
	return nil
}

// Parallel reports whether a grid of n pixels is split into strips.
func (o Options) Parallel(n int) bool {
	return o.Workers > 1 && n > o.ParallelThreshold
}

// Stats is the local mean and standard deviation of a field.
type Stats struct {
	Mean  grid.Field
	Stdev grid.Field
}

// LocalMeanStdev computes the windowed mean and population standard
// deviation of field.
func LocalMeanStdev(ctx context.Context, field grid.Field, opts Options) (Stats, error) {
	if err := opts.Validate(); err != nil {
		return Stats{}, err
	}
	if err := field.Check(); err != nil {
		return Stats{}, err
	}

	k := kernel(opts.Window, opts.MinGood)

	var out []grid.Field
	var err error
	if opts.Parallel(field.Shape.Len()) {
		out, err = halo.Apply(ctx, field, opts.Workers, opts.Window/2, 2, k)
	} else {
		out, err = k(ctx, field)
	}
	if err != nil {
		return Stats{}, err
	}
	return Stats{Mean: out[0], Stdev: out[1]}, nil
}

// kernel returns the filter over a single view. Neighbourhoods are clipped
// to the view, which for a strip view is the owned rows plus halo.
func kernel(window, minGood int) halo.Kernel {
	half := window / 2
	return func(ctx context.Context, in grid.Field) ([]grid.Field, error) {
		rows, cols := in.Shape.Rows, in.Shape.Cols
		mean := grid.NewField(in.Shape)
		stdev := grid.NewField(in.Shape)
		buf := make([]float64, 0, window*window)

		for r := 0; r < rows; r++ {
			if r%64 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			r0, r1 := max(0, r-half), min(rows-1, r+half)
			for c := 0; c < cols; c++ {
				c0, c1 := max(0, c-half), min(cols-1, c+half)

				buf = buf[:0]
				for rr := r0; rr <= r1; rr++ {
					row := in.Vals[rr*cols : (rr+1)*cols]
					for cc := c0; cc <= c1; cc++ {
						if v := row[cc]; !grid.IsMissing(v) {
							buf = append(buf, v)
						}
					}
				}

				i := r*cols + c
				if len(buf) < minGood {
					mean.Vals[i] = grid.Missing
					stdev.Vals[i] = grid.Missing
					continue
				}
				mean.Vals[i], stdev.Vals[i] = stat.PopMeanStdDev(buf, nil)
			}
		}
		return []grid.Field{mean, stdev}, nil
	}
}
