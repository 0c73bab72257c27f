// Package halo runs windowed raster filters in parallel over horizontal
// strips. Each strip reads its owned rows plus a halo of neighbouring rows
// and writes only its owned rows, so strips never write the same output
// row and no locking is needed.
package halo

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/ashdetect/pkg/grid"
	"golang.org/x/sync/errgroup"
)

// ErrWorkerFailed is returned when any strip fails. No partial output is
// returned in that case.
var ErrWorkerFailed = errors.New("strip worker failed")

// Strip is one unit of work.
type Strip struct {
	Index int
	// Lo, Hi bound the owned output rows [Lo, Hi).
	Lo, Hi int
	// InLo, InHi bound the input rows [InLo, InHi): the owned rows extended
	// by the halo and clipped to the grid.
	InLo, InHi int
}

// Offset is the index of the first owned row within the input view.
func (s Strip) Offset() int { return s.Lo - s.InLo }

// Partition splits rows into n strips of near-equal height, each extended
// by halo rows on both sides. n is clamped to [1, rows].
func Partition(rows, n, halo int) []Strip {
	if rows <= 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > rows {
		n = rows
	}
	if halo < 0 {
		halo = 0
	}

	strips := make([]Strip, n)
	base, rem := rows/n, rows%n
	lo := 0
	for i := range strips {
		h := base
		if i < rem {
			h++
		}
		s := Strip{Index: i, Lo: lo, Hi: lo + h}
		s.InLo = max(0, s.Lo-halo)
		s.InHi = min(rows, s.Hi+halo)
		strips[i] = s
		lo += h
	}
	return strips
}

// Func processes one strip.
type Func func(ctx context.Context, s Strip) error

// Run executes fn for every strip concurrently. The first failure cancels
// the context handed to the remaining strips and is returned wrapped in
// ErrWorkerFailed. A panicking strip is reported as a failure.
func Run(ctx context.Context, strips []Strip, fn Func) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range strips {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: strip %d rows [%d,%d): panic: %v", ErrWorkerFailed, s.Index, s.Lo, s.Hi, r)
				}
			}()
			if err := fn(gctx, s); err != nil {
				return fmt.Errorf("%w: strip %d rows [%d,%d): %w", ErrWorkerFailed, s.Index, s.Lo, s.Hi, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Kernel computes a filter over an input view. It returns one field per
// filter output, each with the same shape as in.
type Kernel func(ctx context.Context, in grid.Field) ([]grid.Field, error)

// Apply partitions src into workers strips with the given halo, runs k on
// each strip's input view and stitches the owned rows of every output back
// into full-size fields.
func Apply(ctx context.Context, src grid.Field, workers, halo, outputs int, k Kernel) ([]grid.Field, error) {
	out := make([]grid.Field, outputs)
	for i := range out {
		out[i] = grid.NewField(src.Shape)
	}
	cols := src.Shape.Cols

	err := Run(ctx, Partition(src.Shape.Rows, workers, halo), func(ctx context.Context, s Strip) error {
		view := src.Rows(s.InLo, s.InHi)
		res, err := k(ctx, view)
		if err != nil {
			return err
		}
		if len(res) != outputs {
			return fmt.Errorf("kernel returned %d outputs, expected %d", len(res), outputs)
		}

		off := s.Offset() * cols
		n := (s.Hi - s.Lo) * cols
		for j, r := range res {
			if r.Shape != view.Shape || len(r.Vals) != len(view.Vals) {
				return fmt.Errorf("kernel output %d is %v, input view is %v: %w", j, r.Shape, view.Shape, grid.ErrShapeMismatch)
			}
			copy(out[j].Vals[s.Lo*cols:s.Hi*cols], r.Vals[off:off+n])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
