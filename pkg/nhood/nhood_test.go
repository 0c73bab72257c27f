package nhood

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/chrissnell/ashdetect/pkg/grid"
)

const epsilon = 1e-12

func sequential(window, minGood int) Options {
	return Options{Window: window, MinGood: minGood, Workers: 0, ParallelThreshold: DefaultParallelThreshold}
}

func sameValue(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= epsilon
}

func TestLocalMeanStdevRow(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name      string
		row       []float64
		window    int
		minGood   int
		wantMean  []float64
		wantStdev []float64
	}{
		{
			name:      "edge neighbourhoods are clipped",
			row:       []float64{1, 3, 5, 7, 9},
			window:    3,
			minGood:   1,
			wantMean:  []float64{2, 3, 5, 7, 8},
			wantStdev: []float64{1, math.Sqrt(8.0 / 3), math.Sqrt(8.0 / 3), math.Sqrt(8.0 / 3), 1},
		},
		{
			name:      "missing values are skipped",
			row:       []float64{1, nan, 3},
			window:    3,
			minGood:   1,
			wantMean:  []float64{1, 2, 3},
			wantStdev: []float64{0, 1, 0},
		},
		{
			name:      "too few valid neighbours",
			row:       []float64{1, nan, nan, nan, 3},
			window:    3,
			minGood:   2,
			wantMean:  []float64{nan, nan, nan, nan, nan},
			wantStdev: []float64{nan, nan, nan, nan, nan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := grid.FromRows([][]float64{tt.row})
			st, err := LocalMeanStdev(context.Background(), f, sequential(tt.window, tt.minGood))
			if err != nil {
				t.Fatalf("LocalMeanStdev: %v", err)
			}
			for i := range tt.row {
				if !sameValue(st.Mean.Vals[i], tt.wantMean[i]) {
					t.Errorf("mean[%d] = %v, expected %v", i, st.Mean.Vals[i], tt.wantMean[i])
				}
				if !sameValue(st.Stdev.Vals[i], tt.wantStdev[i]) {
					t.Errorf("stdev[%d] = %v, expected %v", i, st.Stdev.Vals[i], tt.wantStdev[i])
				}
			}
		})
	}
}

func TestUniformField(t *testing.T) {
	f := grid.Filled(grid.Shape{Rows: 5, Cols: 5}, -5)
	st, err := LocalMeanStdev(context.Background(), f, DefaultOptions())
	if err != nil {
		t.Fatalf("LocalMeanStdev: %v", err)
	}
	for i := range f.Vals {
		if st.Mean.Vals[i] != -5 || st.Stdev.Vals[i] != 0 {
			t.Fatalf("pixel %d: mean %v stdev %v, expected -5 and 0", i, st.Mean.Vals[i], st.Stdev.Vals[i])
		}
	}
}

func TestMinGoodBoundary(t *testing.T) {
	s := grid.Shape{Rows: 5, Cols: 5}
	opts := sequential(5, 3)

	exact := grid.NewMissingField(s)
	exact.Set(0, 0, 1)
	exact.Set(2, 2, 2)
	exact.Set(4, 4, 6)

	st, err := LocalMeanStdev(context.Background(), exact, opts)
	if err != nil {
		t.Fatalf("LocalMeanStdev: %v", err)
	}
	if m := st.Mean.At(2, 2); !sameValue(m, 3) {
		t.Errorf("min_good valid neighbours: mean = %v, expected 3", m)
	}
	if sd := st.Stdev.At(2, 2); math.IsNaN(sd) {
		t.Errorf("min_good valid neighbours: stdev is NaN")
	}

	short := exact.Clone()
	short.Set(4, 4, grid.Missing)
	st, err = LocalMeanStdev(context.Background(), short, opts)
	if err != nil {
		t.Fatalf("LocalMeanStdev: %v", err)
	}
	if m, sd := st.Mean.At(2, 2), st.Stdev.At(2, 2); !math.IsNaN(m) || !math.IsNaN(sd) {
		t.Errorf("min_good-1 valid neighbours: mean %v stdev %v, expected NaN", m, sd)
	}
}

func noisyField(s grid.Shape, seed int64) grid.Field {
	rng := rand.New(rand.NewSource(seed))
	f := grid.NewField(s)
	for i := range f.Vals {
		if rng.Float64() < 0.15 {
			f.Vals[i] = grid.Missing
			continue
		}
		f.Vals[i] = rng.NormFloat64()*2 - 1
	}
	return f
}

func assertSameStats(t *testing.T, want, got Stats) {
	t.Helper()
	for i := range want.Mean.Vals {
		if !sameValue(want.Mean.Vals[i], got.Mean.Vals[i]) {
			t.Fatalf("mean[%d]: sequential %v, parallel %v", i, want.Mean.Vals[i], got.Mean.Vals[i])
		}
		if !sameValue(want.Stdev.Vals[i], got.Stdev.Vals[i]) {
			t.Fatalf("stdev[%d]: sequential %v, parallel %v", i, want.Stdev.Vals[i], got.Stdev.Vals[i])
		}
	}
}

func TestParallelMatchesSequentialSmallGrid(t *testing.T) {
	f := noisyField(grid.Shape{Rows: 97, Cols: 61}, 7)
	ctx := context.Background()

	want, err := LocalMeanStdev(ctx, f, sequential(5, 3))
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}

	for _, workers := range []int{2, 3, 8, 97, 200} {
		opts := Options{Window: 5, MinGood: 3, Workers: workers, ParallelThreshold: 0}
		if !opts.Parallel(f.Shape.Len()) {
			t.Fatalf("workers=%d: strips not used", workers)
		}
		got, err := LocalMeanStdev(ctx, f, opts)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		assertSameStats(t, want, got)
	}
}

func TestParallelMatchesSequentialAroundThreshold(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		shape    grid.Shape
		parallel bool
	}{
		{name: "below threshold", shape: grid.Shape{Rows: 200, Cols: 300}, parallel: false},
		{name: "above threshold", shape: grid.Shape{Rows: 1001, Cols: 1000}, parallel: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := noisyField(tt.shape, 99)
			opts := DefaultOptions()
			opts.Workers = 4
			if got := opts.Parallel(f.Shape.Len()); got != tt.parallel {
				t.Fatalf("Parallel(%d) = %v, expected %v", f.Shape.Len(), got, tt.parallel)
			}

			want, err := LocalMeanStdev(ctx, f, sequential(DefaultWindow, DefaultMinGood))
			if err != nil {
				t.Fatalf("sequential: %v", err)
			}
			got, err := LocalMeanStdev(ctx, f, opts)
			if err != nil {
				t.Fatalf("default options: %v", err)
			}
			assertSameStats(t, want, got)
		})
	}
}

func TestInvalidWorkersFallBackToSequential(t *testing.T) {
	f := noisyField(grid.Shape{Rows: 20, Cols: 20}, 3)
	want, _ := LocalMeanStdev(context.Background(), f, sequential(5, 3))

	for _, workers := range []int{0, -1, -64} {
		opts := Options{Window: 5, MinGood: 3, Workers: workers, ParallelThreshold: 0}
		if opts.Parallel(f.Shape.Len()) {
			t.Errorf("workers=%d selects the parallel path", workers)
		}
		got, err := LocalMeanStdev(context.Background(), f, opts)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		assertSameStats(t, want, got)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "defaults", opts: DefaultOptions()},
		{name: "single pixel window", opts: Options{Window: 1, MinGood: 1}},
		{name: "even window", opts: Options{Window: 4, MinGood: 3}, wantErr: true},
		{name: "zero window", opts: Options{Window: 0, MinGood: 1}, wantErr: true},
		{name: "zero min_good", opts: Options{Window: 5, MinGood: 0}, wantErr: true},
		{name: "min_good exceeds window", opts: Options{Window: 3, MinGood: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := noisyField(grid.Shape{Rows: 10, Cols: 10}, 1)
	if _, err := LocalMeanStdev(ctx, f, sequential(5, 3)); err == nil {
		t.Errorf("expected error for cancelled context")
	}
	opts := Options{Window: 5, MinGood: 3, Workers: 3, ParallelThreshold: 0}
	if _, err := LocalMeanStdev(ctx, f, opts); err == nil {
		t.Errorf("expected error for cancelled context on the parallel path")
	}
}

func TestDefaultWorkers(t *testing.T) {
	if DefaultWorkers() < 1 {
		t.Errorf("DefaultWorkers() = %d, expected at least 1", DefaultWorkers())
	}
}
