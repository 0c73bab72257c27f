package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"github.com/chrissnell/ashdetect/pkg/ephemeris"
	"github.com/chrissnell/ashdetect/pkg/grid"
)

var solstice = time.Date(2024, time.June, 21, 12, 0, 0, 0, time.UTC)

// uniformScene builds a 5x5 scene on the antimeridian at the equator, which
// is in darkness at noon UTC.
func uniformScene(bt11 float64) Scene {
	s := grid.Shape{Rows: 5, Cols: 5}
	return Scene{
		Time:  solstice,
		C04:   grid.Filled(s, 0.01),
		C07:   grid.Filled(s, 230),
		C11:   grid.Filled(s, bt11),
		C13:   grid.Filled(s, 220),
		C14:   grid.Filled(s, 221),
		C15:   grid.Filled(s, 225),
		Phase: grid.Filled(s, ashclass.PhaseUnknown),
		Lat:   grid.Filled(s, 0),
		Lon:   grid.Filled(s, 180),
	}
}

func TestRunUniformScenes(t *testing.T) {
	tests := []struct {
		name     string
		bt11     float64
		expected grid.Label
	}{
		{"delta2 negative, no detection", 218, ashclass.NoDetection},
		{"delta2 slightly positive, high confidence", 220.1, ashclass.HighConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(nil).Run(context.Background(), uniformScene(tt.bt11))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			for i, l := range res.Labels.Vals {
				if l != tt.expected {
					t.Fatalf("pixel %d label %d, expected %d", i, l, tt.expected)
				}
			}
			if got := res.SZA.At(2, 2); got <= 85 {
				t.Errorf("sza = %v, expected night", got)
			}
			if got := res.Stdev.At(2, 2); got != 0 {
				t.Errorf("stdev of a uniform field = %v, expected 0", got)
			}
			if res.Counts[tt.expected] != 25 {
				t.Errorf("counts %v, expected 25 pixels of label %d", res.Counts, tt.expected)
			}
		})
	}
}

func TestRunMissingGeolocation(t *testing.T) {
	sc := uniformScene(220.1)
	sc.Lat.Set(2, 2, math.NaN())
	sc.Lon.Set(0, 4, math.NaN())

	res, err := New(nil).Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, p := range [][2]int{{2, 2}, {0, 4}} {
		if l := res.Labels.At(p[0], p[1]); l != ashclass.NoDetection {
			t.Errorf("pixel %v with missing geolocation labelled %d", p, l)
		}
		if !math.IsNaN(res.SZA.At(p[0], p[1])) {
			t.Errorf("pixel %v sza = %v, expected NaN", p, res.SZA.At(p[0], p[1]))
		}
	}
	if l := res.Labels.At(1, 1); l != ashclass.HighConfidence {
		t.Errorf("pixel (1,1) labelled %d, expected %d", l, ashclass.HighConfidence)
	}
}

func TestRunIdempotent(t *testing.T) {
	sc := uniformScene(220.1)
	sc.C13.Set(1, 3, 210)
	sc.C11.Set(3, 1, 219)
	sc.Phase.Set(2, 2, ashclass.PhaseWater)

	p := New(nil)
	first, err := p.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !first.Labels.Equal(second.Labels) {
		t.Errorf("two runs on identical input disagree")
	}

	p.Neighborhood.Workers = 3
	p.Neighborhood.ParallelThreshold = 0
	strips, err := p.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("strip run: %v", err)
	}
	if !first.Labels.Equal(strips.Labels) {
		t.Errorf("strip decomposition changed the labels")
	}
}

func TestRunStructuralFailures(t *testing.T) {
	shape := uniformScene(220)
	shape.C14 = grid.Filled(grid.Shape{Rows: 5, Cols: 4}, 221)

	late := uniformScene(220)
	late.Time = time.Date(2070, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		scene  Scene
		target []error
	}{
		{"band shape mismatch", shape, []error{grid.ErrShapeMismatch}},
		{"ephemeris out of range", late, []error{ErrEphemeris, ephemeris.ErrOutOfRange}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(nil).Run(context.Background(), tt.scene)
			if res != nil {
				t.Errorf("partial result returned")
			}
			for _, target := range tt.target {
				if !errors.Is(err, target) {
					t.Errorf("err = %v, expected %v", err, target)
				}
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil).Run(ctx, uniformScene(220)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, expected context.Canceled", err)
	}
}

func TestRunInvalidConfiguration(t *testing.T) {
	p := New(nil)
	p.Neighborhood.Window = 4
	if _, err := p.Run(context.Background(), uniformScene(220)); err == nil {
		t.Errorf("expected error for even window")
	}

	p = New(nil)
	p.Ephemeris = nil
	if _, err := p.Run(context.Background(), uniformScene(220)); err == nil {
		t.Errorf("expected error without ephemeris")
	}
}

func TestSummarize(t *testing.T) {
	f, _ := grid.FromRows([][]float64{{3, math.NaN(), -1}, {2, 4, math.NaN()}})
	sum, ok := Summarize(f)
	if !ok {
		t.Fatalf("Summarize reported no values")
	}
	if sum.Min != -1 || sum.Max != 4 || sum.Mean != 2 || sum.Present != 4 || sum.Missing != 2 {
		t.Errorf("Summarize = %+v", sum)
	}

	if _, ok := Summarize(grid.NewMissingField(grid.Shape{Rows: 2, Cols: 2})); ok {
		t.Errorf("Summarize of an all-missing field reported values")
	}
}
