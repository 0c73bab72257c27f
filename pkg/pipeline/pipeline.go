// Package pipeline sequences the ash classification stages for one scene:
// solar geometry, spectral deltas, neighbourhood texture and the cascade.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"github.com/chrissnell/ashdetect/pkg/ephemeris"
	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/chrissnell/ashdetect/pkg/nhood"
	"github.com/chrissnell/ashdetect/pkg/solar"
	"github.com/chrissnell/ashdetect/pkg/spectral"
	"go.uber.org/zap"
)

// ErrEphemeris marks a scene aborted because its solar geometry could not
// be computed.
var ErrEphemeris = errors.New("solar geometry unavailable")

// Scene is one observation: band rasters, cloud-top phase and geolocation on
// a shared grid, observed at Time. C04 is a reflectance fraction, the other
// bands are brightness temperatures in Kelvin.
type Scene struct {
	Time  time.Time  `json:"time"`
	C04   grid.Field `json:"c04"`
	C07   grid.Field `json:"c07"`
	C11   grid.Field `json:"c11"`
	C13   grid.Field `json:"c13"`
	C14   grid.Field `json:"c14"`
	C15   grid.Field `json:"c15"`
	Phase grid.Field `json:"phase"`
	Lat   grid.Field `json:"lat"`
	Lon   grid.Field `json:"lon"`
}

// Shape returns the scene grid, taken from C13.
func (s Scene) Shape() grid.Shape { return s.C13.Shape }

// Validate checks that every raster matches the scene grid.
func (s Scene) Validate() error {
	return grid.SameShape(s.Shape(),
		grid.Named{Name: "C04", Field: s.C04},
		grid.Named{Name: "C07", Field: s.C07},
		grid.Named{Name: "C11", Field: s.C11},
		grid.Named{Name: "C13", Field: s.C13},
		grid.Named{Name: "C14", Field: s.C14},
		grid.Named{Name: "C15", Field: s.C15},
		grid.Named{Name: "phase", Field: s.Phase},
		grid.Named{Name: "lat", Field: s.Lat},
		grid.Named{Name: "lon", Field: s.Lon},
	)
}

// Result is the label grid plus the intermediate rasters used to build it.
type Result struct {
	Time    time.Time       `json:"time"`
	Labels  grid.Labels     `json:"labels"`
	Delta1  grid.Field      `json:"delta1"`
	Delta2  grid.Field      `json:"delta2"`
	Delta3  grid.Field      `json:"delta3"`
	SZA     grid.Field      `json:"sza"`
	Mean    grid.Field      `json:"mean"`
	Stdev   grid.Field      `json:"stdev"`
	Counts  ashclass.Counts `json:"counts"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Pipeline holds the per-run configuration. The zero value is not usable;
// construct with New.
type Pipeline struct {
	Ephemeris    ephemeris.Source
	Thresholds   ashclass.Thresholds
	Neighborhood nhood.Options
	Logger       *zap.SugaredLogger
}

// New returns a pipeline with the Meeus ephemeris, default thresholds and
// default neighbourhood options. A nil logger discards output.
func New(logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		Ephemeris:    ephemeris.NewMeeus(),
		Thresholds:   ashclass.Default(),
		Neighborhood: nhood.DefaultOptions(),
		Logger:       logger,
	}
}

// Validate checks the configuration.
func (p *Pipeline) Validate() error {
	if p.Ephemeris == nil {
		return errors.New("no ephemeris source configured")
	}
	if err := p.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if err := p.Neighborhood.Validate(); err != nil {
		return fmt.Errorf("neighborhood: %w", err)
	}
	return nil
}

// Run classifies sc. Structural failures abort the run and no result is
// returned.
func (p *Pipeline) Run(ctx context.Context, sc Scene) (*Result, error) {
	start := time.Now()
	log := p.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	stage := time.Now()
	sza, err := solar.ComputeSZA(sc.Time, sc.Lat, sc.Lon, p.Ephemeris)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEphemeris, err)
	}
	if sum, ok := Summarize(sza); ok {
		log.Debugw("solar geometry", "sza_min", sum.Min, "sza_max", sum.Max, "missing", sum.Missing, "elapsed", time.Since(stage))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	d, err := spectral.ComputeDeltas(spectral.Bands{BT07: sc.C07, BT11: sc.C11, BT13: sc.C13, BT14: sc.C14, BT15: sc.C15})
	if err != nil {
		return nil, err
	}
	log.Debugw("spectral deltas", "elapsed", time.Since(stage))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage = time.Now()
	st, err := nhood.LocalMeanStdev(ctx, d.Delta1, p.Neighborhood)
	if err != nil {
		return nil, fmt.Errorf("neighborhood statistics: %w", err)
	}
	log.Debugw("neighborhood statistics",
		"window", p.Neighborhood.Window,
		"parallel", p.Neighborhood.Parallel(d.Delta1.Shape.Len()),
		"workers", p.Neighborhood.Workers,
		"elapsed", time.Since(stage))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labels, err := p.Thresholds.ClassifyGrid(ashclass.Inputs{
		Delta1: d.Delta1,
		Delta2: d.Delta2,
		Delta3: d.Delta3,
		Mean:   st.Mean,
		Stdev:  st.Stdev,
		Phase:  sc.Phase,
		C04:    sc.C04,
		C13:    sc.C13,
		SZA:    sza,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Time:    sc.Time.UTC(),
		Labels:  labels,
		Delta1:  d.Delta1,
		Delta2:  d.Delta2,
		Delta3:  d.Delta3,
		SZA:     sza,
		Mean:    st.Mean,
		Stdev:   st.Stdev,
		Counts:  ashclass.CountLabels(labels),
		Elapsed: time.Since(start),
	}
	log.Infow("scene classified",
		"time", res.Time.Format(time.RFC3339),
		"grid", sc.Shape().String(),
		"ash_pixels", res.Counts.Ash(),
		"counts", res.Counts[:],
		"elapsed", res.Elapsed)
	return res, nil
}
