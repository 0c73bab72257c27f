// Package ashclass implements the illumination-aware volcanic ash cascade.
//
// Every pixel goes through five stages in fixed order:
//
//	A  texture flag from the local delta1 statistics
//	B  base class using the night, twilight or day rule selected by SZA
//	C  refinement of medium confidence pixels by delta2
//	D  false positive elimination by delta3
//	E  adjustment by cloud-top phase
//
// Missing inputs never produce errors. A stage whose required input is
// missing yields NoDetection.
package ashclass

import (
	"fmt"

	"github.com/chrissnell/ashdetect/pkg/grid"
)

// Output labels.
const (
	NoDetection grid.Label = iota
	HighConfidence
	MediumConfidence
	Refined
	WaterCloud
	ColdSurface

	// NumLabels is the size of the label alphabet.
	NumLabels = 6
)

var labelNames = [NumLabels]string{
	"no detection",
	"high confidence ash",
	"medium confidence ash",
	"refined ash",
	"reclassified water cloud",
	"ash over cold surface",
}

// LabelName returns a human readable description of l.
func LabelName(l grid.Label) string {
	if int(l) < NumLabels {
		return labelNames[l]
	}
	return fmt.Sprintf("label(%d)", l)
}

// Cloud-top phase codes.
const (
	PhaseUnknown = 0
	PhaseWater   = 1
	PhaseMixed   = 2
	PhaseIce     = 3
	PhaseDust    = 4
)

// Texture is the stage A flag.
type Texture uint8

const (
	TextureNone Texture = iota
	TextureHigh
	TextureMedium
)

// Regime is the illumination regime of a pixel.
type Regime uint8

const (
	RegimeUndefined Regime = iota
	Night
	Twilight
	Day
)

func (r Regime) String() string {
	switch r {
	case Night:
		return "night"
	case Twilight:
		return "twilight"
	case Day:
		return "day"
	}
	return "undefined"
}

// RegimeFor partitions the SZA axis: (NightSZA, 180] is night,
// (DaySZA, NightSZA] twilight and [0, DaySZA] day.
func (t Thresholds) RegimeFor(sza float64) Regime {
	switch {
	case grid.IsMissing(sza):
		return RegimeUndefined
	case sza > t.NightSZA:
		return Night
	case sza > t.DaySZA:
		return Twilight
	default:
		return Day
	}
}

// Pixel holds the classifier inputs for a single pixel. Any value may be
// missing.
type Pixel struct {
	Delta1 float64
	Delta2 float64
	Delta3 float64
	Mean   float64
	Stdev  float64
	Phase  float64
	C04    float64
	C13    float64
	SZA    float64
}

// Texture evaluates stage A. Missing statistics leave the flag unset.
func (t Thresholds) Texture(p Pixel) Texture {
	if !grid.Valid(p.Delta1, p.Mean, p.Stdev) {
		return TextureNone
	}
	if p.Delta1-(p.Mean+p.Stdev) >= t.TextureOutlier {
		return TextureNone
	}
	switch {
	case p.Delta1 < t.TextureHighDelta1:
		return TextureHigh
	case p.Delta1 < t.TextureMediumDelta1:
		return TextureMedium
	}
	return TextureNone
}

// Base evaluates stage B. The threshold rules and the texture shortcut are
// combined with a logical OR. A comparison against a missing value is false,
// so missing deltas only disable the threshold rule. Missing SZA leaves the
// regime undefined and the pixel undetected.
func (t Thresholds) Base(p Pixel, tex Texture) grid.Label {
	regime := t.RegimeFor(p.SZA)
	if regime == RegimeUndefined {
		return NoDetection
	}

	if tex == TextureHigh || (p.Delta1 < t.HighDelta1 && p.Delta2 > t.HighDelta2 && p.Delta3 > t.HighDelta3) {
		return HighConfidence
	}
	if tex == TextureMedium {
		return MediumConfidence
	}

	medium := p.Delta1 < t.MediumDelta1 && p.Delta2 > t.MediumDelta2 && p.Delta3 > t.MediumDelta3
	switch regime {
	case Twilight:
		medium = medium && p.C04 > t.ReflectanceMin && p.C13 < t.ColdTopMaxK
	case Day:
		medium = medium && p.C04 > t.ReflectanceMin
	}
	if medium {
		return MediumConfidence
	}
	return NoDetection
}

// Refine evaluates stage C. Only medium confidence pixels are affected.
func (t Thresholds) Refine(l grid.Label, delta2 float64) grid.Label {
	if l != MediumConfidence {
		return l
	}
	switch {
	case grid.IsMissing(delta2):
		return NoDetection
	case delta2 >= t.RefineKeep:
		return MediumConfidence
	case delta2 >= t.RefineMedium:
		return MediumConfidence
	case delta2 >= t.RefineRefined:
		return Refined
	}
	return NoDetection
}

// EliminateFalsePositives evaluates stage D.
func (t Thresholds) EliminateFalsePositives(l grid.Label, delta3 float64) grid.Label {
	if l == NoDetection {
		return l
	}
	if grid.IsMissing(delta3) {
		return NoDetection
	}
	if l <= MediumConfidence && delta3 <= t.FalsePosMedium {
		return NoDetection
	}
	if l >= Refined && delta3 <= t.FalsePosRefined {
		return NoDetection
	}
	return l
}

// AdjustPhase evaluates stage E. An unclassified phase leaves l unchanged.
func AdjustPhase(l grid.Label, phase float64) grid.Label {
	if grid.IsMissing(phase) {
		return l
	}
	switch l {
	case MediumConfidence:
		switch phase {
		case PhaseWater:
			return WaterCloud
		case PhaseDust:
			return NoDetection
		}
	case Refined:
		if phase == PhaseWater {
			return ColdSurface
		}
		if phase >= PhaseMixed {
			return NoDetection
		}
	}
	return l
}

// Classify runs the full cascade on one pixel.
func (t Thresholds) Classify(p Pixel) grid.Label {
	l := t.Base(p, t.Texture(p))
	l = t.Refine(l, p.Delta2)
	l = t.EliminateFalsePositives(l, p.Delta3)
	return AdjustPhase(l, p.Phase)
}

// Inputs are the classifier input rasters. All must share one shape.
type Inputs struct {
	Delta1 grid.Field
	Delta2 grid.Field
	Delta3 grid.Field
	Mean   grid.Field
	Stdev  grid.Field
	Phase  grid.Field
	C04    grid.Field
	C13    grid.Field
	SZA    grid.Field
}

func (in Inputs) named() []grid.Named {
	return []grid.Named{
		{Name: "delta1", Field: in.Delta1},
		{Name: "delta2", Field: in.Delta2},
		{Name: "delta3", Field: in.Delta3},
		{Name: "mean", Field: in.Mean},
		{Name: "stdev", Field: in.Stdev},
		{Name: "phase", Field: in.Phase},
		{Name: "C04", Field: in.C04},
		{Name: "C13", Field: in.C13},
		{Name: "sza", Field: in.SZA},
	}
}

// ClassifyGrid labels every pixel of in.
func (t Thresholds) ClassifyGrid(in Inputs) (grid.Labels, error) {
	s := in.Delta1.Shape
	if err := grid.SameShape(s, in.named()...); err != nil {
		return grid.Labels{}, err
	}

	out := grid.NewLabels(s)
	for i := range out.Vals {
		out.Vals[i] = t.Classify(Pixel{
			Delta1: in.Delta1.Vals[i],
			Delta2: in.Delta2.Vals[i],
			Delta3: in.Delta3.Vals[i],
			Mean:   in.Mean.Vals[i],
			Stdev:  in.Stdev.Vals[i],
			Phase:  in.Phase.Vals[i],
			C04:    in.C04.Vals[i],
			C13:    in.C13.Vals[i],
			SZA:    in.SZA.Vals[i],
		})
	}
	return out, nil
}

// Counts is the number of pixels per label.
type Counts [NumLabels]int

// CountLabels tallies l. Values outside the alphabet are ignored.
func CountLabels(l grid.Labels) Counts {
	var c Counts
	for _, v := range l.Vals {
		if int(v) < NumLabels {
			c[v]++
		}
	}
	return c
}

// Total returns the number of counted pixels.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Ash returns the number of pixels labelled high, medium or refined ash.
func (c Counts) Ash() int {
	return c[HighConfidence] + c[MediumConfidence] + c[Refined]
}
