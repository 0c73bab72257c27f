// Package spectral computes brightness temperature differences between
// infrared channels.
package spectral

import (
	"github.com/chrissnell/ashdetect/pkg/grid"
)

// Bands holds the brightness temperature channels, in Kelvin, used by the
// difference products. BT14 is carried for shape validation only.
type Bands struct {
	BT07 grid.Field
	BT11 grid.Field
	BT13 grid.Field
	BT14 grid.Field
	BT15 grid.Field
}

// Deltas are the three BTD products.
type Deltas struct {
	// Delta1 is BT13-BT15, the split-window ash indicator.
	Delta1 grid.Field
	// Delta2 is BT11-BT13, the phase discriminator.
	Delta2 grid.Field
	// Delta3 is BT07-BT13, the thermal contrast.
	Delta3 grid.Field
}

// ComputeDeltas returns BT13-BT15, BT11-BT13 and BT07-BT13.
func ComputeDeltas(b Bands) (Deltas, error) {
	s := b.BT13.Shape
	err := grid.SameShape(s,
		grid.Named{Name: "bt07", Field: b.BT07},
		grid.Named{Name: "bt11", Field: b.BT11},
		grid.Named{Name: "bt13", Field: b.BT13},
		grid.Named{Name: "bt14", Field: b.BT14},
		grid.Named{Name: "bt15", Field: b.BT15},
	)
	if err != nil {
		return Deltas{}, err
	}

	return Deltas{
		Delta1: Difference(b.BT13, b.BT15),
		Delta2: Difference(b.BT11, b.BT13),
		Delta3: Difference(b.BT07, b.BT13),
	}, nil
}

// Difference returns a-b elementwise. A missing operand yields a missing
// result. The shapes must already agree.
func Difference(a, b grid.Field) grid.Field {
	out := grid.NewField(a.Shape)
	for i := range out.Vals {
		x, y := a.Vals[i], b.Vals[i]
		if !grid.Valid(x, y) {
			out.Vals[i] = grid.Missing
			continue
		}
		out.Vals[i] = x - y
	}
	return out
}
