package ephemeris

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"
)

// Approximate is the closed-form low-precision sun used by the NOAA solar
// calculator. Accuracy is about 0.01 degrees between 1901 and 2099.
type Approximate struct{}

var (
	approxStart = time.Date(1901, time.January, 1, 0, 0, 0, 0, time.UTC)
	approxEnd   = time.Date(2099, time.December, 31, 23, 59, 59, 0, time.UTC)
)

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// SunPosition implements Source.
func (Approximate) SunPosition(t time.Time) (Position, error) {
	if err := checkWindow(t, approxStart, approxEnd); err != nil {
		return Position{}, err
	}

	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	sunLong := L0 + C
	Ω := 125.04 - 1934.136*T
	λ := degToRad(sunLong - 0.00569 - 0.00478*math.Sin(degToRad(Ω)))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	ε := degToRad(eps0 + 0.00256*math.Cos(degToRad(Ω)))

	sinλ, cosλ := math.Sincos(λ)
	α := math.Atan2(math.Cos(ε)*sinλ, cosλ)
	δ := math.Asin(math.Sin(ε) * sinλ)

	return Position{RA: unit.RAFromRad(α), Dec: unit.Angle(δ)}, nil
}
