// Package solar computes per-pixel solar zenith angles for a scene observed
// at a single instant.
package solar

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/ashdetect/pkg/ephemeris"
	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

const rad = math.Pi / 180.0

// Sun is the scene-wide solar geometry: resolved once per instant and then
// applied to every pixel.
type Sun struct {
	Time time.Time
	RA   float64 // radians
	Dec  float64 // radians
	GST  float64 // apparent Greenwich sidereal time, radians

	sinDec, cosDec float64
}

// Resolve looks up the sun's position and the sidereal time for t.
func Resolve(t time.Time, src ephemeris.Source) (Sun, error) {
	pos, err := src.SunPosition(t)
	if err != nil {
		return Sun{}, fmt.Errorf("sun position for %s: %w", t.UTC().Format(time.RFC3339), err)
	}
	gst := sidereal.Apparent(julian.TimeToJD(t.UTC()))

	s := Sun{
		Time: t.UTC(),
		RA:   pos.RA.Rad(),
		Dec:  pos.Dec.Rad(),
		GST:  gst.Rad(),
	}
	s.sinDec, s.cosDec = math.Sincos(s.Dec)
	return s, nil
}

// Zenith returns the solar zenith angle in degrees at (latDeg, lonDeg).
// Missing geolocation yields grid.Missing.
func (s Sun) Zenith(latDeg, lonDeg float64) float64 {
	if !grid.Valid(latDeg, lonDeg) {
		return grid.Missing
	}
	sinLat, cosLat := math.Sincos(latDeg * rad)
	lha := s.GST + lonDeg*rad - s.RA
	return zenithFromCos(sinLat*s.sinDec + cosLat*s.cosDec*math.Cos(lha))
}

// zenithFromCos inverts cos(SZA). Rounding can push the cosine slightly past
// ±1, so it is clamped here and nowhere else.
func zenithFromCos(c float64) float64 {
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) / rad
}

// SubsolarPoint returns the latitude and longitude in degrees where the sun
// is at the zenith.
func (s Sun) SubsolarPoint() (latDeg, lonDeg float64) {
	lon := math.Remainder(s.RA-s.GST, 2*math.Pi)
	return s.Dec / rad, lon / rad
}

// ComputeSZA returns the solar zenith angle field, in degrees, for lat/lon
// observed at t. The ephemeris is consulted once for the whole grid.
func ComputeSZA(t time.Time, lat, lon grid.Field, src ephemeris.Source) (grid.Field, error) {
	if err := grid.SameShape(lat.Shape, grid.Named{Name: "lat", Field: lat}, grid.Named{Name: "lon", Field: lon}); err != nil {
		return grid.Field{}, err
	}

	sun, err := Resolve(t, src)
	if err != nil {
		return grid.Field{}, err
	}

	out := grid.NewField(lat.Shape)
	for i := range out.Vals {
		out.Vals[i] = sun.Zenith(lat.Vals[i], lon.Vals[i])
	}
	return out, nil
}
