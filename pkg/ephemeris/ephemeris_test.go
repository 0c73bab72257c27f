package ephemeris

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/soniakeys/unit"
)

// Meeus, Astronomical Algorithms, example 25.a: 1992 October 13.0 TD.
var example25a = time.Date(1992, time.October, 13, 0, 0, 0, 0, time.UTC).Add(-time.Duration(deltaTSeconds * float64(time.Second)))

const (
	example25aRADeg  = 198.38083 // 13h13m31.4s
	example25aDecDeg = -7.78507  // -7°47'06"
)

func angleDiffDeg(a, b float64) float64 {
	d := math.Mod(a-b+540, 360) - 180
	return math.Abs(d)
}

func TestSourcesAgainstMeeusExample(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		tol  float64
	}{
		{name: "meeus", src: NewMeeus(), tol: 0.005},
		{name: "approximate", src: Approximate{}, tol: 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.src.SunPosition(example25a)
			if err != nil {
				t.Fatalf("SunPosition: %v", err)
			}
			if d := angleDiffDeg(p.RA.Deg(), example25aRADeg); d > tt.tol {
				t.Errorf("RA = %.5f°, expected %.5f° (diff %.5f)", p.RA.Deg(), example25aRADeg, d)
			}
			if d := math.Abs(p.Dec.Deg() - example25aDecDeg); d > tt.tol {
				t.Errorf("Dec = %.5f°, expected %.5f° (diff %.5f)", p.Dec.Deg(), example25aDecDeg, d)
			}
		})
	}
}

func TestSolsticeDeclination(t *testing.T) {
	// June solstice 2024-06-20 20:51 UTC
	p, err := NewMeeus().SunPosition(time.Date(2024, time.June, 20, 20, 51, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SunPosition: %v", err)
	}
	if math.Abs(p.Dec.Deg()-23.44) > 0.01 {
		t.Errorf("solstice declination = %.4f°, expected ~23.44°", p.Dec.Deg())
	}
	if angleDiffDeg(p.RA.Deg(), 90) > 0.05 {
		t.Errorf("solstice RA = %.4f°, expected ~90°", p.RA.Deg())
	}
}

func TestOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		t    time.Time
	}{
		{name: "meeus before DE421", src: NewMeeus(), t: time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "meeus after DE421", src: NewMeeus(), t: time.Date(2060, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "meeus zero time", src: NewMeeus(), t: time.Time{}},
		{name: "approximate after 2099", src: Approximate{}, t: time.Date(2101, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.src.SunPosition(tt.t)
			if !errors.Is(err, ErrOutOfRange) {
				t.Errorf("err = %v, expected ErrOutOfRange", err)
			}
		})
	}
}

func TestTableInterpolation(t *testing.T) {
	src := NewMeeus()
	start := time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	tb, err := Tabulate(src, start, end, time.Hour)
	if err != nil {
		t.Fatalf("Tabulate: %v", err)
	}
	if tb.Len() != 25 {
		t.Errorf("table has %d rows, expected 25", tb.Len())
	}

	probe := start.Add(13*time.Hour + 27*time.Minute)
	want, _ := src.SunPosition(probe)
	got, err := tb.SunPosition(probe)
	if err != nil {
		t.Fatalf("table SunPosition: %v", err)
	}
	if d := angleDiffDeg(got.RA.Deg(), want.RA.Deg()); d > 1e-4 {
		t.Errorf("interpolated RA off by %.6f°", d)
	}
	if d := math.Abs(got.Dec.Deg() - want.Dec.Deg()); d > 1e-4 {
		t.Errorf("interpolated Dec off by %.6f°", d)
	}

	for _, edge := range []time.Time{start, end} {
		if _, err := tb.SunPosition(edge); err != nil {
			t.Errorf("table edge %s: %v", edge, err)
		}
	}
	if _, err := tb.SunPosition(end.Add(time.Second)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("past table end: err = %v, expected ErrOutOfRange", err)
	}
}

func TestTableRAWrap(t *testing.T) {
	t0 := time.Date(2020, time.March, 20, 0, 0, 0, 0, time.UTC)
	tb, err := NewTable([]Row{
		{Time: t0.Add(2 * time.Hour), RA: unit.RAFromDeg(1), Dec: unit.AngleFromDeg(0.5)},
		{Time: t0, RA: unit.RAFromDeg(359), Dec: unit.AngleFromDeg(-0.5)},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	p, err := tb.SunPosition(t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("SunPosition: %v", err)
	}
	if angleDiffDeg(p.RA.Deg(), 0) > 1e-9 {
		t.Errorf("RA across 0h = %.6f°, expected 0°", p.RA.Deg())
	}
	if math.Abs(p.Dec.Deg()) > 1e-9 {
		t.Errorf("Dec = %.6f°, expected 0°", p.Dec.Deg())
	}
}

func TestTableCSVRoundTrip(t *testing.T) {
	start := time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC)
	tb, err := Tabulate(Approximate{}, start, start.Add(6*time.Hour), 90*time.Minute)
	if err != nil {
		t.Fatalf("Tabulate: %v", err)
	}

	var buf bytes.Buffer
	if err := tb.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	loaded, err := LoadTable(&buf)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if loaded.Len() != tb.Len() {
		t.Fatalf("loaded %d rows, wrote %d", loaded.Len(), tb.Len())
	}

	probe := start.Add(100 * time.Minute)
	a, _ := tb.SunPosition(probe)
	b, _ := loaded.SunPosition(probe)
	if angleDiffDeg(a.RA.Deg(), b.RA.Deg()) > 1e-6 || math.Abs(a.Dec.Deg()-b.Dec.Deg()) > 1e-6 {
		t.Errorf("round trip changed position: %v vs %v", a, b)
	}
}

func TestLoadTableErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{name: "empty", csv: ""},
		{name: "bad header", csv: "when,ra,dec\n"},
		{name: "single row", csv: "time,ra_deg,dec_deg\n2020-01-01T00:00:00Z,280,-23\n"},
		{name: "bad time", csv: "time,ra_deg,dec_deg\nyesterday,280,-23\n2020-01-02T00:00:00Z,281,-23\n"},
		{name: "bad declination", csv: "time,ra_deg,dec_deg\n2020-01-01T00:00:00Z,280,-123\n2020-01-02T00:00:00Z,281,-23\n"},
		{name: "duplicate time", csv: "time,ra_deg,dec_deg\n2020-01-01T00:00:00Z,280,-23\n2020-01-01T00:00:00Z,281,-23\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTable(strings.NewReader(tt.csv)); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}
