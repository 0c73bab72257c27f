// Package ephemeris provides geocentric apparent sun positions for an
// observation instant. Sources differ in precision and validity window;
// an instant outside the window yields ErrOutOfRange.
package ephemeris

import (
	"errors"
	"fmt"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// ErrOutOfRange is returned when a source has no data for the requested instant.
var ErrOutOfRange = errors.New("instant outside ephemeris validity range")

// Position is the sun's apparent equatorial position.
type Position struct {
	RA  unit.RA
	Dec unit.Angle
}

// Source resolves the sun's position for an instant.
type Source interface {
	SunPosition(t time.Time) (Position, error)
}

// Validity window of the JPL DE421 kernel. Used as the default window for
// the Meeus source so that scenes are accepted over the same span as the
// tables they were historically processed with.
var (
	DE421Start = time.Date(1899, time.July, 29, 0, 0, 0, 0, time.UTC)
	DE421End   = time.Date(2053, time.October, 9, 0, 0, 0, 0, time.UTC)
)

// deltaTSeconds approximates TT-UT for the present era. Its effect on the
// sun's position is a few thousandths of a degree.
const deltaTSeconds = 69.2

// Meeus computes the apparent sun with the VSOP-truncated theory of
// Meeus, Astronomical Algorithms ch. 25.
type Meeus struct {
	From  time.Time
	Until time.Time
}

// NewMeeus returns a Meeus source valid over the DE421 window.
func NewMeeus() *Meeus {
	return &Meeus{From: DE421Start, Until: DE421End}
}

// SunPosition implements Source.
func (m *Meeus) SunPosition(t time.Time) (Position, error) {
	if err := checkWindow(t, m.From, m.Until); err != nil {
		return Position{}, err
	}
	jde := julian.TimeToJD(t.UTC()) + deltaTSeconds/86400
	α, δ := solar.ApparentEquatorial(jde)
	return Position{RA: α, Dec: δ}, nil
}

func checkWindow(t, from, until time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("zero observation time: %w", ErrOutOfRange)
	}
	if (!from.IsZero() && t.Before(from)) || (!until.IsZero() && t.After(until)) {
		return fmt.Errorf("%s not in [%s, %s]: %w",
			t.UTC().Format(time.RFC3339), from.Format(time.RFC3339), until.Format(time.RFC3339), ErrOutOfRange)
	}
	return nil
}
