package config

import (
	"fmt"
	"os"

	"github.com/chrissnell/ashdetect/pkg/ephemeris"
)

// NewSource builds the configured ephemeris source. Table sources are read
// from TableFile.
func (e EphemerisData) NewSource() (ephemeris.Source, error) {
	switch e.Source {
	case "", EphemerisMeeus:
		m := ephemeris.NewMeeus()
		if !e.ValidFrom.IsZero() {
			m.From = e.ValidFrom
		}
		if !e.ValidUntil.IsZero() {
			m.Until = e.ValidUntil
		}
		return m, nil
	case EphemerisApproximate:
		return ephemeris.Approximate{}, nil
	case EphemerisTable:
		f, err := os.Open(e.TableFile)
		if err != nil {
			return nil, fmt.Errorf("ephemeris table: %w", err)
		}
		defer f.Close()
		tb, err := ephemeris.LoadTable(f)
		if err != nil {
			return nil, fmt.Errorf("ephemeris table %s: %w", e.TableFile, err)
		}
		return tb, nil
	}
	return nil, fmt.Errorf("unknown ephemeris source %q", e.Source)
}
