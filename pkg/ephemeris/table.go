package ephemeris

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/soniakeys/unit"
)

// Row is one tabulated sun position.
type Row struct {
	Time time.Time
	RA   unit.RA
	Dec  unit.Angle
}

// Table is a precomputed sun track, linearly interpolated between rows.
// Only instants within [first row, last row] are served.
type Table struct {
	rows []Row
}

var csvHeader = []string{"time", "ra_deg", "dec_deg"}

// NewTable sorts rows by time and builds a table. At least two rows with
// distinct times are required.
func NewTable(rows []Row) (*Table, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("ephemeris table needs at least 2 rows, got %d", len(rows))
	}
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Time.After(sorted[i-1].Time) {
			return nil, fmt.Errorf("duplicate ephemeris row at %s", sorted[i].Time.Format(time.RFC3339))
		}
	}
	return &Table{rows: sorted}, nil
}

// Tabulate samples src every step from start through end inclusive.
func Tabulate(src Source, start, end time.Time, step time.Duration) (*Table, error) {
	if step <= 0 {
		return nil, fmt.Errorf("invalid tabulation step %v", step)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("tabulation end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	var rows []Row
	for t := start; !t.After(end); t = t.Add(step) {
		p, err := src.SunPosition(t)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Time: t.UTC(), RA: p.RA, Dec: p.Dec})
	}
	if last := rows[len(rows)-1].Time; last.Before(end) {
		p, err := src.SunPosition(end)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Time: end.UTC(), RA: p.RA, Dec: p.Dec})
	}
	return NewTable(rows)
}

// Span returns the first and last tabulated instants.
func (tb *Table) Span() (time.Time, time.Time) {
	return tb.rows[0].Time, tb.rows[len(tb.rows)-1].Time
}

// Len returns the number of rows.
func (tb *Table) Len() int { return len(tb.rows) }

// SunPosition implements Source.
func (tb *Table) SunPosition(t time.Time) (Position, error) {
	first, last := tb.Span()
	if err := checkWindow(t, first, last); err != nil {
		return Position{}, err
	}

	// index of the first row strictly after t
	i := sort.Search(len(tb.rows), func(i int) bool { return tb.rows[i].Time.After(t) })
	if i == len(tb.rows) {
		r := tb.rows[len(tb.rows)-1]
		return Position{RA: r.RA, Dec: r.Dec}, nil
	}
	a, b := tb.rows[i-1], tb.rows[i]
	frac := float64(t.Sub(a.Time)) / float64(b.Time.Sub(a.Time))

	dra := b.RA.Rad() - a.RA.Rad()
	if dra > math.Pi {
		dra -= 2 * math.Pi
	} else if dra < -math.Pi {
		dra += 2 * math.Pi
	}

	return Position{
		RA:  unit.RAFromRad(a.RA.Rad() + frac*dra),
		Dec: unit.Angle(a.Dec.Rad() + frac*(b.Dec.Rad()-a.Dec.Rad())),
	}, nil
}

// LoadTable reads a CSV table with header time,ra_deg,dec_deg. Times are RFC3339.
func LoadTable(r io.Reader) (*Table, error) {
	c := csv.NewReader(r)
	c.FieldsPerRecord = len(csvHeader)

	header, err := c.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty ephemeris table")
		}
		return nil, fmt.Errorf("error reading ephemeris header: %w", err)
	}
	for i, h := range csvHeader {
		if header[i] != h {
			return nil, fmt.Errorf("unexpected ephemeris column %q at position %d, expected %q", header[i], i, h)
		}
	}

	records, err := c.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading ephemeris rows: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for n, record := range records {
		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time: %w", n+1, err)
		}
		ra, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad ra_deg: %w", n+1, err)
		}
		dec, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad dec_deg: %w", n+1, err)
		}
		if dec < -90 || dec > 90 {
			return nil, fmt.Errorf("row %d: declination %v out of range", n+1, dec)
		}
		rows = append(rows, Row{Time: ts.UTC(), RA: unit.RAFromDeg(ra), Dec: unit.AngleFromDeg(dec)})
	}
	return NewTable(rows)
}

// WriteCSV writes the table in the format read by LoadTable.
func (tb *Table) WriteCSV(w io.Writer) error {
	c := csv.NewWriter(w)
	if err := c.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range tb.rows {
		rec := []string{
			r.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.RA.Deg(), 'f', 8, 64),
			strconv.FormatFloat(r.Dec.Deg(), 'f', 8, 64),
		}
		if err := c.Write(rec); err != nil {
			return err
		}
	}
	c.Flush()
	return c.Error()
}
