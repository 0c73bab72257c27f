// Package compare scores a test classification against a reference one,
// typically a legacy operational product for the same scene.
package compare

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/dustin/go-humanize"
)

// ErrShapeMismatch is returned when the two label grids differ in shape.
var ErrShapeMismatch = grid.ErrShapeMismatch

// Diff map codes.
const (
	DiffNone          grid.Label = iota // background or matching ash
	DiffFalsePositive                   // reference 0, test ash
	DiffFalseNegative                   // reference ash, test 0
	DiffClass                           // both ash, different confidence
	DiffCloud                           // reference cloud or noise
)

// referenceNoData is the legacy fill value; anything at or below it is
// treated as no detection.
const referenceNoData = -100

// Report is the pixel-level agreement between two classifications.
type Report struct {
	Diff grid.Labels `json:"diff"`

	Total      int `json:"total"`
	MatchAsh   int `json:"match_ash"`
	ClassDiff  int `json:"class_diff"`
	FalsePos   int `json:"false_positive"`
	FalseNeg   int `json:"false_negative"`
	Cloud      int `json:"cloud"`
	AshInCloud int `json:"ash_in_cloud"`
	// Active is the number of pixels where either product says something,
	// never less than one.
	Active int `json:"active"`
}

func isAsh(l grid.Label) bool {
	return l >= ashclass.HighConfidence && l <= ashclass.Refined
}

// Compare builds the diff map of test against ref.
func Compare(ref, test grid.Labels) (*Report, error) {
	if err := ref.Check(); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if err := test.Check(); err != nil {
		return nil, fmt.Errorf("test: %w", err)
	}
	if ref.Shape != test.Shape {
		return nil, fmt.Errorf("reference is %v, test is %v: %w", ref.Shape, test.Shape, ErrShapeMismatch)
	}

	r := &Report{Diff: grid.NewLabels(ref.Shape), Total: ref.Shape.Len()}
	for i, rv := range ref.Vals {
		tv := test.Vals[i]
		switch {
		case rv >= ashclass.WaterCloud:
			r.Diff.Vals[i] = DiffCloud
			r.Cloud++
			if isAsh(tv) {
				r.AshInCloud++
			}
		case isAsh(rv) && isAsh(tv):
			if rv == tv {
				r.MatchAsh++
			} else {
				r.Diff.Vals[i] = DiffClass
				r.ClassDiff++
			}
		case rv == ashclass.NoDetection && isAsh(tv):
			r.Diff.Vals[i] = DiffFalsePositive
			r.FalsePos++
		case isAsh(rv) && tv == ashclass.NoDetection:
			r.Diff.Vals[i] = DiffFalseNegative
			r.FalseNeg++
		}
	}

	r.Active = r.FalsePos + r.FalseNeg + r.ClassDiff + r.MatchAsh + r.Cloud
	if r.Active == 0 {
		r.Active = 1
	}
	return r, nil
}

// Percent returns n as a percentage of the active area.
func (r *Report) Percent(n int) float64 {
	return float64(n) / float64(r.Active) * 100
}

// WriteText prints the tabular report.
func (r *Report) WriteText(w io.Writer) error {
	rule := strings.Repeat("-", 75)
	rows := []struct {
		label string
		n     int
	}{
		{"Exact ash match", r.MatchAsh},
		{"Class difference", r.ClassDiff},
		{"False positive (ref=0, test=ash)", r.FalsePos},
		{"False negative (ref=ash, test=0)", r.FalseNeg},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-45s | %10s | %15s\n", "CONDITION", "PIXELS", "% ACTIVE AREA")
	fmt.Fprintln(&b, rule)
	for _, row := range rows {
		fmt.Fprintf(&b, "%-45s | %10s | %14.2f%%\n", row.label, humanize.Comma(int64(row.n)), r.Percent(row.n))
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-45s | %10s | %14.2f%%\n", "Reference cloud/noise (ref=4 or 5)", humanize.Comma(int64(r.Cloud)), r.Percent(r.Cloud))
	if r.AshInCloud > 0 {
		fmt.Fprintf(&b, "  of which test detected ash in: %s px\n", humanize.Comma(int64(r.AshInCloud)))
	}
	fmt.Fprintln(&b, strings.Repeat("=", 75))

	_, err := io.WriteString(w, b.String())
	return err
}

// LabelsFromReference converts a float raster from a legacy product to
// labels. Missing, nodata and out-of-alphabet values become NoDetection;
// everything else is truncated toward zero.
func LabelsFromReference(f grid.Field) (grid.Labels, error) {
	if err := f.Check(); err != nil {
		return grid.Labels{}, err
	}
	out := grid.NewLabels(f.Shape)
	for i, v := range f.Vals {
		if grid.IsMissing(v) || v <= referenceNoData {
			continue
		}
		if l := math.Trunc(v); l >= 0 && l < ashclass.NumLabels {
			out.Vals[i] = grid.Label(l)
		}
	}
	return out, nil
}

var timestampPattern = regexp.MustCompile(`\d{11}`)

// ExtractTimestamp returns the first 11-digit YYYYjjjHHMM group in name.
func ExtractTimestamp(name string) (string, bool) {
	ts := timestampPattern.FindString(name)
	return ts, ts != ""
}

// ParseTimestamp decodes a YYYYjjjHHMM stamp into a UTC time.
func ParseTimestamp(ts string) (time.Time, error) {
	if len(ts) != 11 {
		return time.Time{}, fmt.Errorf("timestamp %q: expected 11 digits", ts)
	}
	fields := [4]int{}
	for i, span := range [4][2]int{{0, 4}, {4, 7}, {7, 9}, {9, 11}} {
		n, err := strconv.Atoi(ts[span[0]:span[1]])
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", ts, err)
		}
		fields[i] = n
	}
	year, doy, hour, minute := fields[0], fields[1], fields[2], fields[3]
	if doy < 1 || doy > 366 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("timestamp %q out of range", ts)
	}
	t := time.Date(year, time.January, 1, hour, minute, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	if t.Year() != year {
		return time.Time{}, fmt.Errorf("timestamp %q: day %d past end of year", ts, doy)
	}
	return t, nil
}
