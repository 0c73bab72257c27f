// Package grid holds the co-registered rasters shared by every stage of an
// ash classification run. Values are stored row-major: Vals[r*Cols+c].
//
// Missing data is carried as NaN in float fields. Code should test for it
// with IsMissing / Valid rather than relying on NaN comparison semantics, so
// that the missing-data branch of every comparison is visible at the call
// site.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when an array does not match the scene grid.
var ErrShapeMismatch = errors.New("grid shape mismatch")

// Missing is the sentinel used for undefined float values.
var Missing = math.NaN()

// IsMissing reports whether v is the missing-value sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Valid reports whether none of vs is missing.
func Valid(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Shape is the (rows, cols) extent of a raster.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Len returns the number of pixels.
func (s Shape) Len() int { return s.Rows * s.Cols }

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Rows, s.Cols) }

// Field is a float raster. Missing values are NaN.
type Field struct {
	Shape Shape     `json:"shape"`
	Vals  []float64 `json:"vals"`
}

// NewField allocates a field of the given shape filled with zeros.
func NewField(s Shape) Field {
	return Field{Shape: s, Vals: make([]float64, s.Len())}
}

// NewMissingField allocates a field of the given shape filled with Missing.
func NewMissingField(s Shape) Field {
	f := NewField(s)
	for i := range f.Vals {
		f.Vals[i] = Missing
	}
	return f
}

// Filled returns a field of the given shape where every pixel is v.
func Filled(s Shape, v float64) Field {
	f := NewField(s)
	for i := range f.Vals {
		f.Vals[i] = v
	}
	return f
}

// FromRows builds a field from a slice of equal-length rows.
func FromRows(rows [][]float64) (Field, error) {
	if len(rows) == 0 {
		return Field{}, nil
	}
	s := Shape{Rows: len(rows), Cols: len(rows[0])}
	f := NewField(s)
	for r, row := range rows {
		if len(row) != s.Cols {
			return Field{}, fmt.Errorf("row %d has %d columns, expected %d: %w", r, len(row), s.Cols, ErrShapeMismatch)
		}
		copy(f.Vals[r*s.Cols:], row)
	}
	return f, nil
}

// Check verifies that the value slice agrees with the declared shape.
func (f Field) Check() error {
	if f.Shape.Rows < 0 || f.Shape.Cols < 0 {
		return fmt.Errorf("negative shape %v: %w", f.Shape, ErrShapeMismatch)
	}
	if len(f.Vals) != f.Shape.Len() {
		return fmt.Errorf("field declares %v but holds %d values: %w", f.Shape, len(f.Vals), ErrShapeMismatch)
	}
	return nil
}

// Index returns the row-major offset of (r, c).
func (f Field) Index(r, c int) int { return r*f.Shape.Cols + c }

// At returns the value at (r, c).
func (f Field) At(r, c int) float64 { return f.Vals[r*f.Shape.Cols+c] }

// Set stores v at (r, c).
func (f Field) Set(r, c int, v float64) { f.Vals[r*f.Shape.Cols+c] = v }

// Rows returns a view of rows [lo, hi). The view shares storage with f.
func (f Field) Rows(lo, hi int) Field {
	cols := f.Shape.Cols
	return Field{
		Shape: Shape{Rows: hi - lo, Cols: cols},
		Vals:  f.Vals[lo*cols : hi*cols],
	}
}

// Clone returns a deep copy of f.
func (f Field) Clone() Field {
	out := Field{Shape: f.Shape, Vals: make([]float64, len(f.Vals))}
	copy(out.Vals, f.Vals)
	return out
}

// MissingCount returns the number of missing pixels.
func (f Field) MissingCount() int {
	n := 0
	for _, v := range f.Vals {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Present returns the non-missing values of f in row-major order.
func (f Field) Present() []float64 {
	out := make([]float64, 0, len(f.Vals))
	for _, v := range f.Vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Label is a classification code.
type Label uint8

// Labels is an integer raster of classification codes.
type Labels struct {
	Shape Shape   `json:"shape"`
	Vals  []Label `json:"vals"`
}

// NewLabels allocates a label grid filled with zeros.
func NewLabels(s Shape) Labels {
	return Labels{Shape: s, Vals: make([]Label, s.Len())}
}

// Check verifies that the value slice agrees with the declared shape.
func (l Labels) Check() error {
	if len(l.Vals) != l.Shape.Len() {
		return fmt.Errorf("labels declare %v but hold %d values: %w", l.Shape, len(l.Vals), ErrShapeMismatch)
	}
	return nil
}

// At returns the label at (r, c).
func (l Labels) At(r, c int) Label { return l.Vals[r*l.Shape.Cols+c] }

// Equal reports whether two label grids have the same shape and contents.
func (l Labels) Equal(o Labels) bool {
	if l.Shape != o.Shape || len(l.Vals) != len(o.Vals) {
		return false
	}
	for i := range l.Vals {
		if l.Vals[i] != o.Vals[i] {
			return false
		}
	}
	return true
}

// Named pairs a field with the name used in error messages.
type Named struct {
	Name  string
	Field Field
}

// SameShape checks every field against want. The first disagreement is
// reported by name.
func SameShape(want Shape, fields ...Named) error {
	for _, nf := range fields {
		if err := nf.Field.Check(); err != nil {
			return fmt.Errorf("%s: %w", nf.Name, err)
		}
		if nf.Field.Shape != want {
			return fmt.Errorf("%s is %v, scene grid is %v: %w", nf.Name, nf.Field.Shape, want, ErrShapeMismatch)
		}
	}
	return nil
}
