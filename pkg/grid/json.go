package grid

import (
	"encoding/json"
	"math"
	"strconv"
)

// MarshalJSON writes missing and non-finite values as null, which JSON
// cannot otherwise represent.
func (f Field) MarshalJSON() ([]byte, error) {
	shape, err := json.Marshal(f.Shape)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, 32+len(f.Vals)*8)
	b = append(b, `{"shape":`...)
	b = append(b, shape...)
	b = append(b, `,"vals":[`...)
	for i, v := range f.Vals {
		if i > 0 {
			b = append(b, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b = append(b, "null"...)
			continue
		}
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	b = append(b, "]}"...)
	return b, nil
}

// UnmarshalJSON reads null values as Missing.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw struct {
		Shape Shape      `json:"shape"`
		Vals  []*float64 `json:"vals"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Shape = raw.Shape
	f.Vals = make([]float64, len(raw.Vals))
	for i, v := range raw.Vals {
		if v == nil {
			f.Vals[i] = Missing
			continue
		}
		f.Vals[i] = *v
	}
	return nil
}
