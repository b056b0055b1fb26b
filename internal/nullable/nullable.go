// Package nullable provides a float type that distinguishes "not available"
// from zero and carries absence through arithmetic.
package nullable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Float64 is a float that may be missing. The zero value is missing.
type Float64 struct {
	Value float64
	Valid bool
}

// Of wraps v. NaN and infinities are treated as missing.
func Of(v float64) Float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Float64{}
	}
	return Float64{Value: v, Valid: true}
}

// Null returns a missing value.
func Null() Float64 {
	return Float64{}
}

// FromPtr converts a pointer, nil meaning missing.
func FromPtr(p *float64) Float64 {
	if p == nil {
		return Float64{}
	}
	return Of(*p)
}

// Get returns the value and whether it is present.
func (f Float64) Get() (float64, bool) {
	return f.Value, f.Valid
}

// Or returns the value, or def when missing.
func (f Float64) Or(def float64) float64 {
	if !f.Valid {
		return def
	}
	return f.Value
}

// Ptr returns nil when missing.
func (f Float64) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Mul multiplies two values; the result is missing if either operand is.
func (f Float64) Mul(o Float64) Float64 {
	if !f.Valid || !o.Valid {
		return Float64{}
	}
	return Of(f.Value * o.Value)
}

// MulFloat scales a value by a plain constant.
func (f Float64) MulFloat(c float64) Float64 {
	if !f.Valid {
		return Float64{}
	}
	return Of(f.Value * c)
}

// Product multiplies all values, missing if any is missing.
func Product(vals ...Float64) Float64 {
	out := Of(1)
	for _, v := range vals {
		out = out.Mul(v)
	}
	return out
}

func (f Float64) String() string {
	if !f.Valid {
		return "NaN"
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// MarshalJSON writes null for missing values.
func (f Float64) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON accepts numbers, null and quoted numbers. The streaming
// feed sends "NaN" strings for fields it has no value for.
func (f *Float64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Float64{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return f.parse(s)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("nullable: %w", err)
	}
	*f = Of(v)
	return nil
}

// MarshalCSV renders missing values as an empty field.
func (f Float64) MarshalCSV() (string, error) {
	if !f.Valid {
		return "", nil
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64), nil
}

// UnmarshalCSV is the inverse of MarshalCSV.
func (f *Float64) UnmarshalCSV(s string) error {
	return f.parse(s)
}

func (f *Float64) parse(s string) error {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "-nan":
		*f = Float64{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("nullable: parsing %q: %w", s, err)
	}
	*f = Of(v)
	return nil
}
