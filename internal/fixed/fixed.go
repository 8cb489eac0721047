// Package fixed implements exact decimal arithmetic with six implied
// fractional digits. Every fractional game quantity (skill, exhaustion,
// probability, panic) is a Fixed so simulation results never drift the way
// binary floating point does.
package fixed

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scale is the backing-integer multiplier: one unit of the backing value
// equals 10^-6 of the real value.
const Scale = 1_000_000

// ErrTooPrecise indicates a float with more than six fractional digits.
var ErrTooPrecise = errors.New("value has more than six fractional digits")

// Fixed is a decimal with six implied fractional digits backed by an int64.
// The zero value is 0.
type Fixed int64

// Zero and One are the usual arithmetic identities.
const (
	Zero Fixed = 0
	One  Fixed = Scale
)

// FromInt returns v as a Fixed.
func FromInt(v int) Fixed {
	return Fixed(int64(v) * Scale)
}

// FromFloat converts v to a Fixed. It fails with ErrTooPrecise when v cannot
// be represented in six fractional digits.
func FromFloat(v float64) (Fixed, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %v is not finite", v)
	}
	scaled := v * Scale
	rounded := math.Round(scaled)
	eps := math.Max(math.Abs(scaled)*1e-9, 1e-9)
	if math.Abs(scaled-rounded) > eps {
		return 0, fmt.Errorf("%w: %v", ErrTooPrecise, v)
	}
	return Fixed(int64(rounded)), nil
}

// MustFromFloat is FromFloat for compile-time constants; it panics on error.
func MustFromFloat(v float64) Fixed {
	f, err := FromFloat(v)
	if err != nil {
		panic(err)
	}
	return f
}

// Parse reads a decimal string such as "12.5" or "-0.25".
func Parse(s string) (Fixed, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty fixed value")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 6 {
		return 0, fmt.Errorf("%w: %q", ErrTooPrecise, s)
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fixed value %q", s)
	}
	var frac int64
	if fracPart != "" {
		frac, err = strconv.ParseInt(fracPart+strings.Repeat("0", 6-len(fracPart)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fixed value %q", s)
		}
	}
	v := whole*Scale + frac
	if neg {
		v = -v
	}
	return Fixed(v), nil
}

// Add returns f + o.
func (f Fixed) Add(o Fixed) Fixed { return f + o }

// Sub returns f - o.
func (f Fixed) Sub(o Fixed) Fixed { return f - o }

// Mul returns f × o, truncated toward zero.
func (f Fixed) Mul(o Fixed) Fixed {
	return Fixed(int64(f) * int64(o) / Scale)
}

// Div returns f ÷ o, truncated toward zero. Division by zero panics, as with
// integer division.
func (f Fixed) Div(o Fixed) Fixed {
	return Fixed(int64(f) * Scale / int64(o))
}

// MulInt returns f × n.
func (f Fixed) MulInt(n int) Fixed { return Fixed(int64(f) * int64(n)) }

// DivInt returns f ÷ n, truncated toward zero.
func (f Fixed) DivInt(n int) Fixed { return Fixed(int64(f) / int64(n)) }

// Neg returns -f.
func (f Fixed) Neg() Fixed { return -f }

// Cmp returns -1, 0, or 1 comparing f to o.
func (f Fixed) Cmp(o Fixed) int {
	switch {
	case f < o:
		return -1
	case f > o:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether f is exactly zero.
func (f Fixed) IsZero() bool { return f == 0 }

// IsNegative reports whether f is below zero.
func (f Fixed) IsNegative() bool { return f < 0 }

// Floor returns the largest integer not greater than f.
func (f Fixed) Floor() int64 {
	if f >= 0 {
		return int64(f) / Scale
	}
	return (int64(f) - Scale + 1) / Scale
}

// Round returns the nearest integer, half away from zero.
func (f Fixed) Round() int64 {
	if f >= 0 {
		return (int64(f) + Scale/2) / Scale
	}
	return (int64(f) - Scale/2) / Scale
}

// Clamp limits f to [lo, hi].
func (f Fixed) Clamp(lo, hi Fixed) Fixed {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// Min returns the smaller of a and b.
func Min(a, b Fixed) Fixed {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Fixed) Fixed {
	if a > b {
		return a
	}
	return b
}

// Sqrt returns the square root of f, truncated to six fractional digits.
// Negative input is invalid. Integer Newton iteration keeps the result
// bit-identical across platforms.
func (f Fixed) Sqrt() Fixed {
	if f < 0 {
		panic(fmt.Sprintf("fixed: Sqrt of negative value %v", f))
	}
	if f == 0 {
		return 0
	}
	// sqrt(raw/Scale) in fixed units = isqrt(raw*Scale).
	n := int64(f) * Scale
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return Fixed(x)
}

// Float64 returns f as a float64. Display and interop only; never feed the
// result back into game arithmetic.
func (f Fixed) Float64() float64 {
	return float64(f) / Scale
}

// String formats f as a plain decimal with trailing zeros trimmed.
func (f Fixed) String() string {
	v := int64(f)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / Scale
	frac := v % Scale
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, s)
}

// MarshalJSON encodes f as a decimal string to keep round trips exact.
func (f Fixed) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (f *Fixed) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := Parse(s)
		if err != nil {
			return err
		}
		*f = v
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid fixed value %s", data)
	}
	v, err := FromFloat(n)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// UnmarshalYAML lets rules files write fixed quantities as plain numbers.
func (f *Fixed) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		v, err := Parse(s)
		if err != nil {
			return err
		}
		*f = v
		return nil
	}
	var n float64
	if err := unmarshal(&n); err != nil {
		return err
	}
	v, err := FromFloat(n)
	if err != nil {
		return err
	}
	*f = v
	return nil
}
