// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"math"
	"strconv"
	"strings"
)

// ErrorKind classifies why a field could not carry a value. Each kind maps to
// the single character that fills the field on the wire.
type ErrorKind byte

const (
	KindNone       ErrorKind = 0
	KindMissing    ErrorKind = 'X'
	KindAboveUpper ErrorKind = 'G'
	KindBelowLower ErrorKind = 'L'
	KindOverflow   ErrorKind = 'F'
)

// Sentinel returns the wire character for k.
func (k ErrorKind) Sentinel() byte { return byte(k) }

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindMissing:
		return "missing"
	case KindAboveUpper:
		return "above upper bound"
	case KindBelowLower:
		return "below lower bound"
	case KindOverflow:
		return "format overflow"
	default:
		return "unknown"
	}
}

// FieldError reports a field that degraded to a sentinel on encode, or that
// could not be decoded on receive.
type FieldError struct {
	Field string
	Kind  ErrorKind
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	msg := e.Field + ": invalid"
	if e.Kind != KindNone {
		msg = e.Field + ": " + e.Kind.String()
	}
	if e.Raw != "" {
		msg += " (" + strconv.Quote(e.Raw) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FieldError) Unwrap() error { return e.Err }

// FieldSpec describes one fixed-width numeric field of the frame.
// Suffix is the number of trailing characters appended after the number
// (the hemisphere letter of a coordinate).
type FieldSpec struct {
	Name       string
	IntDigits  int
	FracDigits int
	Signed     bool
	Lower      float64
	Upper      float64
	Suffix     int
}

// Width is the encoded width of the field, independent of the value.
func (s FieldSpec) Width() int {
	return numberWidth(s.IntDigits, s.FracDigits, s.Signed) + s.Suffix
}

// Format renders v (nil means missing) using the field's bounds.
// The suffix, if any, is the caller's business; on a sentinel the whole
// field width including the suffix is filled.
func (s FieldSpec) Format(v *float64) string {
	out, _ := s.format(v)
	return out
}

// FormatErr is Format plus the reason the field degraded, if it did.
func (s FieldSpec) FormatErr(v *float64) (string, error) {
	out, kind := s.format(v)
	if kind == KindNone {
		return out, nil
	}
	raw := ""
	if v != nil {
		raw = strconv.FormatFloat(*v, 'g', -1, 64)
	}
	return out, &FieldError{Field: s.Name, Kind: kind, Raw: raw}
}

func (s FieldSpec) format(v *float64) (string, ErrorKind) {
	width := s.Width()
	if v == nil || math.IsNaN(*v) {
		return sentinel(KindMissing, width, false), KindMissing
	}
	r := roundHalfAway(*v, s.FracDigits)
	if r > s.Upper {
		return sentinel(KindAboveUpper, width, s.Signed), KindAboveUpper
	}
	if r < s.Lower {
		return sentinel(KindBelowLower, width, s.Signed), KindBelowLower
	}
	num, ok := formatNumber(*v, s.IntDigits, s.FracDigits, s.Signed)
	if !ok {
		return sentinel(KindOverflow, width, false), KindOverflow
	}
	return num, KindNone
}

// Format renders v into a field of n1 integer and n2 fractional digits with
// no domain bounds. A nil v yields the missing sentinel.
func Format(v *float64, n1, n2 int, signed bool) string {
	return FieldSpec{
		IntDigits:  n1,
		FracDigits: n2,
		Signed:     signed,
		Lower:      math.Inf(-1),
		Upper:      math.Inf(1),
	}.Format(v)
}

func numberWidth(n1, n2 int, signed bool) int {
	w := n1 + n2
	if n2 > 0 {
		w++
	}
	if signed {
		w++
	}
	return w
}

// sentinel fills width with the kind's character. Bound sentinels of signed
// fields keep the sign column: "+GGGGGG" and "-LLLLLL".
func sentinel(k ErrorKind, width int, signed bool) string {
	if width <= 0 {
		return ""
	}
	if signed && width > 1 {
		switch k {
		case KindAboveUpper:
			return "+" + strings.Repeat(string(k.Sentinel()), width-1)
		case KindBelowLower:
			return "-" + strings.Repeat(string(k.Sentinel()), width-1)
		}
	}
	return strings.Repeat(string(k.Sentinel()), width)
}

// maxScaled keeps the scaled magnitude inside int64.
const maxScaled = 9e18

// formatNumber rounds v half away from zero to n2 places and lays it out
// zero padded. ok is false when the rounded integer part needs more than n1
// digits, or when an unsigned field would have to carry a minus sign.
func formatNumber(v float64, n1, n2 int, signed bool) (string, bool) {
	if math.IsInf(v, 0) {
		return "", false
	}
	pow := math.Pow10(n2)
	scaledAbs := math.Round(math.Abs(v) * pow)
	if scaledAbs >= maxScaled {
		return "", false
	}
	units := int64(scaledAbs)
	negative := v < 0 && units != 0
	if negative && !signed {
		return "", false
	}

	p := int64(pow)
	intPart := strconv.FormatInt(units/p, 10)
	if len(intPart) > n1 {
		return "", false
	}

	var b strings.Builder
	b.Grow(numberWidth(n1, n2, signed))
	if signed {
		if negative {
			b.WriteByte('-')
		} else {
			b.WriteByte('+')
		}
	}
	b.WriteString(strings.Repeat("0", n1-len(intPart)))
	b.WriteString(intPart)
	if n2 > 0 {
		frac := strconv.FormatInt(units%p, 10)
		b.WriteByte('.')
		b.WriteString(strings.Repeat("0", n2-len(frac)))
		b.WriteString(frac)
	}
	return b.String(), true
}

// roundHalfAway rounds v to n decimal places, halves away from zero.
func roundHalfAway(v float64, n int) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	pow := math.Pow10(n)
	scaled := math.Abs(v) * pow
	if scaled >= maxScaled {
		return v
	}
	return math.Copysign(math.Round(scaled)/pow, v)
}
