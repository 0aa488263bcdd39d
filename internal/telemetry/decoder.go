// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/golang/glog"
)

var (
	errShortRecord = errors.New("field absent from record")
	errWidth       = errors.New("unexpected field width")
	errHemisphere  = errors.New("bad hemisphere")
	errLayout      = errors.New("not laid out as the field's fixed-point number")
)

// Value is one decoded field. When a field fails to decode the previous
// value is kept and Fresh is false; Seq tells which record it came from.
type Value struct {
	Raw   string  `json:"raw"`
	Num   float64 `json:"num"`
	Valid bool    `json:"valid"` // decoded at least once
	Fresh bool    `json:"fresh"` // decoded from the latest record
	Seq   uint64  `json:"seq"`   // record the value was decoded from
}

// Record is the ground-station view of the latest frames.
type Record struct {
	Seq uint64 `json:"seq"`

	DateTime Value      `json:"datetime"`
	Time     time.Time  `json:"time"`
	Source   Provenance `json:"source"`

	Latitude     Value   `json:"latitude"`  // Num is ddmm.mm
	LatitudeDeg  float64 `json:"lat_deg"`   // signed decimal degrees
	Longitude    Value   `json:"longitude"` // Num is dddmm.mm
	LongitudeDeg float64 `json:"lon_deg"`   // signed decimal degrees
	Altitude     Value   `json:"altitude"`
	NumSats      Value   `json:"nsats"`
	GroundSpeed  Value   `json:"groundspeed"`
	Quality      Value   `json:"quality_flag"`
	InternalTemp Value   `json:"itemp"`
	ExternalTemp Value   `json:"etemp"`
	CPUTemp      Value   `json:"cputemp"`
	Humidity     Value   `json:"humidity"`

	// Errors lists the fields that fell back to their previous value.
	Errors []*FieldError `json:"-"`
}

// Field returns field i in protocol order.
func (r *Record) Field(i int) *Value {
	switch i {
	case FieldDateTime:
		return &r.DateTime
	case FieldLatitude:
		return &r.Latitude
	case FieldLongitude:
		return &r.Longitude
	case FieldAltitude:
		return &r.Altitude
	case FieldNumSats:
		return &r.NumSats
	case FieldGroundSpeed:
		return &r.GroundSpeed
	case FieldQuality:
		return &r.Quality
	case FieldInternalTemp:
		return &r.InternalTemp
	case FieldExternalTemp:
		return &r.ExternalTemp
	case FieldCPUTemp:
		return &r.CPUTemp
	case FieldHumidity:
		return &r.Humidity
	}
	return nil
}

// Decoder turns received payload windows into records, keeping the
// last-known-good value of every field across records.
type Decoder struct {
	last Record
}

// NewDecoder returns a decoder with no history.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Last returns the most recent record.
func (d *Decoder) Last() Record { return d.last }

// Decode splits window (the frame without its terminator) and converts
// every field independently. It never fails as a whole: a field that
// cannot be converted keeps its previous value and is reported in
// Record.Errors.
func (d *Decoder) Decode(window string) Record {
	rec := d.last
	rec.Seq++
	rec.Errors = nil
	for i := 0; i < NumFields; i++ {
		rec.Field(i).Fresh = false
	}

	parts := strings.Split(strings.TrimRight(window, "\r\n"), Delimiter)
	for i := 0; i < NumFields; i++ {
		raw := ""
		var err error
		if i < len(parts) {
			raw = parts[i]
			err = decodeField(&rec, i, raw)
		} else {
			err = &FieldError{Field: fieldNames[i], Kind: KindMissing, Err: errShortRecord}
		}
		if err != nil {
			var fe *FieldError
			if !errors.As(err, &fe) {
				fe = &FieldError{Field: fieldNames[i], Raw: raw, Err: err}
			}
			rec.Errors = append(rec.Errors, fe)
			glog.V(1).Infof("decoder: record %d: %v", rec.Seq, fe)
		}
	}

	d.last = rec
	return rec
}

// decodeField converts one field into rec. A panic while converting is
// confined to this field.
func decodeField(rec *Record, i int, raw string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode panic: %v", r)
		}
	}()

	if kind, ok := sentinelKind(raw); ok {
		return &FieldError{Field: fieldNames[i], Kind: kind, Raw: raw}
	}

	switch i {
	case FieldDateTime:
		return decodeDateTime(rec, raw)
	case FieldLatitude:
		deg, num, err := decodeCoordinate(LatitudeSpec, raw, "NS")
		if err != nil {
			return err
		}
		rec.LatitudeDeg = deg
		accept(rec, i, raw, num)
	case FieldLongitude:
		deg, num, err := decodeCoordinate(LongitudeSpec, raw, "EW")
		if err != nil {
			return err
		}
		rec.LongitudeDeg = deg
		accept(rec, i, raw, num)
	default:
		spec := numericSpecs[i]
		if len(raw) != spec.Width() {
			return &FieldError{Field: spec.Name, Raw: raw, Err: errWidth}
		}
		v, err := parseNumber(spec, raw)
		if err != nil {
			return &FieldError{Field: spec.Name, Raw: raw, Err: err}
		}
		accept(rec, i, raw, v)
	}
	return nil
}

var numericSpecs = map[int]FieldSpec{
	FieldAltitude:     AltitudeSpec,
	FieldNumSats:      NumSatsSpec,
	FieldGroundSpeed:  GroundSpeedSpec,
	FieldQuality:      QualitySpec,
	FieldInternalTemp: InternalTempSpec,
	FieldExternalTemp: ExternalTempSpec,
	FieldCPUTemp:      CPUTempSpec,
	FieldHumidity:     HumiditySpec,
}

func accept(rec *Record, i int, raw string, v float64) {
	*rec.Field(i) = Value{Raw: raw, Num: v, Valid: true, Fresh: true, Seq: rec.Seq}
}

func decodeDateTime(rec *Record, raw string) error {
	name := fieldNames[FieldDateTime]
	if len(raw) != DateTimeWidth {
		return &FieldError{Field: name, Raw: raw, Err: errWidth}
	}
	src := Provenance(raw[0])
	if src != ProvenanceGPS && src != ProvenanceSystem {
		return &FieldError{Field: name, Raw: raw, Err: fmt.Errorf("unknown time source %q", raw[0])}
	}
	ts, err := time.Parse("060102150405.00", raw[1:])
	if err != nil {
		return &FieldError{Field: name, Raw: raw, Err: err}
	}
	accept(rec, FieldDateTime, raw, float64(ts.UnixMilli())/1000)
	rec.Time = ts
	rec.Source = src
	return nil
}

// decodeCoordinate returns signed decimal degrees and the wire number.
func decodeCoordinate(spec FieldSpec, raw, hemispheres string) (float64, float64, error) {
	if len(raw) != spec.Width() {
		return 0, 0, &FieldError{Field: spec.Name, Raw: raw, Err: errWidth}
	}
	number, dir := raw[:len(raw)-1], raw[len(raw)-1:]
	if !strings.Contains(hemispheres, dir) {
		return 0, 0, &FieldError{Field: spec.Name, Raw: raw, Err: errHemisphere}
	}
	num, err := parseNumber(spec, number)
	if err != nil {
		return 0, 0, &FieldError{Field: spec.Name, Raw: raw, Err: err}
	}
	deg, err := nmea.ParseGPS(number + " " + dir)
	if err != nil {
		return 0, 0, &FieldError{Field: spec.Name, Raw: raw, Err: err}
	}
	return deg, num, nil
}

// parseNumber accepts only the layout formatNumber produces: a sign
// column on signed fields, exactly IntDigits digits and, when FracDigits is
// non-zero, a point followed by exactly FracDigits digits.
func parseNumber(spec FieldSpec, number string) (float64, error) {
	body := number
	if spec.Signed {
		if body == "" || (body[0] != '+' && body[0] != '-') {
			return 0, errLayout
		}
		body = body[1:]
	}
	intPart, fracPart, hasPoint := strings.Cut(body, ".")
	if hasPoint != (spec.FracDigits > 0) ||
		!digits(intPart, spec.IntDigits) || !digits(fracPart, spec.FracDigits) {
		return 0, errLayout
	}
	return strconv.ParseFloat(number, 64)
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// sentinelKind recognises a sentinel run, with or without a sign column.
func sentinelKind(raw string) (ErrorKind, bool) {
	body := raw
	if len(body) > 1 && (body[0] == '+' || body[0] == '-') {
		body = body[1:]
	}
	if body == "" {
		return KindNone, false
	}
	c := body[0]
	switch ErrorKind(c) {
	case KindMissing, KindAboveUpper, KindBelowLower, KindOverflow:
	default:
		return KindNone, false
	}
	if strings.Count(body, string(c)) != len(body) {
		return KindNone, false
	}
	return ErrorKind(c), true
}
