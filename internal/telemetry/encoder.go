// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/balloon_payload/internal/gps"
)

// Provenance tags where a time of record came from.
type Provenance byte

const (
	ProvenanceGPS    Provenance = 'G'
	ProvenanceSystem Provenance = 'S'
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceGPS:
		return "gps"
	case ProvenanceSystem:
		return "system"
	default:
		return "none"
	}
}

// MarshalText renders the provenance by name.
func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (p *Provenance) UnmarshalText(b []byte) error {
	switch string(b) {
	case "gps":
		*p = ProvenanceGPS
	case "system":
		*p = ProvenanceSystem
	case "none":
		*p = 0
	default:
		return fmt.Errorf("unknown provenance %q", b)
	}
	return nil
}

// TimeOfRecord is the hhmmss.ss UTC time stamped on a cycle's readings.
type TimeOfRecord struct {
	UTC    string
	Source Provenance
}

// Valid reports whether the time can be put on the wire.
func (t TimeOfRecord) Valid() bool {
	return (t.Source == ProvenanceGPS || t.Source == ProvenanceSystem) && gps.IsClockUTC(t.UTC)
}

// SystemTime formats now as a system clock time of record.
func SystemTime(now time.Time) TimeOfRecord {
	now = now.UTC().Round(10 * time.Millisecond)
	return TimeOfRecord{
		UTC:    now.Format("150405.00"),
		Source: ProvenanceSystem,
	}
}

// FormatDateTime renders the 16-character datetime field: provenance,
// yymmdd taken from date, and the time of record. An unusable time becomes
// the missing sentinel.
func FormatDateTime(t TimeOfRecord, date time.Time) string {
	if !t.Valid() {
		return sentinel(KindMissing, DateTimeWidth, false)
	}
	return string(rune(t.Source)) + date.UTC().Format("060102") + t.UTC
}

// Snapshot carries one cycle's readings. A nil reading means the source
// module is inactive or has not produced a value yet.
type Snapshot struct {
	Time TimeOfRecord
	Fix  gps.Fix

	InternalTemp *float64
	ExternalTemp *float64
	CPUTemp      *float64
	Humidity     *float64
}

// Encoder assembles frames. It never fails: any field that cannot carry its
// value is replaced by a sentinel.
type Encoder struct {
	// Now supplies the system date for the datetime field.
	Now func() time.Time
}

// NewEncoder returns an encoder dated by the system clock.
func NewEncoder() *Encoder {
	return &Encoder{Now: time.Now}
}

// Encode returns the complete frame, terminator included.
func (e *Encoder) Encode(s Snapshot) string {
	frame, _ := e.EncodeWithErrors(s)
	return frame
}

// EncodeWithErrors is Encode plus a FieldError for every degraded field.
func (e *Encoder) EncodeWithErrors(s Snapshot) (string, []error) {
	now := time.Now
	if e != nil && e.Now != nil {
		now = e.Now
	}

	var errs []error
	fields := make([]string, 0, NumFields)
	add := func(out string, err error) {
		fields = append(fields, out)
		if err != nil {
			errs = append(errs, err)
		}
	}

	dt := FormatDateTime(s.Time, now())
	if !s.Time.Valid() {
		errs = append(errs, &FieldError{Field: fieldNames[FieldDateTime], Kind: KindMissing, Raw: s.Time.UTC})
	}
	fields = append(fields, dt)

	add(encodeCoordinate(LatitudeSpec, s.Fix.Lat, s.Fix.LatDir, "NS"))
	add(encodeCoordinate(LongitudeSpec, s.Fix.Lon, s.Fix.LonDir, "EW"))
	add(AltitudeSpec.FormatErr(parseReading(s.Fix.Altitude)))
	add(NumSatsSpec.FormatErr(parseReading(s.Fix.NumSats)))
	add(GroundSpeedSpec.FormatErr(parseReading(s.Fix.GroundSpeed)))
	add(QualitySpec.FormatErr(parseReading(s.Fix.Quality)))
	add(InternalTempSpec.FormatErr(s.InternalTemp))
	add(ExternalTempSpec.FormatErr(s.ExternalTemp))
	add(CPUTempSpec.FormatErr(s.CPUTemp))
	add(HumiditySpec.FormatErr(s.Humidity))

	return strings.Join(fields, Delimiter) + Terminator, errs
}

// encodeCoordinate renders a raw NMEA ddmm.mmmm value followed by its
// hemisphere letter.
func encodeCoordinate(spec FieldSpec, raw, dir, hemispheres string) (string, error) {
	width := spec.Width()
	v := parseReading(raw)
	if v == nil || len(dir) != 1 || !strings.Contains(hemispheres, dir) {
		return sentinel(KindMissing, width, false), &FieldError{Field: spec.Name, Kind: KindMissing, Raw: raw + dir}
	}
	number := spec
	number.Suffix = 0
	out, kind := number.format(v)
	if kind != KindNone {
		return sentinel(kind, width, false), &FieldError{Field: spec.Name, Kind: kind, Raw: raw + dir}
	}
	return out + dir, nil
}

// parseReading converts a textual reading; empty or malformed text is missing.
func parseReading(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
