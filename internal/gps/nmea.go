// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	nmea "github.com/adrianmo/go-nmea"
)

// Sentence identifiers understood by the parser.
const (
	TypeGGA = nmea.TypeGGA
	TypeVTG = nmea.TypeVTG
)

var (
	ErrDecode      = errors.New("gps: sentence is not valid text")
	ErrVoidFix     = errors.New("gps: no satellite fix")
	ErrMalformed   = errors.New("gps: malformed sentence")
	ErrUnsupported = errors.New("gps: unsupported sentence")
	ErrChecksum    = errors.New("gps: checksum rejected")
)

// ggaQuality is the fix quality position within GGA fields.
const ggaQuality = 5

// Parser extracts GGA and VTG data from raw receiver lines.
type Parser struct {
	// VerifyChecksum rejects sentences whose checksum is missing or does
	// not match. Off by default: the serial reader already frames lines.
	VerifyChecksum bool
}

// Parse applies one raw line to fix and returns the sentence type it
// recognised. GGA updates only position, time and quality values; VTG
// updates only ground speed. On any error fix is left untouched.
func (p Parser) Parse(raw []byte, fix *Fix) (string, error) {
	if !utf8.Valid(raw) {
		return "", ErrDecode
	}

	framed := false
	sp := nmea.SentenceParser{CheckCRC: p.checkCRC}
	sp.OnBaseSentence = func(s *nmea.BaseSentence) error {
		framed = true
		return screen(s)
	}
	sentence, err := sp.Parse(string(raw))
	switch {
	case err == nil:
	case errors.Is(err, ErrChecksum), errors.Is(err, ErrVoidFix), errors.Is(err, ErrUnsupported):
		return "", err
	case !framed:
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	default:
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch s := sentence.(type) {
	case nmea.GGA:
		applyGGA(s, fix)
		return TypeGGA, nil
	case nmea.VTG:
		// Fields keeps the text as received; GroundSpeedKnots already
		// proved it numeric.
		fix.GroundSpeed = s.Fields[4]
		return TypeVTG, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, sentence.Prefix())
}

func (p Parser) checkCRC(s nmea.BaseSentence, fields string) error {
	if !p.VerifyChecksum {
		return nil
	}
	if err := nmea.CheckCRC(s, fields); err != nil {
		return fmt.Errorf("%w: %v", ErrChecksum, err)
	}
	return nil
}

// screen drops foreign talkers and sentence types before typed parsing
// and reports a void GGA fix ahead of the per-field errors its empty
// fields would raise.
func screen(s *nmea.BaseSentence) error {
	if s.Talker != "GP" && s.Talker != "GN" {
		return fmt.Errorf("%w: talker %q", ErrUnsupported, s.Talker)
	}
	switch s.Type {
	case nmea.TypeGGA:
		if len(s.Fields) > ggaQuality {
			switch q := strings.TrimSpace(s.Fields[ggaQuality]); q {
			case "V", "", nmea.Invalid:
				return fmt.Errorf("%w: quality %q", ErrVoidFix, q)
			}
		}
	case nmea.TypeVTG:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, s.Type)
	}
	return nil
}

// applyGGA copies the accepted sentence into fix. Values come from the
// raw fields so the frame encoder sees the receiver's own text.
func applyGGA(s nmea.GGA, fix *Fix) {
	f := s.Fields
	fix.UTC = f[0]
	fix.Lat = f[1]
	fix.LatDir = f[2]
	fix.Lon = f[3]
	fix.LonDir = f[4]
	fix.Quality = s.FixQuality
	fix.NumSats = f[6]
	fix.Altitude = f[8]
}

// Tracker keeps the last-known-good fix together with the cycle each
// sentence family was last accepted in.
type Tracker struct {
	Parser Parser

	fix      Fix
	position Provenance
	velocity Provenance
	failures uint64
	lastErr  error
}

// Apply feeds one raw line received during cycle.
func (t *Tracker) Apply(raw []byte, cycle uint64) error {
	typ, err := t.Parser.Parse(raw, &t.fix)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			t.failures++
			t.lastErr = err
		}
		return err
	}
	switch typ {
	case TypeGGA:
		t.position = Provenance{Valid: true, Cycle: cycle}
	case TypeVTG:
		t.velocity = Provenance{Valid: true, Cycle: cycle}
	}
	return nil
}

// Fix returns a copy of the current fix.
func (t *Tracker) Fix() Fix { return t.fix }

// Position is the provenance of the GGA-sourced values.
func (t *Tracker) Position() Provenance { return t.position }

// Velocity is the provenance of the VTG-sourced ground speed.
func (t *Tracker) Velocity() Provenance { return t.velocity }

// Failures counts rejected GGA/VTG sentences.
func (t *Tracker) Failures() uint64 { return t.failures }

// LastError is the most recent rejection, if any.
func (t *Tracker) LastError() error { return t.lastErr }
