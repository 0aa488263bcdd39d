// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/relabs-tech/balloon_payload/internal/gps"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// SampleSnapshot is a representative mid-flight reading, including an
// external temperature far below its bound.
func SampleSnapshot() telemetry.Snapshot {
	f := func(v float64) *float64 { return &v }
	return telemetry.Snapshot{
		Time: telemetry.TimeOfRecord{UTC: "125925.33", Source: telemetry.ProvenanceGPS},
		Fix: gps.Fix{
			UTC:         "125925.33",
			Lat:         "4545.02",
			LatDir:      "N",
			Lon:         "13759.89",
			LonDir:      "W",
			NumSats:     "14",
			Quality:     "7",
			Altitude:    "4500.133939",
			GroundSpeed: "132.2149493020",
		},
		InternalTemp: f(123.12),
		ExternalTemp: f(-10000),
		CPUTemp:      f(100),
		Humidity:     f(30.3436939920293940506),
	}
}

// RunFrameDebug prints how frames encode and decode. With no windows it
// encodes SampleSnapshot and decodes it back; otherwise it decodes each
// window in order through one decoder, so carried-over values show.
func RunFrameDebug(w io.Writer, now time.Time, windows []string) error {
	if len(windows) == 0 {
		enc := &telemetry.Encoder{Now: func() time.Time { return now }}
		frame, errs := enc.EncodeWithErrors(SampleSnapshot())
		fmt.Fprintf(w, "frame (%d bytes): %q\n", len(frame), frame)
		for _, err := range errs {
			fmt.Fprintf(w, "  degraded: %v\n", err)
		}
		windows = []string{strings.TrimSuffix(frame, telemetry.Terminator)}
	}

	dec := telemetry.NewDecoder()
	for _, win := range windows {
		rec := dec.Decode(win)
		fmt.Fprintf(w, "record %d (%s time %s)\n", rec.Seq, rec.Source, rec.Time.Format(time.RFC3339Nano))
		for i := 0; i < telemetry.NumFields; i++ {
			v := rec.Field(i)
			state := "fresh"
			if !v.Fresh {
				state = "stale"
				if !v.Valid {
					state = "none"
				}
			}
			fmt.Fprintf(w, "  %-12s %-16s %-5s %v\n", telemetry.FieldName(i), v.Raw, state, v.Num)
		}
		if rec.Latitude.Valid && rec.Longitude.Valid {
			fmt.Fprintf(w, "  position     %.6f, %.6f\n", rec.LatitudeDeg, rec.LongitudeDeg)
		}
		for _, fe := range rec.Errors {
			fmt.Fprintf(w, "  error: %v\n", fe)
		}
	}
	return nil
}
