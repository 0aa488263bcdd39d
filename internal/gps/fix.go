// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

// Fix holds the latest accepted GPS values as the receiver reported them.
// Empty strings mean "never received".
type Fix struct {
	UTC         string `json:"utc"`          // hhmmss.ss as sent by the receiver
	Lat         string `json:"lat"`          // ddmm.mmmm
	LatDir      string `json:"lat_dir"`      // N / S
	Lon         string `json:"lon"`          // dddmm.mmmm
	LonDir      string `json:"lon_dir"`      // E / W
	NumSats     string `json:"nsats"`        // satellites in use
	Quality     string `json:"quality_flag"` // GGA fix quality
	Altitude    string `json:"altitude"`     // metres above mean sea level
	GroundSpeed string `json:"ground_speed"` // knots, from VTG
}

// Provenance records when a group of Fix values was last accepted.
type Provenance struct {
	Valid bool   `json:"valid"` // at least one sentence accepted
	Cycle uint64 `json:"cycle"` // cycle of the last accepted sentence
}

// Fresh reports whether the values were accepted during cycle.
func (p Provenance) Fresh(cycle uint64) bool {
	return p.Valid && p.Cycle == cycle
}

// Age is the number of cycles since the values were accepted.
func (p Provenance) Age(cycle uint64) uint64 {
	if !p.Valid || cycle < p.Cycle {
		return 0
	}
	return cycle - p.Cycle
}
