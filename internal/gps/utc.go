// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"math"
	"strconv"
)

const centisPerDay = 24 * 60 * 60 * 100

// NormalizeUTC rounds a receiver time (hhmmss[.sss...]) to hhmmss.ss,
// carrying into seconds, minutes and hours. 23:59:59.999 wraps to 000000.00.
func NormalizeUTC(s string) (string, bool) {
	if len(s) < 6 {
		return "", false
	}
	for i := 0; i < 6; i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	hh, _ := strconv.Atoi(s[0:2])
	mm, _ := strconv.Atoi(s[2:4])
	sec := 0.0
	if len(s) > 6 {
		if s[6] != '.' {
			return "", false
		}
		v, err := strconv.ParseFloat(s[4:], 64)
		if err != nil {
			return "", false
		}
		sec = v
	} else {
		v, _ := strconv.Atoi(s[4:6])
		sec = float64(v)
	}
	if hh > 23 || mm > 59 || sec >= 60 {
		return "", false
	}

	total := int64(math.Round((float64(hh*3600+mm*60) + sec) * 100))
	total %= centisPerDay
	h := total / 360000
	m := total / 6000 % 60
	c := total % 6000
	return fmt.Sprintf("%02d%02d%02d.%02d", h, m, c/100, c%100), true
}

// IsClockUTC reports whether s is exactly hhmmss.ss.
func IsClockUTC(s string) bool {
	if len(s) != 9 || s[6] != '.' {
		return false
	}
	for i, c := range []byte(s) {
		if i == 6 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return s[0:2] <= "23" && s[2:4] <= "59" && s[4:6] <= "59"
}
