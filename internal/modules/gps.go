// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modules

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"

	"github.com/relabs-tech/balloon_payload/internal/gps"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

const (
	// maxLinesPerUpdate bounds the work done in one cycle when the
	// receiver streams faster than the loop runs.
	maxLinesPerUpdate = 32
	// maxPendingLine drops a partial line that never terminates.
	maxPendingLine = 256
)

// SerialOpener opens the receiver's serial line. Reads must time out.
type SerialOpener func() (io.ReadCloser, error)

// GPS reads NMEA sentences from the receiver and keeps the
// last-known-good fix.
type GPS struct {
	Base
	open    SerialOpener
	port    io.ReadCloser
	r       *bufio.Reader
	pending string
	tracker gps.Tracker
	cycle   uint64
}

// NewGPS builds an inactive GPS module.
func NewGPS(name string, open SerialOpener, verifyChecksum bool) *GPS {
	g := &GPS{Base: newBase(name), open: open}
	g.tracker.Parser.VerifyChecksum = verifyChecksum
	return g
}

// Activate implements Module.
func (g *GPS) Activate() error {
	port, err := g.open()
	if err != nil {
		return fmt.Errorf("gps serial: %w", err)
	}
	g.port = port
	g.r = bufio.NewReader(port)
	g.markActive()
	return nil
}

// Update implements Module. It drains the lines that arrived since the
// previous cycle; a read timeout simply means no new data. Sentences that
// fail to parse leave the fix as it was and are not an update failure.
func (g *GPS) Update(ctx context.Context) error {
	g.cycle++
	for i := 0; i < maxLinesPerUpdate; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := g.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				g.keepPartial(chunk)
				break
			}
			return fmt.Errorf("gps read: %w", err)
		}
		line := g.pending + chunk
		g.pending = ""
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := g.tracker.Apply([]byte(line), g.cycle); err != nil {
			if errors.Is(err, gps.ErrUnsupported) {
				glog.V(3).Infof("gps: skipping %v", err)
			} else {
				glog.V(1).Infof("gps: rejected sentence: %v", err)
			}
		}
	}
	if !g.tracker.Position().Valid && !g.tracker.Velocity().Valid {
		return nil
	}
	fix := g.tracker.Fix()
	g.setReading(fix.UTC, fix.Lat+fix.LatDir, fix.Lon+fix.LonDir, fix.Altitude,
		fix.NumSats, fix.GroundSpeed, fix.Quality)
	return nil
}

func (g *GPS) keepPartial(chunk string) {
	g.pending += chunk
	if len(g.pending) > maxPendingLine {
		glog.Warningf("gps: dropping %d bytes without line ending", len(g.pending))
		g.pending = ""
	}
}

// Fix returns a copy of the last-known-good fix.
func (g *GPS) Fix() gps.Fix { return g.tracker.Fix() }

// Position is the provenance of the position and time values.
func (g *GPS) Position() gps.Provenance { return g.tracker.Position() }

// Velocity is the provenance of the ground speed.
func (g *GPS) Velocity() gps.Provenance { return g.tracker.Velocity() }

// PositionAge is the number of updates since a GGA sentence was last
// accepted.
func (g *GPS) PositionAge() uint64 { return g.tracker.Position().Age(g.cycle) }

// UTC is the receiver time as hhmmss.ss, or "" when none has been seen.
func (g *GPS) UTC() string {
	utc, ok := gps.NormalizeUTC(g.tracker.Fix().UTC)
	if !ok {
		return ""
	}
	return utc
}

// Contribute implements Contributor.
func (g *GPS) Contribute(s *telemetry.Snapshot) {
	s.Fix = g.tracker.Fix()
}

// Report implements Module.
func (g *GPS) Report() string {
	fix := g.tracker.Fix()
	pos, vel := g.tracker.Position(), g.tracker.Velocity()
	if !pos.Valid && !vel.Valid {
		return fmt.Sprintf("%s: no fix (%d rejected sentences)", g.Name(), g.tracker.Failures())
	}
	return fmt.Sprintf("%s: utc=%s lat=%s%s lon=%s%s alt=%s sats=%s q=%s speed=%s (position age %d, speed age %d)",
		g.Name(), fix.UTC, fix.Lat, fix.LatDir, fix.Lon, fix.LonDir, fix.Altitude,
		fix.NumSats, fix.Quality, fix.GroundSpeed, pos.Age(g.cycle), vel.Age(g.cycle))
}

// Close releases the serial port.
func (g *GPS) Close() error {
	if g.port == nil {
		return nil
	}
	return g.port.Close()
}
