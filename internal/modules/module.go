// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package modules holds the payload's pluggable units (sensors, GPS,
// radio, camera) and the registry the scheduler iterates over.
package modules

import (
	"context"
	"strings"

	"github.com/relabs-tech/balloon_payload/internal/storage"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// Module is one unit driven by the scheduler every cycle.
type Module interface {
	// Name identifies the module in logs and file names.
	Name() string
	// Activate brings the hardware up. It is called exactly once, at boot;
	// a module that fails to activate stays inactive for the whole run.
	Activate() error
	// IsActive reports whether activation succeeded.
	IsActive() bool
	// Update takes a new reading.
	Update(ctx context.Context) error
	// Report is a one-line human readable summary of the latest reading.
	Report() string
	// Persist appends the latest reading, stamped with timeOfRecord.
	Persist(timeOfRecord string) error
}

// Contributor is a module whose readings go into the telemetry frame.
type Contributor interface {
	Contribute(s *telemetry.Snapshot)
}

// Base carries the bookkeeping every module shares.
type Base struct {
	name    string
	active  bool
	log     *storage.RotatingLog
	reading []string
}

func newBase(name string) Base {
	return Base{name: name}
}

// Name implements Module.
func (b *Base) Name() string { return b.name }

// IsActive implements Module.
func (b *Base) IsActive() bool { return b.active }

// AttachLog sets where Persist writes. Without a log Persist is a no-op.
func (b *Base) AttachLog(l *storage.RotatingLog) { b.log = l }

// Reading returns the fields of the latest reading, nil if there is none.
func (b *Base) Reading() []string { return b.reading }

// Report implements Module.
func (b *Base) Report() string {
	if b.reading == nil {
		return b.name + ": no reading"
	}
	return b.name + ": " + strings.Join(b.reading, ",")
}

// Persist implements Module.
func (b *Base) Persist(timeOfRecord string) error {
	if b.log == nil || b.reading == nil {
		return nil
	}
	return b.log.Append(append([]string{timeOfRecord}, b.reading...)...)
}

func (b *Base) markActive() { b.active = true }

func (b *Base) setReading(fields ...string) { b.reading = fields }
