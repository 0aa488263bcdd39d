// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/relabs-tech/balloon_payload/internal/link"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// LinkOpener brings up the downlink.
type LinkOpener func() (link.Link, error)

// Comms owns the downlink. It has nothing to read; the scheduler hands it
// frames through Transmit.
type Comms struct {
	Base
	open    LinkOpener
	link    link.Link
	sent    uint64
	failed  uint64
	unsaved bool
}

// NewComms builds an inactive comms module.
func NewComms(name string, open LinkOpener) *Comms {
	return &Comms{Base: newBase(name), open: open}
}

// Activate implements Module.
func (c *Comms) Activate() error {
	l, err := c.open()
	if err != nil {
		return fmt.Errorf("downlink: %w", err)
	}
	c.link = l
	c.markActive()
	return nil
}

// Update implements Module.
func (c *Comms) Update(context.Context) error { return nil }

// Transmit sends one frame. The frame is kept as the module's reading
// whether or not the link accepted it.
func (c *Comms) Transmit(frame string) error {
	c.setReading(strings.TrimSuffix(frame, telemetry.Terminator))
	c.unsaved = true
	if err := c.link.Send(frame); err != nil {
		c.failed++
		return err
	}
	c.sent++
	return nil
}

// Persist implements Module. Only frames not yet written are logged.
func (c *Comms) Persist(timeOfRecord string) error {
	if !c.unsaved {
		return nil
	}
	c.unsaved = false
	return c.Base.Persist(timeOfRecord)
}

// Report implements Module.
func (c *Comms) Report() string {
	last := "none"
	if r := c.Reading(); r != nil {
		last = r[0]
	}
	return fmt.Sprintf("%s: %d frames sent, %d failed, last %s", c.Name(), c.sent, c.failed, last)
}
