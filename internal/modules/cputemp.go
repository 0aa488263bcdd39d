// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modules

import (
	"context"
	"fmt"

	"github.com/relabs-tech/balloon_payload/internal/sensors"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// CPUTemp reads the SoC thermal zone.
type CPUTemp struct {
	Base
	path    string
	celsius *float64
}

// NewCPUTemp builds an inactive CPU temperature module reading path
// (sensors.CPUTempPath when empty).
func NewCPUTemp(name, path string) *CPUTemp {
	if path == "" {
		path = sensors.CPUTempPath
	}
	return &CPUTemp{Base: newBase(name), path: path}
}

// Activate implements Module. The zone must be readable once.
func (c *CPUTemp) Activate() error {
	if _, err := sensors.ReadCPUTempC(c.path); err != nil {
		return err
	}
	c.markActive()
	return nil
}

// Update implements Module.
func (c *CPUTemp) Update(context.Context) error {
	v, err := sensors.ReadCPUTempC(c.path)
	if err != nil {
		return err
	}
	c.celsius = &v
	c.setReading(formatFloat(v))
	return nil
}

// Contribute implements Contributor.
func (c *CPUTemp) Contribute(s *telemetry.Snapshot) {
	if c.celsius == nil {
		return
	}
	v := *c.celsius
	s.CPUTemp = &v
}

// Report implements Module.
func (c *CPUTemp) Report() string {
	if c.celsius == nil {
		return c.Base.Report()
	}
	return fmt.Sprintf("%s: cpu temperature %.1f C", c.Name(), *c.celsius)
}
