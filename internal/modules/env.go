// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modules

import (
	"context"
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/balloon_payload/internal/sensors"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// EnvOpener brings up an environmental sensor.
type EnvOpener func() (sensors.EnvSensor, error)

// Placement says which frame field a temperature module feeds.
type Placement int

const (
	Internal Placement = iota
	External
)

func (p Placement) String() string {
	if p == External {
		return "external"
	}
	return "internal"
}

// Temperature reads a BMx280 and reports degrees Celsius.
type Temperature struct {
	Base
	placement Placement
	open      EnvOpener
	sensor    sensors.EnvSensor
	celsius   *float64
}

// NewTemperature builds an inactive temperature module.
func NewTemperature(name string, placement Placement, open EnvOpener) *Temperature {
	return &Temperature{Base: newBase(name), placement: placement, open: open}
}

// Activate implements Module.
func (t *Temperature) Activate() error {
	s, err := t.open()
	if err != nil {
		return fmt.Errorf("%s temperature sensor: %w", t.placement, err)
	}
	t.sensor = s
	t.markActive()
	return nil
}

// Update implements Module.
func (t *Temperature) Update(context.Context) error {
	var e physic.Env
	if err := t.sensor.Sense(&e); err != nil {
		return fmt.Errorf("sense: %w", err)
	}
	c := sensors.Celsius(e)
	t.celsius = &c
	t.setReading(formatFloat(c))
	return nil
}

// Celsius is the latest reading, nil before the first successful update.
func (t *Temperature) Celsius() *float64 { return t.celsius }

// Contribute implements Contributor.
func (t *Temperature) Contribute(s *telemetry.Snapshot) {
	if t.celsius == nil {
		return
	}
	c := *t.celsius
	if t.placement == External {
		s.ExternalTemp = &c
	} else {
		s.InternalTemp = &c
	}
}

// Report implements Module.
func (t *Temperature) Report() string {
	if t.celsius == nil {
		return t.Base.Report()
	}
	return fmt.Sprintf("%s: %s temperature %.2f C", t.Name(), t.placement, *t.celsius)
}

// Humidity reads relative humidity from a BME280. The sensor's own
// temperature is logged alongside but not transmitted.
type Humidity struct {
	Base
	open    EnvOpener
	sensor  sensors.EnvSensor
	percent *float64
	celsius float64
}

// NewHumidity builds an inactive humidity module.
func NewHumidity(name string, open EnvOpener) *Humidity {
	return &Humidity{Base: newBase(name), open: open}
}

// Activate implements Module.
func (h *Humidity) Activate() error {
	s, err := h.open()
	if err != nil {
		return fmt.Errorf("humidity sensor: %w", err)
	}
	h.sensor = s
	h.markActive()
	return nil
}

// Update implements Module.
func (h *Humidity) Update(context.Context) error {
	var e physic.Env
	if err := h.sensor.Sense(&e); err != nil {
		return fmt.Errorf("sense: %w", err)
	}
	rh := sensors.RelativeHumidity(e)
	h.percent = &rh
	h.celsius = sensors.Celsius(e)
	h.setReading(formatFloat(rh), formatFloat(h.celsius))
	return nil
}

// Contribute implements Contributor.
func (h *Humidity) Contribute(s *telemetry.Snapshot) {
	if h.percent == nil {
		return
	}
	rh := *h.percent
	s.Humidity = &rh
}

// Report implements Module.
func (h *Humidity) Report() string {
	if h.percent == nil {
		return h.Base.Report()
	}
	return fmt.Sprintf("%s: humidity %.2f %%RH, temperature %.2f C", h.Name(), *h.percent, h.celsius)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
