// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// EnvSensor is anything that senses temperature and humidity the way
// periph environmental devices do.
type EnvSensor interface {
	Sense(e *physic.Env) error
}

var (
	hostOnce    sync.Once
	hostInitErr error
)

// initHost loads the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}

// OpenEnvSPI opens a BME280/BMP280 on the given SPI device ("" for the
// first one available).
func OpenEnvSPI(dev string) (EnvSensor, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("env SPI open %q: %w", dev, err)
	}
	d, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("env SPI init %q: %w", dev, err)
	}
	return d, nil
}

// OpenEnvI2C opens a BME280 on the given I2C bus and address.
func OpenEnvI2C(bus string, addr uint16) (EnvSensor, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("env I2C open %q: %w", bus, err)
	}
	d, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("env I2C init %q@0x%02X: %w", bus, addr, err)
	}
	return d, nil
}

// Celsius converts a sensed temperature.
func Celsius(e physic.Env) float64 {
	return e.Temperature.Celsius()
}

// RelativeHumidity converts a sensed humidity to percent.
func RelativeHumidity(e physic.Env) float64 {
	return float64(e.Humidity) / float64(physic.PercentRH)
}
