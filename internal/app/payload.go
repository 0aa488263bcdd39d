// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/relabs-tech/balloon_payload/internal/config"
	"github.com/relabs-tech/balloon_payload/internal/link"
	"github.com/relabs-tech/balloon_payload/internal/modules"
	"github.com/relabs-tech/balloon_payload/internal/scheduler"
	"github.com/relabs-tech/balloon_payload/internal/sensors"
	"github.com/relabs-tech/balloon_payload/internal/storage"
)

// Persisted record headers, one per module.
var logHeaders = map[string]string{
	"itemp":    "time,celsius",
	"etemp":    "time,celsius",
	"humidity": "time,percent_rh,celsius",
	"cputemp":  "time,celsius",
	"gps":      "time,utc,lat,lon,altitude,nsats,groundspeed,quality_flag",
	"camera":   "time,image",
	"comms":    "time,frame",
}

// logAttacher is implemented by every module built on modules.Base.
type logAttacher interface {
	AttachLog(l *storage.RotatingLog)
}

// Payload is the flight computer: the module set and the loop driving it.
type Payload struct {
	Registry  *modules.Registry
	Scheduler *scheduler.Scheduler

	logs    []*storage.RotatingLog
	closers []io.Closer
}

// NewPayload builds and activates every module described by cfg. Modules
// whose hardware is missing are logged and left inactive.
func NewPayload(cfg *config.Config) (*Payload, error) {
	p := &Payload{Registry: modules.NewRegistry()}

	gpsModule := modules.NewGPS("gps", func() (io.ReadCloser, error) {
		return sensors.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate, cfg.GPSReadTimeout())
	}, cfg.GPSVerifyChecksum)
	comms := modules.NewComms("comms", func() (link.Link, error) {
		return p.openDownlink(cfg)
	})

	all := []modules.Module{
		modules.NewTemperature("itemp", modules.Internal, func() (sensors.EnvSensor, error) {
			return sensors.OpenEnvSPI(cfg.ITempSPIDevice)
		}),
		modules.NewTemperature("etemp", modules.External, func() (sensors.EnvSensor, error) {
			return sensors.OpenEnvSPI(cfg.ETempSPIDevice)
		}),
		modules.NewHumidity("humidity", func() (sensors.EnvSensor, error) {
			return sensors.OpenEnvI2C(cfg.HumidityI2CBus, cfg.HumidityI2CAddr)
		}),
		modules.NewCPUTemp("cputemp", cfg.CPUTempPath),
		gpsModule,
		modules.NewCamera("camera", cfg.CameraDir, cfg.CameraCommand, nil),
		comms,
	}

	for _, m := range all {
		l, err := storage.NewRotatingLog(cfg.DataDir, m.Name(), cfg.LogNumLines, logHeaders[m.Name()])
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("payload: %w", err)
		}
		p.logs = append(p.logs, l)
		if a, ok := m.(logAttacher); ok {
			a.AttachLog(l)
		}
		if err := p.Registry.Register(m); err != nil {
			glog.Warningf("payload: continuing without %s", m.Name())
		}
	}
	p.closers = append(p.closers, gpsModule)

	s, err := scheduler.New(p.Registry, scheduler.Options{
		Interval:              cfg.CycleInterval(),
		CommunicationInterval: cfg.CommunicationInterval,
		GPS:                   gpsModule,
		Comms:                 comms,
		MaxFixAge:             uint64(cfg.GPSMaxFixAge),
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Scheduler = s
	return p, nil
}

// openDownlink opens the radio and, when a broker is configured, mirrors
// frames to MQTT. The broker is optional; the radio is not.
func (p *Payload) openDownlink(cfg *config.Config) (link.Link, error) {
	port, err := sensors.OpenSerial(cfg.RadioSerialPort, cfg.RadioBaudRate, cfg.RadioAckTimeout())
	if err != nil {
		return nil, fmt.Errorf("radio: %w", err)
	}
	p.closers = append(p.closers, port)
	radio := link.NewRadio(port)

	if cfg.MQTTBroker == "" {
		return radio, nil
	}
	client, err := link.Connect(cfg.MQTTBroker, cfg.MQTTClientIDPayload)
	if err != nil {
		glog.Warningf("payload: MQTT mirror disabled: %v", err)
		return radio, nil
	}
	p.closers = append(p.closers, closerFunc(func() error {
		client.Disconnect(250)
		return nil
	}))
	return link.Fanout{radio, link.NewBroker(client, cfg.TopicFrame)}, nil
}

// Run drives the scheduler until ctx is cancelled.
func (p *Payload) Run(ctx context.Context) error {
	for _, r := range p.Registry.Records() {
		glog.Infof("payload: module %s active=%v", r.Name, r.Active)
	}
	err := p.Scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close flushes the record logs and releases the ports.
func (p *Payload) Close() error {
	var errs []error
	for _, l := range p.logs {
		errs = append(errs, l.Close())
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i].Close())
	}
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// RunPayload builds the payload from the global config and flies it until
// ctx is cancelled.
func RunPayload(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("payload: config not initialised")
	}
	p, err := NewPayload(cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	return p.Run(ctx)
}
