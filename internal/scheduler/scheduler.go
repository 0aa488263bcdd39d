// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scheduler runs the payload's fixed-interval acquisition loop.
//
// Every cycle it updates each active module in registration order, picks
// the time of record, transmits a frame every CommunicationInterval cycles
// and persists every module's latest reading. A failing module is logged
// and skipped for that step; it never stops the loop or other modules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/relabs-tech/balloon_payload/internal/modules"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

// TimeSource is the GPS module as the scheduler sees it.
type TimeSource interface {
	modules.Module
	// UTC is the receiver time as hhmmss.ss, "" when unknown.
	UTC() string
	// PositionAge counts updates since UTC was last refreshed.
	PositionAge() uint64
}

// DefaultMaxFixAge is used when Options.MaxFixAge is zero.
const DefaultMaxFixAge = 10

// Transmitter is the comms module as the scheduler sees it.
type Transmitter interface {
	modules.Module
	Transmit(frame string) error
}

// Cycle is the loop's timing state.
type Cycle struct {
	Index                 uint64
	Interval              time.Duration
	CommunicationInterval int
}

// Options configures a Scheduler. GPS and Comms may be nil.
type Options struct {
	Interval              time.Duration
	CommunicationInterval int
	GPS                   TimeSource
	Comms                 Transmitter
	Encoder               *telemetry.Encoder
	// MaxFixAge is how many cycles a GPS time may go without a fresh GGA
	// before the system clock takes over.
	MaxFixAge uint64
	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Report is what happened during one cycle.
type Report struct {
	Index  uint64
	Time   telemetry.TimeOfRecord
	Frame  string
	Sent   bool
	Errors []*ModuleError
}

// Scheduler owns the registry and cycle state. It is driven from a single
// goroutine.
type Scheduler struct {
	registry *modules.Registry
	gps      TimeSource
	comms    Transmitter
	encoder  *telemetry.Encoder
	maxAge   uint64
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	cycle       Cycle
	commCounter int
	tor         telemetry.TimeOfRecord
}

// New builds a scheduler over an already populated registry.
func New(registry *modules.Registry, opts Options) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", opts.Interval)
	}
	if opts.CommunicationInterval <= 0 {
		return nil, fmt.Errorf("scheduler: communication interval must be positive, got %d", opts.CommunicationInterval)
	}
	s := &Scheduler{
		registry: registry,
		gps:      opts.GPS,
		comms:    opts.Comms,
		encoder:  opts.Encoder,
		maxAge:   opts.MaxFixAge,
		now:      opts.Now,
		sleep:    opts.Sleep,
		cycle: Cycle{
			Interval:              opts.Interval,
			CommunicationInterval: opts.CommunicationInterval,
		},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxAge == 0 {
		s.maxAge = DefaultMaxFixAge
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.encoder == nil {
		s.encoder = &telemetry.Encoder{Now: s.now}
	}
	return s, nil
}

// Cycle returns the current timing state.
func (s *Scheduler) Cycle() Cycle { return s.cycle }

// TimeOfRecord is the time chosen in the latest cycle.
func (s *Scheduler) TimeOfRecord() telemetry.TimeOfRecord { return s.tor }

// Run loops until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	glog.Infof("scheduler: starting, interval %s, transmitting every %d cycles",
		s.cycle.Interval, s.cycle.CommunicationInterval)
	for {
		s.RunCycle(ctx)
		if err := s.sleep(ctx, s.cycle.Interval); err != nil {
			glog.Infof("scheduler: stopping after cycle %d: %v", s.cycle.Index, err)
			return err
		}
		s.cycle.Index++
	}
}

// RunCycle performs one cycle without the trailing sleep.
func (s *Scheduler) RunCycle(ctx context.Context) Report {
	rep := Report{Index: s.cycle.Index}
	active := s.registry.Active()

	for _, m := range active {
		if err := guard(m.Name(), StageUpdate, func() error { return m.Update(ctx) }); err != nil {
			s.fail(&rep, err)
			continue
		}
		glog.V(1).Info(m.Report())
	}

	s.tor = s.timeOfRecord()
	rep.Time = s.tor

	s.commCounter++
	if s.comms != nil && s.comms.IsActive() && s.commCounter >= s.cycle.CommunicationInterval {
		s.commCounter = 0
		rep.Frame = s.encode(active)
		err := guard(s.comms.Name(), StageTransmit, func() error { return s.comms.Transmit(rep.Frame) })
		if err != nil {
			s.fail(&rep, err)
		} else {
			rep.Sent = true
			glog.V(2).Infof("scheduler: sent %q", rep.Frame)
		}
	}

	stamp := telemetry.FormatDateTime(s.tor, s.now())
	for _, m := range active {
		if err := guard(m.Name(), StagePersist, func() error { return m.Persist(stamp) }); err != nil {
			s.fail(&rep, err)
		}
	}
	return rep
}

func (s *Scheduler) timeOfRecord() telemetry.TimeOfRecord {
	if s.gps != nil && s.gps.IsActive() {
		utc := s.gps.UTC()
		switch age := s.gps.PositionAge(); {
		case utc == "":
		case age > s.maxAge:
			glog.V(1).Infof("scheduler: gps time %s is %d cycles old, using system clock", utc, age)
		default:
			return telemetry.TimeOfRecord{UTC: utc, Source: telemetry.ProvenanceGPS}
		}
	}
	return telemetry.SystemTime(s.now())
}

func (s *Scheduler) encode(active []modules.Module) string {
	snap := telemetry.Snapshot{Time: s.tor}
	for _, m := range active {
		if c, ok := m.(modules.Contributor); ok {
			c.Contribute(&snap)
		}
	}
	frame, errs := s.encoder.EncodeWithErrors(snap)
	for _, err := range errs {
		glog.V(2).Infof("scheduler: frame field degraded: %v", err)
	}
	return frame
}

func (s *Scheduler) fail(rep *Report, err *ModuleError) {
	rep.Errors = append(rep.Errors, err)
	glog.Warningf("scheduler: cycle %d: %s failed (%s): %v", s.cycle.Index, err.Module, err.Kind(), err.Err)
}

// guard runs fn and turns an error or a panic into a ModuleError.
func guard(module string, stage Stage, fn func() error) (merr *ModuleError) {
	defer func() {
		if r := recover(); r != nil {
			merr = &ModuleError{Module: module, Stage: stage, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	if err := fn(); err != nil {
		return &ModuleError{Module: module, Stage: stage, Err: err}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
