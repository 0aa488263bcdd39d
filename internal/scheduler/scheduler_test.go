package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/balloon_payload/internal/modules"
	"github.com/relabs-tech/balloon_payload/internal/storage"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

var noon = time.Date(2022, time.June, 8, 12, 0, 0, 0, time.UTC)

// fakeModule records every call into a shared journal.
type fakeModule struct {
	name        string
	journal     *[]string
	activateErr error
	active      bool
	updateErr   error
	updatePanic bool
	persistErr  error
	updates     int
	persisted   []string
	celsius     *float64
}

func (f *fakeModule) Name() string { return f.name }

func (f *fakeModule) Activate() error {
	if f.activateErr != nil {
		return f.activateErr
	}
	f.active = true
	return nil
}

func (f *fakeModule) IsActive() bool { return f.active }

func (f *fakeModule) Update(context.Context) error {
	*f.journal = append(*f.journal, "update "+f.name)
	if f.updatePanic {
		panic("sensor driver exploded")
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	return nil
}

func (f *fakeModule) Report() string { return f.name }

func (f *fakeModule) Persist(stamp string) error {
	*f.journal = append(*f.journal, "persist "+f.name)
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = append(f.persisted, stamp)
	return nil
}

func (f *fakeModule) Contribute(s *telemetry.Snapshot) {
	if f.celsius != nil {
		v := *f.celsius
		s.InternalTemp = &v
	}
}

type fakeGPS struct {
	fakeModule
	utc string
	age uint64
}

func (g *fakeGPS) UTC() string { return g.utc }

func (g *fakeGPS) PositionAge() uint64 { return g.age }

type fakeComms struct {
	fakeModule
	frames      []string
	transmitErr error
}

func (c *fakeComms) Transmit(frame string) error {
	*c.journal = append(*c.journal, "transmit")
	c.frames = append(c.frames, frame)
	return c.transmitErr
}

type rig struct {
	journal  []string
	registry *modules.Registry
	temp     *fakeModule
	gps      *fakeGPS
	comms    *fakeComms
	sched    *Scheduler
}

func newRig(t *testing.T, commInterval int, extra ...*fakeModule) *rig {
	t.Helper()
	r := &rig{registry: modules.NewRegistry()}
	r.temp = &fakeModule{name: "itemp", journal: &r.journal, celsius: new(float64)}
	*r.temp.celsius = 21.5
	r.gps = &fakeGPS{fakeModule: fakeModule{name: "gps", journal: &r.journal}}
	r.comms = &fakeComms{fakeModule: fakeModule{name: "comms", journal: &r.journal}}

	require.NoError(t, r.registry.Register(r.temp))
	require.NoError(t, r.registry.Register(r.gps))
	for _, m := range extra {
		m.journal = &r.journal
		_ = r.registry.Register(m)
	}
	require.NoError(t, r.registry.Register(r.comms))

	s, err := New(r.registry, Options{
		Interval:              time.Second,
		CommunicationInterval: commInterval,
		GPS:                   r.gps,
		Comms:                 r.comms,
		Now:                   func() time.Time { return noon },
	})
	require.NoError(t, err)
	r.sched = s
	return r
}

func TestCycleOrder(t *testing.T) {
	r := newRig(t, 1)
	rep := r.sched.RunCycle(context.Background())

	require.Equal(t, []string{
		"update itemp", "update gps", "update comms",
		"transmit",
		"persist itemp", "persist gps", "persist comms",
	}, r.journal)
	require.True(t, rep.Sent)
	require.Empty(t, rep.Errors)
}

func TestTimeOfRecordSource(t *testing.T) {
	r := newRig(t, 1)

	rep := r.sched.RunCycle(context.Background())
	require.Equal(t, telemetry.TimeOfRecord{UTC: "120000.00", Source: telemetry.ProvenanceSystem}, rep.Time)
	require.True(t, strings.HasPrefix(r.comms.frames[0], "S220608120000.00,"))
	require.Equal(t, "S220608120000.00", r.temp.persisted[0])

	r.gps.utc = "125925.33"
	rep = r.sched.RunCycle(context.Background())
	require.Equal(t, telemetry.ProvenanceGPS, rep.Time.Source)
	require.Equal(t, rep.Time, r.sched.TimeOfRecord())
	require.Equal(t, "G220608125925.33", r.temp.persisted[1])
	require.Equal(t,
		"G220608125925.33,XXXXXXXX,XXXXXXXXX,XXXXXXXX,XX,XXXXXX,X,+021.50,XXXXXXX,XXXXXXX,XXXXXXXXXXX\n",
		r.comms.frames[1])

	// An inactive GPS is never asked for time.
	r.gps.active = false
	rep = r.sched.RunCycle(context.Background())
	require.Equal(t, telemetry.ProvenanceSystem, rep.Time.Source)
}

func TestTimeOfRecordFallsBackWhenFixIsStale(t *testing.T) {
	r := newRig(t, 1)
	r.gps.utc = "125925.33"

	r.gps.age = DefaultMaxFixAge
	rep := r.sched.RunCycle(context.Background())
	require.Equal(t, telemetry.TimeOfRecord{UTC: "125925.33", Source: telemetry.ProvenanceGPS}, rep.Time)

	// The receiver stopped delivering GGA; its last time is no longer used.
	r.gps.age = DefaultMaxFixAge + 1
	rep = r.sched.RunCycle(context.Background())
	require.Equal(t, telemetry.TimeOfRecord{UTC: "120000.00", Source: telemetry.ProvenanceSystem}, rep.Time)
	require.Equal(t, "S220608120000.00", r.temp.persisted[1])

	r.gps.age = 0
	rep = r.sched.RunCycle(context.Background())
	require.Equal(t, telemetry.ProvenanceGPS, rep.Time.Source)
}

func TestMaxFixAgeOption(t *testing.T) {
	g := &fakeGPS{fakeModule: fakeModule{name: "gps", journal: new([]string)}, utc: "125925.33", age: 3}
	registry := modules.NewRegistry()
	require.NoError(t, registry.Register(g))

	s, err := New(registry, Options{
		Interval:              time.Second,
		CommunicationInterval: 1,
		GPS:                   g,
		MaxFixAge:             2,
		Now:                   func() time.Time { return noon },
	})
	require.NoError(t, err)
	require.Equal(t, telemetry.ProvenanceSystem, s.RunCycle(context.Background()).Time.Source)

	g.age = 2
	require.Equal(t, telemetry.ProvenanceGPS, s.RunCycle(context.Background()).Time.Source)
}

func TestTransmitEveryCommunicationInterval(t *testing.T) {
	r := newRig(t, 3)
	var sent []bool
	for i := 0; i < 7; i++ {
		rep := r.sched.RunCycle(context.Background())
		sent = append(sent, rep.Sent)
		if rep.Sent {
			require.Len(t, rep.Frame, telemetry.FrameLength)
		} else {
			require.Empty(t, rep.Frame)
		}
	}
	require.Equal(t, []bool{false, false, true, false, false, true, false}, sent)
	require.Len(t, r.comms.frames, 2)
}

func TestNoTransmitWhenCommsInactive(t *testing.T) {
	r := &rig{registry: modules.NewRegistry()}
	comms := &fakeComms{fakeModule: fakeModule{name: "comms", journal: &r.journal, activateErr: errors.New("no radio")}}
	require.Error(t, r.registry.Register(comms))

	s, err := New(r.registry, Options{Interval: time.Second, CommunicationInterval: 1, Comms: comms})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		rep := s.RunCycle(context.Background())
		require.False(t, rep.Sent)
	}
	require.Empty(t, comms.frames)
	require.Empty(t, r.journal)
}

func TestFaultIsolation(t *testing.T) {
	flaky := &fakeModule{name: "flaky", updateErr: errors.New("i2c timeout")}
	panicky := &fakeModule{name: "panicky", updatePanic: true}
	r := newRig(t, 1, flaky, panicky)

	for i := 0; i < 3; i++ {
		rep := r.sched.RunCycle(context.Background())
		require.Len(t, rep.Errors, 2)
		require.Equal(t, "flaky", rep.Errors[0].Module)
		require.Equal(t, StageUpdate, rep.Errors[0].Stage)
		require.Equal(t, "panicky", rep.Errors[1].Module)
		require.ErrorIs(t, rep.Errors[1], ErrPanic)
		require.Equal(t, "panic", rep.Errors[1].Kind())
		require.True(t, rep.Sent)
	}

	// Failing modules stay active and are retried every cycle.
	require.Len(t, r.registry.Active(), 5)
	require.Equal(t, 3, r.temp.updates)
	require.Equal(t, 3, r.comms.updates)
	require.Len(t, r.comms.frames, 3)
	require.Len(t, flaky.persisted, 3)

	flaky.updateErr = nil
	rep := r.sched.RunCycle(context.Background())
	require.Len(t, rep.Errors, 1)
	require.Equal(t, 1, flaky.updates)
}

func TestInactiveModuleSkipped(t *testing.T) {
	dead := &fakeModule{name: "dead", activateErr: errors.New("not found")}
	r := newRig(t, 1, dead)
	r.sched.RunCycle(context.Background())
	require.NotContains(t, r.journal, "update dead")
	require.NotContains(t, r.journal, "persist dead")
}

func TestPersistFailuresAreNonFatal(t *testing.T) {
	full := &fakeModule{name: "full", persistErr: fmt.Errorf("write: %w", storage.ErrExhausted)}
	broken := &fakeModule{name: "broken", persistErr: errors.New("read-only file system")}
	r := newRig(t, 1, full, broken)

	rep := r.sched.RunCycle(context.Background())
	require.Len(t, rep.Errors, 2)
	require.Equal(t, StagePersist, rep.Errors[0].Stage)
	require.ErrorIs(t, rep.Errors[0], storage.ErrExhausted)
	require.Equal(t, "storage exhausted", rep.Errors[0].Kind())
	require.Equal(t, "error", rep.Errors[1].Kind())
	// Modules after the failing ones are still persisted.
	require.Len(t, r.comms.persisted, 1)
}

func TestTransmitFailureIsNonFatal(t *testing.T) {
	r := newRig(t, 1)
	r.comms.transmitErr = errors.New("radio busy")
	rep := r.sched.RunCycle(context.Background())
	require.False(t, rep.Sent)
	require.Len(t, rep.Errors, 1)
	require.Equal(t, StageTransmit, rep.Errors[0].Stage)
	require.Contains(t, rep.Errors[0].Error(), "comms transmit: radio busy")
	require.Len(t, r.temp.persisted, 1)
}

func TestRunSleepsAndCountsCycles(t *testing.T) {
	r := newRig(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	r.sched.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 4 {
			cancel()
		}
		return ctx.Err()
	}

	err := r.sched.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second}, slept)
	require.Equal(t, uint64(3), r.sched.Cycle().Index)
	require.Equal(t, 4, r.temp.updates)
	require.Len(t, r.comms.frames, 2)
}

func TestNewValidates(t *testing.T) {
	_, err := New(modules.NewRegistry(), Options{CommunicationInterval: 1})
	require.Error(t, err)
	_, err = New(modules.NewRegistry(), Options{Interval: time.Second})
	require.Error(t, err)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
