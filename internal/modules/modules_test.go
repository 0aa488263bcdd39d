package modules

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/balloon_payload/internal/link"
	"github.com/relabs-tech/balloon_payload/internal/sensors"
	"github.com/relabs-tech/balloon_payload/internal/storage"
	"github.com/relabs-tech/balloon_payload/internal/telemetry"
)

type fakeEnv struct {
	env physic.Env
	err error
}

func (f *fakeEnv) Sense(e *physic.Env) error {
	if f.err != nil {
		return f.err
	}
	*e = f.env
	return nil
}

func envAt(celsius, rh float64) physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(celsius*float64(physic.Kelvin)),
		Humidity:    physic.RelativeHumidity(rh * float64(physic.PercentRH)),
	}
}

func openerFor(s sensors.EnvSensor) EnvOpener {
	return func() (sensors.EnvSensor, error) { return s, nil }
}

func TestTemperatureContributesByPlacement(t *testing.T) {
	in := NewTemperature("itemp", Internal, openerFor(&fakeEnv{env: envAt(21.5, 0)}))
	out := NewTemperature("etemp", External, openerFor(&fakeEnv{env: envAt(-40.25, 0)}))
	for _, m := range []*Temperature{in, out} {
		require.NoError(t, m.Activate())
		require.True(t, m.IsActive())
		require.NoError(t, m.Update(context.Background()))
	}

	var s telemetry.Snapshot
	in.Contribute(&s)
	out.Contribute(&s)
	require.InDelta(t, 21.5, *s.InternalTemp, 1e-6)
	require.InDelta(t, -40.25, *s.ExternalTemp, 1e-6)
	require.Contains(t, out.Report(), "external temperature -40.25 C")
}

func TestTemperatureActivationFailure(t *testing.T) {
	boom := errors.New("no such SPI port")
	m := NewTemperature("itemp", Internal, func() (sensors.EnvSensor, error) { return nil, boom })
	require.ErrorIs(t, m.Activate(), boom)
	require.False(t, m.IsActive())
}

func TestTemperatureUpdateFailureKeepsReading(t *testing.T) {
	env := &fakeEnv{env: envAt(10, 0)}
	m := NewTemperature("itemp", Internal, openerFor(env))
	require.NoError(t, m.Activate())
	require.NoError(t, m.Update(context.Background()))

	env.err = errors.New("bus error")
	require.Error(t, m.Update(context.Background()))
	require.InDelta(t, 10.0, *m.Celsius(), 1e-6)
}

func TestHumidity(t *testing.T) {
	m := NewHumidity("humidity", openerFor(&fakeEnv{env: envAt(18, 30.5)}))
	var s telemetry.Snapshot
	m.Contribute(&s)
	require.Nil(t, s.Humidity)

	require.NoError(t, m.Activate())
	require.NoError(t, m.Update(context.Background()))
	m.Contribute(&s)
	require.InDelta(t, 30.5, *s.Humidity, 1e-3)
	require.Contains(t, m.Report(), "temperature 18.00 C")
	require.Len(t, m.Reading(), 2)
}

func TestHumidityUpdateFailureKeepsReading(t *testing.T) {
	env := &fakeEnv{env: envAt(18, 30.5)}
	m := NewHumidity("humidity", openerFor(env))
	require.NoError(t, m.Activate())
	require.NoError(t, m.Update(context.Background()))

	env.err = errors.New("bus error")
	require.Error(t, m.Update(context.Background()))
	var s telemetry.Snapshot
	m.Contribute(&s)
	require.InDelta(t, 30.5, *s.Humidity, 1e-3)
	require.Contains(t, m.Report(), "humidity 30.50 %RH")
}

func TestCPUTemp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte("47774\n"), 0o644))

	m := NewCPUTemp("cputemp", path)
	require.NoError(t, m.Activate())
	require.NoError(t, m.Update(context.Background()))
	var s telemetry.Snapshot
	m.Contribute(&s)
	require.InDelta(t, 47.774, *s.CPUTemp, 1e-9)

	missing := NewCPUTemp("cputemp", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, missing.Activate())
	require.False(t, missing.IsActive())
}

func TestBasePersist(t *testing.T) {
	dir := t.TempDir()
	log, err := storage.NewRotatingLog(dir, "itemp", 10, "")
	require.NoError(t, err)

	m := NewTemperature("itemp", Internal, openerFor(&fakeEnv{env: envAt(21.5, 0)}))
	m.AttachLog(log)
	require.NoError(t, m.Activate())

	// Nothing to persist before the first reading.
	require.NoError(t, m.Persist("S220608125925.33"))
	require.Equal(t, "", log.Path())

	require.NoError(t, m.Update(context.Background()))
	require.NoError(t, m.Persist("S220608125926.33"))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(filepath.Join(dir, "itemp_0.csv"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "S220608125926.33,21.5"))
}

// fakeSerial replays scripted reads, then times out with (0, io.EOF).
type fakeSerial struct {
	reads  []string
	err    error
	closed bool
}

func (f *fakeSerial) Read(p []byte) (int, error) {
	if len(f.reads) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		return 0, io.EOF
	}
	n := copy(p, f.reads[0])
	f.reads[0] = f.reads[0][n:]
	if f.reads[0] == "" {
		f.reads = f.reads[1:]
	}
	return n, nil
}

func (f *fakeSerial) Close() error {
	f.closed = true
	return nil
}

const (
	ggaLine = "$GPGGA,125925.33,4545.02,N,13759.89,W,1,14,0.9,4500.1,M,46.9,M,,*69\r\n"
	vtgLine = "$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*48\r\n"
)

func newTestGPS(t *testing.T, port *fakeSerial) *GPS {
	t.Helper()
	g := NewGPS("gps", func() (io.ReadCloser, error) { return port, nil }, false)
	require.NoError(t, g.Activate())
	return g
}

func TestGPSUpdate(t *testing.T) {
	port := &fakeSerial{reads: []string{ggaLine, "$GPGSV,3,1,11*7A\r\n", vtgLine}}
	g := newTestGPS(t, port)

	require.Equal(t, "", g.UTC())
	require.NoError(t, g.Update(context.Background()))

	fix := g.Fix()
	require.Equal(t, "4545.02", fix.Lat)
	require.Equal(t, "W", fix.LonDir)
	require.Equal(t, "005.5", fix.GroundSpeed)
	require.Equal(t, "125925.33", g.UTC())
	require.True(t, g.Position().Fresh(1))
	require.True(t, g.Velocity().Fresh(1))

	var s telemetry.Snapshot
	g.Contribute(&s)
	require.Equal(t, fix, s.Fix)

	// A timed out read is no new data; the fix stays and ages.
	require.NoError(t, g.Update(context.Background()))
	require.Equal(t, fix, g.Fix())
	require.Equal(t, uint64(1), g.Position().Age(2))
	require.Contains(t, g.Report(), "position age 1")

	require.NoError(t, g.Close())
	require.True(t, port.closed)
}

func TestGPSPartialLineAcrossUpdates(t *testing.T) {
	port := &fakeSerial{reads: []string{ggaLine[:30]}}
	g := newTestGPS(t, port)

	require.NoError(t, g.Update(context.Background()))
	require.Equal(t, "", g.Fix().Lat)
	require.Nil(t, g.Reading())

	port.reads = []string{ggaLine[30:]}
	require.NoError(t, g.Update(context.Background()))
	require.Equal(t, "4545.02", g.Fix().Lat)
	require.True(t, g.Position().Fresh(2))
}

func TestGPSBadSentenceKeepsFix(t *testing.T) {
	port := &fakeSerial{reads: []string{ggaLine}}
	g := newTestGPS(t, port)
	require.NoError(t, g.Update(context.Background()))
	before := g.Fix()

	port.reads = []string{"$GPGGA,,,,,,,V,,,,,,*00\r\n", "$GPGGA,1\r\n", "\xff\xfe\r\n"}
	require.NoError(t, g.Update(context.Background()))
	require.Equal(t, before, g.Fix())
	require.False(t, g.Position().Fresh(2))
	require.Equal(t, uint64(1), g.PositionAge())
	require.Equal(t, "125925.33", g.UTC())
}

func TestGPSReadError(t *testing.T) {
	boom := errors.New("input/output error")
	g := newTestGPS(t, &fakeSerial{err: boom})
	require.ErrorIs(t, g.Update(context.Background()), boom)
}

type recordingLink struct {
	frames []string
	err    error
}

func (l *recordingLink) Send(frame string) error {
	l.frames = append(l.frames, frame)
	return l.err
}

func TestCommsTransmitAndPersist(t *testing.T) {
	dir := t.TempDir()
	l := &recordingLink{}
	c := NewComms("comms", func() (link.Link, error) { return l, nil })
	log, err := storage.NewRotatingLog(dir, "comms", 10, "")
	require.NoError(t, err)
	c.AttachLog(log)
	require.NoError(t, c.Activate())

	require.NoError(t, c.Transmit("A,B\n"))
	require.NoError(t, c.Persist("T1"))
	// Already written; nothing new was sent.
	require.NoError(t, c.Persist("T2"))

	l.err = errors.New("radio busy")
	require.Error(t, c.Transmit("C,D\n"))
	require.NoError(t, c.Persist("T3"))
	require.NoError(t, log.Close())

	require.Equal(t, []string{"A,B\n", "C,D\n"}, l.frames)
	require.Contains(t, c.Report(), "1 frames sent, 1 failed")

	data, err := os.ReadFile(filepath.Join(dir, "comms_0.csv"))
	require.NoError(t, err)
	require.Equal(t, "T1,A,B\nT3,C,D\n", string(data))
}

func TestCamera(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "4.jpg"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	var calls [][]string
	run := func(_ context.Context, name string, args ...string) error {
		calls = append(calls, append([]string{name}, args...))
		if len(calls) == 2 {
			return errors.New("camera busy")
		}
		return nil
	}
	c := NewCamera("camera", dir, "libcamera-still -n -o {path}", run)
	require.NoError(t, c.Activate())
	require.Equal(t, 5, c.NextImage())

	require.NoError(t, c.Update(context.Background()))
	require.Equal(t, []string{"libcamera-still", "-n", "-o", filepath.Join(dir, "5.jpg")}, calls[0])
	require.Equal(t, []string{filepath.Join(dir, "5.jpg")}, c.Reading())

	// A failed capture does not consume a number.
	require.Error(t, c.Update(context.Background()))
	require.Equal(t, 6, c.NextImage())

	require.Error(t, NewCamera("camera", dir, "  ", run).Activate())
}
