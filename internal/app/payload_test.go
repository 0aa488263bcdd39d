package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/balloon_payload/internal/config"
)

// Without hardware only the CPU zone (a plain file here) and the camera
// (a command that always succeeds) come up; the rest stay inactive.
func TestPayloadWithoutHardware(t *testing.T) {
	dir := t.TempDir()
	zone := filepath.Join(dir, "temp")
	require.NoError(t, os.WriteFile(zone, []byte("41000\n"), 0o644))

	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.CPUTempPath = zone
	cfg.CameraDir = filepath.Join(dir, "images")
	cfg.CameraCommand = "true {path}"
	cfg.GPSSerialPort = filepath.Join(dir, "no-gps")
	cfg.RadioSerialPort = filepath.Join(dir, "no-radio")
	cfg.ITempSPIDevice = "no-such-spi"
	cfg.ETempSPIDevice = "no-such-spi"
	cfg.HumidityI2CBus = "no-such-i2c"

	p, err := NewPayload(cfg)
	require.NoError(t, err)

	active := map[string]bool{}
	for _, r := range p.Registry.Records() {
		active[r.Name] = r.Active
	}
	require.Equal(t, map[string]bool{
		"itemp": false, "etemp": false, "humidity": false,
		"cputemp": true, "gps": false, "camera": true, "comms": false,
	}, active)

	rep := p.Scheduler.RunCycle(context.Background())
	require.Empty(t, rep.Errors)
	require.False(t, rep.Sent)
	require.NoError(t, p.Close())

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "cputemp_0.csv"))
	require.NoError(t, err)
	require.Contains(t, string(data), "time,celsius\nS")
	require.Contains(t, string(data), ",41\n")
}
