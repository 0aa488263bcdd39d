package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "balloon_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# nothing set\n\n"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.Equal(t, time.Second, cfg.CycleInterval())
	require.Equal(t, "\nRSSI:", cfg.Trailer())
	require.Equal(t, 4800, cfg.GPSBaudRate)
	require.Equal(t, 9600, cfg.RadioBaudRate)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
CYCLE_INTERVAL_MS = 2500
COMMUNICATION_INTERVAL=5
GPS_VERIFY_CHECKSUM=true
GPS_MAX_FIX_AGE=3
GPS_READ_TIMEOUT_MS=100
HUMIDITY_I2C_ADDR=0x77
MQTT_BROKER=tcp://localhost:1883
GROUND_TRAILER=\r\nRSSI:
`))
	require.NoError(t, err)
	require.Equal(t, 2500*time.Millisecond, cfg.CycleInterval())
	require.Equal(t, 5, cfg.CommunicationInterval)
	require.True(t, cfg.GPSVerifyChecksum)
	require.Equal(t, 3, cfg.GPSMaxFixAge)
	require.Equal(t, 100*time.Millisecond, cfg.GPSReadTimeout())
	require.Equal(t, uint16(0x77), cfg.HumidityI2CAddr)
	require.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	require.Equal(t, "\r\nRSSI:", cfg.Trailer())
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		msg  string
	}{
		{"unknown key", "FOO=1\n", `unknown config key: "FOO"`},
		{"missing equals", "CYCLE_INTERVAL_MS\n", "invalid config line 1"},
		{"not a number", "COMMUNICATION_INTERVAL=often\n", "invalid COMMUNICATION_INTERVAL"},
		{"zero interval", "COMMUNICATION_INTERVAL=0\n", "COMMUNICATION_INTERVAL must be 1-1000000, got 0"},
		{"bad bool", "GPS_VERIFY_CHECKSUM=maybe\n", "invalid GPS_VERIFY_CHECKSUM"},
		{"bad address", "HUMIDITY_I2C_ADDR=0x1ffff\n", "invalid HUMIDITY_I2C_ADDR"},
		{"required cleared", "DATA_DIR=\n", "DATA_DIR is required"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.ErrorContains(t, err, tc.msg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorContains(t, err, "failed to open config file")
}

func TestInitGlobal(t *testing.T) {
	require.NoError(t, InitGlobal(writeConfig(t, "WEB_SERVER_PORT=9090\n")))
	require.Equal(t, 9090, Get().WebServerPort)
	// Later calls do not reload.
	require.NoError(t, InitGlobal(writeConfig(t, "WEB_SERVER_PORT=1\n")))
	require.Equal(t, 9090, Get().WebServerPort)
}
