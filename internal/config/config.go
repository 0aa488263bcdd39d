// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Scheduler
	CycleIntervalMS       int
	CommunicationInterval int // cycles between transmissions

	// Storage
	DataDir     string
	LogNumLines int // records per file before rotating

	// GPS
	GPSSerialPort     string
	GPSBaudRate       int
	GPSReadTimeoutMS  int
	GPSVerifyChecksum bool
	GPSMaxFixAge      int // cycles before a stale GPS time yields to the system clock

	// Radio
	RadioSerialPort   string
	RadioBaudRate     int
	RadioAckTimeoutMS int

	// Environment sensors
	ITempSPIDevice  string
	ETempSPIDevice  string
	HumidityI2CBus  string
	HumidityI2CAddr uint16
	CPUTempPath     string

	// Camera
	CameraCommand string // "{path}" is replaced by the image file
	CameraDir     string

	// MQTT
	MQTTBroker          string
	MQTTClientIDPayload string
	MQTTClientIDGround  string

	// Topics
	TopicFrame  string
	TopicRecord string

	// Ground station
	GroundSerialPort string
	GroundBaudRate   int
	GroundTrailer    string

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: set once by InitGlobal, read through Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: RWMutex protects concurrent access.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns the flight configuration used when a key is absent.
func Defaults() *Config {
	return &Config{
		CycleIntervalMS:       1000,
		CommunicationInterval: 1,

		DataDir:     "data",
		LogNumLines: 1000,

		GPSSerialPort:    "/dev/serial0",
		GPSBaudRate:      4800,
		GPSReadTimeoutMS: 200,
		GPSMaxFixAge:     10,

		RadioSerialPort:   "/dev/ttyACM0",
		RadioBaudRate:     9600,
		RadioAckTimeoutMS: 500,

		HumidityI2CBus:  "",
		HumidityI2CAddr: 0x76,
		CPUTempPath:     "/sys/class/thermal/thermal_zone0/temp",

		CameraCommand: "libcamera-still -n -t 1 -o {path}",
		CameraDir:     "images",

		MQTTClientIDPayload: "balloon-payload",
		MQTTClientIDGround:  "balloon-ground",
		TopicFrame:          "balloon/frame",
		TopicRecord:         "balloon/record",

		GroundSerialPort: "/dev/ttyACM0",
		GroundBaudRate:   9600,
		GroundTrailer:    `\nRSSI:`,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file on top of Defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseIntRange(key, value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, n)
	}
	return n, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Scheduler
	case "CYCLE_INTERVAL_MS":
		c.CycleIntervalMS, err = parseIntRange(key, value, 1, 3_600_000)
	case "COMMUNICATION_INTERVAL":
		c.CommunicationInterval, err = parseIntRange(key, value, 1, 1_000_000)

	// Storage
	case "DATA_DIR":
		c.DataDir = value
	case "LOG_NUM_LINES":
		c.LogNumLines, err = parseIntRange(key, value, 1, 100_000_000)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseIntRange(key, value, 1, 4_000_000)
	case "GPS_READ_TIMEOUT_MS":
		c.GPSReadTimeoutMS, err = parseIntRange(key, value, 0, 60_000)
	case "GPS_VERIFY_CHECKSUM":
		c.GPSVerifyChecksum, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid GPS_VERIFY_CHECKSUM %q: %w", value, err)
		}
	case "GPS_MAX_FIX_AGE":
		c.GPSMaxFixAge, err = parseIntRange(key, value, 1, 1_000_000)

	// Radio
	case "RADIO_SERIAL_PORT":
		c.RadioSerialPort = value
	case "RADIO_BAUD_RATE":
		c.RadioBaudRate, err = parseIntRange(key, value, 1, 4_000_000)
	case "RADIO_ACK_TIMEOUT_MS":
		c.RadioAckTimeoutMS, err = parseIntRange(key, value, 0, 60_000)

	// Environment sensors
	case "ITEMP_SPI_DEVICE":
		c.ITempSPIDevice = value
	case "ETEMP_SPI_DEVICE":
		c.ETempSPIDevice = value
	case "HUMIDITY_I2C_BUS":
		c.HumidityI2CBus = value
	case "HUMIDITY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid HUMIDITY_I2C_ADDR %q: %w", value, perr)
		}
		c.HumidityI2CAddr = uint16(addr)
	case "CPU_TEMP_PATH":
		c.CPUTempPath = value

	// Camera
	case "CAMERA_COMMAND":
		c.CameraCommand = value
	case "CAMERA_DIR":
		c.CameraDir = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PAYLOAD":
		c.MQTTClientIDPayload = value
	case "MQTT_CLIENT_ID_GROUND":
		c.MQTTClientIDGround = value

	// Topics
	case "TOPIC_FRAME":
		c.TopicFrame = value
	case "TOPIC_RECORD":
		c.TopicRecord = value

	// Ground station
	case "GROUND_SERIAL_PORT":
		c.GroundSerialPort = value
	case "GROUND_BAUD_RATE":
		c.GroundBaudRate, err = parseIntRange(key, value, 1, 4_000_000)
	case "GROUND_TRAILER":
		c.GroundTrailer = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseIntRange(key, value, 1, 65535)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required")
	}
	if c.RadioSerialPort == "" {
		return fmt.Errorf("RADIO_SERIAL_PORT is required")
	}
	if c.GroundTrailer == "" {
		return fmt.Errorf("GROUND_TRAILER is required")
	}
	return nil
}

// CycleInterval is the scheduler sleep between cycles.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMS) * time.Millisecond
}

// GPSReadTimeout bounds one GPS serial read.
func (c *Config) GPSReadTimeout() time.Duration {
	return time.Duration(c.GPSReadTimeoutMS) * time.Millisecond
}

// RadioAckTimeout bounds the wait for the radio board's reply line.
func (c *Config) RadioAckTimeout() time.Duration {
	return time.Duration(c.RadioAckTimeoutMS) * time.Millisecond
}

// Trailer is GroundTrailer with \n, \r and \t escapes expanded.
func (c *Config) Trailer() string {
	r := strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t")
	return r.Replace(c.GroundTrailer)
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
