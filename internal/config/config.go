// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values.
type Config struct {
	// Server
	ServerURL           string // http(s)://host:port of the acquisition server
	WSSenderPath        string
	WSVisualizationPath string
	ReconnectDelay      int // milliseconds
	HTTPTimeout         int // milliseconds

	// Motion publishing
	MotionSource           string // "mock", "mqtt", "serial" or "device"
	MotionThrottleInterval int    // milliseconds
	MotionSampleInterval   int    // milliseconds

	// MQTT (raw IMU topic from an inertial producer)
	MQTTBroker   string
	MQTTClientID string
	TopicIMU     string
	AccelScale   float64 // raw counts -> m/s²

	// Serial accelerometer
	SerialPort     string
	SerialBaudRate int

	// SPI IMU
	IMUSPIDevice string
	IMUCSPin     string

	// Telemetry display
	DisplayBufferSize      int
	DisplayRefreshInterval int    // milliseconds
	ChartXAxis             string // "timestamp", "x", "y" or "z"
	ChartYAxis             string
	ChartOutputPath        string
	ChartWidth             int
	ChartHeight            int
	ViewerHTTPAddr         string // "" disables the viewer's HTTP endpoint

	// OLED panel
	OLEDEnabled bool
	OLEDI2CBus  string

	// Capture
	CameraDevices    []string
	RecordContainers []string // containers the capture devices can produce
	RecordAudio      bool     // mux a microphone track when the format has one
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config populated with the values the clients use when a
// key is absent from the config file.
func Default() *Config {
	return &Config{
		ServerURL:              "http://localhost:8000",
		WSSenderPath:           "/ws",
		WSVisualizationPath:    "/ws_visualization",
		ReconnectDelay:         5000,
		HTTPTimeout:            10000,
		MotionSource:           "mock",
		MotionThrottleInterval: 100,
		MotionSampleInterval:   20,
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientID:           "motion-sender",
		TopicIMU:               "inertial/imu/left",
		AccelScale:             9.80665 / 16384.0, // ±2g full scale
		SerialBaudRate:         115200,
		DisplayBufferSize:      200,
		DisplayRefreshInterval: 100,
		ChartXAxis:             "timestamp",
		ChartYAxis:             "x",
		ChartOutputPath:        "accel_chart.png",
		ChartWidth:             1024,
		ChartHeight:            400,
		ViewerHTTPAddr:         ":8080",
		OLEDI2CBus:             "",
		CameraDevices:          []string{"/dev/video0"},
		RecordContainers:       []string{"webm", "mp4"},
		RecordAudio:            true,
	}
}

// Load reads the configuration file on top of Default and returns the result.
// A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: %s not found, using defaults", configPath)
		values = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromMap(values)
}

// FromMap applies KEY=VALUE pairs on top of Default. Keys are applied in
// sorted order so errors are reported deterministically.
func FromMap(values map[string]string) (*Config, error) {
	cfg := Default()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Server
	case "SERVER_URL":
		c.ServerURL = strings.TrimRight(value, "/")
	case "WS_SENDER_PATH":
		c.WSSenderPath = value
	case "WS_VISUALIZATION_PATH":
		c.WSVisualizationPath = value
	case "RECONNECT_DELAY":
		return setPositiveInt(&c.ReconnectDelay, key, value)
	case "HTTP_TIMEOUT":
		return setPositiveInt(&c.HTTPTimeout, key, value)

	// Motion publishing
	case "MOTION_SOURCE":
		switch value {
		case "mock", "mqtt", "serial", "device":
			c.MotionSource = value
		default:
			return fmt.Errorf("MOTION_SOURCE must be one of mock, mqtt, serial, device, got %q", value)
		}
	case "MOTION_THROTTLE_INTERVAL":
		return setPositiveInt(&c.MotionThrottleInterval, key, value)
	case "MOTION_SAMPLE_INTERVAL":
		return setPositiveInt(&c.MotionSampleInterval, key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "ACCEL_SCALE":
		scale, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid ACCEL_SCALE %q: %w", value, err)
		}
		if scale <= 0 {
			return fmt.Errorf("ACCEL_SCALE must be positive, got %v", scale)
		}
		c.AccelScale = scale

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		return setPositiveInt(&c.SerialBaudRate, key, value)

	// SPI IMU
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// Telemetry display
	case "DISPLAY_BUFFER_SIZE":
		return setPositiveInt(&c.DisplayBufferSize, key, value)
	case "DISPLAY_REFRESH_INTERVAL":
		return setPositiveInt(&c.DisplayRefreshInterval, key, value)
	case "CHART_X_AXIS":
		if !validAxis(value) {
			return fmt.Errorf("CHART_X_AXIS must be one of timestamp, x, y, z, got %q", value)
		}
		c.ChartXAxis = value
	case "CHART_Y_AXIS":
		if !validAxis(value) {
			return fmt.Errorf("CHART_Y_AXIS must be one of timestamp, x, y, z, got %q", value)
		}
		c.ChartYAxis = value
	case "CHART_OUTPUT_PATH":
		c.ChartOutputPath = value
	case "CHART_WIDTH":
		return setPositiveInt(&c.ChartWidth, key, value)
	case "CHART_HEIGHT":
		return setPositiveInt(&c.ChartHeight, key, value)
	case "VIEWER_HTTP_ADDR":
		c.ViewerHTTPAddr = value

	// OLED
	case "OLED_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid OLED_ENABLED %q: %w", value, err)
		}
		c.OLEDEnabled = enabled
	case "OLED_I2C_BUS":
		c.OLEDI2CBus = value

	// Capture
	case "CAMERA_DEVICES":
		c.CameraDevices = splitList(value)
	case "RECORD_CONTAINERS":
		c.RecordContainers = splitList(value)
	case "RECORD_AUDIO":
		audio, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid RECORD_AUDIO %q: %w", value, err)
		}
		c.RecordAudio = audio

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func setPositiveInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", key, v)
	}
	*dst = v
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func validAxis(v string) bool {
	switch v {
	case "timestamp", "x", "y", "z":
		return true
	}
	return false
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid SERVER_URL %q: %w", c.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SERVER_URL must use http or https, got %q", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("SERVER_URL must include a host, got %q", c.ServerURL)
	}
	switch c.MotionSource {
	case "mqtt":
		if c.MQTTBroker == "" || c.TopicIMU == "" {
			return fmt.Errorf("MQTT_BROKER and TOPIC_IMU are required for MOTION_SOURCE=mqtt")
		}
	case "serial":
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for MOTION_SOURCE=serial")
		}
	case "device":
		if c.IMUSPIDevice == "" || c.IMUCSPin == "" {
			return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required for MOTION_SOURCE=device")
		}
	}
	return nil
}

// WebSocketURL maps the http(s) server URL onto ws(s) and appends path.
func (c *Config) WebSocketURL(path string) string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
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
