// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/diffpressure/internal/d6fph"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicTemperature string
	TopicPressure    string
	TopicReading     string

	// D6F-PH sensor
	D6FPHI2CBus          string
	D6FPHI2CAddr         uint16
	D6FPHRangeMode       d6fph.RangeMode
	D6FPHUpdateInterval  time.Duration
	D6FPHTemperatureName string // output enabled when set
	D6FPHPressureName    string // output enabled when set
	D6FPHSimulate        bool

	// Metrics
	MetricsAddr string

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Defaults returns a Config with every optional key at its default.
func Defaults() *Config {
	return &Config{
		MQTTClientIDProducer:  "pressure-producer",
		MQTTClientIDConsole:   "pressure-console-subscriber",
		MQTTClientIDWeb:       "pressure-web-subscriber",
		MQTTClientIDDisplay:   "pressure-display",
		TopicTemperature:      "pressure/temperature",
		TopicPressure:         "pressure/pressure",
		TopicReading:          "pressure/reading",
		D6FPHI2CAddr:          d6fph.DefaultAddress,
		D6FPHUpdateInterval:   60 * time.Second,
		MetricsAddr:           ":2112",
		WebServerPort:         8080,
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,
	}
}

// Package-level unexported variables for the singleton:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: InitGlobal loads at most once.
//   - configMu: write lock for initialization, read lock for Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines, applies defaults and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
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

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_TEMPERATURE":
		c.TopicTemperature = value
	case "TOPIC_PRESSURE":
		c.TopicPressure = value
	case "TOPIC_READING":
		c.TopicReading = value

	// D6F-PH sensor
	case "D6FPH_I2C_BUS":
		c.D6FPHI2CBus = value
	case "D6FPH_I2C_ADDR":
		addr, err := parseI2CAddr(value)
		if err != nil {
			return fmt.Errorf("invalid D6FPH_I2C_ADDR %q: %w", value, err)
		}
		c.D6FPHI2CAddr = addr
	case "D6FPH_RANGE_MODE":
		code, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid D6FPH_RANGE_MODE %q: %w", value, err)
		}
		mode, err := d6fph.ParseRangeMode(code)
		if err != nil {
			return fmt.Errorf("D6FPH_RANGE_MODE: %w", err)
		}
		c.D6FPHRangeMode = mode
	case "D6FPH_UPDATE_INTERVAL":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid D6FPH_UPDATE_INTERVAL %q: %w", value, err)
		}
		if d <= 0 {
			return fmt.Errorf("D6FPH_UPDATE_INTERVAL must be positive, got %s", d)
		}
		c.D6FPHUpdateInterval = d
	case "D6FPH_TEMPERATURE_NAME":
		c.D6FPHTemperatureName = value
	case "D6FPH_PRESSURE_NAME":
		c.D6FPHPressureName = value
	case "D6FPH_SIMULATE":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid D6FPH_SIMULATE %q: %w", value, err)
		}
		c.D6FPHSimulate = b

	// Metrics
	case "METRICS_ADDR":
		c.MetricsAddr = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := parseI2CAddr(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = addr
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", interval)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// parseI2CAddr accepts decimal or 0x-prefixed 7-bit addresses. 0 is the
// general call address and never a device.
func parseI2CAddr(value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, err
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("not a 7-bit address")
	}
	if addr == 0 {
		return 0, fmt.Errorf("0x00 is the general call address")
	}
	return uint16(addr), nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.D6FPHRangeMode == 0 {
		return fmt.Errorf("D6FPH_RANGE_MODE is required")
	}
	if !c.TemperatureEnabled() && !c.PressureEnabled() {
		return fmt.Errorf("at least one of D6FPH_TEMPERATURE_NAME or D6FPH_PRESSURE_NAME is required")
	}
	if c.TopicTemperature == "" || c.TopicPressure == "" || c.TopicReading == "" {
		return fmt.Errorf("MQTT topics must not be empty")
	}
	return nil
}

// TemperatureEnabled reports whether the temperature output is configured.
func (c *Config) TemperatureEnabled() bool { return c.D6FPHTemperatureName != "" }

// PressureEnabled reports whether the pressure output is configured.
func (c *Config) PressureEnabled() bool { return c.D6FPHPressureName != "" }

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return the first result.
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
