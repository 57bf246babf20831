// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/diffpressure/internal/config"
	"github.com/relabs-tech/diffpressure/internal/d6fph"
)

// NewPressureSensor opens the configured I2C bus (or the simulated one) and
// returns a D6F-PH with its range mode set and the enabled outputs attached.
// The device is not initialized. The caller owns the returned bus.
func NewPressureSensor(cfg *config.Config, temperature, pressure d6fph.Sink) (*d6fph.Dev, i2c.BusCloser, error) {
	bus, err := openBus(cfg)
	if err != nil {
		return nil, nil, err
	}

	dev, err := d6fph.New(bus, &d6fph.Opts{Addr: cfg.D6FPHI2CAddr})
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("D6F-PH: %w", err)
	}
	if err := dev.SetRangeMode(cfg.D6FPHRangeMode); err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("D6F-PH: %w", err)
	}
	if cfg.TemperatureEnabled() && temperature != nil {
		if err := dev.SetTemperatureSink(temperature); err != nil {
			bus.Close()
			return nil, nil, fmt.Errorf("D6F-PH: %w", err)
		}
	}
	if cfg.PressureEnabled() && pressure != nil {
		if err := dev.SetPressureSink(pressure); err != nil {
			bus.Close()
			return nil, nil, fmt.Errorf("D6F-PH: %w", err)
		}
	}
	return dev, bus, nil
}

func openBus(cfg *config.Config) (i2c.BusCloser, error) {
	if cfg.D6FPHSimulate {
		log.Printf("D6F-PH: using simulated device at 0x%02X", cfg.D6FPHI2CAddr)
		return NewSimulatedBus(cfg.D6FPHI2CAddr, cfg.D6FPHRangeMode), nil
	}

	// Initialize periph host
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.D6FPHI2CBus)
	if err != nil {
		return nil, fmt.Errorf("D6F-PH I2C open (bus %q): %w", cfg.D6FPHI2CBus, err)
	}
	return bus, nil
}

// LogConfig prints the device configuration the way it was wired.
func LogConfig(dev *d6fph.Dev, cfg *config.Config) {
	log.Printf("D6F-PH: %s", dev)
	if cfg.TemperatureEnabled() {
		log.Printf("  Temperature Sensor: %s", cfg.D6FPHTemperatureName)
	}
	if cfg.PressureEnabled() {
		log.Printf("  Pressure Sensor: %s", cfg.D6FPHPressureName)
	}
	log.Printf("  Update Interval: %s", cfg.D6FPHUpdateInterval)
}
