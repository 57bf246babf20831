// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/diffpressure/internal/d6fph"
	"github.com/relabs-tech/diffpressure/internal/pressure"
	"github.com/relabs-tech/diffpressure/internal/sensors"
	"github.com/relabs-tech/diffpressure/internal/sink"
)

// RunMockConsole drives the real driver against the simulated device and
// prints every value to w until ctx is done. No MQTT, no hardware.
func RunMockConsole(ctx context.Context, w io.Writer, mode d6fph.RangeMode, interval time.Duration) error {
	bus := sensors.NewSimulatedBus(d6fph.DefaultAddress, mode)
	defer bus.Close()
	return runMockConsole(ctx, w, bus, mode, interval)
}

// runMockConsole polls the D6F-PH on bus. A failed poll is logged and only
// loses that cycle; setup errors are returned.
func runMockConsole(ctx context.Context, w io.Writer, bus i2c.Bus, mode d6fph.RangeMode, interval time.Duration) error {
	dev, err := d6fph.New(bus, &d6fph.Opts{Range: mode})
	if err != nil {
		return err
	}
	if err := dev.SetTemperatureSink(&sink.Print{W: w, Label: "TEMP", Format: "%6.2f", Unit: pressure.UnitCelsius}); err != nil {
		return err
	}
	if err := dev.SetPressureSink(&sink.Print{W: w, Label: "PRES", Format: "%8.2f", Unit: pressure.UnitPascal}); err != nil {
		return err
	}
	if err := dev.Initialize(); err != nil {
		return err
	}
	fmt.Fprintf(w, "mock: %s on %s\n", dev, bus)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := dev.Poll(); err != nil {
			log.Printf("mock: poll error: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
