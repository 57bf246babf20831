// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/diffpressure/internal/d6fph"
)

// Source returns the simulated differential pressure (Pa) and temperature
// (°C) after elapsed time.
type Source func(elapsed time.Duration) (pa, celsius float64)

// SimulatedBus is an i2c.BusCloser with one emulated D6F-PH on it. It
// answers the serial bridge protocol: INITIALIZE, SENS_CTRL measurement
// requests and reads of internal registers through READ_BUFFER_0.
type SimulatedBus struct {
	mu sync.Mutex

	addr   uint16
	mode   d6fph.RangeMode
	source Source
	start  time.Time

	initialized  bool
	measurements int
	regs         map[uint16]byte
	readBuf      [4]byte
}

// NewSimulatedBus returns a bus with a device at addr producing a slow
// sine around the middle of the mode's span.
func NewSimulatedBus(addr uint16, mode d6fph.RangeMode) *SimulatedBus {
	mid := (mode.Min() + mode.Max()) / 2
	amp := 0.4 * (mode.Max() - mode.Min()) / 2
	return &SimulatedBus{
		addr: addr,
		mode: mode,
		source: func(elapsed time.Duration) (float64, float64) {
			s := elapsed.Seconds()
			return mid + amp*math.Sin(s/30), 22 + 0.5*math.Sin(s/300)
		},
		start: time.Now(),
		regs:  map[uint16]byte{},
	}
}

// SetSource replaces the generated signal.
func (b *SimulatedBus) SetSource(src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.source = src
}

// SetFlags sets the FLAGS register, e.g. to simulate an open sensor.
func (b *SimulatedBus) SetFlags(f byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[d6fph.RegFlags] = f
}

// Measurements returns how many measurements the device has run.
func (b *SimulatedBus) Measurements() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.measurements
}

func (b *SimulatedBus) String() string {
	return fmt.Sprintf("simulated-d6fph(0x%02X)", b.addr)
}

// SetSpeed implements i2c.Bus. The simulated device has no clock.
func (b *SimulatedBus) SetSpeed(physic.Frequency) error { return nil }

// Close implements i2c.BusCloser. It holds no resources.
func (b *SimulatedBus) Close() error { return nil }

// Tx implements i2c.Bus.
func (b *SimulatedBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if addr != b.addr {
		return fmt.Errorf("simulated bus: no device at 0x%02X", addr)
	}
	if len(w) == 0 {
		return fmt.Errorf("simulated bus: read without register")
	}
	switch w[0] {
	case 0x0B: // INITIALIZE
		if len(w) != 2 || len(r) != 0 {
			return fmt.Errorf("simulated bus: malformed initialize")
		}
		b.initialized = true
		return nil
	case 0x00: // ACCESS_ADDRESS_1_H, auto-incrementing into SERIAL_CONTROL
		if !b.initialized {
			return fmt.Errorf("simulated bus: device not initialized")
		}
		if len(w) < 4 {
			return fmt.Errorf("simulated bus: short bridge request")
		}
		return b.bridge(uint16(w[1])<<8|uint16(w[2]), w[3], w[4:])
	case 0x07: // READ_BUFFER_0
		if len(r) > len(b.readBuf) {
			return fmt.Errorf("simulated bus: read of %d bytes", len(r))
		}
		copy(r, b.readBuf[:len(r)])
		return nil
	}
	return fmt.Errorf("simulated bus: unsupported register 0x%02X", w[0])
}

func (b *SimulatedBus) bridge(reg uint16, ctl byte, data []byte) error {
	const (
		read   = 1 << 2
		reqNew = 1 << 3
	)
	if ctl&reqNew == 0 {
		return nil
	}
	count := int(ctl >> 4)
	if count < 1 || count > 4 {
		return fmt.Errorf("simulated bus: byte count %d", count)
	}
	if ctl&read != 0 {
		for i := 0; i < count; i++ {
			b.readBuf[i] = b.regs[reg+uint16(i)]
		}
		return nil
	}
	if len(data) < count {
		return fmt.Errorf("simulated bus: write of %d bytes, want %d", len(data), count)
	}
	for i := 0; i < count; i++ {
		b.regs[reg+uint16(i)] = data[i]
	}
	if reg == d6fph.RegSensCtrl && data[0]&(1<<2) != 0 {
		b.measure()
	}
	return nil
}

func (b *SimulatedBus) measure() {
	pa, c := b.source(time.Since(b.start))
	p := b.mode.Raw(pa)
	t := d6fph.RawCelsius(c)
	b.regs[d6fph.RegCompData1H] = byte(p >> 8)
	b.regs[d6fph.RegCompData1L] = byte(p)
	b.regs[d6fph.RegTmpH] = byte(t >> 8)
	b.regs[d6fph.RegTmpL] = byte(t)
	b.measurements++
}
