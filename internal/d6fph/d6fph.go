// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package d6fph drives the Omron D6F-PH MEMS differential pressure sensor
// over I2C.
//
// The sensor exposes a serial bridge: internal 16-bit registers are reached
// by writing an access address and a request into the interface registers,
// then reading the result back from the read buffer. A measurement is
// started by switching the MCU on through SENS_CTRL; the device must not be
// accessed for 33 ms while the MCU runs.
//
// Typical use:
//
//	dev, _ := d6fph.New(bus, &d6fph.Opts{Range: d6fph.RangeMode250})
//	dev.SetPressureSink(sink)
//	if err := dev.Initialize(); err != nil { ... }
//	r, err := dev.Poll() // once per scheduler tick
//
// Dev is not safe for concurrent use; the caller guarantees at most one
// Poll in flight.
package d6fph

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/diffpressure/internal/pressure"
)

// DefaultAddress is the fixed 7-bit address of the D6F-PH.
const DefaultAddress uint16 = 0x6C

// DefaultMeasureDelay is the MCU execution time after a measurement request
// (datasheet p.21).
const DefaultMeasureDelay = 33 * time.Millisecond

// Sink consumes one published value per successful poll.
type Sink interface {
	Publish(value float64) error
}

// Opts holds the static configuration. Zero fields take defaults, except
// Range which may also be set later with SetRangeMode.
type Opts struct {
	Addr         uint16
	Range        RangeMode
	MeasureDelay time.Duration
}

// DefaultOpts leaves the range mode unset.
var DefaultOpts = Opts{
	Addr:         DefaultAddress,
	MeasureDelay: DefaultMeasureDelay,
}

// Raw holds the register values of one measurement.
type Raw struct {
	Temperature uint16
	Pressure    uint16
	Time        time.Time
}

// Dev is a handle to one D6F-PH.
type Dev struct {
	d            i2c.Dev
	rangeMode    RangeMode
	measureDelay time.Duration

	temperature Sink
	pressure    Sink

	initialized bool

	now   func() time.Time
	sleep func(time.Duration)

	w [5]byte
	r [2]byte
}

// New returns a handle to the sensor. It does not talk to the device.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddress
	}
	if addr > 0x7F {
		return nil, configErr("new", fmt.Sprintf("invalid 7-bit address 0x%X", addr))
	}
	if opts.Range != 0 && !opts.Range.Valid() {
		return nil, configErr("new", fmt.Sprintf("unknown range mode %d", uint16(opts.Range)))
	}
	delay := opts.MeasureDelay
	if delay <= 0 {
		delay = DefaultMeasureDelay
	}
	return &Dev{
		d:            i2c.Dev{Bus: bus, Addr: addr},
		rangeMode:    opts.Range,
		measureDelay: delay,
		now:          time.Now,
		sleep:        time.Sleep,
	}, nil
}

func (d *Dev) String() string {
	if !d.rangeMode.Valid() {
		return fmt.Sprintf("D6F-PH{addr=0x%02X, range=unset}", d.d.Addr)
	}
	return fmt.Sprintf("%s{addr=0x%02X, range=%s}", d.rangeMode.Model(), d.d.Addr, d.rangeMode)
}

// Addr returns the I2C address in use.
func (d *Dev) Addr() uint16 { return d.d.Addr }

// RangeMode returns the configured mode, zero when unset.
func (d *Dev) RangeMode() RangeMode { return d.rangeMode }

// SetRangeMode sets the range mode. It must be called before Initialize.
func (d *Dev) SetRangeMode(m RangeMode) error {
	if d.initialized {
		return configErr("set range mode", "device already initialized")
	}
	if !m.Valid() {
		return configErr("set range mode", fmt.Sprintf("unknown range mode %d", uint16(m)))
	}
	d.rangeMode = m
	return nil
}

// SetTemperatureSink attaches the temperature output. nil detaches it.
func (d *Dev) SetTemperatureSink(s Sink) error {
	if d.initialized {
		return configErr("set temperature sink", "device already initialized")
	}
	d.temperature = s
	return nil
}

// SetPressureSink attaches the pressure output. nil detaches it.
func (d *Dev) SetPressureSink(s Sink) error {
	if d.initialized {
		return configErr("set pressure sink", "device already initialized")
	}
	d.pressure = s
	return nil
}

// Initialize checks the configuration and resets the serial interface.
func (d *Dev) Initialize() error {
	if !d.rangeMode.Valid() {
		return configErr("initialize", "range mode not set")
	}
	if d.temperature == nil && d.pressure == nil {
		return configErr("initialize", "no sensors configured")
	}
	if err := d.d.Tx([]byte{ifInitialize, 0x00}, nil); err != nil {
		return commErr("initialize", err)
	}
	d.initialized = true
	return nil
}

// Initialized reports whether Initialize succeeded.
func (d *Dev) Initialized() bool { return d.initialized }

// Sense runs one measurement and returns the raw registers.
func (d *Dev) Sense() (Raw, error) {
	if !d.initialized {
		return Raw{}, &Error{Kind: ErrCommunication, Op: "sense", Msg: "device not initialized"}
	}
	if err := d.write8(RegSensCtrl, sensPowerMCUOn|sensMSStart); err != nil {
		return Raw{}, commErr("start measurement", err)
	}
	d.sleep(d.measureDelay)
	t, err := d.read16(RegTmpH)
	if err != nil {
		return Raw{}, commErr("read temperature", err)
	}
	p, err := d.read16(RegCompData1H)
	if err != nil {
		return Raw{}, commErr("read pressure", err)
	}
	return Raw{Temperature: t, Pressure: p, Time: d.now()}, nil
}

// Convert maps raw registers to physical units. It has no side effects.
func (d *Dev) Convert(raw Raw) (pressure.Reading, error) {
	if !d.rangeMode.Valid() {
		return pressure.Reading{}, configErr("convert", "range mode not set")
	}
	if !InSpan(raw.Pressure) {
		return pressure.Reading{}, &Error{
			Kind: ErrRange,
			Op:   "convert",
			Msg:  fmt.Sprintf("raw pressure %d outside [%d, %d] for %s", raw.Pressure, RawMin, RawMax, d.rangeMode),
		}
	}
	return pressure.Reading{
		Temperature: Celsius(raw.Temperature),
		Pressure:    d.rangeMode.Pressure(raw.Pressure),
		Range:       uint16(d.rangeMode),
		Time:        raw.Time,
	}, nil
}

// Poll measures, converts and publishes to the attached sinks. Bus and range
// failures publish nothing. Sink failures are returned together with the
// reading.
func (d *Dev) Poll() (pressure.Reading, error) {
	raw, err := d.Sense()
	if err != nil {
		return pressure.Reading{}, err
	}
	r, err := d.Convert(raw)
	if err != nil {
		return pressure.Reading{}, err
	}
	return r, d.publish(r)
}

func (d *Dev) publish(r pressure.Reading) error {
	var errs []error
	if d.temperature != nil {
		if err := d.temperature.Publish(r.Temperature); err != nil {
			errs = append(errs, fmt.Errorf("temperature: %w", err))
		}
	}
	if d.pressure != nil {
		if err := d.pressure.Publish(r.Pressure); err != nil {
			errs = append(errs, fmt.Errorf("pressure: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("d6fph: publish: %w", err)
	}
	return nil
}

// Flags is the content of the FLAGS register.
type Flags byte

// SupplyVoltage reports VDD outside its rated range.
func (f Flags) SupplyVoltage() bool { return byte(f)&flagSupplyVoltage != 0 }

// HeaterVoltage reports the heater voltage outside its rated range.
func (f Flags) HeaterVoltage() bool { return byte(f)&flagHeaterVoltage != 0 }

// OpenSensor reports the sensing element as not connected.
func (f Flags) OpenSensor() bool { return byte(f)&flagOpenSensor != 0 }

// OK reports no fault flag set.
func (f Flags) OK() bool {
	return byte(f)&(flagSupplyVoltage|flagHeaterVoltage|flagOpenSensor) == 0
}

func (f Flags) String() string {
	if f.OK() {
		return "ok"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += ","
		}
		s += name
	}
	if f.SupplyVoltage() {
		add("supply_voltage")
	}
	if f.HeaterVoltage() {
		add("heater_voltage")
	}
	if f.OpenSensor() {
		add("open_sensor")
	}
	return s
}

// Flags reads the FLAGS register.
func (d *Dev) Flags() (Flags, error) {
	if !d.initialized {
		return 0, &Error{Kind: ErrCommunication, Op: "flags", Msg: "device not initialized"}
	}
	v, err := d.read8(RegFlags)
	if err != nil {
		return 0, commErr("read flags", err)
	}
	return Flags(v), nil
}

// ReadRegister reads a 16-bit internal register through the bridge.
func (d *Dev) ReadRegister(reg uint16) (uint16, error) {
	if !d.initialized {
		return 0, &Error{Kind: ErrCommunication, Op: "read register", Msg: "device not initialized"}
	}
	v, err := d.read16(reg)
	if err != nil {
		return 0, commErr(fmt.Sprintf("read register 0x%04X", reg), err)
	}
	return v, nil
}

// Bridge access. The interface registers auto-increment from
// ACCESS_ADDRESS_1_H so address, control and data go in one write.

func (d *Dev) write8(reg uint16, data byte) error {
	d.w[0] = ifAccessAddress1H
	d.w[1] = byte(reg >> 8)
	d.w[2] = byte(reg)
	d.w[3] = scAccess16Bit | scByteCount1 | scReqNew
	d.w[4] = data
	return d.d.Tx(d.w[:5], nil)
}

func (d *Dev) request(reg uint16, count byte) error {
	d.w[0] = ifAccessAddress1H
	d.w[1] = byte(reg >> 8)
	d.w[2] = byte(reg)
	d.w[3] = scAccess16Bit | count | scReqNew | scRead
	return d.d.Tx(d.w[:4], nil)
}

func (d *Dev) read8(reg uint16) (byte, error) {
	if err := d.request(reg, scByteCount1); err != nil {
		return 0, err
	}
	d.w[0] = ifReadBuffer0
	if err := d.d.Tx(d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

// read16 returns the big-endian word at reg, reg+1.
func (d *Dev) read16(reg uint16) (uint16, error) {
	if err := d.request(reg, scByteCount2); err != nil {
		return 0, err
	}
	d.w[0] = ifReadBuffer0
	if err := d.d.Tx(d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}
