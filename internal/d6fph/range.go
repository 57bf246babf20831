// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package d6fph

import (
	"fmt"
	"math"
)

// RangeMode selects the full-scale span of the sensor variant. The value is
// the span in Pa as used in configuration files.
type RangeMode uint16

const (
	// RangeMode100 is ±50 Pa (D6F-PH0505AD3).
	RangeMode100 RangeMode = 100
	// RangeMode250 is 0 to 250 Pa (D6F-PH0025AD1).
	RangeMode250 RangeMode = 250
	// RangeMode1000 is ±500 Pa (D6F-PH5050AD3).
	RangeMode1000 RangeMode = 1000
)

// Digital output span shared by all variants (datasheet p.19).
const (
	RawMin  uint16 = 1024
	RawMax  uint16 = 61024
	rawSpan        = 60000.0
)

// Temperature conversion, Tv[°C] = (Rv - 10214) / 37.39 (datasheet p.18).
const (
	tempOffset = 10214.0
	tempScale  = 37.39
)

type rangeConsts struct {
	zero  float64 // Pa at RawMin
	scale float64 // Pa per count
	model string
}

var rangeTable = map[RangeMode]rangeConsts{
	RangeMode100:  {zero: -50, scale: 100 / rawSpan, model: "D6F-PH0505AD3"},
	RangeMode250:  {zero: 0, scale: 250 / rawSpan, model: "D6F-PH0025AD1"},
	RangeMode1000: {zero: -500, scale: 1000 / rawSpan, model: "D6F-PH5050AD3"},
}

// ParseRangeMode validates a configuration code.
func ParseRangeMode(code int) (RangeMode, error) {
	m := RangeMode(code)
	if int(m) != code || !m.Valid() {
		return 0, fmt.Errorf("unknown range mode %d (want 100, 250 or 1000)", code)
	}
	return m, nil
}

// Valid reports whether m is one of the three supported modes.
func (m RangeMode) Valid() bool {
	_, ok := rangeTable[m]
	return ok
}

// Model returns the sensor part number for the mode.
func (m RangeMode) Model() string {
	return rangeTable[m].model
}

// Min returns the lowest pressure the mode reports, in Pa.
func (m RangeMode) Min() float64 {
	return rangeTable[m].zero
}

// Max returns the highest pressure the mode reports, in Pa.
func (m RangeMode) Max() float64 {
	c := rangeTable[m]
	return c.zero + c.scale*rawSpan
}

// Pressure converts a raw compensated output to Pa. It does not check the
// digital span; see InSpan.
func (m RangeMode) Pressure(raw uint16) float64 {
	c := rangeTable[m]
	return (float64(raw)-float64(RawMin))*c.scale + c.zero
}

// Raw is the datasheet inverse of Pressure, rounded to the nearest count and
// clamped to the digital span.
func (m RangeMode) Raw(pa float64) uint16 {
	c := rangeTable[m]
	v := math.Round((pa-c.zero)/c.scale + float64(RawMin))
	if v < float64(RawMin) {
		return RawMin
	}
	if v > float64(RawMax) {
		return RawMax
	}
	return uint16(v)
}

func (m RangeMode) String() string {
	switch m {
	case RangeMode100:
		return "±50Pa"
	case RangeMode250:
		return "0-250Pa"
	case RangeMode1000:
		return "±500Pa"
	}
	return fmt.Sprintf("RangeMode(%d)", uint16(m))
}

// InSpan reports whether raw lies in the valid digital span.
func InSpan(raw uint16) bool {
	return raw >= RawMin && raw <= RawMax
}

// Celsius converts the raw internal temperature register.
func Celsius(raw uint16) float64 {
	return (float64(raw) - tempOffset) / tempScale
}

// RawCelsius is the inverse of Celsius.
func RawCelsius(c float64) uint16 {
	v := math.Round(c*tempScale + tempOffset)
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
