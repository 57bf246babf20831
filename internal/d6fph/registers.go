// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package d6fph

// Internal registers, reached through the serial bridge (datasheet Table 4).
const (
	RegSensCtrl     uint16 = 0xD040 // Sensor control
	RegFlags        uint16 = 0xD046 // Supply/heater/open sensor flags
	RegIntCtrl      uint16 = 0xD049 // CRC calculation control
	RegCompData1H   uint16 = 0xD051 // Compensated output, high byte
	RegCompData1L   uint16 = 0xD052
	RegTmpH         uint16 = 0xD061 // Internal temperature, high byte
	RegTmpL         uint16 = 0xD062
	RegRefFlow1H    uint16 = 0xD065
	RegRefFlow1L    uint16 = 0xD066
	RegThreshFlow1H uint16 = 0xD067
	RegThreshFlow1L uint16 = 0xD068
)

// Interface configuration registers, addressed directly over I2C (Table 5).
const (
	ifAccessAddress1H byte = 0x00
	ifAccessAddress1L byte = 0x01
	ifSerialControl   byte = 0x02
	ifWriteBuffer0    byte = 0x03
	ifReadBuffer0     byte = 0x07
	ifInitialize      byte = 0x0B
	ifPowerSequence   byte = 0x0D
)

// Serial control register bits (Table 7).
const (
	scAccess16Bit byte = 0
	scRead        byte = 1 << 2
	scReqNew      byte = 1 << 3
	scByteCount1  byte = 1 << 4
	scByteCount2  byte = 2 << 4
)

// SENS_CTRL bits (Table 10).
const (
	sensPowerMCUOn byte = 1 << 1
	sensMSStart    byte = 1 << 2
)

// FLAGS bits (Table 11).
const (
	flagSupplyVoltage byte = 1 << 0
	flagHeaterVoltage byte = 1 << 1
	flagOpenSensor    byte = 1 << 3
)

// RegisterInfo describes one register for debugging tools.
type RegisterInfo struct {
	Address     uint16 `json:"address"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Access      string `json:"access"`   // "R", "W", "RW"
	Internal    bool   `json:"internal"` // reached through the serial bridge
}

// RegisterMap returns metadata for the registers the driver knows about.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: uint16(ifAccessAddress1H), Name: "ACCESS_ADDRESS_1_H", Description: "Upper byte of first access address", Access: "RW"},
		{Address: uint16(ifAccessAddress1L), Name: "ACCESS_ADDRESS_1_L", Description: "Lower byte of first access address", Access: "RW"},
		{Address: uint16(ifSerialControl), Name: "SERIAL_CONTROL", Description: "Write/read access control", Access: "RW"},
		{Address: uint16(ifWriteBuffer0), Name: "WRITE_BUFFER_0", Description: "Data to be written at address", Access: "W"},
		{Address: uint16(ifReadBuffer0), Name: "READ_BUFFER_0", Description: "Data read from address", Access: "R"},
		{Address: uint16(ifInitialize), Name: "INITIALIZE", Description: "Initialize", Access: "W"},
		{Address: uint16(ifPowerSequence), Name: "POWER_SEQUENCE", Description: "Hardware reset control", Access: "W"},

		{Address: RegSensCtrl, Name: "SENS_CTRL", Description: "Sensor control (DV_PWR, MS)", Access: "RW", Internal: true},
		{Address: RegFlags, Name: "FLAGS", Description: "SV, HV1, OS1 flags", Access: "R", Internal: true},
		{Address: RegIntCtrl, Name: "INT_CTRL", Description: "CRC calculation control", Access: "RW", Internal: true},
		{Address: RegCompData1H, Name: "COMP_DATA1", Description: "Compensated pressure output", Access: "R", Internal: true},
		{Address: RegTmpH, Name: "TMP", Description: "Internal temperature", Access: "R", Internal: true},
		{Address: RegRefFlow1H, Name: "REF_FLOW1", Description: "Reference flow", Access: "RW", Internal: true},
		{Address: RegThreshFlow1H, Name: "THRESH_FLOW1", Description: "Threshold flow", Access: "RW", Internal: true},
	}
}
