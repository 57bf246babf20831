// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/diffpressure/internal/d6fph"
)

// registerReader is the part of the driver the debug tool needs.
type registerReader interface {
	ReadRegister(reg uint16) (uint16, error)
	Flags() (d6fph.Flags, error)
}

// RegisterDebugCmd is one request from the browser.
type RegisterDebugCmd struct {
	Action  string `json:"action"` // "get_map", "read", "read_all", "flags"
	Address string `json:"addr,omitempty"`
}

// RegisterResponse is sent back for every command.
type RegisterResponse struct {
	Type        string               `json:"type"` // "register_data", "register_map", "flags", "error"
	Address     string               `json:"addr,omitempty"`
	Value       string               `json:"value,omitempty"`
	Registers   map[string]string    `json:"registers,omitempty"` // for bulk read
	Timestamp   string               `json:"timestamp,omitempty"`
	Message     string               `json:"message,omitempty"`
	RegisterMap []d6fph.RegisterInfo `json:"register_map,omitempty"`
}

// RegisterDebug serves the register debug websocket for one sensor.
// Sessions share the device, so reads are serialized.
type RegisterDebug struct {
	mu  sync.Mutex
	dev registerReader
}

func NewRegisterDebug(dev registerReader) *RegisterDebug {
	return &RegisterDebug{dev: dev}
}

// registerDebugSession holds WebSocket connection state for register debugging
type registerDebugSession struct {
	conn *websocket.Conn
	rd   *RegisterDebug
}

// ServeHTTP handles the WebSocket connection for register debugging.
func (rd *RegisterDebug) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	s := &registerDebugSession{conn: conn, rd: rd}

	// Send register map on connection
	if err := s.sendRegisterMap(); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterDebugCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}

		switch cmd.Action {
		case "get_map":
			err = s.sendRegisterMap()
		case "read":
			err = s.handleRead(cmd.Address)
		case "read_all":
			err = s.handleReadAll()
		case "flags":
			err = s.handleFlags()
		case "":
			err = s.sendError("missing or invalid action field")
		default:
			err = s.sendError(fmt.Sprintf("unknown action: %s", cmd.Action))
		}
		if err != nil {
			log.Printf("register_debug: write error: %v", err)
			return
		}
	}
}

// parseRegisterAddr accepts "0xD051" or a decimal address.
func parseRegisterAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address format: %s", s)
	}
	return uint16(v), nil
}

func (s *registerDebugSession) handleRead(addr string) error {
	if addr == "" {
		return s.sendError("missing addr field")
	}
	reg, err := parseRegisterAddr(addr)
	if err != nil {
		return s.sendError(err.Error())
	}

	s.rd.mu.Lock()
	value, err := s.rd.dev.ReadRegister(reg)
	s.rd.mu.Unlock()
	if err != nil {
		return s.sendError(fmt.Sprintf("read error: %v", err))
	}

	return s.conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%04X", reg),
		Value:     fmt.Sprintf("0x%04X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// handleReadAll reads every bridge register in the map. Interface registers
// are skipped; reading them directly would disturb a pending request.
func (s *registerDebugSession) handleReadAll() error {
	regs := make(map[string]string)

	s.rd.mu.Lock()
	for _, info := range d6fph.RegisterMap() {
		if !info.Internal {
			continue
		}
		value, err := s.rd.dev.ReadRegister(info.Address)
		if err != nil {
			s.rd.mu.Unlock()
			return s.sendError(fmt.Sprintf("read all error at %s: %v", info.Name, err))
		}
		regs[fmt.Sprintf("0x%04X", info.Address)] = fmt.Sprintf("0x%04X", value)
	}
	s.rd.mu.Unlock()

	return s.conn.WriteJSON(RegisterResponse{
		Type:      "register_data",
		Registers: regs,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *registerDebugSession) handleFlags() error {
	s.rd.mu.Lock()
	f, err := s.rd.dev.Flags()
	s.rd.mu.Unlock()
	if err != nil {
		return s.sendError(fmt.Sprintf("flags error: %v", err))
	}
	return s.conn.WriteJSON(RegisterResponse{
		Type:      "flags",
		Address:   fmt.Sprintf("0x%04X", d6fph.RegFlags),
		Value:     fmt.Sprintf("0x%02X", byte(f)),
		Message:   f.String(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *registerDebugSession) sendRegisterMap() error {
	return s.conn.WriteJSON(RegisterResponse{
		Type:        "register_map",
		RegisterMap: d6fph.RegisterMap(),
	})
}

func (s *registerDebugSession) sendError(message string) error {
	return s.conn.WriteJSON(RegisterResponse{
		Type:    "error",
		Message: message,
	})
}
