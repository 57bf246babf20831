// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package d6fph

import "errors"

// Error kinds. Match with errors.Is.
var (
	// ErrCommunication is a bus fault, NACK, short read or a poll on an
	// uninitialized device. It only fails the current cycle.
	ErrCommunication = errors.New("d6fph: communication error")
	// ErrRange means the raw output is outside the digital span of the
	// configured range mode.
	ErrRange = errors.New("d6fph: out of range")
	// ErrConfiguration is invalid or late setup.
	ErrConfiguration = errors.New("d6fph: configuration error")
)

// Error keeps the kind, the failing operation and the cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.Error() + ": " + e.Op
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func commErr(op string, err error) error {
	return &Error{Kind: ErrCommunication, Op: op, Err: err}
}

func configErr(op, msg string) error {
	return &Error{Kind: ErrConfiguration, Op: op, Msg: msg}
}
