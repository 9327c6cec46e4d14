// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package gateway

import "fmt"

// ConnectionError is returned when the bus could not be connected.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("d3net: connect: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError is returned when a register transaction failed after the
// bus was connected. Err is the transport's error, unchanged.
type TransportError struct {
	Op      string // "read" or "write"
	Message string
	Index   int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("d3net: %s %s %02d: %v", e.Op, e.Message, e.Index, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
