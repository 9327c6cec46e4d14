// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package d3net

import "fmt"

// RangeError reports a bit access outside of a register buffer, or a value
// that does not fit into the addressed field. It is a programming error.
type RangeError struct {
	Start  int
	Length int
	Bits   int    // buffer size in bits
	Reason string // optional detail
}

func (e *RangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("d3net: field [%d:+%d] of %d-bit buffer: %s", e.Start, e.Length, e.Bits, e.Reason)
	}
	return fmt.Sprintf("d3net: field [%d:+%d] outside of %d-bit buffer", e.Start, e.Length, e.Bits)
}

// InvalidEnumError reports a raw register value with no enum mapping.
type InvalidEnumError struct {
	Enum  string
	Value uint64
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("d3net: invalid %s value %d", e.Enum, e.Value)
}

// BufferSizeError is returned when a view is built over a buffer whose
// length does not match the message's register count.
type BufferSizeError struct {
	Message string
	Want    int
	Got     int
}

func (e *BufferSizeError) Error() string {
	return fmt.Sprintf("d3net: %s expects %d registers, got %d", e.Message, e.Want, e.Got)
}
