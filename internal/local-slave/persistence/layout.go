// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"unsafe"

	"github.com/ffutop/d3net-gateway/internal/local-slave/model"
)

// Layout of a persisted model:
// - HoldingRegisters: 65536 * 2 bytes (Offset 0)
// - InputRegisters: 65536 * 2 bytes (Offset 131072)
// Total Size: 262144 bytes
const (
	sizeHolding = (model.MaxAddress + 1) * 2
	sizeInput   = (model.MaxAddress + 1) * 2
	totalSize   = sizeHolding + sizeInput

	offsetHolding = 0
	offsetInput   = offsetHolding + sizeHolding
)

// mapBytesToModel constructs a DataModel backed by the provided data slice.
// Warning: This function uses unsafe pointers to cast byte slices to uint16 slices.
// The resulting DataModel relies on the host's endianness for multi-byte values,
// so a file is only portable between hosts of the same byte order.
func mapBytesToModel(data []byte) *model.DataModel {
	m := &model.DataModel{}

	holdingBytes := data[offsetHolding : offsetHolding+sizeHolding]
	m.HoldingRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&holdingBytes[0])), sizeHolding/2)

	inputBytes := data[offsetInput : offsetInput+sizeInput]
	m.InputRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&inputBytes[0])), sizeInput/2)

	return m
}
