// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
)

const (
	MaxAddress = 65535
)

// TableType represents the type of Modbus data table.
type TableType int

const (
	TableHoldingRegisters TableType = iota
	TableInputRegisters
)

func (t TableType) String() string {
	if t == TableInputRegisters {
		return "input"
	}
	return "holding"
}

// DataModel holds the register tables of the simulated interface.
// It uses a simple flat memory model covering the full 16-bit address space.
type DataModel struct {
	mu sync.RWMutex

	// 4x Holding Registers (Read/Write).
	HoldingRegisters []uint16
	// 3x Input Registers (Read Only on the bus, written by the simulator).
	InputRegisters []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		HoldingRegisters: make([]uint16, MaxAddress+1),
		InputRegisters:   make([]uint16, MaxAddress+1),
	}
}

func (m *DataModel) table(t TableType) []uint16 {
	if t == TableInputRegisters {
		return m.InputRegisters
	}
	return m.HoldingRegisters
}

// Read returns a copy of quantity registers of table t.
func (m *DataModel) Read(t TableType, address, quantity uint16) ([]uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	return slices.Clone(m.table(t)[int(address) : int(address)+int(quantity)]), nil
}

// Write stores values into table t.
func (m *DataModel) Write(t TableType, address uint16, values []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, uint16(len(values))); err != nil {
		return err
	}
	copy(m.table(t)[address:], values)
	return nil
}

// ReadHoldingRegisters reads a range of holding registers and returns them as BigEndian bytes.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return m.readBytes(TableHoldingRegisters, address, quantity)
}

// ReadInputRegisters reads a range of input registers and returns them as BigEndian bytes.
func (m *DataModel) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return m.readBytes(TableInputRegisters, address, quantity)
}

func (m *DataModel) readBytes(t TableType, address, quantity uint16) ([]byte, error) {
	regs, err := m.Read(t, address, quantity)
	if err != nil {
		return nil, err
	}
	result := make([]byte, len(regs)*2)
	for i, val := range regs {
		binary.BigEndian.PutUint16(result[i*2:], val)
	}
	return result, nil
}

// WriteSingleRegister writes a single holding register.
func (m *DataModel) WriteSingleRegister(address uint16, value uint16) error {
	return m.Write(TableHoldingRegisters, address, []uint16{value})
}

// WriteMultipleRegisters writes a range of holding registers from BigEndian bytes.
func (m *DataModel) WriteMultipleRegisters(address, quantity uint16, data []byte) error {
	if len(data) < int(quantity)*2 {
		return fmt.Errorf("insufficient data length")
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return m.Write(TableHoldingRegisters, address, values)
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
