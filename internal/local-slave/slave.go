// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package localslave simulates a DIII-Net Modbus interface in process. It
// answers register requests from a DataModel and makes the units react to
// holding register writes the way real indoor units do.
package localslave

import (
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/ffutop/d3net-gateway/internal/local-slave/model"
	"github.com/ffutop/d3net-gateway/internal/local-slave/persistence"
	"github.com/ffutop/d3net-gateway/modbus"
)

// LocalSlave implements the Modbus protocol logic on top of a DataModel.
type LocalSlave struct {
	mu      sync.Mutex
	model   *model.DataModel
	storage persistence.Storage
}

// NewLocalSlave creates a new LocalSlave. storage may be nil.
func NewLocalSlave(m *model.DataModel, storage persistence.Storage) *LocalSlave {
	if storage == nil {
		storage = persistence.NewMemoryStorage()
	}
	return &LocalSlave{model: m, storage: storage}
}

// Model exposes the register tables, mainly for seeding and tests.
func (s *LocalSlave) Model() *model.DataModel { return s.model }

// Process executes the Modbus Function Code against the memory model.
// Requests are handled one at a time like on the real bus.
func (s *LocalSlave) Process(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return s.handleRead(req, s.model.ReadHoldingRegisters)
	case modbus.FuncCodeReadInputRegisters:
		return s.handleRead(req, s.model.ReadInputRegisters)
	case modbus.FuncCodeWriteSingleRegister:
		return s.handleWriteSingleRegister(req)
	case modbus.FuncCodeWriteMultipleRegisters:
		return s.handleWriteMultipleRegisters(req)
	default:
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

func (s *LocalSlave) handleRead(req modbus.ProtocolDataUnit, read func(address, quantity uint16) ([]byte, error)) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > modbus.MaxReadRegisters {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	data, err := read(address, quantity)
	if err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

func (s *LocalSlave) handleWriteSingleRegister(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := s.model.WriteSingleRegister(address, value); err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}
	s.written(address, 1)

	return req, nil // Echo request
}

func (s *LocalSlave) handleWriteMultipleRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) < 6 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := req.Data[4]

	if quantity < 1 || quantity > modbus.MaxWriteRegisters {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	if int(byteCount) != int(quantity)*2 || len(req.Data)-5 != int(byteCount) {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	if err := s.model.WriteMultipleRegisters(address, quantity, req.Data[5:]); err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}
	s.written(address, quantity)

	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], quantity)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

// written applies a holding write to the affected units and persists both tables.
func (s *LocalSlave) written(address, quantity uint16) {
	for _, index := range holdingUnits(address, quantity) {
		if err := s.applyHolding(index); err != nil {
			slog.Warn("simulator could not apply holding write", "unit", index, "err", err)
		}
	}
	s.storage.OnWrite(model.TableHoldingRegisters, address, quantity)
}
