// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ffutop/d3net-gateway/modbus"
)

// RegisterClient issues register reads and writes over a Downstream.
type RegisterClient struct {
	ds Downstream
}

// NewRegisterClient wraps ds.
func NewRegisterClient(ds Downstream) *RegisterClient {
	return &RegisterClient{ds: ds}
}

func (c *RegisterClient) Connect(ctx context.Context) error {
	return c.ds.Connect(ctx)
}

func (c *RegisterClient) Close() error {
	return c.ds.Close()
}

// ReadInputRegisters reads quantity input registers (FC04).
func (c *RegisterClient) ReadInputRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	return c.read(ctx, slaveID, modbus.FuncCodeReadInputRegisters, address, quantity)
}

// ReadHoldingRegisters reads quantity holding registers (FC03).
func (c *RegisterClient) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	return c.read(ctx, slaveID, modbus.FuncCodeReadHoldingRegisters, address, quantity)
}

func (c *RegisterClient) read(ctx context.Context, slaveID, funcCode byte, address, quantity uint16) ([]uint16, error) {
	if quantity < 1 || quantity > modbus.MaxReadRegisters {
		return nil, fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, modbus.MaxReadRegisters)
	}
	req := modbus.ProtocolDataUnit{
		FunctionCode: funcCode,
		Data:         make([]byte, 4),
	}
	binary.BigEndian.PutUint16(req.Data[0:], address)
	binary.BigEndian.PutUint16(req.Data[2:], quantity)

	resp, err := c.ds.Send(ctx, slaveID, req)
	if err != nil {
		return nil, err
	}
	if err := modbus.CheckResponse(funcCode, resp); err != nil {
		return nil, err
	}
	if len(resp.Data) < 1 {
		return nil, fmt.Errorf("modbus: response data is empty")
	}
	count := int(resp.Data[0])
	if count != int(quantity)*2 || len(resp.Data)-1 != count {
		return nil, fmt.Errorf("modbus: response data size '%v' does not match count '%v'", len(resp.Data)-1, int(quantity)*2)
	}
	return modbus.BytesToRegisters(resp.Data[1:]), nil
}

// WriteMultipleRegisters writes values starting at address (FC16).
func (c *RegisterClient) WriteMultipleRegisters(ctx context.Context, slaveID byte, address uint16, values []uint16) error {
	quantity := len(values)
	if quantity < 1 || quantity > modbus.MaxWriteRegisters {
		return fmt.Errorf("modbus: quantity '%v' must be between '%v' and '%v'", quantity, 1, modbus.MaxWriteRegisters)
	}
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteMultipleRegisters,
		Data:         make([]byte, 5, 5+quantity*2),
	}
	binary.BigEndian.PutUint16(req.Data[0:], address)
	binary.BigEndian.PutUint16(req.Data[2:], uint16(quantity))
	req.Data[4] = byte(quantity * 2)
	req.Data = append(req.Data, modbus.RegistersToBytes(values)...)

	resp, err := c.ds.Send(ctx, slaveID, req)
	if err != nil {
		return err
	}
	if err := modbus.CheckResponse(modbus.FuncCodeWriteMultipleRegisters, resp); err != nil {
		return err
	}
	if len(resp.Data) != 4 {
		return fmt.Errorf("modbus: response data size '%v' does not match expected '%v'", len(resp.Data), 4)
	}
	if v := binary.BigEndian.Uint16(resp.Data[0:]); v != address {
		return fmt.Errorf("modbus: response address '%v' does not match request '%v'", v, address)
	}
	if v := binary.BigEndian.Uint16(resp.Data[2:]); int(v) != quantity {
		return fmt.Errorf("modbus: response quantity '%v' does not match request '%v'", v, quantity)
	}
	return nil
}
