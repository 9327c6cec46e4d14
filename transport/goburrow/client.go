// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package goburrow adapts github.com/goburrow/modbus to the register
// interface used by the gateway. It is selected with downstream.driver
// "goburrow" as an alternative to the native framers.
package goburrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mb "github.com/goburrow/modbus"

	"github.com/ffutop/d3net-gateway/internal/config"
	"github.com/ffutop/d3net-gateway/modbus"
)

type handler interface {
	mb.ClientHandler
	Connect() error
	Close() error
}

// Client issues register requests through a goburrow client. The slave id
// lives on the goburrow handler, so requests are serialized here.
type Client struct {
	mu       sync.Mutex
	handler  handler
	setSlave func(byte)
	client   mb.Client
}

// NewTCPClient creates a Modbus TCP client for address.
func NewTCPClient(address string, timeout time.Duration) *Client {
	h := mb.NewTCPClientHandler(address)
	if timeout > 0 {
		h.Timeout = timeout
	}
	return &Client{
		handler:  h,
		setSlave: func(id byte) { h.SlaveId = id },
		client:   mb.NewClient(h),
	}
}

// NewRTUClient creates a Modbus RTU client on a serial line.
func NewRTUClient(cfg config.SerialConfig) *Client {
	h := mb.NewRTUClientHandler(cfg.Device)
	h.BaudRate = cfg.BaudRate
	h.DataBits = cfg.DataBits
	h.Parity = cfg.Parity
	h.StopBits = cfg.StopBits
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	h.RS485.Enabled = cfg.RS485
	h.RS485.DelayRtsBeforeSend = cfg.DelayRtsBeforeSend
	h.RS485.DelayRtsAfterSend = cfg.DelayRtsAfterSend
	h.RS485.RtsHighDuringSend = cfg.RtsHighDuringSend
	h.RS485.RtsHighAfterSend = cfg.RtsHighAfterSend
	h.RS485.RxDuringTx = cfg.RxDuringTx
	return &Client{
		handler:  h,
		setSlave: func(id byte) { h.SlaveId = id },
		client:   mb.NewClient(h),
	}
}

// Connect opens the underlying connection. goburrow dials without a
// context, so only a context that is already done is honoured.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Connect()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *Client) ReadInputRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setSlave(slaveID)
	data, err := c.client.ReadInputRegisters(address, quantity)
	return registers(data, quantity, err)
}

func (c *Client) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setSlave(slaveID)
	data, err := c.client.ReadHoldingRegisters(address, quantity)
	return registers(data, quantity, err)
}

func (c *Client) WriteMultipleRegisters(ctx context.Context, slaveID byte, address uint16, values []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setSlave(slaveID)
	_, err := c.client.WriteMultipleRegisters(address, uint16(len(values)), modbus.RegistersToBytes(values))
	return convertError(err)
}

func registers(data []byte, quantity uint16, err error) ([]uint16, error) {
	if err != nil {
		return nil, convertError(err)
	}
	if len(data) != int(quantity)*2 {
		return nil, fmt.Errorf("modbus: response data size '%v' does not match count '%v'", len(data), int(quantity)*2)
	}
	return modbus.BytesToRegisters(data), nil
}

// convertError maps goburrow exceptions onto modbus.ExceptionError so callers
// see the same error type whichever driver is configured.
func convertError(err error) error {
	var me *mb.ModbusError
	if errors.As(err, &me) {
		return &modbus.ExceptionError{FunctionCode: me.FunctionCode, ExceptionCode: me.ExceptionCode}
	}
	return err
}
