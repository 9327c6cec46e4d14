// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ffutop/d3net-gateway/modbus"
	rtupacket "github.com/ffutop/d3net-gateway/modbus/rtu"
)

const (
	tcpTimeout = 10 * time.Second
)

// Client implements Downstream interface for RTU frames carried over a TCP
// stream, as served by serial device servers in front of a DIII-Net
// interface.
type Client struct {
	Address string
	Timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string) *Client {
	return &Client{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Send sends a PDU to a Slave (Downstream) and returns the response PDU.
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.connect(ctx); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("modbus: failed to connect to %s: %w", mb.Address, err)
	}

	adu := &rtupacket.ApplicationDataUnit{
		SlaveID: slaveID,
		Pdu:     pdu,
	}

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	deadline := time.Now().Add(mb.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err = mb.conn.SetDeadline(deadline); err != nil {
		mb.close()
		return modbus.ProtocolDataUnit{}, err
	}

	slog.Debug("send to modbus rtu-over-tcp slave", "request", hex.EncodeToString(aduBytes))
	if _, err := mb.conn.Write(aduBytes); err != nil {
		mb.close() // Close connection on write failure to force reconnect next time
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to write to connection: %w", err)
	}

	// RTU-over-TCP is RTU framing on a stream, so the serial framer applies.
	respBytes, err := rtupacket.ReadResponse(slaveID, pdu.FunctionCode, mb.conn, deadline)
	if err != nil {
		mb.close()
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to read response: %w", err)
	}
	slog.Debug("recv from modbus rtu-over-tcp slave", "response", hex.EncodeToString(respBytes))

	respAdu, err := rtupacket.Decode(respBytes)
	if err != nil {
		// A CRC failure leaves the stream in an unknown position.
		mb.close()
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}

	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}

	return respAdu.Pdu, nil
}

// Connect dials the device server if there is no open connection.
func (mb *Client) Connect(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.connect(ctx)
}

// Close closes the connection.
func (mb *Client) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.close()
	return nil
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (mb *Client) connect(ctx context.Context) error {
	if mb.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: mb.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", mb.Address)
	if err != nil {
		return err
	}
	mb.conn = conn
	return nil
}

// close closes the connection and resets the state. Caller must hold the mutex.
func (mb *Client) close() {
	if mb.conn != nil {
		mb.conn.Close()
		mb.conn = nil
	}
}
