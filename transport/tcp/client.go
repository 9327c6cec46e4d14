// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ffutop/d3net-gateway/modbus"
)

const (
	tcpTimeout = 10 * time.Second
)

// Client implements Downstream interface (Modbus TCP Client).
// The connection is kept open between requests and redialled after an I/O
// failure.
type Client struct {
	Address string
	Timeout time.Duration

	mu            sync.Mutex
	conn          net.Conn
	transactionID uint16
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

	mb.transactionID++
	adu := &ApplicationDataUnit{
		TransactionID: mb.transactionID,
		ProtocolID:    0,
		Length:        uint16(2 + len(pdu.Data)), // Unit Identifier + Function + Data
		SlaveID:       slaveID,
		Pdu:           pdu,
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

	respBytes, err := mb.sendAndRead(aduBytes)
	if err != nil {
		// The stream position is unknown after a partial exchange.
		mb.close()
		return modbus.ProtocolDataUnit{}, err
	}

	respAdu, err := Decode(respBytes)
	if err != nil {
		mb.close()
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}

	if err := adu.Verify(respAdu); err != nil {
		mb.close()
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}

	return respAdu.Pdu, nil
}

func (mb *Client) sendAndRead(aduRequest []byte) ([]byte, error) {
	slog.Debug("send to modbus tcp slave", "request", hex.EncodeToString(aduRequest))
	if _, err := mb.conn.Write(aduRequest); err != nil {
		return nil, err
	}

	// Read MBAP Header (first 6 bytes)
	mbapHeader := make([]byte, 6)
	if _, err := io.ReadFull(mb.conn, mbapHeader); err != nil {
		return nil, err
	}

	// Length covers the Unit Identifier and the PDU.
	length := int(mbapHeader[4])<<8 | int(mbapHeader[5])
	if length < 2 || 6+length > tcpMaxSize {
		return nil, fmt.Errorf("modbus: length in response header '%v' must be between '%v' and '%v'", length, 2, tcpMaxSize-6)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(mb.conn, payload); err != nil {
		return nil, err
	}

	response := make([]byte, 6+length)
	copy(response, mbapHeader)
	copy(response[6:], payload)

	slog.Debug("recv from modbus tcp slave", "response", hex.EncodeToString(response))
	return response, nil
}

// Connect dials the slave if there is no open connection.
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
	slog.Debug("connected to modbus tcp slave", "address", mb.Address)
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
