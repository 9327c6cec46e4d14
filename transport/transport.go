// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"

	"github.com/ffutop/d3net-gateway/modbus"
)

// Downstream represents the DIII-Net interface we talk to (a Modbus slave).
// It acts as a Client.
//
// Implementations frame the PDU for their medium (TCP MBAP, RTU over a
// serial line or a TCP stream, or an in-process simulator) and return the
// response PDU, which may be an exception.
type Downstream interface {
	// Send sends a PDU to a specific SlaveID and returns the response PDU.
	Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)
	Connect(ctx context.Context) error
	Close() error
}
