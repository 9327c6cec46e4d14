// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	// Default timeout
	serialTimeout     = 5 * time.Second
	serialIdleTimeout = 60 * time.Second
)

// serialPort has configuration and I/O controller.
type serialPort struct {
	// Serial port configuration.
	serial.Config

	IdleTimeout time.Duration

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port         io.ReadWriteCloser
	lastActivity time.Time
	closeTimer   *time.Timer
}

// Connect opens the serial port unless it is already open.
func (sp *serialPort) Connect(ctx context.Context) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	return sp.connect(ctx)
}

// connect connects to the serial port if it is not connected. Caller must hold the mutex.
func (sp *serialPort) connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sp.port == nil {
		port, err := serial.Open(&sp.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", sp.Config.Address, err)
		}
		slog.Debug("serial port opened", "device", sp.Config.Address, "baud_rate", sp.Config.BaudRate)
		sp.port = port
	}
	return nil
}

// Close closes the serial port and stops the idle timer.
func (sp *serialPort) Close() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.closeTimer != nil {
		sp.closeTimer.Stop()
		sp.closeTimer = nil
	}
	return sp.close()
}

// close closes the serial port if it is connected. Caller must hold the mutex.
func (sp *serialPort) close() (err error) {
	if sp.port != nil {
		err = sp.port.Close()
		sp.port = nil
	}
	return
}

func (sp *serialPort) startCloseTimer() {
	if sp.IdleTimeout <= 0 {
		return
	}
	if sp.closeTimer == nil {
		sp.closeTimer = time.AfterFunc(sp.IdleTimeout, sp.closeIdle)
	} else {
		sp.closeTimer.Reset(sp.IdleTimeout)
	}
}

// closeIdle closes the connection if last activity is passed behind IdleTimeout.
// The port is reopened by the next request.
func (sp *serialPort) closeIdle() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.IdleTimeout <= 0 {
		return
	}

	if idle := time.Since(sp.lastActivity); idle >= sp.IdleTimeout {
		slog.Debug("closing serial port due to idle timeout", "device", sp.Config.Address, "idle", idle)
		sp.close()
	}
}
