// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package gateway keeps DIII-Net units in sync with a Modbus interface. All
// register traffic for one interface goes through a single Gateway, which
// serializes and throttles it.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/ffutop/d3net-gateway/d3net"
	"github.com/ffutop/d3net-gateway/internal/config"
)

// Transport is the register level bus the gateway drives.
type Transport interface {
	Connect(ctx context.Context) error
	ReadInputRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error)
	ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error)
	WriteMultipleRegisters(ctx context.Context, slaveID byte, address uint16, values []uint16) error
	Close() error
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock replaces the wall clock, for the cache windows and the throttle.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(g *Gateway) {
		g.now = now
		g.sleep = sleep
	}
}

// WithRegisterer registers the gateway metrics with reg instead of the
// default Prometheus registry. A nil reg disables registration.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(g *Gateway) { g.registerer = reg }
}

// Gateway represents a single DIII-Net interface on a Modbus bus.
type Gateway struct {
	Name string

	cfg       config.GatewayConfig
	transport Transport
	throttle  *Throttle
	bus       *semaphore.Weighted
	metrics   *metrics

	now        func() time.Time
	sleep      func(time.Duration)
	registerer prometheus.Registerer

	mu    sync.Mutex
	units []*Unit
}

// NewGateway creates a gateway on top of t.
func NewGateway(cfg config.GatewayConfig, t Transport, opts ...Option) *Gateway {
	g := &Gateway{
		Name:       cfg.Name,
		cfg:        cfg,
		transport:  t,
		bus:        semaphore.NewWeighted(1),
		now:        time.Now,
		sleep:      time.Sleep,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.throttle = NewThrottle(cfg.Throttle, g.now, g.sleep)
	g.metrics = newMetrics(g.registerer, g.Name)
	return g
}

// withBus runs fn while holding the bus lock, after making sure the
// transport is connected. Waiting for the lock honours ctx; once it is held
// the transaction runs to completion even if ctx is cancelled, so a write
// is never left half done.
func (g *Gateway) withBus(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.bus.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.bus.Release(1)

	ctx = context.WithoutCancel(ctx)
	if err := g.transport.Connect(ctx); err != nil {
		g.metrics.errors.WithLabelValues("connect").Inc()
		slog.Error("Failed to connect downstream", "gateway", g.Name, "err", err)
		return &ConnectionError{Err: err}
	}
	return fn(ctx)
}

// readLocked reads the window of msg for unit index. The bus lock must be held.
func (g *Gateway) readLocked(ctx context.Context, msg *d3net.Message, index int) ([]uint16, error) {
	g.throttle.Wait()
	defer g.throttle.Done()

	address := msg.AddressOf(index)
	var (
		regs []uint16
		err  error
	)
	if msg.Type == d3net.Holding {
		regs, err = g.transport.ReadHoldingRegisters(ctx, g.cfg.SlaveID, address, msg.Count)
	} else {
		regs, err = g.transport.ReadInputRegisters(ctx, g.cfg.SlaveID, address, msg.Count)
	}
	if err != nil {
		g.metrics.errors.WithLabelValues("read").Inc()
		return nil, &TransportError{Op: "read", Message: msg.Name, Index: index, Err: err}
	}
	g.metrics.reads.WithLabelValues(msg.Name).Inc()
	slog.Debug("Read registers", "gateway", g.Name, "message", msg.Name, "unit", index, "address", address, "registers", regs)
	return regs, nil
}

func (g *Gateway) read(ctx context.Context, msg *d3net.Message, index int) ([]uint16, error) {
	var regs []uint16
	err := g.withBus(ctx, func(ctx context.Context) error {
		var err error
		regs, err = g.readLocked(ctx, msg, index)
		return err
	})
	return regs, err
}

// ReadSystemStatus reads which unit slots are populated.
func (g *Gateway) ReadSystemStatus(ctx context.Context) (*d3net.SystemStatus, error) {
	regs, err := g.read(ctx, d3net.SystemStatusMessage, 0)
	if err != nil {
		return nil, err
	}
	return d3net.NewSystemStatus(regs)
}

// ReadCapability reads what unit index supports.
func (g *Gateway) ReadCapability(ctx context.Context, index int) (*d3net.UnitCapability, error) {
	regs, err := g.read(ctx, d3net.UnitCapabilityMessage, index)
	if err != nil {
		return nil, err
	}
	return d3net.NewUnitCapability(regs)
}

// ReadStatus reads the observed state of unit index.
func (g *Gateway) ReadStatus(ctx context.Context, index int) (*d3net.UnitStatus, error) {
	regs, err := g.read(ctx, d3net.UnitStatusMessage, index)
	if err != nil {
		return nil, err
	}
	return d3net.NewUnitStatus(regs)
}

// ReadError reads the error registers of unit index.
func (g *Gateway) ReadError(ctx context.Context, index int) (*d3net.UnitError, error) {
	regs, err := g.read(ctx, d3net.UnitErrorMessage, index)
	if err != nil {
		return nil, err
	}
	return d3net.NewUnitError(regs)
}

// ReadHolding reads the command registers of unit index. The returned view
// is clean and stamped with the read time.
func (g *Gateway) ReadHolding(ctx context.Context, index int) (*d3net.UnitHolding, error) {
	regs, err := g.read(ctx, d3net.UnitHoldingMessage, index)
	if err != nil {
		return nil, err
	}
	h, err := d3net.NewUnitHolding(index, regs)
	if err != nil {
		return nil, err
	}
	h.MarkRead(g.now())
	return h, nil
}

// Write sends the whole holding window when it is dirty. It reports whether
// a write happened. The view is marked written only after the interface
// acknowledged it; on error it stays dirty.
func (g *Gateway) Write(ctx context.Context, h *d3net.UnitHolding) (bool, error) {
	if !h.Dirty() {
		g.metrics.writes.WithLabelValues("clean").Inc()
		slog.Debug("Skipped write", "gateway", g.Name, "unit", h.Index())
		return false, nil
	}

	err := g.withBus(ctx, func(ctx context.Context) error {
		g.throttle.Wait()
		defer g.throttle.Done()

		slog.Debug("Write", "gateway", g.Name, "unit", h.Index(), "address", h.Address(), "registers", h.Registers())
		if err := g.transport.WriteMultipleRegisters(ctx, g.cfg.SlaveID, h.Address(), h.Registers()); err != nil {
			return &TransportError{Op: "write", Message: d3net.UnitHoldingMessage.Name, Index: h.Index(), Err: err}
		}
		h.MarkWritten(g.now())
		return nil
	})
	if err != nil {
		g.metrics.writes.WithLabelValues("failed").Inc()
		g.metrics.errors.WithLabelValues("write").Inc()
		return false, err
	}
	g.metrics.writes.WithLabelValues("written").Inc()
	return true, nil
}

// Setup discovers the units once. Later calls return the same units. The
// whole discovery runs under one bus lock.
func (g *Gateway) Setup(ctx context.Context) ([]*Unit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.units != nil {
		return g.units, nil
	}

	units := []*Unit{}
	err := g.withBus(ctx, func(ctx context.Context) error {
		regs, err := g.readLocked(ctx, d3net.SystemStatusMessage, 0)
		if err != nil {
			return err
		}
		sys, err := d3net.NewSystemStatus(regs)
		if err != nil {
			return err
		}
		slog.Debug("System status", "gateway", g.Name, "initialised", sys.Initialised(), "other_devices", sys.OtherDeviceExists())

		for _, index := range sys.Available() {
			regs, err := g.readLocked(ctx, d3net.UnitCapabilityMessage, index)
			if err != nil {
				return err
			}
			capability, err := d3net.NewUnitCapability(regs)
			if err != nil {
				return err
			}
			if regs, err = g.readLocked(ctx, d3net.UnitStatusMessage, index); err != nil {
				return err
			}
			status, err := d3net.NewUnitStatus(regs)
			if err != nil {
				return err
			}
			u := newUnit(g, index, capability, status)
			g.metrics.observeStatus(u.ID(), status)
			units = append(units, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.units = units
	slog.Info("Discovered units", "gateway", g.Name, "count", len(units))
	return units, nil
}

// Units returns the units found by Setup, nil before it succeeded.
func (g *Gateway) Units() []*Unit {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.units
}

// Close closes the transport once the bus is idle.
func (g *Gateway) Close() error {
	if err := g.bus.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer g.bus.Release(1)
	return g.transport.Close()
}
