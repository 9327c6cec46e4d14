// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/d3net-gateway/d3net"
)

// ErrNotPrepared is returned when a holding change is requested before
// PrepareWrite loaded the holding registers.
var ErrNotPrepared = errors.New("d3net: holding registers not prepared")

// Unit is one indoor unit behind the interface. A Unit is not safe for
// concurrent use.
//
// Changes follow two phases: PrepareWrite reconciles the holding registers
// with the last status, the caller edits Status, and CommitWrite writes the
// difference.
type Unit struct {
	gw    *Gateway
	index int

	capability *d3net.UnitCapability
	status     *d3net.UnitStatus
	holding    *d3net.UnitHolding

	errors     *d3net.UnitError
	errorsRead time.Time
}

func newUnit(gw *Gateway, index int, capability *d3net.UnitCapability, status *d3net.UnitStatus) *Unit {
	return &Unit{gw: gw, index: index, capability: capability, status: status}
}

// Index is the unit slot, 0 to 63.
func (u *Unit) Index() int { return u.index }

// ID is the DIII-Net group address printed on the remote controllers.
func (u *Unit) ID() string {
	return fmt.Sprintf("%d-%02d", u.index/16+1, u.index%16)
}

func (u *Unit) Capability() *d3net.UnitCapability { return u.capability }

// Status is the last status read, including optimistic edits.
func (u *Unit) Status() *d3net.UnitStatus { return u.status }

// Holding is the command image, nil until the first PrepareWrite.
func (u *Unit) Holding() *d3net.UnitHolding { return u.holding }

// RefreshStatus rereads the status unless the holding registers were
// written within the cache window. The interface takes a while to report a
// command back, and reading earlier would undo the optimistic status.
func (u *Unit) RefreshStatus(ctx context.Context) error {
	if u.holding != nil && u.holding.WrittenWithin(u.gw.cfg.CacheWrite, u.gw.now()) {
		u.gw.metrics.skipped.WithLabelValues("refresh").Inc()
		slog.Debug("Status read skipped on read-after-write delay", "unit", u.ID())
		return nil
	}
	st, err := u.gw.ReadStatus(ctx, u.index)
	if err != nil {
		return err
	}
	u.status = st
	u.gw.metrics.observeStatus(u.ID(), st)
	return nil
}

// PrepareWrite makes sure the holding registers match the current status
// before the caller changes anything. A holding image that is dirty or was
// read or written within the cache window is trusted as is. Otherwise it is
// reloaded, synced to the status and written back if it differed.
func (u *Unit) PrepareWrite(ctx context.Context) error {
	window, now := u.gw.cfg.CacheWrite, u.gw.now()
	if h := u.holding; h != nil && (h.Dirty() || h.ReadWithin(window, now) || h.WrittenWithin(window, now)) {
		u.gw.metrics.skipped.WithLabelValues("prepare").Inc()
		slog.Debug("Prepare skipped on read-after-write delay", "unit", u.ID())
		return nil
	}

	h, err := u.gw.ReadHolding(ctx, u.index)
	if err != nil {
		return err
	}
	u.holding = h
	if err := h.Sync(u.status, d3net.SyncFields...); err != nil {
		return err
	}
	if h.Dirty() {
		slog.Debug("Holding out of sync with status, performing sync write", "unit", u.ID())
		if _, err := u.gw.Write(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// CommitWrite copies the edited status into the holding registers and
// writes them if anything changed. A pending filter reset is written as a
// pulse: set, then cleared by a second write.
func (u *Unit) CommitWrite(ctx context.Context) error {
	h := u.holding
	if h == nil {
		return ErrNotPrepared
	}
	if err := h.Sync(u.status, d3net.SyncFields...); err != nil {
		return err
	}
	if u.gw.cfg.ForceFanControl && (u.capability.FanSpeedCapable() || u.capability.FanDirectCapable()) {
		if err := h.EnableFanControl(); err != nil {
			return err
		}
	}
	if _, err := u.gw.Write(ctx, h); err != nil {
		return err
	}

	if h.FilterReset() {
		if err := h.SetFilterReset(false); err != nil {
			return err
		}
		if _, err := u.gw.Write(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// ResetFilter requests a filter reset on the next CommitWrite.
func (u *Unit) ResetFilter() error {
	if u.holding == nil {
		return ErrNotPrepared
	}
	return u.holding.SetFilterReset(true)
}

// Update runs one full change: prepare, let fn edit the status, commit.
// fn works on a copy; when it fails the cached status is left untouched.
func (u *Unit) Update(ctx context.Context, fn func(status *d3net.UnitStatus) error) error {
	if err := u.PrepareWrite(ctx); err != nil {
		return err
	}
	st := u.status.Clone()
	if err := fn(st); err != nil {
		return err
	}
	u.status = st
	return u.CommitWrite(ctx)
}

// Errors returns the unit's error registers, reread once the cached copy
// is older than the error cache window.
func (u *Unit) Errors(ctx context.Context) (*d3net.UnitError, error) {
	now := u.gw.now()
	if u.errors != nil && now.Sub(u.errorsRead) < u.gw.cfg.CacheError {
		return u.errors, nil
	}
	e, err := u.gw.ReadError(ctx, u.index)
	if err != nil {
		return nil, err
	}
	u.errors, u.errorsRead = e, now
	if e.Active() {
		slog.Warn("Unit reports error", "unit", u.ID(), "code", e.Code(), "sub_code", e.SubCode(), "alarm", e.Alarm(), "warning", e.Warning())
	}
	return e, nil
}
