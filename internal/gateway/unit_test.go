// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ffutop/d3net-gateway/d3net"
	"github.com/ffutop/d3net-gateway/internal/config"
)

// setupUnit returns the single discovered unit 0. When synced is true the
// holding registers already agree with the status.
func setupUnit(t *testing.T, cfg config.GatewayConfig, synced bool) (*Unit, *Gateway, *fakeTransport, *fakeClock) {
	t.Helper()
	g, ft, clock := newTestGateway(cfg)
	ft.seedSystem(t, []int{0}, nil)
	st := ft.seedUnit(t, 0)
	if synced {
		ft.syncHolding(t, 0, st)
	}
	units, err := g.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("units = %v", units)
	}
	ft.reads, ft.writes = 0, 0
	return units[0], g, ft, clock
}

func TestUnit_PrepareAndCommitWriteTwice(t *testing.T) {
	u, _, ft, _ := setupUnit(t, testConfig(), false)
	ctx := context.Background()

	if err := u.PrepareWrite(ctx); err != nil {
		t.Fatalf("PrepareWrite: %v", err)
	}
	if ft.reads != 1 || ft.writes != 1 {
		t.Fatalf("prepare: reads=%d writes=%d, want 1 and 1", ft.reads, ft.writes)
	}
	baseline, _ := d3net.NewUnitHolding(0, ft.written[0])
	if !baseline.Power() || baseline.TempSetpoint() != 22 || baseline.OperatingMode() != d3net.OperationModeCool {
		t.Errorf("baseline write %v does not match status", baseline.Snapshot())
	}

	mustNoErr(t, u.Status().SetTempSetpoint(24))
	if err := u.CommitWrite(ctx); err != nil {
		t.Fatalf("CommitWrite: %v", err)
	}
	if ft.writes != 2 {
		t.Errorf("writes = %d, want 2", ft.writes)
	}
	if got := ft.holdingView(t, 0).TempSetpoint(); got != 24 {
		t.Errorf("device setpoint = %v, want 24", got)
	}
	if u.Holding().Dirty() {
		t.Error("holding dirty after successful commit")
	}
}

func TestUnit_InSyncWritesNothing(t *testing.T) {
	u, _, ft, _ := setupUnit(t, testConfig(), true)
	ctx := context.Background()

	mustNoErr(t, u.PrepareWrite(ctx))
	mustNoErr(t, u.CommitWrite(ctx))
	if ft.reads != 1 || ft.writes != 0 {
		t.Errorf("reads=%d writes=%d, want 1 and 0", ft.reads, ft.writes)
	}
}

func TestUnit_PrepareTrustsFreshHolding(t *testing.T) {
	u, g, ft, clock := setupUnit(t, testConfig(), true)
	ctx := context.Background()

	mustNoErr(t, u.PrepareWrite(ctx))
	clock.Advance(30 * time.Second)
	mustNoErr(t, u.PrepareWrite(ctx))
	if ft.reads != 1 {
		t.Errorf("reads = %d inside the window, want 1", ft.reads)
	}
	clock.Advance(10 * time.Second)
	mustNoErr(t, u.PrepareWrite(ctx))
	if ft.reads != 2 {
		t.Errorf("reads = %d after the window, want 2", ft.reads)
	}
	if got := testutil.ToFloat64(g.metrics.skipped.WithLabelValues("prepare")); got != 1 {
		t.Errorf("skipped prepares = %v", got)
	}
}

func TestUnit_RefreshSkippedAfterWrite(t *testing.T) {
	u, g, ft, clock := setupUnit(t, testConfig(), true)
	ctx := context.Background()

	mustNoErr(t, u.RefreshStatus(ctx))
	if ft.reads != 1 {
		t.Fatalf("refresh without holding: reads = %d", ft.reads)
	}

	err := u.Update(ctx, func(st *d3net.UnitStatus) error {
		return st.SetTempSetpoint(19.5)
	})
	mustNoErr(t, err)
	reads := ft.reads

	clock.Advance(time.Second)
	mustNoErr(t, u.RefreshStatus(ctx))
	if ft.reads != reads {
		t.Errorf("refresh inside the write window read the bus")
	}
	if u.Status().TempSetpoint() != 19.5 {
		t.Errorf("optimistic setpoint lost: %v", u.Status().TempSetpoint())
	}
	if got := testutil.ToFloat64(g.metrics.skipped.WithLabelValues("refresh")); got != 1 {
		t.Errorf("skipped refreshes = %v", got)
	}

	clock.Advance(34 * time.Second)
	mustNoErr(t, u.RefreshStatus(ctx))
	if ft.reads != reads+1 {
		t.Errorf("refresh after the window did not read")
	}
	// The fake device does not act on commands, so the status reverts.
	if u.Status().TempSetpoint() != 22 {
		t.Errorf("setpoint = %v after refresh", u.Status().TempSetpoint())
	}
}

func TestUnit_FilterResetPulse(t *testing.T) {
	u, _, ft, _ := setupUnit(t, testConfig(), true)
	ctx := context.Background()

	if err := u.ResetFilter(); !errors.Is(err, ErrNotPrepared) {
		t.Fatalf("ResetFilter before prepare = %v", err)
	}
	mustNoErr(t, u.PrepareWrite(ctx))
	mustNoErr(t, u.ResetFilter())
	mustNoErr(t, u.CommitWrite(ctx))

	if ft.writes != 2 {
		t.Fatalf("writes = %d, want 2", ft.writes)
	}
	first, _ := d3net.NewUnitHolding(0, ft.written[0])
	second, _ := d3net.NewUnitHolding(0, ft.written[1])
	if !first.FilterReset() || second.FilterReset() {
		t.Errorf("pulse = %v then %v, want set then cleared", first.FilterReset(), second.FilterReset())
	}
	if u.Holding().FilterReset() || u.Holding().Dirty() {
		t.Error("holding left with a pending reset")
	}
}

func TestUnit_CommitBeforePrepare(t *testing.T) {
	u, _, ft, _ := setupUnit(t, testConfig(), true)
	if err := u.CommitWrite(context.Background()); !errors.Is(err, ErrNotPrepared) {
		t.Errorf("err = %v, want ErrNotPrepared", err)
	}
	if ft.writes != 0 {
		t.Error("unprepared commit wrote")
	}
}

func TestUnit_FailedCommitStaysDirty(t *testing.T) {
	u, _, ft, _ := setupUnit(t, testConfig(), true)
	ctx := context.Background()

	mustNoErr(t, u.PrepareWrite(ctx))
	mustNoErr(t, u.Status().SetTempSetpoint(25))
	ft.writeErr = errors.New("i/o timeout")
	err := u.CommitWrite(ctx)
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "write" {
		t.Fatalf("err = %v, want write TransportError", err)
	}
	if !u.Holding().Dirty() {
		t.Fatal("failed write cleared dirty")
	}

	ft.writeErr = nil
	reads := ft.reads
	mustNoErr(t, u.PrepareWrite(ctx))
	if ft.reads != reads {
		t.Error("prepare reloaded a dirty holding")
	}
	mustNoErr(t, u.CommitWrite(ctx))
	if got := ft.holdingView(t, 0).TempSetpoint(); got != 25 {
		t.Errorf("device setpoint = %v, want 25", got)
	}
}

func TestUnit_ForceFanControl(t *testing.T) {
	for _, force := range []bool{false, true} {
		cfg := testConfig()
		cfg.ForceFanControl = force
		g, ft, _ := newTestGateway(cfg)
		ft.seedSystem(t, []int{0}, nil)
		ft.syncHolding(t, 0, ft.seedUnit(t, 0))
		regs := ft.holdingView(t, 0).Registers()
		fanControl, _ := d3net.UnitHoldingMessage.Field(d3net.FieldFanControl)
		mustNoErr(t, fanControl.SetInt(regs, 0))
		ft.put(d3net.UnitHoldingMessage, 0, regs)

		units, err := g.Setup(context.Background())
		mustNoErr(t, err)
		u := units[0]
		mustNoErr(t, u.PrepareWrite(context.Background()))
		mustNoErr(t, u.CommitWrite(context.Background()))

		got := ft.holdingView(t, 0).FanControl()
		if force && (ft.writes != 1 || got != d3net.FanControlEnabled) {
			t.Errorf("forced: writes=%d fan control=%d", ft.writes, got)
		}
		if !force && (ft.writes != 0 || got != 0) {
			t.Errorf("not forced: writes=%d fan control=%d", ft.writes, got)
		}
	}
}

func TestUnit_UndefinedStatusIsNotCommanded(t *testing.T) {
	g, ft, _ := newTestGateway(testConfig())
	ft.seedSystem(t, []int{0}, nil)
	st := ft.seedUnit(t, 0)
	ft.syncHolding(t, 0, st)
	regs := st.Registers()
	mode, _ := d3net.UnitStatusMessage.Field(d3net.FieldOperatingMode)
	mustNoErr(t, mode.SetInt(regs, 5))
	ft.put(d3net.UnitStatusMessage, 0, regs)

	units, err := g.Setup(context.Background())
	mustNoErr(t, err)
	u := units[0]
	if u.Status().OperatingMode() != d3net.OperationModeUndefined {
		t.Fatalf("mode = %v", u.Status().OperatingMode())
	}
	mustNoErr(t, u.PrepareWrite(context.Background()))
	if ft.writes != 0 {
		t.Error("undefined mode was written to the holding registers")
	}
	if got := ft.holdingView(t, 0).OperatingMode(); got != d3net.OperationModeCool {
		t.Errorf("holding mode = %v, want cool", got)
	}
}

func TestUnit_UpdateStopsOnCallbackError(t *testing.T) {
	u, _, ft, _ := setupUnit(t, testConfig(), true)
	boom := errors.New("rejected")
	err := u.Update(context.Background(), func(st *d3net.UnitStatus) error {
		_ = st.SetOperatingMode(d3net.OperationModeHeat)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if ft.writes != 0 {
		t.Error("commit ran after callback error")
	}
}

func TestUnit_RejectedUpdateIsNotCommittedLater(t *testing.T) {
	u, _, ft, _ := setupUnit(t, testConfig(), true)
	ctx := context.Background()

	err := u.Update(ctx, func(st *d3net.UnitStatus) error {
		mustNoErr(t, st.SetOperatingMode(d3net.OperationModeHeat))
		return errors.New("rejected")
	})
	if err == nil {
		t.Fatal("expected callback error")
	}
	if u.Status().OperatingMode() != d3net.OperationModeCool {
		t.Fatalf("cached mode = %v after rejected update", u.Status().OperatingMode())
	}

	err = u.Update(ctx, func(st *d3net.UnitStatus) error {
		return st.SetTempSetpoint(23)
	})
	mustNoErr(t, err)
	if ft.writes != 1 {
		t.Errorf("writes = %d, want 1", ft.writes)
	}
	h := ft.holdingView(t, 0)
	if h.OperatingMode() != d3net.OperationModeCool || h.TempSetpoint() != 23 {
		t.Errorf("device holding = %v, want cool at 23", h.Snapshot())
	}
}

func TestUnit_ErrorsCached(t *testing.T) {
	u, _, ft, clock := setupUnit(t, testConfig(), true)
	ctx := context.Background()
	ft.input[3600] = 'A' | '3'<<8
	ft.input[3601] = 0x0101 // sub code 1, error

	e, err := u.Errors(ctx)
	mustNoErr(t, err)
	if e.Code() != "A3" || !e.HasError() || e.SubCode() != 1 {
		t.Errorf("errors = %v", e.Snapshot())
	}
	clock.Advance(9 * time.Second)
	if _, err := u.Errors(ctx); err != nil || ft.reads != 1 {
		t.Errorf("cached errors reread: reads=%d err=%v", ft.reads, err)
	}
	clock.Advance(time.Second)
	if _, err := u.Errors(ctx); err != nil || ft.reads != 2 {
		t.Errorf("stale errors not reread: reads=%d err=%v", ft.reads, err)
	}
}

func TestUnit_ID(t *testing.T) {
	tests := map[int]string{0: "1-00", 15: "1-15", 16: "2-00", 63: "4-15"}
	for index, want := range tests {
		if got := newUnit(nil, index, nil, nil).ID(); got != want {
			t.Errorf("ID(%d) = %s, want %s", index, got, want)
		}
	}
}
