// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ffutop/d3net-gateway/d3net"
	"github.com/ffutop/d3net-gateway/internal/config"
	"github.com/ffutop/d3net-gateway/transport"
	"github.com/ffutop/d3net-gateway/transport/local"
)

func readStatus(t *testing.T, rc *transport.RegisterClient, index int) *d3net.UnitStatus {
	t.Helper()
	msg := d3net.UnitStatusMessage
	regs, err := rc.ReadInputRegisters(context.Background(), 1, msg.AddressOf(index), msg.Count)
	if err != nil {
		t.Fatalf("ReadInputRegisters: %v", err)
	}
	st, err := d3net.NewUnitStatus(regs)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestClient_DefaultSeed(t *testing.T) {
	c, err := local.NewClient(config.LocalConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	rc := transport.NewRegisterClient(c)

	regs, err := rc.ReadInputRegisters(context.Background(), 1, 0, d3net.SystemStatusMessage.Count)
	if err != nil {
		t.Fatal(err)
	}
	sys, _ := d3net.NewSystemStatus(regs)
	if !sys.Initialised() || len(sys.Available()) != 2 {
		t.Errorf("unexpected system status %v", sys.Snapshot())
	}
	if st := readStatus(t, rc, 0); st.OperatingMode() != d3net.OperationModeCool {
		t.Errorf("unit 0 mode = %v", st.OperatingMode())
	}
}

func TestClient_SeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("units:\n  - index: 7\n    mode: auto\n    setpoint: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := local.NewClient(config.LocalConfig{Seed: path})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if st := readStatus(t, transport.NewRegisterClient(c), 7); st.OperatingMode() != d3net.OperationModeAuto || st.TempSetpoint() != 20 {
		t.Errorf("unit 7 = %v", st.Snapshot())
	}

	if _, err := local.NewClient(config.LocalConfig{Seed: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing seed file")
	}
}

func TestClient_PersistsAcrossRestart(t *testing.T) {
	cfg := config.LocalConfig{Persistence: config.PersistenceConfig{Type: "file", Path: filepath.Join(t.TempDir(), "d3net.bin")}}
	ctx := context.Background()

	c, err := local.NewClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	rc := transport.NewRegisterClient(c)
	msg := d3net.UnitHoldingMessage
	regs, err := rc.ReadHoldingRegisters(ctx, 1, msg.AddressOf(0), msg.Count)
	if err != nil {
		t.Fatal(err)
	}
	h, _ := d3net.NewUnitHolding(0, regs)
	if err := h.SetTempSetpoint(26.5); err != nil {
		t.Fatal(err)
	}
	if err := rc.WriteMultipleRegisters(ctx, 1, h.Address(), h.Registers()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// A restored model is not seeded again.
	c, err = local.NewClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if got := readStatus(t, transport.NewRegisterClient(c), 0).TempSetpoint(); got != 26.5 {
		t.Errorf("setpoint after restart = %v, want 26.5", got)
	}
}

func TestClient_CancelledSend(t *testing.T) {
	c, err := local.NewClient(config.LocalConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := transport.NewRegisterClient(c).ReadInputRegisters(ctx, 1, 0, 9); err == nil {
		t.Error("expected error on cancelled context")
	}
}
