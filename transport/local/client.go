// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ffutop/d3net-gateway/internal/config"
	localslave "github.com/ffutop/d3net-gateway/internal/local-slave"
	"github.com/ffutop/d3net-gateway/internal/local-slave/persistence"
	"github.com/ffutop/d3net-gateway/modbus"
)

// Client implements Downstream on top of the in-process D3Net simulator.
type Client struct {
	slave   *localslave.LocalSlave
	storage persistence.Storage
}

// NewClient creates the simulator. A model restored from persistence keeps
// its state; a fresh one is seeded from cfg.Seed, or the default seed.
func NewClient(cfg config.LocalConfig) (*Client, error) {
	var storage persistence.Storage
	switch cfg.Persistence.Type {
	case "file":
		slog.Info("Initializing local slave with file persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewFileStorage(cfg.Persistence.Path)
	case "mmap":
		slog.Info("Initializing local slave with MMAP persistence", "path", cfg.Persistence.Path)
		storage = persistence.NewMmapStorage(cfg.Persistence.Path)
	default:
		slog.Info("Initializing local slave with memory storage (non-persistent)")
		storage = persistence.NewMemoryStorage()
	}

	m, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persistence data", "err", err)
		if m == nil {
			slog.Warn("Falling back to MemoryStorage")
			storage = persistence.NewMemoryStorage()
			m, _ = storage.Load()
		}
	}

	s := localslave.NewLocalSlave(m, storage)
	if !s.Initialised() {
		seed := localslave.DefaultSeed()
		if cfg.Seed != "" {
			if seed, err = localslave.LoadSeed(cfg.Seed); err != nil {
				storage.Close()
				return nil, err
			}
		}
		if err := s.Apply(seed); err != nil {
			storage.Close()
			return nil, fmt.Errorf("seed simulator: %w", err)
		}
		slog.Info("Seeded local slave", "units", len(seed.Units), "seed", cfg.Seed)
	}

	return &Client{
		slave:   s,
		storage: storage,
	}, nil
}

// Send processes the PDU locally.
func (c *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if err := ctx.Err(); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	return c.slave.Process(pdu)
}

// Connect is a no-op for the local slave.
func (c *Client) Connect(ctx context.Context) error {
	return nil
}

// Close flushes and releases the storage.
func (c *Client) Close() error {
	return c.storage.Close()
}
