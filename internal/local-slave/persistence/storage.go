// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"github.com/ffutop/d3net-gateway/internal/local-slave/model"
)

// Storage defines the interface for persisting the simulator's register tables.
type Storage interface {
	// Load loads the data model from storage.
	// If no data exists, it returns a zeroed model.
	Load() (*model.DataModel, error)

	// Save saves the current data model to storage.
	Save(model *model.DataModel) error

	// OnWrite is a hook called whenever registers are modified.
	// It allows the storage to perform real-time persistence (e.g. sync to disk).
	OnWrite(table model.TableType, address, quantity uint16)

	// Close releases the backing file, if any.
	Close() error
}
