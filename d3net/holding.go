// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package d3net

import (
	"fmt"
	"slices"
	"time"
)

const (
	// FanControlEnabled must be present in the fan control group for the
	// unit to honour fan speed and direction commands.
	FanControlEnabled = 6
	// FilterResetPulse is written to the filter group to acknowledge a
	// filter warning. It has to be cleared by a second write.
	FilterResetPulse = 0xF
)

// SyncFields are the holding fields mirrored from the unit status before a
// write. The filter group is left out: a filter warning must never turn into
// a reset command.
var SyncFields = []string{
	FieldPower,
	FieldFanDirection,
	FieldFanSpeed,
	FieldOperatingMode,
	FieldTempSetpoint,
}

// UnitHolding is the command surface of a unit. It remembers the image last
// confirmed by the bus and is dirty while its content differs from it.
type UnitHolding struct {
	view
	index       int
	confirmed   []uint16
	lastRead    time.Time
	lastWritten time.Time
}

// NewUnitHolding wraps registers read for unit index. The content is taken
// as confirmed.
func NewUnitHolding(index int, regs []uint16) (*UnitHolding, error) {
	v, err := newView(UnitHoldingMessage, regs)
	if err != nil {
		return nil, err
	}
	return &UnitHolding{view: v, index: index, confirmed: slices.Clone(v.regs)}, nil
}

// Index is the unit slot the registers belong to.
func (h *UnitHolding) Index() int { return h.index }

// Address is the first holding register of the unit.
func (h *UnitHolding) Address() uint16 { return h.msg.AddressOf(h.index) }

// Dirty reports whether the buffer differs from the last confirmed image.
func (h *UnitHolding) Dirty() bool { return !slices.Equal(h.regs, h.confirmed) }

// MarkRead records a successful read at t.
func (h *UnitHolding) MarkRead(t time.Time) {
	h.confirmed = slices.Clone(h.regs)
	h.lastRead = t
}

// MarkWritten records that the current buffer was written at t.
func (h *UnitHolding) MarkWritten(t time.Time) {
	h.confirmed = slices.Clone(h.regs)
	h.lastWritten = t
}

func (h *UnitHolding) LastRead() time.Time    { return h.lastRead }
func (h *UnitHolding) LastWritten() time.Time { return h.lastWritten }

// ReadWithin reports whether the last read happened less than d before now.
func (h *UnitHolding) ReadWithin(d time.Duration, now time.Time) bool {
	return within(h.lastRead, d, now)
}

// WrittenWithin reports whether the last write happened less than d before now.
func (h *UnitHolding) WrittenWithin(d time.Duration, now time.Time) bool {
	return within(h.lastWritten, d, now)
}

func within(t time.Time, d time.Duration, now time.Time) bool {
	return !t.IsZero() && now.Sub(t) < d
}

func (h *UnitHolding) Power() bool           { return h.bit(FieldPower) }
func (h *UnitHolding) FanControl() int       { return int(h.uint(FieldFanControl)) }
func (h *UnitHolding) TempSetpoint() float64 { return h.temperature(FieldTempSetpoint) }
func (h *UnitHolding) FilterReset() bool     { return h.uint(FieldFilter) != 0 }

func (h *UnitHolding) FanDirection() FanDirection {
	v, _ := ParseFanDirection(h.uint(FieldFanDirection))
	return v
}

func (h *UnitHolding) FanSpeed() FanSpeed {
	v, _ := ParseFanSpeed(h.uint(FieldFanSpeed))
	return v
}

func (h *UnitHolding) OperatingMode() OperationMode {
	v, _ := ParseOperationMode(h.uint(FieldOperatingMode))
	return v
}

func (h *UnitHolding) SetPower(on bool) error {
	h.setBit(FieldPower, on)
	return nil
}

// EnableFanControl writes the fan control sentinel on its own.
func (h *UnitHolding) EnableFanControl() error {
	return h.setUint(FieldFanControl, FanControlEnabled)
}

func (h *UnitHolding) SetFanDirection(d FanDirection) error {
	if _, err := ParseFanDirection(uint64(d)); err != nil {
		return err
	}
	if err := h.setUint(FieldFanDirection, uint64(d)); err != nil {
		return err
	}
	return h.EnableFanControl()
}

func (h *UnitHolding) SetFanSpeed(v FanSpeed) error {
	if _, err := ParseFanSpeed(uint64(v)); err != nil {
		return err
	}
	if err := h.setUint(FieldFanSpeed, uint64(v)); err != nil {
		return err
	}
	return h.EnableFanControl()
}

func (h *UnitHolding) SetOperatingMode(m OperationMode) error {
	if _, err := ParseOperationMode(uint64(m)); err != nil || m == OperationModeUndefined {
		return &InvalidEnumError{Enum: "operation mode", Value: uint64(m)}
	}
	return h.setUint(FieldOperatingMode, uint64(m))
}

func (h *UnitHolding) SetTempSetpoint(t float64) error {
	return h.setTemperature(FieldTempSetpoint, t)
}

// SetFilterReset raises or clears the filter reset pulse.
func (h *UnitHolding) SetFilterReset(on bool) error {
	var v uint64
	if on {
		v = FilterResetPulse
	}
	return h.setUint(FieldFilter, v)
}

// Sync copies the named fields from status wherever they differ. Fields the
// status reports as undefined are left alone. Calling Sync again against the
// same status changes nothing.
func (h *UnitHolding) Sync(status *UnitStatus, fields ...string) error {
	for _, name := range fields {
		if err := h.syncField(status, name); err != nil {
			return fmt.Errorf("sync %s: %w", name, err)
		}
	}
	return nil
}

func (h *UnitHolding) syncField(s *UnitStatus, name string) error {
	switch name {
	case FieldPower:
		if h.Power() != s.Power() {
			return h.SetPower(s.Power())
		}
	case FieldFanDirection:
		if d := s.FanDirection(); d != FanDirectionUndefined && h.FanDirection() != d {
			return h.SetFanDirection(d)
		}
	case FieldFanSpeed:
		if v := s.FanSpeed(); v != FanSpeedUndefined && h.FanSpeed() != v {
			return h.SetFanSpeed(v)
		}
	case FieldOperatingMode:
		if m := s.OperatingMode(); m != OperationModeUndefined && h.OperatingMode() != m {
			return h.SetOperatingMode(m)
		}
	case FieldTempSetpoint:
		// Compare the encoded tenths so float noise never marks the view dirty.
		if hv, sv := h.sint(FieldTempSetpoint), s.sint(FieldTempSetpoint); hv != sv {
			f := h.msg.mustField(FieldTempSetpoint)
			return SetSint(h.regs, f.Offset, f.Length, sv)
		}
	default:
		return fmt.Errorf("d3net: field %q cannot be synced", name)
	}
	return nil
}

func (h *UnitHolding) Snapshot() map[string]any {
	out := h.snapshot()
	out[FieldFanDirection] = h.FanDirection().String()
	out[FieldFanSpeed] = h.FanSpeed().String()
	out[FieldOperatingMode] = h.OperatingMode().String()
	out[FieldTempSetpoint] = h.TempSetpoint()
	out["dirty"] = h.Dirty()
	return out
}
