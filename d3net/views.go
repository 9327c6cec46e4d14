// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package d3net

import (
	"fmt"
	"math"
	"slices"
)

// view binds a register buffer to a message's field table. The field tables
// are fixed and covered by tests, so the typed accessors treat a RangeError
// as a programming error and panic.
type view struct {
	msg  *Message
	regs []uint16
}

func newView(msg *Message, regs []uint16) (view, error) {
	if len(regs) != int(msg.Count) {
		return view{}, &BufferSizeError{Message: msg.Name, Want: int(msg.Count), Got: len(regs)}
	}
	return view{msg: msg, regs: slices.Clone(regs)}, nil
}

// Registers returns a copy of the underlying buffer.
func (v *view) Registers() []uint16 { return slices.Clone(v.regs) }

// Message returns the descriptor of the view.
func (v *view) Message() *Message { return v.msg }

func (v *view) bit(name string) bool {
	f := v.msg.mustField(name)
	b, err := GetBit(v.regs, f.Offset)
	if err != nil {
		panic(err)
	}
	return b
}

func (v *view) uint(name string) uint64 {
	f := v.msg.mustField(name)
	u, err := GetUint(v.regs, f.Offset, f.Length)
	if err != nil {
		panic(err)
	}
	return u
}

func (v *view) sint(name string) int64 {
	f := v.msg.mustField(name)
	s, err := GetSint(v.regs, f.Offset, f.Length)
	if err != nil {
		panic(err)
	}
	return s
}

func (v *view) temperature(name string) float64 {
	return float64(v.sint(name)) / 10
}

func (v *view) setBit(name string, b bool) {
	f := v.msg.mustField(name)
	if err := SetBit(v.regs, f.Offset, b); err != nil {
		panic(err)
	}
}

func (v *view) setUint(name string, u uint64) error {
	f := v.msg.mustField(name)
	return SetUint(v.regs, f.Offset, f.Length, u)
}

func (v *view) setTemperature(name string, t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("d3net: invalid temperature %v", t)
	}
	f := v.msg.mustField(name)
	return SetSint(v.regs, f.Offset, f.Length, int64(math.Round(t*10)))
}

// snapshot decodes every field of the table into a generic map.
func (v *view) snapshot() map[string]any {
	out := make(map[string]any, len(v.msg.Fields))
	for _, f := range v.msg.Fields {
		switch f.Kind {
		case KindBit:
			out[f.Name] = v.bit(f.Name)
		default:
			n, err := f.Int(v.regs)
			if err != nil {
				panic(err)
			}
			out[f.Name] = n
		}
	}
	return out
}

// SystemStatus reports the interface state and which unit slots are used.
type SystemStatus struct{ view }

func NewSystemStatus(regs []uint16) (*SystemStatus, error) {
	v, err := newView(SystemStatusMessage, regs)
	if err != nil {
		return nil, err
	}
	return &SystemStatus{v}, nil
}

func (s *SystemStatus) Initialised() bool       { return s.bit("initialised") }
func (s *SystemStatus) OtherDeviceExists() bool { return s.bit("other_device_exists") }

// UnitConnected reports whether unit slot index is populated.
func (s *SystemStatus) UnitConnected(index int) bool {
	return s.unitBit("units_connected", index)
}

// UnitError reports whether unit slot index is in error.
func (s *SystemStatus) UnitError(index int) bool {
	return s.unitBit("units_error", index)
}

func (s *SystemStatus) unitBit(name string, index int) bool {
	if index < 0 || index >= MaxUnits {
		return false
	}
	f := s.msg.mustField(name)
	b, err := GetBit(s.regs, f.Offset+index)
	if err != nil {
		panic(err)
	}
	return b
}

// Available returns the indices that are connected and not in error.
func (s *SystemStatus) Available() []int {
	var out []int
	for i := 0; i < MaxUnits; i++ {
		if s.UnitConnected(i) && !s.UnitError(i) {
			out = append(out, i)
		}
	}
	return out
}

func (s *SystemStatus) Snapshot() map[string]any {
	out := s.snapshot()
	out["units_connected"] = fmt.Sprintf("%016x", s.uint("units_connected"))
	out["units_error"] = fmt.Sprintf("%016x", s.uint("units_error"))
	return out
}

// UnitCapability lists the modes and limits a unit supports.
type UnitCapability struct{ view }

func NewUnitCapability(regs []uint16) (*UnitCapability, error) {
	v, err := newView(UnitCapabilityMessage, regs)
	if err != nil {
		return nil, err
	}
	return &UnitCapability{v}, nil
}

func (c *UnitCapability) FanModeCapable() bool   { return c.bit("fan_mode_capable") }
func (c *UnitCapability) CoolModeCapable() bool  { return c.bit("cool_mode_capable") }
func (c *UnitCapability) HeatModeCapable() bool  { return c.bit("heat_mode_capable") }
func (c *UnitCapability) AutoModeCapable() bool  { return c.bit("auto_mode_capable") }
func (c *UnitCapability) DryModeCapable() bool   { return c.bit("dry_mode_capable") }
func (c *UnitCapability) FanDirectCapable() bool { return c.bit("fan_direct_capable") }
func (c *UnitCapability) FanDirectSteps() int    { return int(c.uint("fan_direct_steps")) }
func (c *UnitCapability) FanSpeedCapable() bool  { return c.bit("fan_speed_capable") }
func (c *UnitCapability) CoolSetpointUpper() int { return int(c.sint("cool_upper")) }
func (c *UnitCapability) CoolSetpointLower() int { return int(c.sint("cool_lower")) }
func (c *UnitCapability) HeatSetpointUpper() int { return int(c.sint("heat_upper")) }
func (c *UnitCapability) HeatSetpointLower() int { return int(c.sint("heat_lower")) }

func (c *UnitCapability) FanSpeedSteps() FanSpeedCapability {
	v, _ := ParseFanSpeedCapability(c.uint("fan_speed_steps"))
	return v
}

// OperationModes returns the modes the unit can be set to. Fan mode is
// listed first, matching the order of the capability bits.
func (c *UnitCapability) OperationModes() []OperationMode {
	var modes []OperationMode
	if c.FanModeCapable() {
		modes = append(modes, OperationModeFan)
	}
	if c.CoolModeCapable() {
		modes = append(modes, OperationModeCool)
	}
	if c.HeatModeCapable() {
		modes = append(modes, OperationModeHeat)
	}
	if c.AutoModeCapable() {
		modes = append(modes, OperationModeAuto)
	}
	if c.DryModeCapable() {
		modes = append(modes, OperationModeDry)
	}
	return modes
}

// Supports reports whether the unit can be set to mode.
func (c *UnitCapability) Supports(mode OperationMode) bool {
	return slices.Contains(c.OperationModes(), mode)
}

// SetpointLimits returns the setpoint range for mode. The second result is
// false for modes without a setpoint range.
func (c *UnitCapability) SetpointLimits(mode OperationMode) (lower, upper int, ok bool) {
	switch mode {
	case OperationModeCool, OperationModeDry:
		return c.CoolSetpointLower(), c.CoolSetpointUpper(), true
	case OperationModeHeat:
		return c.HeatSetpointLower(), c.HeatSetpointUpper(), true
	case OperationModeAuto:
		return max(c.CoolSetpointLower(), c.HeatSetpointLower()), min(c.CoolSetpointUpper(), c.HeatSetpointUpper()), true
	}
	return 0, 0, false
}

func (c *UnitCapability) Snapshot() map[string]any {
	out := c.snapshot()
	out["fan_speed_steps"] = c.FanSpeedSteps().String()
	return out
}

// UnitStatus is the observed state of a unit. The setters change the local
// copy only; they record the caller's intent until the next refresh.
type UnitStatus struct{ view }

func NewUnitStatus(regs []uint16) (*UnitStatus, error) {
	v, err := newView(UnitStatusMessage, regs)
	if err != nil {
		return nil, err
	}
	return &UnitStatus{v}, nil
}

func (s *UnitStatus) Power() bool           { return s.bit(FieldPower) }
func (s *UnitStatus) ForcedOff() bool       { return s.bit("forced_off") }
func (s *UnitStatus) NormalOperation() bool { return s.bit("normal_operation") }
func (s *UnitStatus) Fan() bool             { return s.bit("fan") }
func (s *UnitStatus) Heat() bool            { return s.bit("heat") }
func (s *UnitStatus) Thermo() bool          { return s.bit("thermo") }
func (s *UnitStatus) Defrost() bool         { return s.bit("defrost") }
func (s *UnitStatus) FilterWarning() bool   { return s.uint(FieldFilter) != 0 }
func (s *UnitStatus) TempSetpoint() float64 { return s.temperature(FieldTempSetpoint) }
func (s *UnitStatus) TempCurrent() float64  { return s.temperature("temp_current") }

func (s *UnitStatus) FanDirection() FanDirection {
	v, _ := ParseFanDirection(s.uint(FieldFanDirection))
	return v
}

func (s *UnitStatus) FanSpeed() FanSpeed {
	v, _ := ParseFanSpeed(s.uint(FieldFanSpeed))
	return v
}

func (s *UnitStatus) OperatingMode() OperationMode {
	v, _ := ParseOperationMode(s.uint(FieldOperatingMode))
	return v
}

// OperatingCurrent is the mode the unit is running in right now, which
// differs from OperatingMode while in auto.
func (s *UnitStatus) OperatingCurrent() OperationMode {
	v, _ := ParseOperationMode(s.uint("operating_current"))
	return v
}

// Clone returns an independent copy of the status.
func (s *UnitStatus) Clone() *UnitStatus {
	return &UnitStatus{view{msg: s.msg, regs: slices.Clone(s.regs)}}
}

func (s *UnitStatus) SetPower(on bool) { s.setBit(FieldPower, on) }

func (s *UnitStatus) SetFanDirection(d FanDirection) error {
	if _, err := ParseFanDirection(uint64(d)); err != nil {
		return err
	}
	return s.setUint(FieldFanDirection, uint64(d))
}

func (s *UnitStatus) SetFanSpeed(v FanSpeed) error {
	if _, err := ParseFanSpeed(uint64(v)); err != nil {
		return err
	}
	return s.setUint(FieldFanSpeed, uint64(v))
}

func (s *UnitStatus) SetOperatingMode(m OperationMode) error {
	if _, err := ParseOperationMode(uint64(m)); err != nil || m == OperationModeUndefined {
		return &InvalidEnumError{Enum: "operation mode", Value: uint64(m)}
	}
	return s.setUint(FieldOperatingMode, uint64(m))
}

func (s *UnitStatus) SetTempSetpoint(t float64) error {
	return s.setTemperature(FieldTempSetpoint, t)
}

func (s *UnitStatus) Snapshot() map[string]any {
	out := s.snapshot()
	out[FieldFanDirection] = s.FanDirection().String()
	out[FieldFanSpeed] = s.FanSpeed().String()
	out[FieldOperatingMode] = s.OperatingMode().String()
	out["operating_current"] = s.OperatingCurrent().String()
	out[FieldFilter] = s.FilterWarning()
	out[FieldTempSetpoint] = s.TempSetpoint()
	out["temp_current"] = s.TempCurrent()
	return out
}

// UnitError carries the error code a unit reports.
type UnitError struct{ view }

func NewUnitError(regs []uint16) (*UnitError, error) {
	v, err := newView(UnitErrorMessage, regs)
	if err != nil {
		return nil, err
	}
	return &UnitError{v}, nil
}

// Code returns the two character error code, e.g. "U4". It is empty when
// the unit reports no code.
func (e *UnitError) Code() string {
	var b []byte
	for _, name := range []string{"code_0", "code_1"} {
		if c := byte(e.uint(name)); c != 0 {
			b = append(b, c)
		}
	}
	return string(b)
}

func (e *UnitError) SubCode() int    { return int(e.uint("sub_code")) }
func (e *UnitError) HasError() bool  { return e.bit("error") }
func (e *UnitError) Alarm() bool     { return e.bit("alarm") }
func (e *UnitError) Warning() bool   { return e.bit("warning") }
func (e *UnitError) UnitNumber() int { return int(e.uint("unit_number")) }

// Active reports whether any of the error, alarm or warning flags is set.
func (e *UnitError) Active() bool { return e.HasError() || e.Alarm() || e.Warning() }

func (e *UnitError) Snapshot() map[string]any {
	out := e.snapshot()
	delete(out, "code_0")
	delete(out, "code_1")
	out["code"] = e.Code()
	return out
}
