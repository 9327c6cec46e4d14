// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package d3net

import (
	"errors"
	"slices"
	"testing"
)

func TestNewViewSize(t *testing.T) {
	_, err := NewUnitStatus(make([]uint16, 5))
	var se *BufferSizeError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *BufferSizeError", err)
	}
	if se.Want != 6 || se.Got != 5 {
		t.Errorf("got %+v", se)
	}
}

func TestViewCopiesBuffer(t *testing.T) {
	regs := make([]uint16, 6)
	s, err := NewUnitStatus(regs)
	if err != nil {
		t.Fatal(err)
	}
	regs[0] = 1
	if s.Power() {
		t.Error("view aliases the caller's buffer")
	}
}

func TestUnitStatusClone(t *testing.T) {
	s, err := NewUnitStatus(make([]uint16, 6))
	if err != nil {
		t.Fatal(err)
	}
	c := s.Clone()
	c.SetPower(true)
	if err := c.SetOperatingMode(OperationModeHeat); err != nil {
		t.Fatal(err)
	}
	if s.Power() || s.OperatingMode() == OperationModeHeat {
		t.Errorf("clone edit leaked into original: %v", s.Snapshot())
	}
	if !c.Power() || c.OperatingMode() != OperationModeHeat {
		t.Errorf("clone = %v", c.Snapshot())
	}
}

func TestSystemStatus(t *testing.T) {
	regs := make([]uint16, 9)
	regs[0] = 0b11
	regs[1] = 0b1011 // units 0, 1 and 3 connected
	regs[5] = 0b0010 // unit 1 in error
	regs[4] = 0x8000 // unit 63 connected
	s, err := NewSystemStatus(regs)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Initialised() || !s.OtherDeviceExists() {
		t.Error("expected initialised and other device flags")
	}
	if !s.UnitConnected(63) {
		t.Error("unit 63 should be connected")
	}
	if s.UnitConnected(64) || s.UnitConnected(-1) {
		t.Error("out of range slots must report false")
	}
	if got, want := s.Available(), []int{0, 3, 63}; !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
}

func TestUnitCapability(t *testing.T) {
	// word0: all five modes, 3 direction steps, direction capable,
	// step3 fan speed, fan speed capable.
	regs := []uint16{
		0b1_011_1_011_000_11111,
		uint16(10)<<8 | 32, // cool lower 10, upper 32
		uint16(16)<<8 | 30, // heat lower 16, upper 30
	}
	c, err := NewUnitCapability(regs)
	if err != nil {
		t.Fatal(err)
	}
	if !c.FanModeCapable() || !c.CoolModeCapable() || !c.HeatModeCapable() || !c.AutoModeCapable() || !c.DryModeCapable() {
		t.Error("expected every mode to be capable")
	}
	if !c.FanDirectCapable() || c.FanDirectSteps() != 3 {
		t.Errorf("fan direction: capable=%v steps=%d", c.FanDirectCapable(), c.FanDirectSteps())
	}
	if !c.FanSpeedCapable() || c.FanSpeedSteps() != FanSpeedStep3 {
		t.Errorf("fan speed: capable=%v steps=%v", c.FanSpeedCapable(), c.FanSpeedSteps())
	}
	if c.CoolSetpointUpper() != 32 || c.CoolSetpointLower() != 10 {
		t.Errorf("cool limits %d..%d", c.CoolSetpointLower(), c.CoolSetpointUpper())
	}
	if lo, hi, ok := c.SetpointLimits(OperationModeAuto); !ok || lo != 16 || hi != 30 {
		t.Errorf("auto limits %d..%d %v", lo, hi, ok)
	}
	want := []OperationMode{OperationModeFan, OperationModeCool, OperationModeHeat, OperationModeAuto, OperationModeDry}
	if got := c.OperationModes(); !slices.Equal(got, want) {
		t.Errorf("OperationModes() = %v, want %v", got, want)
	}
}

func TestUnitCapabilityModeBits(t *testing.T) {
	c, err := NewUnitCapability([]uint16{0b0000000000011111, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !c.FanModeCapable() || !c.CoolModeCapable() || !c.HeatModeCapable() || !c.AutoModeCapable() || !c.DryModeCapable() {
		t.Error("expected fan, cool, heat, auto and dry capable")
	}
	if c.FanSpeedSteps() != FanSpeedCapabilityUndefined {
		t.Errorf("steps = %v, want undefined", c.FanSpeedSteps())
	}
}

func TestUnitStatusDecode(t *testing.T) {
	regs := []uint16{0, 0, 0x00D7, 0, 0x00C8, 0}
	// word0: power(0), normal(3), fan(5), heat(6), thermo(7),
	// direction swing(8-10), fan speed high(12-14)
	regs[0] = 1 | 1<<3 | 1<<5 | 1<<6 | 1<<7 | 7<<8 | 5<<12
	// word1: mode cool, filter warning, operating heat, defrost
	regs[1] = 2 | 1<<4 | 1<<8 | 1<<13
	s, err := NewUnitStatus(regs)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Power() || s.ForcedOff() || !s.NormalOperation() || !s.Fan() || !s.Heat() || !s.Thermo() || !s.Defrost() {
		t.Errorf("flags: %v", s.Snapshot())
	}
	if s.FanDirection() != FanDirectionSwing {
		t.Errorf("FanDirection = %v", s.FanDirection())
	}
	if s.FanSpeed() != FanSpeedHigh {
		t.Errorf("FanSpeed = %v", s.FanSpeed())
	}
	if s.OperatingMode() != OperationModeCool || s.OperatingCurrent() != OperationModeHeat {
		t.Errorf("modes = %v / %v", s.OperatingMode(), s.OperatingCurrent())
	}
	if !s.FilterWarning() {
		t.Error("expected filter warning")
	}
	if s.TempSetpoint() != 21.5 {
		t.Errorf("TempSetpoint = %v, want 21.5", s.TempSetpoint())
	}
	if s.TempCurrent() != 20.0 {
		t.Errorf("TempCurrent = %v, want 20", s.TempCurrent())
	}
}

func TestUnitStatusSetpoint(t *testing.T) {
	s, err := NewUnitStatus(make([]uint16, 6))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetTempSetpoint(18.0); err != nil {
		t.Fatal(err)
	}
	if got := s.Registers()[2]; got != 0x00B4 {
		t.Errorf("setpoint word = %#04x, want 0x00B4", got)
	}
	if err := s.SetTempSetpoint(21.5); err != nil {
		t.Fatal(err)
	}
	if s.TempSetpoint() != 21.5 {
		t.Errorf("TempSetpoint = %v, want 21.5", s.TempSetpoint())
	}
	if err := s.SetTempSetpoint(-5.5); err != nil {
		t.Fatal(err)
	}
	if s.TempSetpoint() != -5.5 {
		t.Errorf("TempSetpoint = %v, want -5.5", s.TempSetpoint())
	}
}

func TestUnitStatusUndefinedEnums(t *testing.T) {
	regs := make([]uint16, 6)
	regs[0] = 5<<8 | 6<<12 // direction 5 and speed 6 are unmapped
	regs[1] = 5            // mode undefined
	s, err := NewUnitStatus(regs)
	if err != nil {
		t.Fatal(err)
	}
	if s.FanDirection() != FanDirectionUndefined {
		t.Errorf("FanDirection = %v", s.FanDirection())
	}
	if s.FanSpeed() != FanSpeedUndefined {
		t.Errorf("FanSpeed = %v", s.FanSpeed())
	}
	if s.OperatingMode() != OperationModeUndefined {
		t.Errorf("OperatingMode = %v", s.OperatingMode())
	}
	if err := s.SetOperatingMode(OperationModeUndefined); err == nil {
		t.Error("setting the undefined mode should fail")
	}
	if err := s.SetFanSpeed(FanSpeedUndefined); err == nil {
		t.Error("setting the undefined fan speed should fail")
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseFanDirection(5); err == nil {
		t.Error("direction 5 should be invalid")
	}
	var ie *InvalidEnumError
	if _, err := ParseFanSpeed(7); !errors.As(err, &ie) || ie.Value != 7 {
		t.Errorf("got %v", err)
	}
	if m, err := ParseOperationMode(7); err != nil || m != OperationModeDry {
		t.Errorf("got %v, %v", m, err)
	}
	if m, err := OperationModeFromString("COOL"); err != nil || m != OperationModeCool {
		t.Errorf("got %v, %v", m, err)
	}
	if _, err := OperationModeFromString("undefined"); err == nil {
		t.Error("undefined must not parse")
	}
	if v, err := FanSpeedFromString("low-medium"); err != nil || v != FanSpeedLowMedium {
		t.Errorf("got %v, %v", v, err)
	}
}

func TestUnitError(t *testing.T) {
	regs := []uint16{
		uint16('4')<<8 | uint16('U'),
		3 | 1<<8 | 1<<10 | 2<<12,
	}
	e, err := NewUnitError(regs)
	if err != nil {
		t.Fatal(err)
	}
	if e.Code() != "U4" {
		t.Errorf("Code = %q", e.Code())
	}
	if e.SubCode() != 3 || !e.HasError() || e.Alarm() || !e.Warning() || e.UnitNumber() != 2 {
		t.Errorf("got %v", e.Snapshot())
	}
	if !e.Active() {
		t.Error("expected active")
	}

	none, _ := NewUnitError(make([]uint16, 2))
	if none.Code() != "" || none.Active() {
		t.Errorf("got %v", none.Snapshot())
	}
}
