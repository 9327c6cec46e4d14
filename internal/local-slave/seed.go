// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package localslave

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ffutop/d3net-gateway/d3net"
)

// Seed describes the units a fresh simulator starts with.
type Seed struct {
	OtherDevices bool       `yaml:"other_devices"`
	Units        []UnitSeed `yaml:"units"`
}

// UnitSeed is the initial state of one indoor unit.
type UnitSeed struct {
	Index         int            `yaml:"index"`
	Error         bool           `yaml:"error"` // slot flagged in error by the interface
	Power         bool           `yaml:"power"`
	Mode          string         `yaml:"mode"`
	FanSpeed      string         `yaml:"fan_speed"`
	FanDirection  string         `yaml:"fan_direction"`
	Setpoint      float64        `yaml:"setpoint"`
	Temperature   float64        `yaml:"temperature"`
	FilterWarning bool           `yaml:"filter_warning"`
	Capability    CapabilitySeed `yaml:"capability"`
	Fault         *FaultSeed     `yaml:"fault"`
}

// CapabilitySeed lists supported modes and setpoint limits as [lower, upper].
type CapabilitySeed struct {
	Modes             []string `yaml:"modes"`
	FanSpeedSteps     int      `yaml:"fan_speed_steps"`
	FanDirectionSteps int      `yaml:"fan_direction_steps"`
	Cool              [2]int   `yaml:"cool"`
	Heat              [2]int   `yaml:"heat"`
}

// FaultSeed is an error code reported by the unit.
type FaultSeed struct {
	Code       string `yaml:"code"`
	SubCode    int    `yaml:"sub_code"`
	Alarm      bool   `yaml:"alarm"`
	Warning    bool   `yaml:"warning"`
	UnitNumber int    `yaml:"unit_number"`
}

// DefaultSeed is used when no seed file is configured: two units in the
// first group.
func DefaultSeed() *Seed {
	capability := CapabilitySeed{
		Modes:             []string{"fan", "cool", "heat", "auto", "dry"},
		FanSpeedSteps:     3,
		FanDirectionSteps: 5,
		Cool:              [2]int{18, 32},
		Heat:              [2]int{10, 30},
	}
	return &Seed{
		Units: []UnitSeed{
			{Index: 0, Power: true, Mode: "cool", FanSpeed: "medium", FanDirection: "swing", Setpoint: 22, Temperature: 24.5, Capability: capability},
			{Index: 1, Mode: "heat", FanSpeed: "low", FanDirection: "p2", Setpoint: 21.5, Temperature: 19, Capability: capability},
		},
	}
}

// LoadSeed reads a YAML seed file. Unknown keys are rejected.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Initialised reports whether the model already holds a seeded system.
func (s *LocalSlave) Initialised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	regs, err := s.readMessage(d3net.SystemStatusMessage, 0)
	if err != nil {
		return false
	}
	st, err := d3net.NewSystemStatus(regs)
	return err == nil && st.Initialised()
}

// Apply writes the seed into the register tables.
func (s *LocalSlave) Apply(seed *Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	system := make([]uint16, d3net.SystemStatusMessage.Count)
	if err := setField(d3net.SystemStatusMessage, system, "initialised", 1); err != nil {
		return err
	}
	if err := setField(d3net.SystemStatusMessage, system, "other_device_exists", boolInt(seed.OtherDevices)); err != nil {
		return err
	}
	var connected, faulty uint64
	for _, u := range seed.Units {
		if u.Index < 0 || u.Index >= d3net.MaxUnits {
			return fmt.Errorf("unit index %d out of range", u.Index)
		}
		connected |= 1 << u.Index
		if u.Error {
			faulty |= 1 << u.Index
		}
		if err := s.applyUnit(u); err != nil {
			return fmt.Errorf("unit %d: %w", u.Index, err)
		}
	}
	connectedField, _ := d3net.SystemStatusMessage.Field("units_connected")
	if err := d3net.SetUint(system, connectedField.Offset, connectedField.Length, connected); err != nil {
		return err
	}
	errorField, _ := d3net.SystemStatusMessage.Field("units_error")
	if err := d3net.SetUint(system, errorField.Offset, errorField.Length, faulty); err != nil {
		return err
	}
	return s.writeMessage(d3net.SystemStatusMessage, 0, system)
}

func (s *LocalSlave) applyUnit(u UnitSeed) error {
	capability, err := capabilityRegisters(u.Capability)
	if err != nil {
		return err
	}
	if err := s.writeMessage(d3net.UnitCapabilityMessage, u.Index, capability); err != nil {
		return err
	}

	status, err := d3net.NewUnitStatus(make([]uint16, d3net.UnitStatusMessage.Count))
	if err != nil {
		return err
	}
	status.SetPower(u.Power)
	if u.Mode != "" {
		m, err := d3net.OperationModeFromString(u.Mode)
		if err != nil {
			return err
		}
		if err := status.SetOperatingMode(m); err != nil {
			return err
		}
	}
	if u.FanSpeed != "" {
		v, err := d3net.FanSpeedFromString(u.FanSpeed)
		if err != nil {
			return err
		}
		if err := status.SetFanSpeed(v); err != nil {
			return err
		}
	}
	if u.FanDirection != "" {
		d, err := d3net.FanDirectionFromString(u.FanDirection)
		if err != nil {
			return err
		}
		if err := status.SetFanDirection(d); err != nil {
			return err
		}
	}
	if err := status.SetTempSetpoint(u.Setpoint); err != nil {
		return err
	}
	regs := status.Registers()
	values := map[string]int64{
		"normal_operation":  1,
		"fan":               boolInt(u.Power),
		"operating_current": int64(status.OperatingMode()),
		d3net.FieldFilter:   boolInt(u.FilterWarning),
		"temp_current":      int64(math.Round(u.Temperature * 10)),
	}
	for name, v := range values {
		if err := setField(d3net.UnitStatusMessage, regs, name, v); err != nil {
			return err
		}
	}
	if err := s.writeMessage(d3net.UnitStatusMessage, u.Index, regs); err != nil {
		return err
	}

	// The command registers start out agreeing with the unit.
	status, _ = d3net.NewUnitStatus(regs)
	holding, err := d3net.NewUnitHolding(u.Index, make([]uint16, d3net.UnitHoldingMessage.Count))
	if err != nil {
		return err
	}
	if err := holding.Sync(status, d3net.SyncFields...); err != nil {
		return err
	}
	if err := s.writeMessage(d3net.UnitHoldingMessage, u.Index, holding.Registers()); err != nil {
		return err
	}

	faults := make([]uint16, d3net.UnitErrorMessage.Count)
	if f := u.Fault; f != nil {
		if len(f.Code) > 2 {
			return fmt.Errorf("error code %q longer than two characters", f.Code)
		}
		code := []byte(f.Code + "\x00\x00")
		values := map[string]int64{
			"code_0":      int64(code[0]),
			"code_1":      int64(code[1]),
			"sub_code":    int64(f.SubCode),
			"error":       1,
			"alarm":       boolInt(f.Alarm),
			"warning":     boolInt(f.Warning),
			"unit_number": int64(f.UnitNumber),
		}
		for name, v := range values {
			if err := setField(d3net.UnitErrorMessage, faults, name, v); err != nil {
				return err
			}
		}
	}
	return s.writeMessage(d3net.UnitErrorMessage, u.Index, faults)
}

func capabilityRegisters(c CapabilitySeed) ([]uint16, error) {
	regs := make([]uint16, d3net.UnitCapabilityMessage.Count)
	values := map[string]int64{
		"fan_direct_steps":   int64(c.FanDirectionSteps),
		"fan_direct_capable": boolInt(c.FanDirectionSteps > 0),
		"fan_speed_steps":    int64(c.FanSpeedSteps),
		"fan_speed_capable":  boolInt(c.FanSpeedSteps > 1),
		"cool_lower":         int64(c.Cool[0]),
		"cool_upper":         int64(c.Cool[1]),
		"heat_lower":         int64(c.Heat[0]),
		"heat_upper":         int64(c.Heat[1]),
	}
	for _, name := range c.Modes {
		m, err := d3net.OperationModeFromString(name)
		if err != nil {
			return nil, err
		}
		field := map[d3net.OperationMode]string{
			d3net.OperationModeFan:  "fan_mode_capable",
			d3net.OperationModeCool: "cool_mode_capable",
			d3net.OperationModeHeat: "heat_mode_capable",
			d3net.OperationModeAuto: "auto_mode_capable",
			d3net.OperationModeDry:  "dry_mode_capable",
		}[m]
		if field == "" {
			return nil, fmt.Errorf("mode %s has no capability flag", m)
		}
		values[field] = 1
	}
	for name, v := range values {
		if err := setField(d3net.UnitCapabilityMessage, regs, name, v); err != nil {
			return nil, err
		}
	}
	return regs, nil
}
