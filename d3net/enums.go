// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package d3net

import (
	"fmt"
	"strings"
)

// OperationMode is the unit operating mode.
type OperationMode uint8

const (
	OperationModeFan       OperationMode = 0
	OperationModeHeat      OperationMode = 1
	OperationModeCool      OperationMode = 2
	OperationModeAuto      OperationMode = 3
	OperationModeVent      OperationMode = 4
	OperationModeUndefined OperationMode = 5
	OperationModeSlave     OperationMode = 6
	OperationModeDry       OperationMode = 7
)

var operationModeNames = map[OperationMode]string{
	OperationModeFan:       "fan",
	OperationModeHeat:      "heat",
	OperationModeCool:      "cool",
	OperationModeAuto:      "auto",
	OperationModeVent:      "vent",
	OperationModeUndefined: "undefined",
	OperationModeSlave:     "slave",
	OperationModeDry:       "dry",
}

func (m OperationMode) String() string {
	if s, ok := operationModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("OperationMode(%d)", uint8(m))
}

// ParseOperationMode resolves a raw register value.
func ParseOperationMode(raw uint64) (OperationMode, error) {
	if _, ok := operationModeNames[OperationMode(raw)]; !ok || raw > 0xFF {
		return OperationModeUndefined, &InvalidEnumError{Enum: "operation mode", Value: raw}
	}
	return OperationMode(raw), nil
}

// FanSpeed is the unit fan speed setting.
type FanSpeed uint8

const (
	FanSpeedAuto       FanSpeed = 0
	FanSpeedLow        FanSpeed = 1
	FanSpeedLowMedium  FanSpeed = 2
	FanSpeedMedium     FanSpeed = 3
	FanSpeedHighMedium FanSpeed = 4
	FanSpeedHigh       FanSpeed = 5

	// FanSpeedUndefined is returned for a raw value with no mapping.
	FanSpeedUndefined FanSpeed = 0xFF
)

var fanSpeedNames = map[FanSpeed]string{
	FanSpeedAuto:       "auto",
	FanSpeedLow:        "low",
	FanSpeedLowMedium:  "low-medium",
	FanSpeedMedium:     "medium",
	FanSpeedHighMedium: "high-medium",
	FanSpeedHigh:       "high",
}

func (s FanSpeed) String() string {
	if n, ok := fanSpeedNames[s]; ok {
		return n
	}
	if s == FanSpeedUndefined {
		return "undefined"
	}
	return fmt.Sprintf("FanSpeed(%d)", uint8(s))
}

// ParseFanSpeed resolves a raw register value.
func ParseFanSpeed(raw uint64) (FanSpeed, error) {
	if _, ok := fanSpeedNames[FanSpeed(raw)]; !ok || raw > 0xFF {
		return FanSpeedUndefined, &InvalidEnumError{Enum: "fan speed", Value: raw}
	}
	return FanSpeed(raw), nil
}

// FanSpeedCapability is the number of fan speed steps a unit supports.
type FanSpeedCapability uint8

const (
	FanSpeedFixed FanSpeedCapability = 1
	FanSpeedStep2 FanSpeedCapability = 2
	FanSpeedStep3 FanSpeedCapability = 3
	FanSpeedStep4 FanSpeedCapability = 4
	FanSpeedStep5 FanSpeedCapability = 5

	FanSpeedCapabilityUndefined FanSpeedCapability = 0xFF
)

func (c FanSpeedCapability) String() string {
	switch {
	case c == FanSpeedFixed:
		return "fixed"
	case c >= FanSpeedStep2 && c <= FanSpeedStep5:
		return fmt.Sprintf("step%d", uint8(c))
	case c == FanSpeedCapabilityUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("FanSpeedCapability(%d)", uint8(c))
	}
}

// ParseFanSpeedCapability resolves a raw register value.
func ParseFanSpeedCapability(raw uint64) (FanSpeedCapability, error) {
	if raw < uint64(FanSpeedFixed) || raw > uint64(FanSpeedStep5) {
		return FanSpeedCapabilityUndefined, &InvalidEnumError{Enum: "fan speed capability", Value: raw}
	}
	return FanSpeedCapability(raw), nil
}

// FanDirection is the louvre position.
type FanDirection uint8

const (
	FanDirectionP0    FanDirection = 0
	FanDirectionP1    FanDirection = 1
	FanDirectionP2    FanDirection = 2
	FanDirectionP3    FanDirection = 3
	FanDirectionP4    FanDirection = 4
	FanDirectionStop  FanDirection = 6
	FanDirectionSwing FanDirection = 7

	FanDirectionUndefined FanDirection = 0xFF
)

var fanDirectionNames = map[FanDirection]string{
	FanDirectionP0:    "p0",
	FanDirectionP1:    "p1",
	FanDirectionP2:    "p2",
	FanDirectionP3:    "p3",
	FanDirectionP4:    "p4",
	FanDirectionStop:  "stop",
	FanDirectionSwing: "swing",
}

func (d FanDirection) String() string {
	if n, ok := fanDirectionNames[d]; ok {
		return n
	}
	if d == FanDirectionUndefined {
		return "undefined"
	}
	return fmt.Sprintf("FanDirection(%d)", uint8(d))
}

// ParseFanDirection resolves a raw register value.
func ParseFanDirection(raw uint64) (FanDirection, error) {
	if _, ok := fanDirectionNames[FanDirection(raw)]; !ok || raw > 0xFF {
		return FanDirectionUndefined, &InvalidEnumError{Enum: "fan direction", Value: raw}
	}
	return FanDirection(raw), nil
}

// The lookups below accept the names printed by String, case-insensitively.
// They serve command line flags and simulator seed files.

// OperationModeFromString parses a mode name such as "cool".
func OperationModeFromString(s string) (OperationMode, error) {
	for m, n := range operationModeNames {
		if strings.EqualFold(n, s) && m != OperationModeUndefined {
			return m, nil
		}
	}
	return OperationModeUndefined, fmt.Errorf("d3net: unknown operation mode %q", s)
}

// FanSpeedFromString parses a fan speed name such as "medium".
func FanSpeedFromString(s string) (FanSpeed, error) {
	for v, n := range fanSpeedNames {
		if strings.EqualFold(n, s) {
			return v, nil
		}
	}
	return FanSpeedUndefined, fmt.Errorf("d3net: unknown fan speed %q", s)
}

// FanDirectionFromString parses a fan direction name such as "swing".
func FanDirectionFromString(s string) (FanDirection, error) {
	for v, n := range fanDirectionNames {
		if strings.EqualFold(n, s) {
			return v, nil
		}
	}
	return FanDirectionUndefined, fmt.Errorf("d3net: unknown fan direction %q", s)
}
