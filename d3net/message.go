// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package d3net

// RegisterType selects the Modbus register table a message lives in.
type RegisterType uint8

const (
	Input RegisterType = iota
	Holding
)

func (t RegisterType) String() string {
	if t == Holding {
		return "holding"
	}
	return "input"
}

// Message describes a fixed window of registers. Message i of a kind starts
// at Address + i*Count.
type Message struct {
	Name    string
	Type    RegisterType
	Address uint16
	Count   uint16
	Fields  []Field
}

// AddressOf returns the first register of the message for unit index.
func (m *Message) AddressOf(index int) uint16 {
	return m.Address + uint16(index)*m.Count
}

// Field looks up a field by name.
func (m *Message) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (m *Message) mustField(name string) Field {
	f, ok := m.Field(name)
	if !ok {
		panic("d3net: " + m.Name + " has no field " + name)
	}
	return f
}

// MaxUnits is the number of unit slots addressable on a DIII-Net bus.
const MaxUnits = 64

// Field names shared between UnitStatus and UnitHolding.
const (
	FieldPower         = "power"
	FieldFanDirection  = "fan_direct"
	FieldFanSpeed      = "fan_speed"
	FieldOperatingMode = "operating_mode"
	FieldTempSetpoint  = "temp_setpoint"
	FieldFilter        = "filter"
	FieldFanControl    = "fan_control"
)

var SystemStatusMessage = &Message{
	Name:    "system_status",
	Type:    Input,
	Address: 0,
	Count:   9,
	Fields: []Field{
		bit("initialised", 0),
		bit("other_device_exists", 1),
		uintField("units_connected", 16, 64),
		uintField("units_error", 80, 64),
	},
}

var UnitCapabilityMessage = &Message{
	Name:    "unit_capability",
	Type:    Input,
	Address: 1000,
	Count:   3,
	Fields: []Field{
		bit("fan_mode_capable", 0),
		bit("cool_mode_capable", 1),
		bit("heat_mode_capable", 2),
		bit("auto_mode_capable", 3),
		bit("dry_mode_capable", 4),
		uintField("fan_direct_steps", 8, 3),
		bit("fan_direct_capable", 11),
		enumField("fan_speed_steps", 12, 3),
		bit("fan_speed_capable", 15),
		sintField("cool_upper", 16, 8),
		sintField("cool_lower", 24, 8),
		sintField("heat_upper", 32, 8),
		sintField("heat_lower", 40, 8),
	},
}

var UnitStatusMessage = &Message{
	Name:    "unit_status",
	Type:    Input,
	Address: 2000,
	Count:   6,
	Fields: []Field{
		bit(FieldPower, 0),
		bit("forced_off", 2),
		bit("normal_operation", 3),
		bit("fan", 5),
		bit("heat", 6),
		bit("thermo", 7),
		enumField(FieldFanDirection, 8, 3),
		enumField(FieldFanSpeed, 12, 3),
		enumField(FieldOperatingMode, 16, 4),
		uintField(FieldFilter, 20, 4),
		enumField("operating_current", 24, 4),
		bit("defrost", 29),
		sintField(FieldTempSetpoint, 32, 16),
		sintField("temp_current", 64, 16),
	},
}

var UnitErrorMessage = &Message{
	Name:    "unit_error",
	Type:    Input,
	Address: 3600,
	Count:   2,
	Fields: []Field{
		uintField("code_0", 0, 8),
		uintField("code_1", 8, 8),
		uintField("sub_code", 16, 6),
		bit("error", 24),
		bit("alarm", 25),
		bit("warning", 26),
		uintField("unit_number", 28, 4),
	},
}

var UnitHoldingMessage = &Message{
	Name:    "unit_holding",
	Type:    Holding,
	Address: 2000,
	Count:   3,
	Fields: []Field{
		bit(FieldPower, 0),
		uintField(FieldFanControl, 4, 4),
		enumField(FieldFanDirection, 8, 3),
		enumField(FieldFanSpeed, 12, 3),
		enumField(FieldOperatingMode, 16, 4),
		uintField(FieldFilter, 20, 4),
		sintField(FieldTempSetpoint, 32, 16),
	},
}

// Messages lists every message kind.
var Messages = []*Message{
	SystemStatusMessage,
	UnitCapabilityMessage,
	UnitStatusMessage,
	UnitErrorMessage,
	UnitHoldingMessage,
}
