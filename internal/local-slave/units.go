// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package localslave

import (
	"fmt"

	"github.com/ffutop/d3net-gateway/d3net"
	"github.com/ffutop/d3net-gateway/internal/local-slave/model"
)

// holdingUnits returns the units whose holding window overlaps the written range.
func holdingUnits(address, quantity uint16) []int {
	msg := d3net.UnitHoldingMessage
	start, end := int(address), int(address)+int(quantity)
	var out []int
	for i := 0; i < d3net.MaxUnits; i++ {
		a := int(msg.AddressOf(i))
		if a < end && start < a+int(msg.Count) {
			out = append(out, i)
		}
	}
	return out
}

func (s *LocalSlave) readMessage(msg *d3net.Message, index int) ([]uint16, error) {
	t := model.TableInputRegisters
	if msg.Type == d3net.Holding {
		t = model.TableHoldingRegisters
	}
	return s.model.Read(t, msg.AddressOf(index), msg.Count)
}

func (s *LocalSlave) writeMessage(msg *d3net.Message, index int, regs []uint16) error {
	t := model.TableInputRegisters
	if msg.Type == d3net.Holding {
		t = model.TableHoldingRegisters
	}
	address := msg.AddressOf(index)
	if err := s.model.Write(t, address, regs); err != nil {
		return err
	}
	s.storage.OnWrite(t, address, msg.Count)
	return nil
}

// applyHolding makes unit index follow its command registers. Fan commands
// only take effect while the fan control group carries the enable code, and
// a filter reset pulse clears the filter warning.
func (s *LocalSlave) applyHolding(index int) error {
	regs, err := s.readMessage(d3net.UnitHoldingMessage, index)
	if err != nil {
		return err
	}
	h, err := d3net.NewUnitHolding(index, regs)
	if err != nil {
		return err
	}
	regs, err = s.readMessage(d3net.UnitStatusMessage, index)
	if err != nil {
		return err
	}
	st, err := d3net.NewUnitStatus(regs)
	if err != nil {
		return err
	}

	st.SetPower(h.Power())
	if m := h.OperatingMode(); m != d3net.OperationModeUndefined {
		if err := st.SetOperatingMode(m); err != nil {
			return err
		}
	}
	if h.FanControl() == d3net.FanControlEnabled {
		if d := h.FanDirection(); d != d3net.FanDirectionUndefined {
			if err := st.SetFanDirection(d); err != nil {
				return err
			}
		}
		if v := h.FanSpeed(); v != d3net.FanSpeedUndefined {
			if err := st.SetFanSpeed(v); err != nil {
				return err
			}
		}
	}
	if err := st.SetTempSetpoint(h.TempSetpoint()); err != nil {
		return err
	}

	out := st.Registers()
	if h.FilterReset() {
		if err := setField(d3net.UnitStatusMessage, out, d3net.FieldFilter, 0); err != nil {
			return err
		}
	}
	return s.writeMessage(d3net.UnitStatusMessage, index, out)
}

func setField(msg *d3net.Message, regs []uint16, name string, v int64) error {
	f, ok := msg.Field(name)
	if !ok {
		return fmt.Errorf("%s has no field %s", msg.Name, name)
	}
	return f.SetInt(regs, v)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
