// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ffutop/d3net-gateway/d3net"
	"github.com/ffutop/d3net-gateway/internal/gateway"
)

// command is a one-shot change requested on the command line.
type command struct {
	flags *pflag.FlagSet

	unit         string
	power        string
	mode         string
	fanSpeed     string
	fanDirection string
	setpoint     float64
	filterReset  bool
}

func registerCommandFlags(fs *pflag.FlagSet) *command {
	c := &command{flags: fs}
	fs.StringVarP(&c.unit, "unit", "u", "", "Unit to change, by index (0-63) or group address (1-00).")
	fs.StringVar(&c.power, "power", "", "Switch the unit on or off.")
	fs.StringVar(&c.mode, "mode", "", "Operation mode (fan, heat, cool, auto, vent, dry).")
	fs.StringVar(&c.fanSpeed, "fan-speed", "", "Fan speed (auto, low, low-medium, medium, high-medium, high).")
	fs.StringVar(&c.fanDirection, "fan-direction", "", "Fan direction (p0-p4, stop, swing).")
	fs.Float64Var(&c.setpoint, "setpoint", 0, "Temperature setpoint in degrees Celsius.")
	fs.BoolVar(&c.filterReset, "filter-reset", false, "Reset the filter warning.")
	return c
}

func (c *command) requested() bool {
	return c.unit != ""
}

// edit returns the status change described by the flags.
func (c *command) edit(capability *d3net.UnitCapability) (func(*d3net.UnitStatus) error, error) {
	var edits []func(*d3net.UnitStatus) error

	switch c.power {
	case "":
	case "on", "off":
		on := c.power == "on"
		edits = append(edits, func(st *d3net.UnitStatus) error { st.SetPower(on); return nil })
	default:
		return nil, fmt.Errorf("--power: want on or off, got %q", c.power)
	}
	if c.mode != "" {
		m, err := d3net.OperationModeFromString(c.mode)
		if err != nil {
			return nil, err
		}
		if !capability.Supports(m) {
			return nil, fmt.Errorf("--mode: unit does not support %s", m)
		}
		edits = append(edits, func(st *d3net.UnitStatus) error { return st.SetOperatingMode(m) })
	}
	if c.fanSpeed != "" {
		v, err := d3net.FanSpeedFromString(c.fanSpeed)
		if err != nil {
			return nil, err
		}
		edits = append(edits, func(st *d3net.UnitStatus) error { return st.SetFanSpeed(v) })
	}
	if c.fanDirection != "" {
		d, err := d3net.FanDirectionFromString(c.fanDirection)
		if err != nil {
			return nil, err
		}
		edits = append(edits, func(st *d3net.UnitStatus) error { return st.SetFanDirection(d) })
	}
	if c.flags.Changed("setpoint") {
		setpoint := c.setpoint
		edits = append(edits, func(st *d3net.UnitStatus) error {
			if lower, upper, ok := capability.SetpointLimits(st.OperatingMode()); ok {
				if setpoint < float64(lower) || setpoint > float64(upper) {
					return fmt.Errorf("--setpoint: %.1f outside %d..%d for %s", setpoint, lower, upper, st.OperatingMode())
				}
			}
			return st.SetTempSetpoint(setpoint)
		})
	}

	return func(st *d3net.UnitStatus) error {
		for _, edit := range edits {
			if err := edit(st); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (c *command) run(ctx context.Context, units []*gateway.Unit) error {
	u, err := findUnit(units, c.unit)
	if err != nil {
		return err
	}
	edit, err := c.edit(u.Capability())
	if err != nil {
		return err
	}
	// Reject the whole command before touching the unit.
	if err := edit(u.Status().Clone()); err != nil {
		return err
	}

	if err := u.PrepareWrite(ctx); err != nil {
		return err
	}
	if c.filterReset {
		if err := u.ResetFilter(); err != nil {
			return err
		}
	}
	if err := edit(u.Status()); err != nil {
		return err
	}
	if err := u.CommitWrite(ctx); err != nil {
		return err
	}
	slog.Info("Unit updated", "unit", u.ID(), "status", u.Status().Snapshot())
	return nil
}

func findUnit(units []*gateway.Unit, ref string) (*gateway.Unit, error) {
	index, err := strconv.Atoi(ref)
	for _, u := range units {
		if u.ID() == ref || (err == nil && u.Index() == index) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("unit %q not found", ref)
}

type unitDump struct {
	ID         string         `yaml:"id"`
	Index      int            `yaml:"index"`
	Capability map[string]any `yaml:"capability"`
	Status     map[string]any `yaml:"status"`
	Errors     map[string]any `yaml:"errors,omitempty"`
}

// dumpUnits writes every unit as a YAML document.
func dumpUnits(ctx context.Context, w io.Writer, units []*gateway.Unit) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, u := range units {
		d := unitDump{
			ID:         u.ID(),
			Index:      u.Index(),
			Capability: u.Capability().Snapshot(),
			Status:     u.Status().Snapshot(),
		}
		if e, err := u.Errors(ctx); err != nil {
			slog.Warn("Failed to read unit errors", "unit", u.ID(), "err", err)
		} else if e.Active() {
			d.Errors = e.Snapshot()
		}
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("dump unit %s: %w", u.ID(), err)
		}
	}
	return enc.Close()
}
