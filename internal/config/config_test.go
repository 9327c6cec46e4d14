// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
downstream:
  tcp:
    address: 192.168.1.50:502
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	g := cfg.Gateway
	if g.SlaveID != 1 || g.Throttle != 25*time.Millisecond || g.CacheWrite != 35*time.Second || g.CacheError != 10*time.Second {
		t.Errorf("unexpected gateway defaults %+v", g)
	}
	if g.ForceFanControl {
		t.Error("force_fan_control should default to false")
	}
	if cfg.Downstream.Type != "tcp" || cfg.Downstream.Driver != "native" || cfg.Downstream.Tcp.Timeout != 5*time.Second {
		t.Errorf("unexpected downstream defaults %+v", cfg.Downstream)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestLoadConfig_Serial(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
gateway:
  slave_id: 3
  throttle: 50ms
  force_fan_control: true
downstream:
  type: RTU
  serial:
    device: /dev/ttyUSB0
    baud_rate: 9600
    parity: e
    rs485: true
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	s := cfg.Downstream.Serial
	if cfg.Downstream.Type != "rtu" || s.Parity != "E" || !s.RS485 {
		t.Errorf("unexpected serial config %+v", s)
	}
	if s.Timeout != 500*time.Millisecond || s.RqstPause != 100*time.Millisecond {
		t.Errorf("serial fixups not applied: timeout=%v pause=%v", s.Timeout, s.RqstPause)
	}
	if cfg.Gateway.SlaveID != 3 || cfg.Gateway.Throttle != 50*time.Millisecond || !cfg.Gateway.ForceFanControl {
		t.Errorf("unexpected gateway config %+v", cfg.Gateway)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Gateway: GatewayConfig{Throttle: 25 * time.Millisecond, CacheWrite: 35 * time.Second, CacheError: 10 * time.Second, PollInterval: time.Second},
			Downstream: DownstreamConfig{
				Type: "local",
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown type", func(c *Config) { c.Downstream.Type = "udp" }, "downstream.type"},
		{"tcp without address", func(c *Config) { c.Downstream.Type = "tcp" }, "downstream.tcp.address"},
		{"rtu without device", func(c *Config) { c.Downstream.Type = "rtu"; c.Downstream.Serial.BaudRate = 9600 }, "downstream.serial.device"},
		{"bad parity", func(c *Config) {
			c.Downstream.Type = "rtu"
			c.Downstream.Serial = SerialConfig{Device: "/dev/ttyS0", BaudRate: 9600, Parity: "X"}
		}, "parity"},
		{"mmap without path", func(c *Config) { c.Downstream.Local.Persistence.Type = "mmap" }, "persistence.path"},
		{"goburrow over local", func(c *Config) { c.Downstream.Driver = "goburrow" }, "downstream.driver"},
		{"zero cache window", func(c *Config) { c.Gateway.CacheWrite = 0 }, "gateway.cache_write"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}
