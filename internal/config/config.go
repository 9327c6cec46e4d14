// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Downstream DownstreamConfig `mapstructure:"downstream"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// GatewayConfig tunes the unit synchronization gateway.
type GatewayConfig struct {
	Name    string `mapstructure:"name"`
	SlaveID byte   `mapstructure:"slave_id"`

	// Throttle is the minimum spacing between two bus transactions.
	Throttle time.Duration `mapstructure:"throttle"`
	// CacheWrite is how long after a holding read or write the cached
	// holding image is trusted and status refreshes are skipped.
	CacheWrite time.Duration `mapstructure:"cache_write"`
	// CacheError is how long a unit's error registers are cached.
	CacheError time.Duration `mapstructure:"cache_error"`
	// ForceFanControl writes the fan control enable code on every commit,
	// not only when fan speed or direction change.
	ForceFanControl bool          `mapstructure:"force_fan_control"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// DownstreamConfig defines the bus the gateway talks to
type DownstreamConfig struct {
	Type   string       `mapstructure:"type"`   // "tcp", "rtu", "rtu-over-tcp", "local"
	Driver string       `mapstructure:"driver"` // "native" or "goburrow"
	Tcp    TcpConfig    `mapstructure:"tcp"`    // Used if Type is "tcp" or "rtu-over-tcp"
	Serial SerialConfig `mapstructure:"serial"` // Used if Type is "rtu"
	Local  LocalConfig  `mapstructure:"local"`  // Used if Type is "local"
}

// LocalConfig defines settings for the in-process D3Net simulator
type LocalConfig struct {
	Seed        string            `mapstructure:"seed"` // YAML seed file, empty for the built-in units
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address string        `mapstructure:"address"` // e.g. "192.168.1.100:502"
	Timeout time.Duration `mapstructure:"timeout"`
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device    string        `mapstructure:"device"`
	BaudRate  int           `mapstructure:"baud_rate"`
	DataBits  int           `mapstructure:"data_bits"`
	Parity    string        `mapstructure:"parity"`
	StopBits  int           `mapstructure:"stop_bits"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RqstPause time.Duration `mapstructure:"rqst_pause"` // Pause between requests

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // e.g. ":9108", empty disables it
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("gateway.name", "d3net")
	v.SetDefault("gateway.slave_id", 1)
	v.SetDefault("gateway.throttle", 25*time.Millisecond)
	v.SetDefault("gateway.cache_write", 35*time.Second)
	v.SetDefault("gateway.cache_error", 10*time.Second)
	v.SetDefault("gateway.force_fan_control", false)
	v.SetDefault("gateway.poll_interval", 10*time.Second)
	v.SetDefault("downstream.type", "tcp")
	v.SetDefault("downstream.driver", "native")
	v.SetDefault("downstream.tcp.timeout", 5*time.Second)
	v.SetDefault("downstream.local.persistence.type", "memory")
}

// LoadConfig loads configuration from file
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/d3netgw/")
		v.AddConfigPath("$HOME/.d3netgw")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Downstream.Type = strings.ToLower(config.Downstream.Type)
	config.Downstream.Driver = strings.ToLower(config.Downstream.Driver)
	fixupSerial(&config.Downstream.Serial)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
	if s.RqstPause == 0 {
		s.RqstPause = 100 * time.Millisecond
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	g := c.Gateway
	check(g.Throttle >= 0, "gateway.throttle: must not be negative")
	check(g.CacheWrite > 0, "gateway.cache_write: must be positive")
	check(g.CacheError > 0, "gateway.cache_error: must be positive")
	check(g.PollInterval > 0, "gateway.poll_interval: must be positive")

	d := c.Downstream
	switch d.Type {
	case "tcp", "rtu-over-tcp":
		check(d.Tcp.Address != "", "downstream.tcp.address: required for type %s", d.Type)
	case "rtu":
		check(d.Serial.Device != "", "downstream.serial.device: required for type rtu")
		check(d.Serial.BaudRate > 0, "downstream.serial.baud_rate: must be positive")
		switch d.Serial.Parity {
		case "", "N", "E", "O":
		default:
			errs = append(errs, fmt.Errorf("downstream.serial.parity: unknown parity %q", d.Serial.Parity))
		}
	case "local":
		switch d.Local.Persistence.Type {
		case "", "memory":
		case "file", "mmap":
			check(d.Local.Persistence.Path != "", "downstream.local.persistence.path: required for type %s", d.Local.Persistence.Type)
		default:
			errs = append(errs, fmt.Errorf("downstream.local.persistence.type: unknown type %q", d.Local.Persistence.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("downstream.type: unknown type %q", d.Type))
	}

	switch d.Driver {
	case "", "native":
	case "goburrow":
		check(d.Type == "tcp" || d.Type == "rtu", "downstream.driver: goburrow supports tcp and rtu, not %s", d.Type)
	default:
		errs = append(errs, fmt.Errorf("downstream.driver: unknown driver %q", d.Driver))
	}

	return errors.Join(errs...)
}
