// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/ffutop/d3net-gateway/internal/config"
	"github.com/ffutop/d3net-gateway/internal/gateway"
	"github.com/ffutop/d3net-gateway/transport"
	"github.com/ffutop/d3net-gateway/transport/goburrow"
	"github.com/ffutop/d3net-gateway/transport/local"
	"github.com/ffutop/d3net-gateway/transport/rtu"
	rtuovertcp "github.com/ffutop/d3net-gateway/transport/rtu-over-tcp"
	"github.com/ffutop/d3net-gateway/transport/tcp"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "Configuration file path.")
	once := pflag.Bool("once", false, "Discover units, run the command if any, and exit.")
	dump := pflag.Bool("dump", false, "Print every unit as YAML.")
	cmd := registerCommandFlags(pflag.CommandLine)
	pflag.Parse()

	// Load Configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := run(cfg, cmd, *once, *dump); err != nil {
		slog.Error("Gateway stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, cmd *command, once, dump bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, err := newTransport(cfg.Downstream)
	if err != nil {
		return err
	}
	gw := gateway.NewGateway(cfg.Gateway, t)
	defer gw.Close()

	slog.Info("Starting D3Net Gateway...", "name", gw.Name, "downstream", cfg.Downstream.Type, "driver", cfg.Downstream.Driver)

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen)
		defer srv.Shutdown(context.Background())
	}

	units, err := gw.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	if cmd.requested() {
		if err := cmd.run(ctx, units); err != nil {
			return err
		}
	}
	if dump {
		if err := dumpUnits(ctx, os.Stdout, units); err != nil {
			return err
		}
	}
	if once || cmd.requested() || dump {
		return nil
	}

	poll(ctx, units, cfg.Gateway.PollInterval)
	slog.Info("Goodbye.")
	return nil
}

// poll refreshes every unit until ctx is done. Units are independent, so a
// failing unit is logged and the others still refresh.
func poll(ctx context.Context, units []*gateway.Unit, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, u := range units {
			if err := u.RefreshStatus(ctx); err != nil {
				slog.Error("Failed to refresh unit", "unit", u.ID(), "err", err)
				continue
			}
			if _, err := u.Errors(ctx); err != nil {
				slog.Error("Failed to read unit errors", "unit", u.ID(), "err", err)
			}
		}
		select {
		case <-ctx.Done():
			slog.Info("Shutting down...")
			return
		case <-ticker.C:
		}
	}
}

func newTransport(cfg config.DownstreamConfig) (gateway.Transport, error) {
	if cfg.Driver == "goburrow" {
		switch cfg.Type {
		case "tcp":
			return goburrow.NewTCPClient(cfg.Tcp.Address, cfg.Tcp.Timeout), nil
		case "rtu":
			return goburrow.NewRTUClient(cfg.Serial), nil
		}
		return nil, fmt.Errorf("goburrow driver does not support downstream type %q", cfg.Type)
	}

	var ds transport.Downstream
	switch cfg.Type {
	case "tcp":
		c := tcp.NewClient(cfg.Tcp.Address)
		if cfg.Tcp.Timeout > 0 {
			c.Timeout = cfg.Tcp.Timeout
		}
		ds = c
	case "rtu-over-tcp":
		c := rtuovertcp.NewClient(cfg.Tcp.Address)
		if cfg.Tcp.Timeout > 0 {
			c.Timeout = cfg.Tcp.Timeout
		}
		ds = c
	case "rtu":
		ds = rtu.NewClient(cfg.Serial)
	case "local":
		c, err := local.NewClient(cfg.Local)
		if err != nil {
			return nil, err
		}
		ds = c
	default:
		return nil, fmt.Errorf("unknown downstream type %q", cfg.Type)
	}
	return transport.NewRegisterClient(ds), nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "addr", addr, "err", err)
		}
	}()
	return srv
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
