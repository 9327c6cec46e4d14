// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ffutop/d3net-gateway/d3net"
)

type metrics struct {
	reads    *prometheus.CounterVec
	writes   *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	power    *prometheus.GaugeVec
	setpoint *prometheus.GaugeVec
	current  *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer, name string) *metrics {
	labels := prometheus.Labels{"gateway": name}
	m := &metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "d3net_register_reads_total",
			Help:        "Register windows read from the interface, by message.",
			ConstLabels: labels,
		}, []string{"message"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "d3net_holding_writes_total",
			Help:        "Holding register writes, by outcome (written, clean, failed).",
			ConstLabels: labels,
		}, []string{"outcome"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "d3net_skipped_total",
			Help:        "Status refreshes and holding reloads skipped inside the write window.",
			ConstLabels: labels,
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "d3net_errors_total",
			Help:        "Bus errors, by operation.",
			ConstLabels: labels,
		}, []string{"op"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "d3net_unit_power",
			Help:        "1 when the unit is switched on.",
			ConstLabels: labels,
		}, []string{"unit"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "d3net_unit_setpoint_celsius",
			Help:        "Unit temperature setpoint.",
			ConstLabels: labels,
		}, []string{"unit"}),
		current: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "d3net_unit_temperature_celsius",
			Help:        "Unit return air temperature.",
			ConstLabels: labels,
		}, []string{"unit"}),
	}
	if reg != nil {
		reg.MustRegister(m.reads, m.writes, m.skipped, m.errors, m.power, m.setpoint, m.current)
	}
	return m
}

func (m *metrics) observeStatus(id string, st *d3net.UnitStatus) {
	power := 0.0
	if st.Power() {
		power = 1
	}
	m.power.WithLabelValues(id).Set(power)
	m.setpoint.WithLabelValues(id).Set(st.TempSetpoint())
	m.current.WithLabelValues(id).Set(st.TempCurrent())
}
