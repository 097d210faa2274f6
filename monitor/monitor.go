/*
 * This file is part of the thermo-mate distribution (https://github.com/mlipscombe/thermo-mate).
 * Copyright (c) 2024 Mark Lipscombe.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, version 3.
 *
 * This program is distributed in the hope that it will be useful, but
 * WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 */

// Package monitor publishes controller state to MQTT and Prometheus.
package monitor

import (
	"errors"
	"math"
	"reflect"

	cmp "github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/mlipscombe/thermo-mate/thermo"
)

const queueSize = 4

// Publisher sends a group of values under the client prefix.
type Publisher interface {
	PublishFields(group string, values map[string]interface{}) error
}

type Monitor struct {
	pub        Publisher
	id         string
	registerer prometheus.Registerer
	cache      map[string]interface{}
	gauges     map[string]*prometheus.GaugeVec
	ready      chan bool
	published  bool
}

// New creates a monitor. A nil publisher only updates the gauges.
func New(pub Publisher, id string, registerer prometheus.Registerer) *Monitor {
	return &Monitor{
		pub:        pub,
		id:         id,
		registerer: registerer,
		cache:      make(map[string]interface{}),
		gauges:     make(map[string]*prometheus.GaugeVec),
		ready:      make(chan bool, 1),
	}
}

// Ready is signalled once the first state has been published.
func (m *Monitor) Ready() <-chan bool {
	return m.ready
}

// StartStateMonitor runs m on its own goroutine. The returned function
// queues a snapshot without blocking and drops it if the queue is full.
func StartStateMonitor(m *Monitor) func(thermo.Snapshot) {
	snapshots := make(chan thermo.Snapshot, queueSize)
	go func() {
		for s := range snapshots {
			m.Update(&s)
		}
	}()
	return func(s thermo.Snapshot) {
		select {
		case snapshots <- s:
		default:
			log.Debug("monitor busy, dropping snapshot")
		}
	}
}

// Update publishes the fields that changed since the previous call.
func (m *Monitor) Update(s *thermo.Snapshot) {
	changeSet := make(map[string]interface{})
	for key, value := range Fields(s) {
		if m.gauges[key] == nil && isNumeric(value) {
			m.gauges[key] = m.register(key)
		}

		if !cmp.Equal(m.cache[key], value) {
			changeSet[key] = value
			updateGauge(m.gauges[key], m.id, value)
		}
	}
	if len(changeSet) == 0 {
		return
	}

	// The cache only advances once the broker took the change set, so a
	// failed publish is retried with the next snapshot.
	if m.pub != nil {
		if err := m.pub.PublishFields("state", changeSet); err != nil {
			log.Errorf("Failed to publish state: %v", err)
			return
		}
	}
	for key, value := range changeSet {
		m.cache[key] = value
	}

	if !m.published {
		m.published = true
		select {
		case m.ready <- true:
		default:
		}
	}
}

func (m *Monitor) register(key string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "thermo_mate",
			Subsystem: "state",
			Name:      key,
		},
		[]string{"device"},
	)
	if m.registerer == nil {
		return gauge
	}
	if err := m.registerer.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing
			}
		}
		log.Warnf("Failed to register gauge %s: %v", key, err)
	}
	return gauge
}

func round2(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return math.Round(v*100) / 100
}

// Fields flattens a snapshot into the published keys. A failed room
// reading is published as null.
func Fields(s *thermo.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"room_temp":      round2(s.RoomTemp),
		"room_humidity":  round2(s.RoomHumidity),
		"boiler_temp":    round2(s.BoilerTemp),
		"angle":          int64(s.Angle),
		"vent":           int64(s.VentPercent),
		"selected":       int64(s.Selected),
		"circuit_relay":  s.CircuitRelay,
		"relay_output":   s.RelayOutput,
		"heat_needed":    s.HeatNeeded,
		"overheating":    s.Overheating,
		"underheating":   s.Underheating,
		"safety":         s.Safety,
		"relay_override": s.Override.Keyword(),
	}
}

func isNumeric(value interface{}) bool {
	if value == nil {
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Float64, reflect.Int64, reflect.Bool:
		return true
	}
	return false
}

func updateGauge(gauge *prometheus.GaugeVec, device string, value interface{}) {
	if gauge == nil {
		return
	}
	switch v := value.(type) {
	case float64:
		gauge.WithLabelValues(device).Set(v)
	case int64:
		gauge.WithLabelValues(device).Set(float64(v))
	case bool:
		if v {
			gauge.WithLabelValues(device).Set(1)
		} else {
			gauge.WithLabelValues(device).Set(0)
		}
	}
}
