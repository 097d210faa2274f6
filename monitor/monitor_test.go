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

package monitor

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mlipscombe/thermo-mate/thermo"
)

type fakePublisher struct {
	batches []map[string]interface{}
	err     error
}

func (p *fakePublisher) PublishFields(group string, values map[string]interface{}) error {
	if p.err != nil {
		return p.err
	}
	if group != "state" {
		return errors.New("unexpected group " + group)
	}
	p.batches = append(p.batches, values)
	return nil
}

func snapshot() thermo.Snapshot {
	return thermo.Snapshot{
		State: thermo.State{
			BoilerTemp:   61.237,
			RoomTemp:     21.5,
			RoomHumidity: 40,
			HeatNeeded:   true,
			CircuitRelay: true,
			Angle:        42,
		},
		RelayOutput: true,
		VentPercent: 42,
		Selected:    -1,
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected bool
	}{
		{"int64", int64(42), true},
		{"float64", float64(3.14), true},
		{"bool", true, true},
		{"string", "auto", false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isNumeric(tt.value)
			if result != tt.expected {
				t.Errorf("isNumeric(%v) = %v, want %v", tt.value, result, tt.expected)
			}
		})
	}
}

func TestUpdateGauge(t *testing.T) {
	// nil gauges are ignored
	updateGauge(nil, "test", int64(42))

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_gauge"}, []string{"device"})
	updateGauge(gauge, "test", true)
	if got := testutil.ToFloat64(gauge.WithLabelValues("test")); got != 1 {
		t.Errorf("bool gauge = %v, want 1", got)
	}
	updateGauge(gauge, "test", 21.5)
	if got := testutil.ToFloat64(gauge.WithLabelValues("test")); got != 21.5 {
		t.Errorf("float gauge = %v, want 21.5", got)
	}
	updateGauge(gauge, "test", "not a number")
	if got := testutil.ToFloat64(gauge.WithLabelValues("test")); got != 21.5 {
		t.Errorf("string should leave the gauge untouched, got %v", got)
	}
}

func TestFields(t *testing.T) {
	s := snapshot()
	s.RoomTemp = math.NaN()
	s.Override = thermo.RelayForcedOff

	f := Fields(&s)
	if f["room_temp"] != nil {
		t.Errorf("room_temp = %v, want nil for a failed reading", f["room_temp"])
	}
	if f["boiler_temp"] != 61.24 {
		t.Errorf("boiler_temp = %v, want 61.24", f["boiler_temp"])
	}
	if f["relay_override"] != "off" {
		t.Errorf("relay_override = %v, want off", f["relay_override"])
	}
	if f["angle"] != int64(42) {
		t.Errorf("angle = %v", f["angle"])
	}
}

func TestUpdatePublishesChanges(t *testing.T) {
	pub := &fakePublisher{}
	reg := prometheus.NewRegistry()
	m := New(pub, "cellar", reg)

	s := snapshot()
	m.Update(&s)
	if len(pub.batches) != 1 || len(pub.batches[0]) != len(Fields(&s)) {
		t.Fatalf("first update should publish every field, got %v", pub.batches)
	}
	select {
	case <-m.Ready():
	default:
		t.Error("ready was not signalled after the first publish")
	}

	m.Update(&s)
	if len(pub.batches) != 1 {
		t.Errorf("unchanged snapshot published again: %v", pub.batches[1:])
	}

	s.BoilerTemp = 62
	s.Safety = true
	m.Update(&s)
	want := map[string]interface{}{"boiler_temp": 62.0, "safety": true}
	if diff := cmp.Diff(want, pub.batches[len(pub.batches)-1]); diff != "" {
		t.Errorf("change set mismatch (-want +got):\n%s", diff)
	}

	if got := testutil.ToFloat64(m.gauges["boiler_temp"].WithLabelValues("cellar")); got != 62 {
		t.Errorf("boiler gauge = %v, want 62", got)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount = %d, %v", n, err)
	}
}

func TestGaugesSurviveSecondMonitor(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := snapshot()
	New(nil, "a", reg).Update(&s)

	m := New(nil, "b", reg)
	m.Update(&s)
	if got := testutil.ToFloat64(m.gauges["angle"].WithLabelValues("b")); got != 42 {
		t.Errorf("angle gauge = %v, want 42", got)
	}
}

func TestPublishFailureKeepsWaiting(t *testing.T) {
	pub := &fakePublisher{err: errors.New("offline")}
	m := New(pub, "x", nil)
	s := snapshot()
	m.Update(&s)

	select {
	case <-m.Ready():
		t.Error("ready signalled although nothing was published")
	default:
	}
}

func TestStartStateMonitor(t *testing.T) {
	pub := &fakePublisher{}
	m := New(pub, "x", nil)
	feed := StartStateMonitor(m)
	feed(snapshot())

	select {
	case <-m.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not publish")
	}
}

func TestPublishFailureIsRetried(t *testing.T) {
	pub := &fakePublisher{err: errors.New("offline")}
	m := New(pub, "x", nil)
	s := snapshot()
	m.Update(&s)

	pub.err = nil
	m.Update(&s)
	if len(pub.batches) != 1 || len(pub.batches[0]) != len(Fields(&s)) {
		t.Errorf("expected the full state after recovery, got %v", pub.batches)
	}
}
