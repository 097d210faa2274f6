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

package menu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlipscombe/thermo-mate/thermo"
)

func newMenu() (*thermo.Settings, *Menu) {
	s := thermo.DefaultSettings()
	return &s, New(&s)
}

func TestLen(t *testing.T) {
	s, m := newMenu()
	assert.Equal(t, 24, m.Len())

	s.Config.CurveItems = 0
	assert.Equal(t, StaticItems, m.Len())

	s.Config.CurveItems = 200
	assert.Equal(t, StaticItems+2*thermo.CurveCapacity, m.Len())
}

func TestStaticNames(t *testing.T) {
	_, m := newMenu()
	want := []string{
		"Boiler \xDF",
		"Room \xDF",
		"Circuit Relay",
		"[E] Servo Min",
		"[E] Servo Max",
		"[E] Boiler Idle",
		"[E] T. Debounce",
		"[E] Overheating\xDF",
		"[E] Underheating\xDF",
		"[E] deltaT p1",
		"[E] deltaT p1 S",
		"[E] deltaT p0",
		"[E] deltaT p0 S",
		"[E] Curve Items",
	}
	for i, name := range want {
		item, ok := m.Item(i)
		require.True(t, ok)
		assert.Equal(t, name, item.Name, "index %d", i)
	}
}

func TestCurvePointSynthesis(t *testing.T) {
	s, m := newMenu()

	tests := []struct {
		index int
		point int
		isY   bool
		name  string
	}{
		{StaticItems, 0, false, "[E] Curve[0].d\xDF"},
		{StaticItems + 1, 0, true, "[E] Curve[0].%"},
		{StaticItems + 4, 2, false, "[E] Curve[2].d\xDF"},
		{StaticItems + 8, 4, false, "[E] Curve[4].d\xDF"},
		{StaticItems + 9, 4, true, "[E] Curve[4].%"},
	}
	for _, tt := range tests {
		point, isY, ok := CurvePoint(tt.index)
		require.True(t, ok)
		assert.Equal(t, tt.point, point)
		assert.Equal(t, tt.isY, isY)

		item, ok := m.Item(tt.index)
		require.True(t, ok)
		assert.Equal(t, tt.name, item.Name)
	}

	_, ok := m.Item(StaticItems + 10)
	assert.False(t, ok, "beyond the active curve")
	_, ok = m.Item(NoSelection)
	assert.False(t, ok)

	x, _ := m.Item(StaticItems + 8)
	x.Field.Apply(-1)
	assert.Equal(t, int8(9), s.Curve.X[4])
	assert.Equal(t, "value:        9", x.Field.Format())

	y, _ := m.Item(StaticItems + 1)
	y.Field.Apply(1)
	assert.Equal(t, uint8(91), s.Curve.Y[0])
}

func TestIntegerFields(t *testing.T) {
	s, m := newMenu()

	boiler, _ := m.Item(ItemBoiler)
	boiler.Field.Apply(1)
	assert.Equal(t, uint8(71), s.Config.RefTempBoiler)
	assert.Equal(t, "value:       71", boiler.Field.Format())
	assert.Equal(t, KindInteger, boiler.Field.Kind())

	s.Config.RefTempBoiler = 0
	boiler.Field.Apply(-1)
	assert.Equal(t, uint8(255), s.Config.RefTempBoiler)

	servo, _ := m.Item(ItemServoMin)
	servo.Field.Apply(-1)
	assert.Equal(t, int16(-1), s.Config.ServoMin)
	assert.Equal(t, "value:       -1", servo.Field.Format())
}

func TestFloatFields(t *testing.T) {
	s, m := newMenu()

	room, _ := m.Item(ItemRoom)
	room.Field.Apply(1)
	assert.InDelta(t, 22.2, s.Config.RefTempRoom, 1e-4)
	assert.Equal(t, "value:  22.200", room.Field.Format())
	assert.Equal(t, KindFloat, room.Field.Kind())

	coarse, _ := m.Item(ItemPoly1)
	fine, _ := m.Item(ItemPoly1Fine)
	coarse.Field.Apply(1)
	fine.Field.Apply(-1)
	assert.InDelta(t, 0.098, s.Config.DeltaTempPoly1, 1e-5)

	p0, _ := m.Item(ItemPoly0Fine)
	p0.Field.Apply(1)
	assert.InDelta(t, 0.002, s.Config.DeltaTempPoly0, 1e-6)
}

func TestDebounceWraps(t *testing.T) {
	s, m := newMenu()
	item, _ := m.Item(ItemDebounce)

	item.Field.Apply(1)
	assert.InDelta(t, 2.1, s.Config.DebounceLimitC, 1e-5)

	s.Config.DebounceLimitC = 9.95
	item.Field.Apply(1)
	assert.InDelta(t, -9.9, s.Config.DebounceLimitC, 1e-5)

	s.Config.DebounceLimitC = -9.95
	item.Field.Apply(-1)
	assert.InDelta(t, 9.9, s.Config.DebounceLimitC, 1e-5)
}

func TestCurveItemsWraps(t *testing.T) {
	s, m := newMenu()
	item, _ := m.Item(ItemCurveItems)

	tests := []struct {
		from uint8
		diff int
		want uint8
	}{
		{5, 1, 6},
		{9, 1, 0},
		{0, -1, 0},
		{3, -1, 2},
	}
	for _, tt := range tests {
		s.Config.CurveItems = tt.from
		item.Field.Apply(tt.diff)
		assert.Equal(t, tt.want, s.Config.CurveItems, "from %d by %d", tt.from, tt.diff)
	}
}

func TestRelayOverrideCycles(t *testing.T) {
	s, m := newMenu()
	item, _ := m.Item(ItemCircuitRelay)
	assert.Equal(t, KindTriState, item.Field.Kind())
	assert.Equal(t, "no override", item.Field.Format())

	item.Field.Apply(1)
	assert.Equal(t, thermo.RelayForcedOn, s.Config.CircuitRelayForced)
	assert.Equal(t, "always enabled", item.Field.Format())

	item.Field.Apply(-1)
	assert.Equal(t, thermo.RelayForcedOff, s.Config.CircuitRelayForced)
	assert.Equal(t, "always disabled", item.Field.Format())

	item.Field.Apply(0)
	assert.Equal(t, thermo.RelayForcedOff, s.Config.CircuitRelayForced)

	item.Field.Apply(1)
	assert.Equal(t, thermo.RelayAuto, s.Config.CircuitRelayForced)
}

func TestNavigatorWraps(t *testing.T) {
	_, m := newMenu()
	n := NewNavigator(m)
	assert.Equal(t, NoSelection, n.Selected())

	n.Prev()
	assert.Equal(t, m.Len()-1, n.Selected())
	n.Next()
	assert.Equal(t, NoSelection, n.Selected())
	n.Next()
	assert.Equal(t, 0, n.Selected())
	n.Prev()
	assert.Equal(t, NoSelection, n.Selected())
}

func TestNavigatorStaleSelection(t *testing.T) {
	s, m := newMenu()
	n := NewNavigator(m)
	n.Prev()
	s.Config.CurveItems = 1
	assert.Equal(t, NoSelection, n.Selected())
}

func TestNavigatorHandle(t *testing.T) {
	s, m := newMenu()
	n := NewNavigator(m)

	res := n.Handle([]Action{ActionIncrement})
	assert.False(t, res.Changed(), "edits on the overview are ignored")
	assert.Equal(t, uint8(70), s.Config.RefTempBoiler)

	res = n.Handle([]Action{ActionNext, ActionIncrement, ActionIncrement})
	assert.True(t, res.Navigated)
	assert.True(t, res.Edited)
	assert.Equal(t, uint8(72), s.Config.RefTempBoiler)

	res = n.Handle([]Action{ActionDecrement})
	assert.False(t, res.Navigated)
	assert.True(t, res.Edited)
	assert.Equal(t, uint8(71), s.Config.RefTempBoiler)
}

func TestNavigatorCalibration(t *testing.T) {
	_, m := newMenu()
	n := NewNavigator(m)
	assert.Equal(t, thermo.CalibrationNone, n.Calibration())

	for n.Selected() != ItemServoMin {
		n.Next()
	}
	assert.Equal(t, thermo.CalibrationServoMin, n.Calibration())
	n.Next()
	assert.Equal(t, thermo.CalibrationServoMax, n.Calibration())
	n.Next()
	assert.Equal(t, thermo.CalibrationNone, n.Calibration())
}

type scriptedPin struct {
	levels []bool
	err    error
}

func (p *scriptedPin) Read() (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if len(p.levels) == 0 {
		return false, nil
	}
	l := p.levels[0]
	p.levels = p.levels[1:]
	return l, nil
}

func TestButtonFiresOnRelease(t *testing.T) {
	b := NewButton(nil)
	assert.False(t, b.Update(false))
	assert.False(t, b.Update(true), "press")
	assert.False(t, b.Update(true), "held")
	assert.True(t, b.Update(false), "release")
	assert.False(t, b.Update(false))
}

func TestPanelPoll(t *testing.T) {
	prev := &scriptedPin{levels: []bool{true, false}}
	next := &scriptedPin{}
	dec := &scriptedPin{err: errors.New("gpio gone")}
	inc := &scriptedPin{levels: []bool{true, false}}
	p := NewPanel(prev, next, dec, inc)

	actions, err := p.Poll()
	assert.Error(t, err)
	assert.Empty(t, actions)

	actions, err = p.Poll()
	assert.Error(t, err)
	assert.Equal(t, []Action{ActionPrev, ActionIncrement}, actions)
}
