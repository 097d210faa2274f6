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

// Package menu is the button-driven editor over the persisted settings.
//
// Items are addressed by a flat index. The first StaticItems indices map to
// fixed entries; every index above synthesizes a curve point entry, two
// per point (breakpoint X, then opening Y).
package menu

import (
	"fmt"

	"github.com/mlipscombe/thermo-mate/thermo"
)

// Degree is the HD44780 ROM code for °.
const Degree = "\xDF"

// Kind is the closed set of editable value types.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindTriState
)

// Field is an editable value. Apply mutates it by a signed number of steps.
type Field interface {
	Kind() Kind
	Apply(diff int)
	Format() string
}

func formatInteger(v int) string {
	return fmt.Sprintf("value: %8d", v)
}

type uint8Field struct{ v *uint8 }

func (f uint8Field) Kind() Kind     { return KindInteger }
func (f uint8Field) Apply(diff int) { *f.v += uint8(diff) }
func (f uint8Field) Format() string { return formatInteger(int(*f.v)) }

type int8Field struct{ v *int8 }

func (f int8Field) Kind() Kind     { return KindInteger }
func (f int8Field) Apply(diff int) { *f.v += int8(diff) }
func (f int8Field) Format() string { return formatInteger(int(*f.v)) }

type int16Field struct{ v *int16 }

func (f int16Field) Kind() Kind     { return KindInteger }
func (f int16Field) Apply(diff int) { *f.v += int16(diff) }
func (f int16Field) Format() string { return formatInteger(int(*f.v)) }

// curveItemsField wraps modulo the curve capacity.
type curveItemsField struct{ v *uint8 }

func (f curveItemsField) Kind() Kind { return KindInteger }

func (f curveItemsField) Apply(diff int) {
	n := (int(*f.v) + diff) % thermo.CurveCapacity
	if n < 0 {
		n = 0
	}
	*f.v = uint8(n)
}

func (f curveItemsField) Format() string { return formatInteger(int(*f.v)) }

type floatField struct {
	v    *float32
	step float32
	// limit, when non-zero, wraps the value to the opposite bound once it
	// reaches ±limit.
	limit float32
}

func (f floatField) Kind() Kind { return KindFloat }

func (f floatField) Apply(diff int) {
	*f.v += float32(diff) * f.step
	if f.limit == 0 {
		return
	}
	wrapped := f.limit - f.step
	if *f.v <= -f.limit {
		*f.v = wrapped
	}
	if *f.v >= f.limit {
		*f.v = -wrapped
	}
}

func (f floatField) Format() string { return fmt.Sprintf("value: %7.3f", *f.v) }

// relayField cycles auto -> on -> off on any non-zero step.
type relayField struct{ v *thermo.RelayOverride }

func (f relayField) Kind() Kind { return KindTriState }

func (f relayField) Apply(diff int) {
	if diff != 0 {
		*f.v = (*f.v + 1) % 3
	}
}

func (f relayField) Format() string { return f.v.String() }

// Item is one menu entry.
type Item struct {
	Name        string
	Field       Field
	Calibration thermo.Calibration
}

const (
	ItemBoiler = iota
	ItemRoom
	ItemCircuitRelay
	ItemServoMin
	ItemServoMax
	ItemBoilerIdle
	ItemDebounce
	ItemOverheating
	ItemUnderheating
	ItemPoly1
	ItemPoly1Fine
	ItemPoly0
	ItemPoly0Fine
	ItemCurveItems

	StaticItems
)

type Menu struct {
	settings *thermo.Settings
	static   [StaticItems]Item
}

func New(s *thermo.Settings) *Menu {
	c := &s.Config
	return &Menu{
		settings: s,
		static: [StaticItems]Item{
			ItemBoiler:       {Name: "Boiler " + Degree, Field: uint8Field{&c.RefTempBoiler}},
			ItemRoom:         {Name: "Room " + Degree, Field: floatField{v: &c.RefTempRoom, step: 0.2}},
			ItemCircuitRelay: {Name: "Circuit Relay", Field: relayField{&c.CircuitRelayForced}},
			ItemServoMin:     {Name: "[E] Servo Min", Field: int16Field{&c.ServoMin}, Calibration: thermo.CalibrationServoMin},
			ItemServoMax:     {Name: "[E] Servo Max", Field: int16Field{&c.ServoMax}, Calibration: thermo.CalibrationServoMax},
			ItemBoilerIdle:   {Name: "[E] Boiler Idle", Field: uint8Field{&c.RefTempBoilerIdle}},
			ItemDebounce:     {Name: "[E] T. Debounce", Field: floatField{v: &c.DebounceLimitC, step: 0.1, limit: 10}},
			ItemOverheating:  {Name: "[E] Overheating" + Degree, Field: uint8Field{&c.OverheatingLimit}},
			ItemUnderheating: {Name: "[E] Underheating" + Degree, Field: uint8Field{&c.UnderheatingLimit}},
			ItemPoly1:        {Name: "[E] deltaT p1", Field: floatField{v: &c.DeltaTempPoly1, step: 0.1}},
			ItemPoly1Fine:    {Name: "[E] deltaT p1 S", Field: floatField{v: &c.DeltaTempPoly1, step: 0.002}},
			ItemPoly0:        {Name: "[E] deltaT p0", Field: floatField{v: &c.DeltaTempPoly0, step: 0.1}},
			ItemPoly0Fine:    {Name: "[E] deltaT p0 S", Field: floatField{v: &c.DeltaTempPoly0, step: 0.002}},
			ItemCurveItems:   {Name: "[E] Curve Items", Field: curveItemsField{&c.CurveItems}},
		},
	}
}

// Len is the number of addressable items for the current curve size.
func (m *Menu) Len() int {
	return StaticItems + 2*m.settings.ActiveItems()
}

// CurvePoint resolves a synthesized index to its curve point.
func CurvePoint(index int) (point int, isY bool, ok bool) {
	if index < StaticItems {
		return 0, false, false
	}
	offset := index - StaticItems
	return offset / 2, offset%2 == 1, true
}

// Item returns the entry at index.
func (m *Menu) Item(index int) (Item, bool) {
	if index < 0 || index >= m.Len() {
		return Item{}, false
	}
	if index < StaticItems {
		return m.static[index], true
	}
	point, isY, _ := CurvePoint(index)
	if isY {
		return Item{
			Name:  fmt.Sprintf("[E] Curve[%d].%%", point),
			Field: uint8Field{&m.settings.Curve.Y[point]},
		}, true
	}
	return Item{
		Name:  fmt.Sprintf("[E] Curve[%d].d%s", point, Degree),
		Field: int8Field{&m.settings.Curve.X[point]},
	}, true
}
