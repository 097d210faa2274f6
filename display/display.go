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

// Package display renders the controller state onto a character LCD.
package display

import (
	"fmt"

	"github.com/mlipscombe/thermo-mate/menu"
	"github.com/mlipscombe/thermo-mate/thermo"
)

// HD44780 ROM glyphs.
const (
	GlyphDegree = "\xDF"
	GlyphYes    = "\xFF"
	GlyphNo     = "\xDB"
)

const (
	Columns = 16
	Rows    = 2
)

// Sink is a character display addressed by column and row.
type Sink interface {
	Clear()
	SetCursor(col, row uint8)
	Print(text string)
}

func yesOrNo(v bool) string {
	if v {
		return GlyphYes
	}
	return GlyphNo
}

type Screen struct {
	sink Sink
}

func NewScreen(sink Sink) *Screen {
	return &Screen{sink: sink}
}

func (s *Screen) Clear() {
	s.sink.Clear()
}

// Overview draws the status page:
//
//	O 42% B 61.2°>██
//	H 40% R 21.5°
func (s *Screen) Overview(snap *thermo.Snapshot) {
	marker := " "
	relay := yesOrNo(snap.CircuitRelay)
	if snap.Override != thermo.RelayAuto {
		marker = ">"
		relay = yesOrNo(snap.Override == thermo.RelayForcedOn)
	}

	s.sink.SetCursor(0, 0)
	s.sink.Print(fmt.Sprintf("O %2d%%  ", snap.Angle))
	s.sink.SetCursor(6, 0)
	s.sink.Print(fmt.Sprintf("B %4.1f"+GlyphDegree+"%s%s%s", snap.BoilerTemp, marker, relay, yesOrNo(snap.HeatNeeded)))

	s.sink.SetCursor(0, 1)
	s.sink.Print(fmt.Sprintf("H %2d%% ", int(snap.RoomHumidity)))
	s.sink.SetCursor(6, 1)
	s.sink.Print(fmt.Sprintf("R %4.1f"+GlyphDegree, snap.RoomTemp))
}

// Item draws a menu entry: its name on top and the formatted value below.
func (s *Screen) Item(item menu.Item) {
	s.sink.SetCursor(0, 0)
	s.sink.Print(item.Name + " ")
	s.sink.SetCursor(0, 1)
	s.sink.Print(item.Field.Format())
}

// Render draws the selected menu entry, or the overview when none is.
func (s *Screen) Render(snap *thermo.Snapshot, nav *menu.Navigator) {
	if item, ok := nav.Current(); ok {
		s.Item(item)
		return
	}
	s.Overview(snap)
}
