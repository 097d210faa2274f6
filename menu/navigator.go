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
	"github.com/mlipscombe/thermo-mate/hal"
	"github.com/mlipscombe/thermo-mate/thermo"
)

// NoSelection is the overview screen.
const NoSelection = -1

// Action is a decoded button release.
type Action int

const (
	ActionPrev Action = iota
	ActionNext
	ActionDecrement
	ActionIncrement
)

func (a Action) String() string {
	switch a {
	case ActionPrev:
		return "prev"
	case ActionNext:
		return "next"
	case ActionDecrement:
		return "decrement"
	case ActionIncrement:
		return "increment"
	}
	return "unknown"
}

// Navigator tracks the selected item and applies button actions to it.
type Navigator struct {
	menu     *Menu
	selected int
}

func NewNavigator(m *Menu) *Navigator {
	return &Navigator{menu: m, selected: NoSelection}
}

func (n *Navigator) Menu() *Menu { return n.menu }

// Selected returns the current index, or NoSelection on the overview.
func (n *Navigator) Selected() int {
	if n.selected >= n.menu.Len() {
		n.selected = NoSelection
	}
	return n.selected
}

func (n *Navigator) Next() {
	n.selected = n.Selected() + 1
	if n.selected >= n.menu.Len() {
		n.selected = NoSelection
	}
}

func (n *Navigator) Prev() {
	n.selected = n.Selected() - 1
	if n.selected < NoSelection {
		n.selected = n.menu.Len() - 1
	}
}

// Current returns the selected item. ok is false on the overview.
func (n *Navigator) Current() (Item, bool) {
	return n.menu.Item(n.Selected())
}

// Calibration reports the servo calibration hook of the selected item.
func (n *Navigator) Calibration() thermo.Calibration {
	item, ok := n.Current()
	if !ok {
		return thermo.CalibrationNone
	}
	return item.Calibration
}

// Result summarizes what a batch of actions did.
type Result struct {
	Navigated bool
	Edited    bool
}

func (r Result) Changed() bool { return r.Navigated || r.Edited }

// Handle applies actions in order. Value edits are ignored on the overview.
func (n *Navigator) Handle(actions []Action) Result {
	var res Result
	for _, a := range actions {
		switch a {
		case ActionPrev:
			n.Prev()
			res.Navigated = true
		case ActionNext:
			n.Next()
			res.Navigated = true
		case ActionDecrement, ActionIncrement:
			item, ok := n.Current()
			if !ok {
				continue
			}
			diff := 1
			if a == ActionDecrement {
				diff = -1
			}
			item.Field.Apply(diff)
			res.Edited = true
		}
	}
	return res
}

// Button reports a press once, on the transition back to released.
type Button struct {
	pin   hal.DigitalIn
	level bool
}

func NewButton(pin hal.DigitalIn) *Button {
	return &Button{pin: pin}
}

// Update feeds a sampled level and reports whether it completed a press.
func (b *Button) Update(level bool) bool {
	if level == b.level {
		return false
	}
	b.level = level
	return !level
}

func (b *Button) Poll() (bool, error) {
	level, err := b.pin.Read()
	if err != nil {
		return false, err
	}
	return b.Update(level), nil
}

// Panel is the four-button keypad, ordered prev, next, -1, +1.
type Panel struct {
	buttons [4]*Button
}

func NewPanel(prev, next, dec, inc hal.DigitalIn) *Panel {
	return &Panel{buttons: [4]*Button{
		NewButton(prev), NewButton(next), NewButton(dec), NewButton(inc),
	}}
}

// Poll samples every button and returns the completed presses in keypad
// order. A read error on one button does not stop the others.
func (p *Panel) Poll() ([]Action, error) {
	var (
		actions  []Action
		firstErr error
	)
	for i, b := range p.buttons {
		fired, err := b.Poll()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if fired {
			actions = append(actions, Action(i))
		}
	}
	return actions, firstErr
}
