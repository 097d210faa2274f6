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

// Package thermo holds the heating controller's tunable configuration, the
// boiler curve and the control logic that turns temperatures into a vent
// angle and a circuit relay decision.
package thermo

import (
	"fmt"
	"strings"
)

// CurveCapacity is the number of control points the curve arrays hold.
const CurveCapacity = 10

// RelayOverride forces the circuit relay regardless of the control logic.
type RelayOverride uint8

const (
	RelayAuto RelayOverride = iota
	RelayForcedOn
	RelayForcedOff
)

func (o RelayOverride) String() string {
	switch o {
	case RelayAuto:
		return "no override"
	case RelayForcedOn:
		return "always enabled"
	case RelayForcedOff:
		return "always disabled"
	}
	return "unknown"
}

var overrideKeywords = [...]string{"auto", "on", "off"}

// Keyword is the short name used on remote command topics.
func (o RelayOverride) Keyword() string {
	if int(o) < len(overrideKeywords) {
		return overrideKeywords[o]
	}
	return ""
}

// ParseRelayOverride accepts auto, on or off.
func ParseRelayOverride(s string) (RelayOverride, error) {
	for i, k := range overrideKeywords {
		if strings.EqualFold(s, k) {
			return RelayOverride(i), nil
		}
	}
	return RelayAuto, fmt.Errorf("unknown relay override %q", s)
}

// Resolve returns the relay level to drive given the computed one.
func (o RelayOverride) Resolve(computed bool) bool {
	switch o {
	case RelayForcedOn:
		return true
	case RelayForcedOff:
		return false
	}
	return computed
}

// Configuration is persisted verbatim; field order and sizes define the
// stored layout.
type Configuration struct {
	RefTempBoiler      uint8
	RefTempBoilerIdle  uint8
	RefTempRoom        float32
	CircuitRelayForced RelayOverride
	ServoMin           int16
	ServoMax           int16
	CurveItems         uint8
	DebounceLimitC     float32
	UnderheatingLimit  uint8
	OverheatingLimit   uint8
	// linear least-squares fit of [boiler - room, true boiler - boiler]
	DeltaTempPoly1 float32
	DeltaTempPoly0 float32
}

// Curve maps boiler delta breakpoints (X, ascending) to vent opening
// percentages (Y). Only the first Configuration.CurveItems points count.
type Curve struct {
	X [CurveCapacity]int8
	Y [CurveCapacity]uint8
}

// Settings is everything that survives a power cycle.
type Settings struct {
	Config Configuration
	Curve  Curve
}

// ActiveItems returns CurveItems bounded to the curve capacity.
func (s *Settings) ActiveItems() int {
	n := int(s.Config.CurveItems)
	if n > CurveCapacity {
		return CurveCapacity
	}
	return n
}

func DefaultSettings() Settings {
	return Settings{
		Config: Configuration{
			RefTempBoiler:      70,
			RefTempBoilerIdle:  50,
			RefTempRoom:        22.0,
			CircuitRelayForced: RelayAuto,
			ServoMin:           0,
			ServoMax:           180,
			CurveItems:         5,
			DebounceLimitC:     2.0,
			UnderheatingLimit:  45,
			OverheatingLimit:   80,
			DeltaTempPoly1:     0,
			DeltaTempPoly0:     0,
		},
		Curve: Curve{
			X: [CurveCapacity]int8{-20, -12, -5, 5, 10},
			Y: [CurveCapacity]uint8{90, 50, 25, 12, 0},
		},
	}
}
