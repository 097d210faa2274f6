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

package thermo

import "math"

// AngleUnset is the vent angle reported when the boiler delta lies below
// every curve breakpoint.
const AngleUnset uint8 = 99

// State is recomputed every cycle and never persisted.
type State struct {
	BoilerTemp   float64
	RoomTemp     float64
	RoomHumidity float64
	HeatNeeded   bool
	Overheating  bool
	Underheating bool
	CircuitRelay bool
	Angle        uint8
}

func NewState() State {
	return State{Angle: AngleUnset}
}

// latchBelow is a two-threshold trigger that sets when d drops to -half
// and clears only once d rises above +half.
func latchBelow(latched bool, d, half float64) bool {
	return (latched && d <= half) || d <= -half
}

// latchAbove mirrors latchBelow: sets at +half, clears below -half.
func latchAbove(latched bool, d, half float64) bool {
	return (latched && d >= -half) || d >= half
}

// HalfBand is half the configured hysteresis width.
func (c *Configuration) HalfBand() float64 {
	return float64(c.DebounceLimitC) / 2
}

// BoilerSetpoint is the active boiler target for the given demand.
func (c *Configuration) BoilerSetpoint(heatNeeded bool) float64 {
	if heatNeeded {
		return float64(c.RefTempBoiler)
	}
	return float64(c.RefTempBoilerIdle)
}

// Angle interpolates the curve at delta. Points are scanned from the top;
// the first breakpoint not above delta selects the segment. Below the
// lowest breakpoint the result is AngleUnset.
func (s *Settings) Angle(delta float64) uint8 {
	x, y := &s.Curve.X, &s.Curve.Y
	n := s.ActiveItems()
	for i := n - 1; i >= 0; i-- {
		// written so a NaN delta never matches
		if !(delta >= float64(x[i])) {
			continue
		}
		next := i + 1
		if next >= n || x[next] == x[i] {
			return y[i]
		}
		slope := float64(int(y[next])-int(y[i])) / float64(int(x[next])-int(x[i]))
		v := float64(y[i]) + (delta-float64(x[i]))*slope
		return uint8(math.Max(0, math.Min(math.Trunc(v), math.MaxUint8)))
	}
	return AngleUnset
}

// Evaluate runs one control step over st and reports whether the angle or
// the computed relay changed.
func (s *Settings) Evaluate(st *State) bool {
	cfg := &s.Config
	half := cfg.HalfBand()

	st.HeatNeeded = latchBelow(st.HeatNeeded, st.RoomTemp-float64(cfg.RefTempRoom), half)
	st.Overheating = latchAbove(st.Overheating, st.BoilerTemp-float64(cfg.OverheatingLimit), half)
	st.Underheating = latchBelow(st.Underheating, st.BoilerTemp-float64(cfg.UnderheatingLimit), half)

	lastRelay := st.CircuitRelay
	st.CircuitRelay = !st.Underheating && (st.HeatNeeded || st.Overheating)

	lastAngle := st.Angle
	st.Angle = s.Angle(st.BoilerTemp - cfg.BoilerSetpoint(st.HeatNeeded))

	return lastAngle != st.Angle || lastRelay != st.CircuitRelay
}
