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

import "time"

// DefaultHardLimit is the boiler temperature above which the vent is shut
// and the circuit pump forced on.
const DefaultHardLimit = 85.0

const (
	VentClosed = 0
	VentOpen   = 100
)

// Calibration selects a manual servo test position.
type Calibration int

const (
	CalibrationNone Calibration = iota
	// CalibrationServoMin holds the vent fully open to tune Configuration.ServoMin.
	CalibrationServoMin
	// CalibrationServoMax holds the vent fully closed to tune Configuration.ServoMax.
	CalibrationServoMax
)

// Command is what the actuators should be driven to.
type Command struct {
	VentPercent int
	Relay       bool
	Safety      bool
}

// Decide resolves the actuator command. The hard limit wins over the
// calibration hooks and the relay override.
func (s *Settings) Decide(st *State, cal Calibration, hardLimit float64) Command {
	if st.BoilerTemp > hardLimit {
		return Command{VentPercent: VentClosed, Relay: true, Safety: true}
	}
	relay := s.Config.CircuitRelayForced.Resolve(st.CircuitRelay)
	switch cal {
	case CalibrationServoMin:
		return Command{VentPercent: VentOpen, Relay: relay}
	case CalibrationServoMax:
		return Command{VentPercent: VentClosed, Relay: relay}
	}
	return Command{VentPercent: int(st.Angle), Relay: relay}
}

// Snapshot is a read-only copy of the controller published to observers.
type Snapshot struct {
	State
	Override    RelayOverride
	RelayOutput bool
	VentPercent int
	Safety      bool
	Selected    int
	Time        time.Time
}
