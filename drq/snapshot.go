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

package drq

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/mlipscombe/thermo-mate/thermo"
)

const queueSize = 4

// FromSnapshot maps a controller snapshot onto the wire state. The relay
// reported is the driven output, not the computed request.
func FromSnapshot(s *thermo.Snapshot) State {
	room := s.RoomTemp
	if math.IsNaN(room) {
		room = 0
	}
	return State{
		RoomTemp:     room,
		BoilerTemp:   s.BoilerTemp,
		Angle:        int(s.Angle),
		CircuitRelay: s.RelayOutput,
		HeatNeeded:   s.HeatNeeded,
	}
}

// StartSnapshotWriter runs w on its own goroutine. The returned function
// queues a snapshot without blocking and drops it if the line is behind;
// the next one written carries every changed tag anyway.
func StartSnapshotWriter(w *Writer) func(thermo.Snapshot) {
	states := make(chan State, queueSize)
	go func() {
		for s := range states {
			if err := w.Publish(s); err != nil {
				log.Errorf("Failed to write DRQ lines: %v", err)
			}
		}
	}()
	return func(s thermo.Snapshot) {
		select {
		case states <- FromSnapshot(&s):
		default:
			log.Debug("drq writer busy, dropping snapshot")
		}
	}
}
