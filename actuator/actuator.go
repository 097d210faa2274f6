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

// Package actuator drives the vent servo and the circuit relay.
package actuator

import (
	"fmt"

	"github.com/mlipscombe/thermo-mate/hal"
	"github.com/mlipscombe/thermo-mate/thermo"
	log "github.com/sirupsen/logrus"
)

// ServoRaw maps a vent opening percentage onto the calibrated servo range.
// 100% open lands on min, fully closed on max.
func ServoRaw(percent int, min, max int16) int16 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return int16(int(min) + (100-percent)*(int(max)-int(min))/100)
}

type Driver struct {
	servo hal.Servo
	relay hal.DigitalOut

	last    thermo.Command
	lastRaw int16
	applied bool
}

func New(servo hal.Servo, relay hal.DigitalOut) *Driver {
	return &Driver{servo: servo, relay: relay}
}

// Apply writes cmd to the hardware. The relay is active-low.
func (d *Driver) Apply(cmd thermo.Command, cfg *thermo.Configuration) error {
	raw := ServoRaw(cmd.VentPercent, cfg.ServoMin, cfg.ServoMax)
	if !d.applied || cmd != d.last || raw != d.lastRaw {
		log.WithFields(log.Fields{
			"vent":   cmd.VentPercent,
			"raw":    raw,
			"relay":  cmd.Relay,
			"safety": cmd.Safety,
		}).Debug("actuators updated")
	}
	if cmd.Safety && (!d.applied || !d.last.Safety) {
		log.Warn("boiler above hard limit, vent closed and circuit forced on")
	}
	d.last, d.lastRaw, d.applied = cmd, raw, true

	if err := d.servo.Write(raw); err != nil {
		return fmt.Errorf("servo write: %w", err)
	}
	if err := d.relay.Write(!cmd.Relay); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

// Last returns the most recently applied command.
func (d *Driver) Last() thermo.Command {
	return d.last
}
