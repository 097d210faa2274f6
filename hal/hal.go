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

// Package hal is the hardware boundary of the controller: digital pins, the
// thermistor ADC and the vent servo.
package hal

// DigitalIn is a level input such as a push button.
type DigitalIn interface {
	Read() (bool, error)
}

// DigitalOut is a level output such as the circuit relay.
type DigitalOut interface {
	Write(level bool) error
}

// ADC returns raw conversion counts.
type ADC interface {
	Read() (uint16, error)
}

// Servo accepts a raw position. Values below MinPulseMicros are degrees,
// anything from there up is a pulse width in microseconds.
type Servo interface {
	Write(raw int16) error
}

// MinPulseMicros is the shortest pulse a raw servo value can name directly.
const MinPulseMicros = 544
