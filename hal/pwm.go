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

package hal

import (
	"fmt"
	"time"

	"github.com/reef-pi/rpi/pwm"
	log "github.com/sirupsen/logrus"
)

// pwmDriver is the part of the reef-pi sysfs PWM driver a servo needs.
type pwmDriver interface {
	IsExported(ch int) (bool, error)
	Export(ch int) error
	Enable(ch int) error
	Period(ch int, period int) error
	DutyCycle(ch int, duty int) error
}

// PWMServo drives a hobby servo from a PWM channel.
type PWMServo struct {
	driver   pwmDriver
	channel  int
	minPulse time.Duration
	maxPulse time.Duration
}

// OpenPWMServo exports channel on the first PWM chip and starts a
// period-long signal.
func OpenPWMServo(channel int, period, minPulse, maxPulse time.Duration) (*PWMServo, error) {
	return newPWMServo(pwm.New(), channel, period, minPulse, maxPulse)
}

func newPWMServo(d pwmDriver, channel int, period, minPulse, maxPulse time.Duration) (*PWMServo, error) {
	exported, err := d.IsExported(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to query pwm channel %d: %w", channel, err)
	}
	if !exported {
		if err := d.Export(channel); err != nil {
			return nil, fmt.Errorf("failed to export pwm channel %d: %w", channel, err)
		}
	}
	if err := d.Period(channel, int(period.Nanoseconds())); err != nil {
		return nil, fmt.Errorf("failed to set pwm period: %w", err)
	}
	if err := d.Enable(channel); err != nil {
		return nil, fmt.Errorf("failed to enable pwm channel %d: %w", channel, err)
	}
	log.Debugf("pwm channel %d running at %s", channel, period)
	return &PWMServo{driver: d, channel: channel, minPulse: minPulse, maxPulse: maxPulse}, nil
}

// Pulse converts a raw servo position to a pulse width. Raw values below
// MinPulseMicros are degrees clamped to [0, 180].
func Pulse(raw int16, minPulse, maxPulse time.Duration) time.Duration {
	if raw >= MinPulseMicros {
		return time.Duration(raw) * time.Microsecond
	}
	if raw < 0 {
		raw = 0
	}
	if raw > 180 {
		raw = 180
	}
	return minPulse + time.Duration(int64(maxPulse-minPulse)*int64(raw)/180)
}

func (s *PWMServo) Write(raw int16) error {
	pulse := Pulse(raw, s.minPulse, s.maxPulse)
	if err := s.driver.DutyCycle(s.channel, int(pulse.Nanoseconds())); err != nil {
		return fmt.Errorf("failed to set servo pulse %s: %w", pulse, err)
	}
	return nil
}
