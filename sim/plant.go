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

// Package sim is a lumped thermal model of a solid-fuel boiler heating a
// single room, exposed through the same hardware interfaces as the real
// board. It backs the "sim" hardware profile and the controller tests.
package sim

import (
	"sync"
	"time"

	"github.com/mlipscombe/thermo-mate/hal"
	"github.com/mlipscombe/thermo-mate/sensor"
)

// Params are per-second rate constants.
type Params struct {
	Ambient    float64
	BurnRate   float64 // boiler °C/s with the vent fully open
	BoilerLoss float64 // boiler loss toward ambient
	Transfer   float64 // boiler to circuit exchange while the pump runs
	RoomGain   float64 // share of the exchange that reaches the room
	RoomLoss   float64 // room loss toward ambient
	Humidity   float64
}

func DefaultParams() Params {
	return Params{
		Ambient:    5,
		BurnRate:   0.5,
		BoilerLoss: 0.002,
		Transfer:   0.01,
		RoomGain:   0.05,
		RoomLoss:   0.0005,
		Humidity:   45,
	}
}

type Plant struct {
	mu       sync.Mutex
	params   Params
	therm    sensor.Thermistor
	boiler   float64
	room     float64
	servoRaw int16
	servoMin int16
	servoMax int16
	relayPin bool
	roomErr  error

	Buttons [4]*Button
}

// New starts the plant at the given temperatures with the vent closed and
// the relay pin high (pump off).
func New(params Params, therm sensor.Thermistor, boiler, room float64) *Plant {
	p := &Plant{
		params:   params,
		therm:    therm,
		boiler:   boiler,
		room:     room,
		servoMax: 180,
		relayPin: true,
	}
	p.servoRaw = p.servoMax
	for i := range p.Buttons {
		p.Buttons[i] = &Button{}
	}
	return p
}

// SetServoRange tells the plant how raw servo values map onto the vent.
func (p *Plant) SetServoRange(min, max int16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.servoMin, p.servoMax = min, max
}

func (p *Plant) ventPercent() float64 {
	span := float64(p.servoMax - p.servoMin)
	if span == 0 {
		return 0
	}
	v := 100 - float64(p.servoRaw-p.servoMin)*100/span
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Step advances the model by d in one-second Euler steps.
func (p *Plant) Step(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for remaining := d.Seconds(); remaining > 0; remaining-- {
		dt := remaining
		if dt > 1 {
			dt = 1
		}
		pump := 0.0
		if !p.relayPin {
			pump = 1
		}
		exchange := pump * p.params.Transfer * (p.boiler - p.room)
		dBoiler := p.params.BurnRate*p.ventPercent()/100 -
			p.params.BoilerLoss*(p.boiler-p.params.Ambient) - exchange
		dRoom := p.params.RoomGain*exchange - p.params.RoomLoss*(p.room-p.params.Ambient)
		p.boiler += dBoiler * dt
		p.room += dRoom * dt
	}
}

func (p *Plant) Boiler() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.boiler
}

func (p *Plant) Room() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

func (p *Plant) SetBoiler(c float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.boiler = c
}

func (p *Plant) SetRoom(c float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.room = c
}

// FailRoom makes room sensor reads return err until called with nil.
func (p *Plant) FailRoom(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roomErr = err
}

// PumpOn reports the relay as the circuit sees it (active low).
func (p *Plant) PumpOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.relayPin
}

func (p *Plant) ServoRaw() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.servoRaw
}

func (p *Plant) VentPercent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ventPercent()
}

func (p *Plant) BoilerADC() hal.ADC            { return boilerADC{p} }
func (p *Plant) RoomSensor() sensor.RoomSensor { return roomSensor{p} }
func (p *Plant) RelayPin() hal.DigitalOut      { return relayPin{p} }
func (p *Plant) Servo() hal.Servo              { return servo{p} }

type boilerADC struct{ p *Plant }

func (a boilerADC) Read() (uint16, error) {
	a.p.mu.Lock()
	defer a.p.mu.Unlock()
	return a.p.therm.Counts(a.p.boiler), nil
}

type roomSensor struct{ p *Plant }

func (r roomSensor) Read() (sensor.Reading, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	if r.p.roomErr != nil {
		return sensor.Reading{}, r.p.roomErr
	}
	return sensor.Reading{Celsius: r.p.room, Humidity: r.p.params.Humidity}, nil
}

type relayPin struct{ p *Plant }

func (r relayPin) Write(level bool) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	r.p.relayPin = level
	return nil
}

type servo struct{ p *Plant }

func (s servo) Write(raw int16) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.servoRaw = raw
	return nil
}

// Button is a momentary switch. A press is seen as one high sample
// followed by a low one.
type Button struct {
	mu      sync.Mutex
	pending []bool
}

func (b *Button) Press() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, true, false)
}

func (b *Button) Read() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return false, nil
	}
	level := b.pending[0]
	b.pending = b.pending[1:]
	return level, nil
}
