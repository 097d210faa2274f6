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

// Package sensor turns raw analog and digital readings into calibrated
// boiler and room temperatures.
package sensor

import (
	"fmt"
	"math"
	"time"

	"github.com/mlipscombe/thermo-mate/hal"
)

const kelvinOffset = 273.15

// Thermistor describes an NTC thermistor on the low side of a voltage
// divider, evaluated with the beta equation.
type Thermistor struct {
	SeriesResistor float64
	RefResistance  float64
	RefTempC       float64
	Beta           float64
	ADCMax         float64
}

func DefaultThermistor() Thermistor {
	return Thermistor{
		SeriesResistor: 10000,
		RefResistance:  10000,
		RefTempC:       25,
		Beta:           3977,
		ADCMax:         1023,
	}
}

// Resistance of the thermistor for a divider reading.
func (t Thermistor) Resistance(counts uint16) float64 {
	v := float64(counts)
	return t.SeriesResistor * v / (t.ADCMax - v)
}

// Celsius converts a divider reading, rounded to 1/16 °C.
func (t Thermistor) Celsius(counts uint16) float64 {
	r := t.Resistance(counts)
	invT := 1/(t.RefTempC+kelvinOffset) + math.Log(r/t.RefResistance)/t.Beta
	return RoundSixteenth(1/invT - kelvinOffset)
}

// Counts is the inverse of Celsius, before rounding.
func (t Thermistor) Counts(celsius float64) uint16 {
	invT := 1 / (celsius + kelvinOffset)
	r := t.RefResistance * math.Exp(t.Beta*(invT-1/(t.RefTempC+kelvinOffset)))
	v := t.ADCMax * r / (t.SeriesResistor + r)
	return uint16(math.Max(0, math.Min(math.Round(v), t.ADCMax)))
}

func RoundSixteenth(v float64) float64 {
	return math.Round(v*16) / 16
}

// Probe samples a thermistor through an ADC. The first conversion after
// switching channels is discarded to let the sample-and-hold settle.
type Probe struct {
	adc    hal.ADC
	therm  Thermistor
	settle time.Duration
	sleep  func(time.Duration)
}

func NewProbe(adc hal.ADC, therm Thermistor, settle time.Duration) *Probe {
	return &Probe{adc: adc, therm: therm, settle: settle, sleep: time.Sleep}
}

func (p *Probe) Read() (float64, error) {
	if _, err := p.adc.Read(); err != nil {
		return 0, fmt.Errorf("adc settle read: %w", err)
	}
	if p.settle > 0 {
		p.sleep(p.settle)
	}
	counts, err := p.adc.Read()
	if err != nil {
		return 0, fmt.Errorf("adc read: %w", err)
	}
	return p.therm.Celsius(counts), nil
}

// Correct de-biases the boiler reading with the linear fit
// poly1*(boiler-room) + poly0. A NaN room reading leaves it unchanged.
func Correct(boiler, room float64, poly1, poly0 float32) float64 {
	if math.IsNaN(room) {
		return boiler
	}
	return boiler + float64(poly1)*(boiler-room) + float64(poly0)
}
