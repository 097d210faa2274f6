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

package sensor

import (
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/aht20"
)

// Reading is one room sample.
type Reading struct {
	Celsius  float64
	Humidity float64
}

// RoomSensor measures room temperature and humidity.
type RoomSensor interface {
	Read() (Reading, error)
}

// AHT20 is a combined temperature/humidity sensor on I2C.
type AHT20 struct {
	dev aht20.Device
}

func NewAHT20(bus drivers.I2C) *AHT20 {
	dev := aht20.New(bus)
	dev.Configure()
	return &AHT20{dev: dev}
}

func (s *AHT20) Read() (Reading, error) {
	if err := s.dev.Read(); err != nil {
		return Reading{}, fmt.Errorf("aht20: %w", err)
	}
	return Reading{
		Celsius:  float64(s.dev.DeciCelsius()) / 10,
		Humidity: float64(s.dev.DeciRelHumidity()) / 10,
	}, nil
}

// RoomThermistor uses a second divider channel; it has no humidity.
type RoomThermistor struct {
	probe *Probe
}

func NewRoomThermistor(probe *Probe) *RoomThermistor {
	return &RoomThermistor{probe: probe}
}

func (s *RoomThermistor) Read() (Reading, error) {
	c, err := s.probe.Read()
	if err != nil {
		return Reading{}, err
	}
	return Reading{Celsius: c}, nil
}
