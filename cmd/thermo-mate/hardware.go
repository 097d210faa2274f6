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

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mlipscombe/thermo-mate/actuator"
	"github.com/mlipscombe/thermo-mate/config"
	"github.com/mlipscombe/thermo-mate/controller"
	"github.com/mlipscombe/thermo-mate/display"
	"github.com/mlipscombe/thermo-mate/eeprom"
	"github.com/mlipscombe/thermo-mate/hal"
	"github.com/mlipscombe/thermo-mate/menu"
	"github.com/mlipscombe/thermo-mate/sensor"
	"github.com/mlipscombe/thermo-mate/sim"
	"github.com/mlipscombe/thermo-mate/thermo"
)

type closer func() error

// storage is a settings device that may need closing.
type storage interface {
	eeprom.Device
	Close() error
}

// openEEPROM picks the bolt backend for .db paths and a raw image otherwise.
func openEEPROM(path string) (storage, error) {
	if filepath.Ext(path) == ".db" {
		db, err := eeprom.OpenBolt(path, eeprom.DefaultSize)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	img, err := eeprom.OpenFile(path, eeprom.DefaultSize)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// board is the wired hardware plus what main needs to drive a simulation.
type board struct {
	hw     controller.Hardware
	plant  *sim.Plant
	screen *display.Buffer
	close  []closer
}

func (b *board) Close() {
	for i := len(b.close) - 1; i >= 0; i-- {
		if err := b.close[i](); err != nil {
			log.Warnf("Failed to release hardware: %v", err)
		}
	}
}

func openBoard(p *config.Profile) (*board, error) {
	switch p.Backend {
	case config.BackendSim:
		return simBoard(p), nil
	case config.BackendLinux:
		return linuxBoard(p)
	}
	return nil, fmt.Errorf("unknown backend %q", p.Backend)
}

func simBoard(p *config.Profile) *board {
	therm := p.Boiler.Thermistor()
	plant := sim.New(sim.DefaultParams(), therm, 20, 18)
	screen := display.NewBuffer()
	return &board{
		plant:  plant,
		screen: screen,
		hw: controller.Hardware{
			Boiler:  sensor.NewProbe(plant.BoilerADC(), therm, 0),
			Room:    plant.RoomSensor(),
			Buttons: menu.NewPanel(plant.Buttons[0], plant.Buttons[1], plant.Buttons[2], plant.Buttons[3]),
			Outputs: actuator.New(plant.Servo(), plant.RelayPin()),
			Display: screen,
		},
	}
}

func linuxBoard(p *config.Profile) (*board, error) {
	b := &board{}
	fail := func(err error) (*board, error) {
		b.Close()
		return nil, err
	}

	var buttons [4]hal.DigitalIn
	for i, pin := range p.Pins.Buttons {
		g, err := hal.OpenGPIO(p.Pins.Chip, pin, false)
		if err != nil {
			return fail(err)
		}
		b.close = append(b.close, g.Close)
		buttons[i] = g
	}
	relay, err := hal.OpenGPIO(p.Pins.Chip, p.Pins.Relay, true)
	if err != nil {
		return fail(err)
	}
	b.close = append(b.close, relay.Close)
	servo, err := hal.OpenPWMServo(p.Servo.Channel, p.Servo.Period, p.Servo.MinPulse, p.Servo.MaxPulse)
	if err != nil {
		return fail(err)
	}

	bus, err := hal.OpenI2C(p.I2C.Bus)
	if err != nil {
		return fail(err)
	}
	b.close = append(b.close, bus.Close)

	lcd, err := display.NewLCD(bus, p.I2C.LCDAddress)
	if err != nil {
		return fail(fmt.Errorf("failed to configure lcd: %w", err))
	}

	var room sensor.RoomSensor
	switch p.Room.Kind {
	case config.RoomAHT20:
		room = sensor.NewAHT20(bus)
	default:
		t := p.Room.Thermistor
		room = sensor.NewRoomThermistor(sensor.NewProbe(hal.NewIIOChannel(t.ADCPath), t.Thermistor(), t.Settle))
	}

	b.hw = controller.Hardware{
		Boiler:  sensor.NewProbe(hal.NewIIOChannel(p.Boiler.ADCPath), p.Boiler.Thermistor(), p.Boiler.Settle),
		Room:    room,
		Buttons: menu.NewPanel(buttons[0], buttons[1], buttons[2], buttons[3]),
		Outputs: actuator.New(servo, relay),
		Display: lcd,
	}
	return b, nil
}

// runPlant advances the simulation in real time until ctx is done. The
// servo range follows the stored calibration so menu edits move the vent.
func runPlant(ctx context.Context, plant *sim.Plant, settings func() thermo.Settings, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := settings()
			plant.SetServoRange(s.Config.ServoMin, s.Config.ServoMax)
			plant.Step(period)
		}
	}
}
