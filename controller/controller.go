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

// Package controller owns the heating state and runs it on the cooperative
// scheduler: read buttons and sensors, evaluate the curve and hysteresis,
// drive the outputs, and refresh the display.
package controller

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mlipscombe/thermo-mate/actuator"
	"github.com/mlipscombe/thermo-mate/display"
	"github.com/mlipscombe/thermo-mate/eeprom"
	"github.com/mlipscombe/thermo-mate/menu"
	"github.com/mlipscombe/thermo-mate/scheduler"
	"github.com/mlipscombe/thermo-mate/sensor"
	"github.com/mlipscombe/thermo-mate/thermo"
)

var ErrQueueFull = errors.New("controller command queue full")

const commandQueueSize = 8

// Intervals are the task cadences.
type Intervals struct {
	Buttons   time.Duration
	Control   time.Duration
	Sensors   time.Duration
	Actuators time.Duration
	Status    time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Buttons:   100 * time.Millisecond,
		Control:   1000 * time.Millisecond,
		Sensors:   2000 * time.Millisecond,
		Actuators: 6000 * time.Millisecond,
		Status:    1000 * time.Millisecond,
	}
}

type Options struct {
	Intervals Intervals
	HardLimit float64
}

func DefaultOptions() Options {
	return Options{Intervals: DefaultIntervals(), HardLimit: thermo.DefaultHardLimit}
}

// Thermometer is a single-value temperature source such as a sensor.Probe.
type Thermometer interface {
	Read() (float64, error)
}

// Hardware is the set of devices the controller drives.
type Hardware struct {
	Boiler  Thermometer
	Room    sensor.RoomSensor
	Buttons *menu.Panel
	Outputs *actuator.Driver
	Display display.Sink
}

// Controller holds all mutable heating state. Everything except Snapshot,
// Settings and the command queue is touched only from the tick goroutine.
type Controller struct {
	opts     Options
	hw       Hardware
	dev      eeprom.Device
	settings thermo.Settings
	state    thermo.State
	nav      *menu.Navigator
	screen   *display.Screen
	sched    *scheduler.Scheduler

	buttons   *scheduler.Task
	control   *scheduler.Task
	sensors   *scheduler.Task
	actuators *scheduler.Task
	status    *scheduler.Task

	commands  chan func(*thermo.Settings)
	observers []func(thermo.Snapshot)

	// boiler above the hard limit at the last sensor read
	tripped bool

	mu       sync.RWMutex
	snapshot thermo.Snapshot
	shared   thermo.Settings
}

// New loads the persisted settings from dev and registers the control
// tasks. Nothing runs until the first Tick.
func New(dev eeprom.Device, hw Hardware, opts Options) (*Controller, error) {
	settings, reset, err := thermo.Load(dev)
	if err != nil {
		return nil, err
	}
	if reset {
		log.Info("Settings were reset to defaults")
	}

	c := &Controller{
		opts:     opts,
		hw:       hw,
		dev:      dev,
		settings: settings,
		state:    thermo.NewState(),
		screen:   display.NewScreen(hw.Display),
		sched:    scheduler.New(),
		commands: make(chan func(*thermo.Settings), commandQueueSize),
	}
	c.nav = menu.NewNavigator(menu.New(&c.settings))

	iv := opts.Intervals
	c.buttons = c.sched.Add("buttons", iv.Buttons, scheduler.Forever, c.readButtons)
	c.control = c.sched.Add("control", iv.Control, 1, c.evaluate)
	c.sensors = c.sched.Add("sensors", iv.Sensors, scheduler.Forever, c.readSensors)
	c.actuators = c.sched.Add("actuators", iv.Actuators, 1, c.refreshOutputs)
	c.status = c.sched.Add("status", iv.Status, 1, c.printStatus)

	c.sched.Link(c.buttons, c.control, true)
	c.sched.Link(c.buttons, c.actuators, true)
	c.sched.Link(c.buttons, c.status, true)
	c.sched.Link(c.sensors, c.control, false)
	c.sched.Link(c.sensors, c.status, false)
	c.sched.Link(c.control, c.actuators, false)
	c.sched.Link(c.control, c.status, true)

	for _, t := range c.sched.Tasks() {
		c.sched.Enable(t)
	}
	c.publish()
	return c, nil
}

// OnStatus registers fn to receive a snapshot after every status refresh.
// It is called on the tick goroutine and must not block. Register
// observers before the first Tick.
func (c *Controller) OnStatus(fn func(thermo.Snapshot)) {
	c.observers = append(c.observers, fn)
}

// Tick runs one scheduler pass.
func (c *Controller) Tick(now time.Time) int {
	return c.sched.Tick(now)
}

// Run ticks every period until ctx is done.
func (c *Controller) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	c.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Tasks exposes the scheduler tasks in execution order.
func (c *Controller) Tasks() []*scheduler.Task {
	return c.sched.Tasks()
}

func (c *Controller) Snapshot() thermo.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Settings returns a copy of the settings as of the last status refresh.
func (c *Controller) Settings() thermo.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shared
}

// SetRelayOverride queues a relay override change. It is applied and
// persisted on the next button pass, like a menu edit.
func (c *Controller) SetRelayOverride(o thermo.RelayOverride) error {
	if o > thermo.RelayForcedOff {
		return errors.New("invalid relay override")
	}
	return c.enqueue(func(s *thermo.Settings) {
		s.Config.CircuitRelayForced = o
	})
}

func (c *Controller) enqueue(fn func(*thermo.Settings)) error {
	select {
	case c.commands <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Controller) drainCommands() bool {
	applied := false
	for {
		select {
		case fn := <-c.commands:
			before := c.settings
			fn(&c.settings)
			if c.settings != before {
				applied = true
			}
		default:
			return applied
		}
	}
}

func (c *Controller) persist() {
	if err := thermo.Save(c.dev, &c.settings); err != nil {
		log.Errorf("Failed to persist settings: %v", err)
	}
}

func (c *Controller) readButtons() bool {
	remote := c.drainCommands()

	actions, err := c.hw.Buttons.Poll()
	if err != nil {
		log.Warnf("Failed to read buttons: %v", err)
	}
	res := c.nav.Handle(actions)
	if res.Navigated {
		c.screen.Clear()
	}
	if res.Edited || remote {
		c.persist()
	}
	if res.Changed() {
		log.WithFields(log.Fields{
			"actions":  actions,
			"selected": c.nav.Selected(),
		}).Debug("menu updated")
	}
	return res.Changed() || remote
}

func (c *Controller) readSensors() bool {
	lastBoiler, lastRoom := c.state.BoilerTemp, c.state.RoomTemp

	raw, boilerErr := c.hw.Boiler.Read()
	if boilerErr != nil {
		log.Warnf("Failed to read boiler temperature: %v", boilerErr)
	}

	reading, err := c.hw.Room.Read()
	if err != nil {
		log.Warnf("Failed to read room sensor: %v", err)
		c.state.RoomTemp = math.NaN()
	} else {
		c.state.RoomTemp = reading.Celsius
		c.state.RoomHumidity = reading.Humidity
	}

	// A failed boiler read keeps the previous value.
	if boilerErr == nil {
		cfg := &c.settings.Config
		c.state.BoilerTemp = sensor.Correct(raw, c.state.RoomTemp, cfg.DeltaTempPoly1, cfg.DeltaTempPoly0)
	}

	// Crossing the hard limit may leave angle and relay untouched, so the
	// outputs are refreshed here rather than through the control task.
	if tripped := c.state.BoilerTemp > c.opts.HardLimit; tripped != c.tripped {
		c.tripped = tripped
		if tripped {
			log.Warnf("Boiler at %.1f exceeds hard limit %.1f, forcing safety outputs", c.state.BoilerTemp, c.opts.HardLimit)
		} else {
			log.Infof("Boiler back below hard limit %.1f", c.opts.HardLimit)
		}
		c.sched.Notify(c.actuators, true)
		c.sched.Notify(c.status, true)
	}

	changed := c.state.BoilerTemp != lastBoiler || c.state.RoomTemp != lastRoom
	if changed {
		log.WithFields(log.Fields{
			"boiler": c.state.BoilerTemp,
			"room":   c.state.RoomTemp,
		}).Debug("sensors updated")
	}
	return changed
}

func (c *Controller) evaluate() bool {
	changed := c.settings.Evaluate(&c.state)
	if changed {
		log.WithFields(log.Fields{
			"heatNeeded":   c.state.HeatNeeded,
			"overheating":  c.state.Overheating,
			"underheating": c.state.Underheating,
			"relay":        c.state.CircuitRelay,
			"angle":        c.state.Angle,
		}).Debug("control state changed")
	}
	return changed
}

func (c *Controller) refreshOutputs() bool {
	cmd := c.settings.Decide(&c.state, c.nav.Calibration(), c.opts.HardLimit)
	if err := c.hw.Outputs.Apply(cmd, &c.settings.Config); err != nil {
		log.Errorf("Failed to drive outputs: %v", err)
	}
	return false
}

func (c *Controller) printStatus() bool {
	snap := c.publish()
	c.screen.Render(&snap, c.nav)
	for _, fn := range c.observers {
		fn(snap)
	}
	return false
}

func (c *Controller) publish() thermo.Snapshot {
	last := c.hw.Outputs.Last()
	snap := thermo.Snapshot{
		State:       c.state,
		Override:    c.settings.Config.CircuitRelayForced,
		RelayOutput: last.Relay,
		VentPercent: last.VentPercent,
		Safety:      last.Safety,
		Selected:    c.nav.Selected(),
		Time:        c.sched.Now(),
	}
	c.mu.Lock()
	c.snapshot = snap
	c.shared = c.settings
	c.mu.Unlock()
	return snap
}
