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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mlipscombe/thermo-mate/controller"
	"github.com/mlipscombe/thermo-mate/sensor"
	"github.com/mlipscombe/thermo-mate/thermo"
)

const (
	BackendSim   = "sim"
	BackendLinux = "linux"

	RoomAHT20      = "aht20"
	RoomThermistor = "thermistor"
)

// Profile describes the board the controller runs on.
type Profile struct {
	Backend    string            `yaml:"backend"`
	TickPeriod time.Duration     `yaml:"tick_period"`
	HardLimit  float64           `yaml:"hard_limit"`
	Pins       PinsProfile       `yaml:"pins"`
	Boiler     ThermistorProfile `yaml:"boiler"`
	Room       RoomProfile       `yaml:"room"`
	I2C        I2CProfile        `yaml:"i2c"`
	Servo      ServoProfile      `yaml:"servo"`
	Tasks      TasksProfile      `yaml:"tasks"`
}

// PinsProfile holds GPIO line offsets on Chip. Buttons are prev, next,
// -1, +1.
type PinsProfile struct {
	Chip    string `yaml:"chip"`
	Buttons [4]int `yaml:"buttons"`
	Relay   int    `yaml:"relay"`
}

// ThermistorProfile is a divider on an IIO ADC channel.
type ThermistorProfile struct {
	ADCPath        string        `yaml:"adc_path"`
	ADCMax         float64       `yaml:"adc_max"`
	SeriesResistor float64       `yaml:"series_resistor"`
	RefResistance  float64       `yaml:"ref_resistance"`
	RefTemp        float64       `yaml:"ref_temp"`
	Beta           float64       `yaml:"beta"`
	Settle         time.Duration `yaml:"settle"`
}

type RoomProfile struct {
	Kind       string            `yaml:"kind"`
	Thermistor ThermistorProfile `yaml:"thermistor"`
}

type I2CProfile struct {
	Bus        string `yaml:"bus"`
	LCDAddress uint8  `yaml:"lcd_address"`
}

// ServoProfile is a channel on the first PWM chip.
type ServoProfile struct {
	Channel  int           `yaml:"channel"`
	Period   time.Duration `yaml:"period"`
	MinPulse time.Duration `yaml:"min_pulse"`
	MaxPulse time.Duration `yaml:"max_pulse"`
}

type TasksProfile struct {
	Buttons   time.Duration `yaml:"buttons"`
	Control   time.Duration `yaml:"control"`
	Sensors   time.Duration `yaml:"sensors"`
	Actuators time.Duration `yaml:"actuators"`
	Status    time.Duration `yaml:"status"`
}

func defaultThermistor(adcPath string) ThermistorProfile {
	t := sensor.DefaultThermistor()
	return ThermistorProfile{
		ADCPath:        adcPath,
		ADCMax:         t.ADCMax,
		SeriesResistor: t.SeriesResistor,
		RefResistance:  t.RefResistance,
		RefTemp:        t.RefTempC,
		Beta:           t.Beta,
		Settle:         10 * time.Millisecond,
	}
}

// DefaultProfile runs against the simulator.
func DefaultProfile() *Profile {
	iv := controller.DefaultIntervals()
	return &Profile{
		Backend:    BackendSim,
		TickPeriod: 10 * time.Millisecond,
		HardLimit:  thermo.DefaultHardLimit,
		Pins: PinsProfile{
			Chip:    "gpiochip0",
			Buttons: [4]int{17, 27, 22, 23},
			Relay:   24,
		},
		Boiler: defaultThermistor("/sys/bus/iio/devices/iio:device0/in_voltage0_raw"),
		Room: RoomProfile{
			Kind:       RoomAHT20,
			Thermistor: defaultThermistor("/sys/bus/iio/devices/iio:device0/in_voltage1_raw"),
		},
		I2C: I2CProfile{
			Bus:        "/dev/i2c-1",
			LCDAddress: 0x27,
		},
		Servo: ServoProfile{
			Period:   20 * time.Millisecond,
			MinPulse: 544 * time.Microsecond,
			MaxPulse: 2400 * time.Microsecond,
		},
		Tasks: TasksProfile{
			Buttons:   iv.Buttons,
			Control:   iv.Control,
			Sensors:   iv.Sensors,
			Actuators: iv.Actuators,
			Status:    iv.Status,
		},
	}
}

// LoadProfile reads a profile from a YAML file. A missing file yields the
// defaults, and fields left out of the file keep their default values.
func LoadProfile(filename string) (*Profile, error) {
	p := DefaultProfile()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	p.ensureDefaults()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes the profile as YAML.
func (p *Profile) Save(filename string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

func (p *Profile) Validate() error {
	switch p.Backend {
	case BackendSim, BackendLinux:
	default:
		return fmt.Errorf("unknown backend %q", p.Backend)
	}
	switch p.Room.Kind {
	case RoomAHT20, RoomThermistor:
	default:
		return fmt.Errorf("unknown room sensor %q", p.Room.Kind)
	}
	if p.Servo.MinPulse >= p.Servo.MaxPulse {
		return fmt.Errorf("servo min pulse %s must be below max pulse %s", p.Servo.MinPulse, p.Servo.MaxPulse)
	}
	return nil
}

// ensureDefaults fills zero values an explicit empty YAML key may leave.
func (p *Profile) ensureDefaults() {
	def := DefaultProfile()

	if p.Backend == "" {
		p.Backend = def.Backend
	}
	if p.TickPeriod == 0 {
		p.TickPeriod = def.TickPeriod
	}
	if p.HardLimit == 0 {
		p.HardLimit = def.HardLimit
	}
	if p.Room.Kind == "" {
		p.Room.Kind = def.Room.Kind
	}
	if p.Pins.Chip == "" {
		p.Pins.Chip = def.Pins.Chip
	}
	p.Boiler.ensureDefaults(def.Boiler)
	p.Room.Thermistor.ensureDefaults(def.Room.Thermistor)

	if p.I2C.Bus == "" {
		p.I2C.Bus = def.I2C.Bus
	}
	if p.I2C.LCDAddress == 0 {
		p.I2C.LCDAddress = def.I2C.LCDAddress
	}

	if p.Servo.Period == 0 {
		p.Servo.Period = def.Servo.Period
	}
	if p.Servo.MinPulse == 0 {
		p.Servo.MinPulse = def.Servo.MinPulse
	}
	if p.Servo.MaxPulse == 0 {
		p.Servo.MaxPulse = def.Servo.MaxPulse
	}

	if p.Tasks.Buttons == 0 {
		p.Tasks.Buttons = def.Tasks.Buttons
	}
	if p.Tasks.Control == 0 {
		p.Tasks.Control = def.Tasks.Control
	}
	if p.Tasks.Sensors == 0 {
		p.Tasks.Sensors = def.Tasks.Sensors
	}
	if p.Tasks.Actuators == 0 {
		p.Tasks.Actuators = def.Tasks.Actuators
	}
	if p.Tasks.Status == 0 {
		p.Tasks.Status = def.Tasks.Status
	}
}

func (t *ThermistorProfile) ensureDefaults(def ThermistorProfile) {
	if t.ADCPath == "" {
		t.ADCPath = def.ADCPath
	}
	if t.ADCMax == 0 {
		t.ADCMax = def.ADCMax
	}
	if t.SeriesResistor == 0 {
		t.SeriesResistor = def.SeriesResistor
	}
	if t.RefResistance == 0 {
		t.RefResistance = def.RefResistance
	}
	if t.Beta == 0 {
		t.Beta = def.Beta
	}
}

// Thermistor returns the conversion constants.
func (t ThermistorProfile) Thermistor() sensor.Thermistor {
	return sensor.Thermistor{
		SeriesResistor: t.SeriesResistor,
		RefResistance:  t.RefResistance,
		RefTempC:       t.RefTemp,
		Beta:           t.Beta,
		ADCMax:         t.ADCMax,
	}
}

// Options returns the controller options described by the profile.
func (p *Profile) Options() controller.Options {
	return controller.Options{
		HardLimit: p.HardLimit,
		Intervals: controller.Intervals{
			Buttons:   p.Tasks.Buttons,
			Control:   p.Tasks.Control,
			Sensors:   p.Tasks.Sensors,
			Actuators: p.Tasks.Actuators,
			Status:    p.Tasks.Status,
		},
	}
}
