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
	"sync"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

var (
	hostOnce sync.Once
	hostErr  error
)

func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("failed to initialise periph host: %w", err)
		}
	})
	return hostErr
}

// I2CBus adapts a periph bus to the tinygo drivers.I2C contract so the
// LCD and AHT20 drivers can share it.
type I2CBus struct {
	bus i2c.BusCloser
}

var _ drivers.I2C = (*I2CBus)(nil)

// OpenI2C opens a bus by periph name, such as "/dev/i2c-1", "I2C1" or "1".
// An empty name picks the first bus found.
func OpenI2C(name string) (*I2CBus, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	log.Debugf("i2c bus %s opened", bus)
	return NewI2CBus(bus), nil
}

func NewI2CBus(bus i2c.BusCloser) *I2CBus {
	return &I2CBus{bus: bus}
}

// Tx writes w then reads len(r) bytes from the device at addr.
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	if err := b.bus.Tx(addr, w, r); err != nil {
		return fmt.Errorf("i2c transaction with 0x%02x: %w", addr, err)
	}
	return nil
}

func (b *I2CBus) Close() error {
	return b.bus.Close()
}
