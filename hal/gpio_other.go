//go:build !linux

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

import "errors"

var errNoGPIO = errors.New("gpio character devices are only available on linux")

type GPIO struct{}

func OpenGPIO(chip string, offset int, output bool) (*GPIO, error) {
	return nil, errNoGPIO
}

func (g *GPIO) Read() (bool, error)    { return false, errNoGPIO }
func (g *GPIO) Write(level bool) error { return errNoGPIO }
func (g *GPIO) Close() error           { return nil }
