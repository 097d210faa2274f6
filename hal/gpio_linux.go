//go:build linux

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

	log "github.com/sirupsen/logrus"
	gpiod "github.com/warthog618/go-gpiocdev"
)

// GPIO is a single line requested from a GPIO character device.
type GPIO struct {
	line *gpiod.Line
}

// OpenGPIO requests offset on chip. Inputs get a pull-up so an idle button
// reads high; outputs start high so an active-low relay starts released.
func OpenGPIO(chip string, offset int, output bool) (*GPIO, error) {
	opts := []gpiod.LineReqOption{gpiod.AsInput, gpiod.WithPullUp}
	if output {
		opts = []gpiod.LineReqOption{gpiod.AsOutput(1)}
	}
	line, err := gpiod.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s line %d: %w", chip, offset, err)
	}
	log.Debugf("%s line %d requested (output: %t)", chip, offset, output)
	return &GPIO{line: line}, nil
}

func (g *GPIO) Read() (bool, error) {
	v, err := g.line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read line %d: %w", g.line.Offset(), err)
	}
	return v != 0, nil
}

func (g *GPIO) Write(level bool) error {
	v := 0
	if level {
		v = 1
	}
	if err := g.line.SetValue(v); err != nil {
		return fmt.Errorf("failed to set line %d: %w", g.line.Offset(), err)
	}
	return nil
}

func (g *GPIO) Close() error {
	return g.line.Close()
}
