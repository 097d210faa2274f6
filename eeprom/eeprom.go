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

// Package eeprom provides flat, fixed-size byte images standing in for the
// controller's non-volatile memory.
package eeprom

import (
	"errors"
	"fmt"
	"io"
)

// DefaultSize matches the 1 KiB EEPROM of the original board.
const DefaultSize = 1024

// Erased is the value of a never-written cell.
const Erased byte = 0xFF

var ErrOutOfRange = errors.New("eeprom: access out of range")

// Device is a flat byte blob addressed by offset.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

func checkRange(dev Device, n int, off int64) error {
	if off < 0 || off+int64(n) > dev.Size() {
		return fmt.Errorf("%w: %d bytes at offset %d (size %d)", ErrOutOfRange, n, off, dev.Size())
	}
	return nil
}

// Memory is a volatile image, used by tests and simulated boards.
type Memory struct {
	cells []byte
}

func NewMemory(size int) *Memory {
	cells := make([]byte, size)
	for i := range cells {
		cells[i] = Erased
	}
	return &Memory{cells: cells}
}

func (m *Memory) Size() int64 { return int64(len(m.cells)) }

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(m, len(p), off); err != nil {
		return 0, err
	}
	return copy(p, m.cells[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(m, len(p), off); err != nil {
		return 0, err
	}
	return copy(m.cells[off:], p), nil
}

// Bytes exposes the raw image.
func (m *Memory) Bytes() []byte {
	return m.cells
}
