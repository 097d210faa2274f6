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

package eeprom

import (
	"bytes"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// File is an image kept in a regular file of fixed size.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens or creates an image file, padding a new or short file
// with erased cells.
func OpenFile(path string, size int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open eeprom image %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat eeprom image %s: %w", path, err)
	}
	if info.Size() < int64(size) {
		log.Infof("eeprom: initialising %s (%d bytes)", path, size)
		pad := bytes.Repeat([]byte{Erased}, size-int(info.Size()))
		if _, err := f.WriteAt(pad, info.Size()); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to initialise eeprom image %s: %w", path, err)
		}
	}
	return &File{f: f, size: int64(size)}, nil
}

func (e *File) Size() int64 { return e.size }

func (e *File) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(e, len(p), off); err != nil {
		return 0, err
	}
	return e.f.ReadAt(p, off)
}

func (e *File) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(e, len(p), off); err != nil {
		return 0, err
	}
	n, err := e.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, e.f.Sync()
}

func (e *File) Close() error {
	return e.f.Close()
}
