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

package thermo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mlipscombe/thermo-mate/eeprom"
	log "github.com/sirupsen/logrus"
)

// Magic marks an initialised record.
const Magic uint32 = 0xDEADBEEF

// SchemaVersion must change whenever Configuration or Curve changes shape.
const SchemaVersion uint8 = 1

var byteOrder = binary.LittleEndian

var (
	ErrBadMagic      = errors.New("thermo: record magic mismatch")
	ErrSchemaVersion = errors.New("thermo: record schema version mismatch")
)

// RecordSize is the byte length of a stored record:
// [magic:4][version:1][Configuration][Curve.X][Curve.Y].
func RecordSize() int {
	return binary.Size(Magic) + binary.Size(SchemaVersion) + binary.Size(Configuration{}) + binary.Size(Curve{})
}

func writeField(w io.Writer, v interface{}, fieldName string) error {
	if err := binary.Write(w, byteOrder, v); err != nil {
		return fmt.Errorf("failed to write %s: %w", fieldName, err)
	}
	return nil
}

func readField(r io.Reader, v interface{}, fieldName string) error {
	if err := binary.Read(r, byteOrder, v); err != nil {
		return fmt.Errorf("failed to read %s: %w", fieldName, err)
	}
	return nil
}

// Encode writes the record as one contiguous unit.
func Encode(w io.Writer, s *Settings) error {
	if err := writeField(w, Magic, "magic"); err != nil {
		return err
	}
	if err := writeField(w, SchemaVersion, "version"); err != nil {
		return err
	}
	if err := writeField(w, &s.Config, "configuration"); err != nil {
		return err
	}
	if err := writeField(w, &s.Curve.X, "curve x"); err != nil {
		return err
	}
	return writeField(w, &s.Curve.Y, "curve y")
}

// Decode reads a record, rejecting it when the magic or schema version
// does not match.
func Decode(r io.Reader) (Settings, error) {
	var s Settings
	var magic uint32
	if err := readField(r, &magic, "magic"); err != nil {
		return s, err
	}
	if magic != Magic {
		return s, fmt.Errorf("%w: got 0x%08x", ErrBadMagic, magic)
	}
	var version uint8
	if err := readField(r, &version, "version"); err != nil {
		return s, err
	}
	if version != SchemaVersion {
		return s, fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, version, SchemaVersion)
	}
	if err := readField(r, &s.Config, "configuration"); err != nil {
		return s, err
	}
	if err := readField(r, &s.Curve.X, "curve x"); err != nil {
		return s, err
	}
	if err := readField(r, &s.Curve.Y, "curve y"); err != nil {
		return s, err
	}
	return s, nil
}

// Save persists the whole record at offset 0.
func Save(dev eeprom.Device, s *Settings) error {
	buf := new(bytes.Buffer)
	if err := Encode(buf, s); err != nil {
		return err
	}
	if _, err := dev.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}

// Load reads the stored record. An uninitialised or incompatible record is
// replaced by the compiled-in defaults, which are persisted immediately;
// reset reports that this happened.
func Load(dev eeprom.Device) (s Settings, reset bool, err error) {
	raw := make([]byte, RecordSize())
	if _, err := dev.ReadAt(raw, 0); err != nil {
		return s, false, fmt.Errorf("failed to read settings: %w", err)
	}
	s, err = Decode(bytes.NewReader(raw))
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, ErrBadMagic) && !errors.Is(err, ErrSchemaVersion) {
		return s, false, err
	}

	log.Infof("stored settings rejected (%v), restoring defaults", err)
	s = DefaultSettings()
	if err := Save(dev, &s); err != nil {
		return s, true, err
	}
	return s, true, nil
}
