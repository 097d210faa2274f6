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
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryStartsErased(t *testing.T) {
	m := NewMemory(16)
	buf := make([]byte, 4)
	if _, err := m.ReadAt(buf, 12); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if diff := cmp.Diff([]byte{Erased, Erased, Erased, Erased}, buf); diff != "" {
		t.Errorf("erased cells mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory(16)
	tests := []struct {
		name string
		n    int
		off  int64
	}{
		{"past end", 4, 13},
		{"negative offset", 1, -1},
		{"larger than image", 17, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.WriteAt(make([]byte, tt.n), tt.off); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("WriteAt() error = %v, want ErrOutOfRange", err)
			}
			if _, err := m.ReadAt(make([]byte, tt.n), tt.off); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("ReadAt() error = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestBackendsPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	payload := []byte{0xEF, 0xBE, 0xAD, 0xDE, 0x01}

	backends := []struct {
		name string
		open func() (Device, func() error, error)
	}{
		{"file", func() (Device, func() error, error) {
			f, err := OpenFile(filepath.Join(dir, "eeprom.bin"), DefaultSize)
			if err != nil {
				return nil, nil, err
			}
			return f, f.Close, nil
		}},
		{"bolt", func() (Device, func() error, error) {
			b, err := OpenBolt(filepath.Join(dir, "eeprom.db"), DefaultSize)
			if err != nil {
				return nil, nil, err
			}
			return b, b.Close, nil
		}},
	}

	for _, tt := range backends {
		t.Run(tt.name, func(t *testing.T) {
			dev, closeFn, err := tt.open()
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if dev.Size() != DefaultSize {
				t.Errorf("Size() = %d, want %d", dev.Size(), DefaultSize)
			}
			if _, err := dev.WriteAt(payload, 100); err != nil {
				t.Fatalf("WriteAt() error = %v", err)
			}
			if err := closeFn(); err != nil {
				t.Fatalf("close: %v", err)
			}

			dev, closeFn, err = tt.open()
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer closeFn()

			got := make([]byte, len(payload)+1)
			if _, err := dev.ReadAt(got, 100); err != nil {
				t.Fatalf("ReadAt() error = %v", err)
			}
			want := append(append([]byte(nil), payload...), Erased)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("image mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
