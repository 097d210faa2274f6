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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mlipscombe/thermo-mate/eeprom"
)

func TestRecordSize(t *testing.T) {
	// magic + version + configuration + both curve arrays
	if got, want := RecordSize(), 4+1+26+CurveCapacity*2; got != want {
		t.Errorf("RecordSize() = %d, want %d", got, want)
	}
}

func TestLoadErasedDeviceRestoresDefaults(t *testing.T) {
	dev := eeprom.NewMemory(eeprom.DefaultSize)

	s, reset, err := Load(dev)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reset {
		t.Error("Load() reset = false on erased device")
	}
	if diff := cmp.Diff(DefaultSettings(), s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}

	// defaults were persisted and now load cleanly
	s, reset, err = Load(dev)
	if err != nil || reset {
		t.Fatalf("second Load() = reset %v, err %v", reset, err)
	}
	if diff := cmp.Diff(DefaultSettings(), s); diff != "" {
		t.Errorf("persisted defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dev := eeprom.NewMemory(eeprom.DefaultSize)
	want := DefaultSettings()
	want.Config.RefTempRoom = 21.4
	want.Config.CircuitRelayForced = RelayForcedOff
	want.Config.ServoMin = -12
	want.Config.ServoMax = 2400
	want.Config.DebounceLimitC = -9.9
	want.Config.DeltaTempPoly1 = 0.2333
	want.Config.DeltaTempPoly0 = 1.612
	want.Config.CurveItems = 7
	want.Curve.X[6] = 30
	want.Curve.Y[6] = 3

	if err := Save(dev, &want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, reset, err := Load(dev)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reset {
		t.Error("Load() reset = true for a valid record")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsCorruptHeader(t *testing.T) {
	tests := []struct {
		name    string
		offset  int
		value   byte
		wantErr error
	}{
		{"magic", 0, 0x00, ErrBadMagic},
		{"schema version", 4, SchemaVersion + 1, ErrSchemaVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := eeprom.NewMemory(eeprom.DefaultSize)
			custom := DefaultSettings()
			custom.Config.RefTempBoiler = 77
			if err := Save(dev, &custom); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			dev.Bytes()[tt.offset] = tt.value

			if _, err := Decode(bytes.NewReader(dev.Bytes())); !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}

			s, reset, err := Load(dev)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reset {
				t.Error("Load() reset = false for corrupt record")
			}
			if diff := cmp.Diff(DefaultSettings(), s); diff != "" {
				t.Errorf("settings mismatch (-want +got):\n%s", diff)
			}

			stored, err := Decode(bytes.NewReader(dev.Bytes()))
			if err != nil {
				t.Fatalf("Decode() of fresh copy error = %v", err)
			}
			if diff := cmp.Diff(DefaultSettings(), stored); diff != "" {
				t.Errorf("fresh copy mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeShortRecord(t *testing.T) {
	var buf bytes.Buffer
	s := DefaultSettings()
	if err := Encode(&buf, &s); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	_, err := Decode(bytes.NewReader(buf.Bytes()[:10]))
	if err == nil {
		t.Fatal("Decode() of truncated record succeeded")
	}
	if errors.Is(err, ErrBadMagic) || errors.Is(err, ErrSchemaVersion) {
		t.Errorf("Decode() error = %v, want an I/O error", err)
	}
}
