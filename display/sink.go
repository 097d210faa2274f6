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

package display

import (
	"strings"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"
)

// LCD drives a PCF8574-backed HD44780 module over I2C.
type LCD struct {
	dev hd44780i2c.Device
}

func NewLCD(bus drivers.I2C, addr uint8) (*LCD, error) {
	dev := hd44780i2c.New(bus, addr)
	if err := dev.Configure(hd44780i2c.Config{Width: Columns, Height: Rows}); err != nil {
		return nil, err
	}
	return &LCD{dev: dev}, nil
}

func (l *LCD) Clear()                   { l.dev.ClearDisplay() }
func (l *LCD) SetCursor(col, row uint8) { l.dev.SetCursor(col, row) }
func (l *LCD) Print(text string)        { l.dev.Print([]byte(text)) }

// Buffer is an in-memory frame. Writes past the right edge are dropped.
type Buffer struct {
	mu       sync.Mutex
	frame    [Rows][Columns]byte
	col, row uint8
	clears   int
}

func NewBuffer() *Buffer {
	b := &Buffer{}
	b.Clear()
	return b
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for r := range b.frame {
		for c := range b.frame[r] {
			b.frame[r][c] = ' '
		}
	}
	b.col, b.row = 0, 0
	b.clears++
}

func (b *Buffer) SetCursor(col, row uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.col, b.row = col, row
}

func (b *Buffer) Print(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(b.row) >= Rows {
		return
	}
	for i := 0; i < len(text); i++ {
		if int(b.col) >= Columns {
			return
		}
		b.frame[b.row][b.col] = text[i]
		b.col++
	}
}

// Lines returns each row with trailing blanks trimmed.
func (b *Buffer) Lines() [Rows]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [Rows]string
	for r := range b.frame {
		out[r] = strings.TrimRight(string(b.frame[r][:]), " ")
	}
	return out
}

// Clears counts how many times the display was cleared.
func (b *Buffer) Clears() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clears
}

var glyphNames = strings.NewReplacer(GlyphDegree, "°", GlyphYes, "■", GlyphNo, "□")

// Printable translates the LCD glyph codes of a frame line to Unicode.
func Printable(line string) string {
	return glyphNames.Replace(line)
}
