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

package drq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// OpenPort opens a serial line in 8N1 at the given rate.
func OpenPort(name string, baud int) (serial.Port, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

// Writer emits the lines for fields that changed since the last Publish.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	last *State
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Publish(s State) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, line := range Diff(w.last, &s) {
		if _, err := io.WriteString(w.w, line+"\n"); err != nil {
			return fmt.Errorf("failed to write %q: %w", line, err)
		}
	}
	w.last = &s
	return nil
}

// Reader folds incoming lines into a running State.
type Reader struct {
	scanner *bufio.Scanner
	state   State
}

func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next blocks until a DRQ line arrives and returns the updated state.
// Other traffic on the line is skipped. Lines with an unknown tag still
// return the unchanged state so the caller can republish it.
func (r *Reader) Next() (State, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		tag, err := r.state.Apply(line)
		switch {
		case errors.Is(err, ErrNotDRQ):
			log.Debugf("serial: %s", line)
			continue
		case errors.Is(err, ErrUnknownTag):
			log.Warnf("Unknown command: %s", line)
		case err != nil:
			log.Warnf("Ignoring %s: %v", line, err)
			continue
		default:
			log.Debugf("Changed %s to %s", tag, r.state.value(tag))
		}
		return r.state, nil
	}
	if err := r.scanner.Err(); err != nil {
		return r.state, err
	}
	return r.state, io.EOF
}
