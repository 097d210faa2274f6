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

// Package drq implements the line protocol spoken between the controller
// and its network bridge. Each line carries one state field:
//
//	DRQ:RT:21.50
//	DRQ:BT:61.25
//	DRQ:O:42
//	DRQ:R:1
//	DRQ:HN:true
package drq

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const Prefix = "DRQ:"

var (
	ErrNotDRQ     = errors.New("not a DRQ line")
	ErrUnknownTag = errors.New("unknown DRQ tag")
)

type Tag string

const (
	TagRoomTemp     Tag = "RT"
	TagBoilerTemp   Tag = "BT"
	TagAngle        Tag = "O"
	TagCircuitRelay Tag = "R"
	TagHeatNeeded   Tag = "HN"
)

// Tags lists every tag in emission order.
var Tags = []Tag{TagRoomTemp, TagBoilerTemp, TagAngle, TagCircuitRelay, TagHeatNeeded}

// State is the bridge-visible controller state. The JSON form is what the
// bridge publishes.
type State struct {
	RoomTemp     float64 `json:"roomTemp"`
	BoilerTemp   float64 `json:"boilerTemp"`
	Angle        int     `json:"angle"`
	CircuitRelay bool    `json:"circuitRelay"`
	HeatNeeded   bool    `json:"heatNeeded"`
}

func (s *State) value(tag Tag) string {
	switch tag {
	case TagRoomTemp:
		return strconv.FormatFloat(s.RoomTemp, 'f', 2, 64)
	case TagBoilerTemp:
		return strconv.FormatFloat(s.BoilerTemp, 'f', 2, 64)
	case TagAngle:
		return strconv.Itoa(s.Angle)
	case TagCircuitRelay:
		if s.CircuitRelay {
			return "1"
		}
		return "0"
	case TagHeatNeeded:
		return strconv.FormatBool(s.HeatNeeded)
	}
	return ""
}

// Encode renders one tag of s as a line, without the terminator.
func Encode(tag Tag, s *State) string {
	return Prefix + string(tag) + ":" + s.value(tag)
}

// Diff returns the lines for every tag whose value differs between prev
// and cur. A nil prev yields every tag.
func Diff(prev, cur *State) []string {
	var lines []string
	for _, tag := range Tags {
		v := cur.value(tag)
		if prev != nil && prev.value(tag) == v {
			continue
		}
		lines = append(lines, Prefix+string(tag)+":"+v)
	}
	return lines
}

func parseFlag(v string) bool {
	return v == "1" || v == "true"
}

// Apply parses a line and updates the matching field of s.
func (s *State) Apply(line string) (Tag, error) {
	line = strings.TrimRight(line, "\r\n")
	body, ok := strings.CutPrefix(line, Prefix)
	if !ok {
		return "", ErrNotDRQ
	}
	name, v, ok := strings.Cut(body, ":")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTag, body)
	}

	tag := Tag(name)
	switch tag {
	case TagRoomTemp, TagBoilerTemp:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return tag, fmt.Errorf("failed to parse %s value %q: %w", tag, v, err)
		}
		if tag == TagRoomTemp {
			s.RoomTemp = f
		} else {
			s.BoilerTemp = f
		}
	case TagAngle:
		n, err := strconv.Atoi(v)
		if err != nil {
			return tag, fmt.Errorf("failed to parse %s value %q: %w", tag, v, err)
		}
		s.Angle = n
	case TagCircuitRelay:
		s.CircuitRelay = parseFlag(v)
	case TagHeatNeeded:
		s.HeatNeeded = parseFlag(v)
	default:
		return tag, fmt.Errorf("%w: %q", ErrUnknownTag, name)
	}
	return tag, nil
}
