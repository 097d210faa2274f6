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

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func TestTickRunsInRegistrationOrder(t *testing.T) {
	s := New()
	var order []string
	for _, name := range []string{"buttons", "control", "sensors", "actuators", "status"} {
		name := name
		task := s.Add(name, time.Second, Forever, func() bool {
			order = append(order, name)
			return false
		})
		s.Enable(task)
	}

	ran := s.Tick(at(0))

	assert.Equal(t, 5, ran)
	assert.Equal(t, []string{"buttons", "control", "sensors", "actuators", "status"}, order)
}

func TestContinuousTaskRearms(t *testing.T) {
	s := New()
	task := s.Add("sensors", 2*time.Second, Forever, func() bool { return false })
	s.Enable(task)

	for ms := 0; ms <= 6000; ms += 100 {
		s.Tick(at(ms))
	}

	assert.Equal(t, uint64(4), task.Runs())
	assert.True(t, task.Enabled())
	assert.Equal(t, Forever, task.Iterations())
}

func TestOneShotDisablesAfterRun(t *testing.T) {
	s := New()
	task := s.Add("control", time.Second, 1, func() bool { return false })
	s.Enable(task)

	s.Tick(at(0))
	s.Tick(at(1000))
	s.Tick(at(5000))

	assert.Equal(t, uint64(1), task.Runs())
	assert.False(t, task.Enabled())
}

func TestNotifyImmediate(t *testing.T) {
	s := New()
	var early, late *Task
	early = s.Add("early", time.Second, 1, func() bool { return false })
	trigger := s.Add("trigger", 100*time.Millisecond, Forever, func() bool {
		s.Notify(early, true)
		s.Notify(late, true)
		return false
	})
	late = s.Add("late", time.Second, 1, func() bool { return false })
	s.Enable(trigger)

	s.Tick(at(0))
	// tasks after the notifier run in the same pass
	assert.Equal(t, uint64(1), late.Runs())
	assert.Equal(t, uint64(0), early.Runs())

	s.Tick(at(100))
	assert.Equal(t, uint64(1), early.Runs())
}

func TestNotifyDelayedCoalesces(t *testing.T) {
	s := New()
	task := s.Add("control", time.Second, 1, func() bool { return false })

	s.Tick(at(0))
	s.Notify(task, false)
	s.Tick(at(500))
	// a second notification while pending does not push the run back
	s.Notify(task, false)
	s.Tick(at(999))
	assert.Equal(t, uint64(0), task.Runs())

	s.Tick(at(1000))
	assert.Equal(t, uint64(1), task.Runs())
	assert.False(t, task.Enabled())

	s.Tick(at(3000))
	assert.Equal(t, uint64(1), task.Runs())
}

func TestNotifyResetsIterations(t *testing.T) {
	s := New()
	task := s.Add("status", time.Second, 5, func() bool { return false })
	s.Enable(task)
	s.Notify(task, true)

	require.Equal(t, 1, task.Iterations())
	s.Tick(at(0))
	s.Tick(at(1000))
	assert.Equal(t, uint64(1), task.Runs())
}

func TestPropagateFollowsLinks(t *testing.T) {
	s := New()
	changed := false
	source := s.Add("sensors", 2*time.Second, Forever, func() bool { return changed })
	control := s.Add("control", time.Second, 1, func() bool { return false })
	status := s.Add("status", time.Second, 1, func() bool { return false })
	s.Link(source, control, false)
	s.Link(source, status, true)
	s.Enable(source)

	s.Tick(at(0))
	assert.False(t, control.Enabled())
	assert.False(t, status.Enabled())

	changed = true
	s.Tick(at(2000))
	// immediate link ran in the same pass, delayed one waits an interval
	assert.Equal(t, uint64(1), status.Runs())
	assert.True(t, control.Enabled())
	assert.Equal(t, uint64(0), control.Runs())

	changed = false
	s.Tick(at(3000))
	assert.Equal(t, uint64(1), control.Runs())
}
