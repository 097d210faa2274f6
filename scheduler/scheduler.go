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

// Package scheduler is a cooperative, single-threaded task runner.
//
// Tasks are visited in registration order on every Tick. A task whose
// callback reports a change notifies the tasks linked downstream of it,
// either for the current pass (immediate) or one interval later.
package scheduler

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Forever is the iteration count of a task that re-arms itself.
const Forever = -1

// Callback runs a task. It returns true when the task produced a change
// that downstream tasks must react to.
type Callback func() bool

type link struct {
	to        *Task
	immediate bool
}

type Task struct {
	Name string

	interval   time.Duration
	iterations int
	enabled    bool
	nextRun    time.Time
	callback   Callback
	downstream []link
	runs       uint64
}

// Interval returns the task's fixed cadence.
func (t *Task) Interval() time.Duration { return t.interval }

// Iterations returns the remaining number of runs, or Forever.
func (t *Task) Iterations() int { return t.iterations }

// Enabled reports whether the task is armed.
func (t *Task) Enabled() bool { return t.enabled }

// Runs returns how many times the callback has been invoked.
func (t *Task) Runs() uint64 { return t.runs }

// SetIterations overrides the remaining run count.
func (t *Task) SetIterations(n int) { t.iterations = n }

type Scheduler struct {
	tasks []*Task
	now   time.Time
}

func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a disabled task. Registration order is execution order.
func (s *Scheduler) Add(name string, interval time.Duration, iterations int, cb Callback) *Task {
	task := &Task{
		Name:       name,
		interval:   interval,
		iterations: iterations,
		callback:   cb,
	}
	s.tasks = append(s.tasks, task)
	return task
}

// Tasks returns the registered tasks in execution order.
func (s *Scheduler) Tasks() []*Task {
	return s.tasks
}

// Link records that a change reported by from notifies to.
func (s *Scheduler) Link(from, to *Task, immediate bool) {
	from.downstream = append(from.downstream, link{to: to, immediate: immediate})
}

// Enable arms the task for the current pass.
func (s *Scheduler) Enable(t *Task) {
	t.enabled = true
	t.nextRun = s.now
}

// EnableDelayed arms the task to run after delay.
func (s *Scheduler) EnableDelayed(t *Task, delay time.Duration) {
	t.enabled = true
	t.nextRun = s.now.Add(delay)
}

func (s *Scheduler) Disable(t *Task) {
	t.enabled = false
}

// Notify asks for one more run of t. An immediate notification arms the
// task for the current pass regardless of its schedule; a delayed one arms
// it one interval ahead unless it is already pending.
func (s *Scheduler) Notify(t *Task, immediate bool) {
	t.iterations = 1
	if immediate {
		s.Enable(t)
	} else if !t.enabled {
		s.EnableDelayed(t, t.interval)
	}
}

// Propagate notifies every task linked downstream of t, in link order.
func (s *Scheduler) Propagate(t *Task) {
	for _, l := range t.downstream {
		s.Notify(l.to, l.immediate)
	}
}

// Now returns the time of the current or last pass.
func (s *Scheduler) Now() time.Time {
	return s.now
}

// Tick runs every due task once, in registration order, and returns the
// number of callbacks invoked.
func (s *Scheduler) Tick(now time.Time) int {
	s.now = now
	ran := 0
	for _, t := range s.tasks {
		if !t.enabled || now.Before(t.nextRun) {
			continue
		}
		if t.iterations == 0 {
			t.enabled = false
			continue
		}
		if t.iterations > 0 {
			t.iterations--
		}
		t.nextRun = now.Add(t.interval)
		t.runs++
		ran++

		changed := t.callback()
		if t.iterations == 0 {
			t.enabled = false
		}
		if changed {
			log.Debugf("scheduler: %s changed, notifying %d task(s)", t.Name, len(t.downstream))
			s.Propagate(t)
		}
	}
	return ran
}
