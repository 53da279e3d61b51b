/* Copyright 2025 Everjot Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package clock provides an abstract layer over the standard time package
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a handle to a delayed callback scheduled through a Clock.
type Timer interface {
	// Stop cancels the timer. It reports whether the callback had not yet fired.
	Stop() bool
	// Reset rearms the timer to fire after the given duration. It reports
	// whether the timer had been pending.
	Reset(d time.Duration) bool
}

// Clock is an interface to the standard library time.
// It is used to implement a real or a mock clock. The latter is used in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type clock struct{}

func (c *clock) Now() time.Time {
	return time.Now()
}

func (c *clock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{timer: time.AfterFunc(d, f)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}

func (t *realTimer) Reset(d time.Duration) bool {
	return t.timer.Reset(d)
}

// New returns an instance of a real clock
func New() Clock {
	return &clock{}
}

// Mock is a mock instance of clock
type Mock struct {
	mu          sync.RWMutex
	currentTime time.Time
	timers      []*mockTimer
}

// SetNow sets the current time for the mock clock
func (c *Mock) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = t
}

// Now returns the current time
func (c *Mock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime
}

// AfterFunc registers a callback to fire when the mock clock is advanced past
// the given duration.
func (c *Mock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTimer{
		clock:    c,
		deadline: c.currentTime.Add(d),
		f:        f,
		pending:  true,
	}
	c.timers = append(c.timers, t)

	return t
}

// Advance moves the mock clock forward by the given duration, firing any due
// timers synchronously in deadline order. A callback observes Now() as its own
// deadline, matching the time a real timer would have fired at.
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.currentTime.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}

		c.mu.Lock()
		c.currentTime = t.deadline
		c.mu.Unlock()

		t.fire()
	}

	c.mu.Lock()
	c.currentTime = target
	c.mu.Unlock()
}

// nextDue returns the earliest pending timer with a deadline at or before the
// target, or nil if there is none.
func (c *Mock) nextDue(target time.Time) *mockTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*mockTimer
	for _, t := range c.timers {
		if t.isPending() && !t.deadline.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})

	return due[0]
}

// NewMock returns an instance of a mock clock
func NewMock() *Mock {
	return &Mock{
		currentTime: time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC),
	}
}

type mockTimer struct {
	mu       sync.Mutex
	clock    *Mock
	deadline time.Time
	f        func()
	pending  bool
}

func (t *mockTimer) isPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *mockTimer) fire() {
	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = false
	f := t.f
	t.mu.Unlock()

	f()
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasPending := t.pending
	t.pending = false

	return wasPending
}

func (t *mockTimer) Reset(d time.Duration) bool {
	deadline := t.clock.Now().Add(d)

	t.mu.Lock()
	defer t.mu.Unlock()

	wasPending := t.pending
	t.pending = true
	t.deadline = deadline

	return wasPending
}
