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

package clock

import (
	"testing"
	"time"

	"github.com/everjot/everjot/pkg/assert"
)

func TestMockAdvanceFiresDueTimers(t *testing.T) {
	c := NewMock()

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(10*time.Second, func() { fired = append(fired, "c") })

	c.Advance(5 * time.Second)

	assert.DeepEqual(t, fired, []string{"a", "b"}, "fired timers mismatch")

	c.Advance(5 * time.Second)
	assert.DeepEqual(t, fired, []string{"a", "b", "c"}, "fired timers after second advance mismatch")
}

func TestMockAdvanceObservesDeadline(t *testing.T) {
	c := NewMock()
	start := c.Now()

	var seen time.Time
	c.AfterFunc(3*time.Second, func() { seen = c.Now() })

	c.Advance(10 * time.Second)

	assert.Equal(t, seen, start.Add(3*time.Second), "callback should observe its deadline")
	assert.Equal(t, c.Now(), start.Add(10*time.Second), "clock should end at the target time")
}

func TestMockTimerStop(t *testing.T) {
	c := NewMock()

	fired := false
	timer := c.AfterFunc(1*time.Second, func() { fired = true })

	assert.Equal(t, timer.Stop(), true, "Stop should report the timer was pending")

	c.Advance(2 * time.Second)

	assert.Equal(t, fired, false, "stopped timer should not fire")
	assert.Equal(t, timer.Stop(), false, "second Stop should report not pending")
}

func TestMockTimerReset(t *testing.T) {
	c := NewMock()

	count := 0
	timer := c.AfterFunc(1*time.Second, func() { count++ })

	c.Advance(500 * time.Millisecond)
	timer.Reset(2 * time.Second)

	c.Advance(1 * time.Second)
	assert.Equal(t, count, 0, "rearmed timer should not have fired yet")

	c.Advance(1 * time.Second)
	assert.Equal(t, count, 1, "rearmed timer should fire once due")
}

func TestMockTimerRescheduleFromCallback(t *testing.T) {
	c := NewMock()

	count := 0
	c.AfterFunc(1*time.Second, func() {
		count++
		if count < 3 {
			c.AfterFunc(1*time.Second, func() { count++ })
		}
	})

	c.Advance(1 * time.Second)
	assert.Equal(t, count, 1, "first timer should have fired")

	c.Advance(1 * time.Second)
	assert.Equal(t, count, 2, "timer scheduled from callback should fire")
}
