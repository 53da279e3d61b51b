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

package autosave

import (
	"testing"
	"time"

	"github.com/everjot/everjot/pkg/assert"
	"github.com/everjot/everjot/pkg/clock"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	c := clock.NewMock()

	var fired []string
	d := NewDebouncer(c, 2*time.Second, 10*time.Second, 10, func(content string) {
		fired = append(fired, content)
	})

	// a burst of small keystrokes rearms the long delay each time
	d.Trigger("a")
	c.Advance(5 * time.Second)
	d.Trigger("ab")
	c.Advance(5 * time.Second)
	d.Trigger("abc")

	assert.Equal(t, len(fired), 0, "should not have fired during the burst")

	c.Advance(10 * time.Second)

	assert.Equal(t, len(fired), 1, "fire count mismatch")
	assert.Equal(t, fired[0], "abc", "should have fired with the latest content")
}

func TestDebouncerSignificantChangeUsesShortDelay(t *testing.T) {
	c := clock.NewMock()

	var fired []string
	d := NewDebouncer(c, 2*time.Second, 10*time.Second, 10, func(content string) {
		fired = append(fired, content)
	})

	d.Trigger("a large pasted paragraph of text")

	c.Advance(2 * time.Second)

	assert.Equal(t, len(fired), 1, "significant change should fire after the short delay")
}

func TestDebouncerSmallChangeUsesLongDelay(t *testing.T) {
	c := clock.NewMock()

	var fired []string
	d := NewDebouncer(c, 2*time.Second, 10*time.Second, 10, func(content string) {
		fired = append(fired, content)
	})

	d.SetBase("some existing content")
	d.Trigger("some existing content.")

	c.Advance(2 * time.Second)
	assert.Equal(t, len(fired), 0, "small change should not fire after the short delay")

	c.Advance(8 * time.Second)
	assert.Equal(t, len(fired), 1, "small change should fire after the long delay")
}

func TestDebouncerWhitespaceOnlyChangeIsInsignificant(t *testing.T) {
	c := clock.NewMock()

	var fired []string
	d := NewDebouncer(c, 2*time.Second, 10*time.Second, 10, func(content string) {
		fired = append(fired, content)
	})

	d.SetBase("content")
	d.Trigger("content" + "\n\n\n\n\n\n\n\n\n\n\n\n")

	c.Advance(2 * time.Second)
	assert.Equal(t, len(fired), 0, "trailing whitespace should not count toward significance")
}

func TestDebouncerFlush(t *testing.T) {
	c := clock.NewMock()

	var fired []string
	d := NewDebouncer(c, 2*time.Second, 10*time.Second, 10, func(content string) {
		fired = append(fired, content)
	})

	d.Trigger("draft")
	d.Flush()

	assert.Equal(t, len(fired), 1, "flush should fire immediately")
	assert.Equal(t, fired[0], "draft", "flush content mismatch")

	// the timer must not fire a second time
	c.Advance(time.Minute)
	assert.Equal(t, len(fired), 1, "flushed content should not fire again")
}

func TestDebouncerFlushWithoutPending(t *testing.T) {
	c := clock.NewMock()

	var fired []string
	d := NewDebouncer(c, 2*time.Second, 10*time.Second, 10, func(content string) {
		fired = append(fired, content)
	})

	d.Flush()

	assert.Equal(t, len(fired), 0, "flush with nothing pending should not fire")
}

func TestDebouncerCancel(t *testing.T) {
	c := clock.NewMock()

	var fired []string
	d := NewDebouncer(c, 2*time.Second, 10*time.Second, 10, func(content string) {
		fired = append(fired, content)
	})

	d.Trigger("discarded")
	d.Cancel()

	c.Advance(time.Minute)
	assert.Equal(t, len(fired), 0, "cancelled content should not fire")
}
