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

// Package autosave persists in-flight journal edits without an explicit save
// action from the user.
package autosave

import (
	"strings"
	"sync"
	"time"

	"github.com/everjot/everjot/pkg/clock"
)

// Debounce defaults. A burst of typing collapses into one save; a large paste
// or deletion shortens the wait so substantial work hits disk sooner.
const (
	DefaultShortDelay       = 2 * time.Second
	DefaultLongDelay        = 10 * time.Second
	DefaultSignificantChars = 10
)

// Debouncer coalesces a stream of content changes into delayed fire calls.
// Each Trigger rearms the pending timer, so the callback runs once the input
// has been quiet for the selected delay. The delay is chosen per trigger:
// changes that move the trimmed length by at least threshold characters from
// the base use the short delay.
type Debouncer struct {
	mu        sync.Mutex
	clock     clock.Clock
	short     time.Duration
	long      time.Duration
	threshold int
	fire      func(content string)

	timer   clock.Timer
	pending bool
	content string
	base    string
}

// NewDebouncer returns a debouncer that calls fire with the latest triggered
// content once the input has settled.
func NewDebouncer(c clock.Clock, short, long time.Duration, threshold int, fire func(string)) *Debouncer {
	if short <= 0 {
		short = DefaultShortDelay
	}
	if long <= 0 {
		long = DefaultLongDelay
	}
	if threshold <= 0 {
		threshold = DefaultSignificantChars
	}

	return &Debouncer{
		clock:     c,
		short:     short,
		long:      long,
		threshold: threshold,
		fire:      fire,
	}
}

func (d *Debouncer) significant(content string) bool {
	delta := len(strings.TrimSpace(content)) - len(strings.TrimSpace(d.base))
	if delta < 0 {
		delta = -delta
	}

	return delta >= d.threshold
}

// Trigger records the latest content and rearms the timer. Only the most
// recent content is ever delivered to fire.
func (d *Debouncer) Trigger(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.content = content
	d.pending = true

	delay := d.long
	if d.significant(content) {
		delay = d.short
	}

	if d.timer == nil {
		d.timer = d.clock.AfterFunc(delay, d.onTimer)
	} else {
		d.timer.Reset(delay)
	}
}

func (d *Debouncer) onTimer() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	content := d.content
	d.mu.Unlock()

	d.fire(content)
}

// Flush fires the pending content immediately, if any
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	content := d.content
	d.mu.Unlock()

	d.fire(content)
}

// Cancel drops any pending content without firing
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Pending reports whether a fire is armed
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// SetBase records the content the significance comparison is made against.
// Call it after every successful save so the next delta is measured from what
// is actually on disk.
func (d *Debouncer) SetBase(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.base = content
}
