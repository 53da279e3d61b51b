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

package netmon

import (
	"testing"
	"time"

	"github.com/everjot/everjot/pkg/assert"
	"github.com/everjot/everjot/pkg/clock"
)

func TestStatusOnline(t *testing.T) {
	testCases := []struct {
		name string
		s    Status
		want bool
	}{
		{name: "both unknown", s: Status{}, want: false},
		{name: "connected and reachable", s: KnownStatus(true, true), want: true},
		{name: "connected but unreachable", s: KnownStatus(true, false), want: false},
		{name: "disconnected", s: KnownStatus(false, false), want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.s.Online(), tc.want, "online mismatch")
		})
	}
}

func TestMonitorReconnectWaitsForStability(t *testing.T) {
	c := clock.NewMock()
	m := New(c, nil, 30*time.Second, 5*time.Second)

	var transitions []bool
	m.Subscribe(func(online bool) {
		transitions = append(transitions, online)
	})

	// first online observation opens the stability window
	m.Observe(KnownStatus(true, true))
	assert.Equal(t, m.Online(), false, "one observation is not stability")
	assert.Equal(t, len(transitions), 0, "no notification before the window closes")

	// still inside the window
	c.Advance(2 * time.Second)
	m.Observe(KnownStatus(true, true))
	assert.Equal(t, m.Online(), false, "window has not elapsed yet")

	c.Advance(3 * time.Second)
	m.Observe(KnownStatus(true, true))
	assert.Equal(t, m.Online(), true, "stable for the full window")
	assert.DeepEqual(t, transitions, []bool{true}, "transition mismatch")
}

func TestMonitorFlapResetsStabilityWindow(t *testing.T) {
	c := clock.NewMock()
	m := New(c, nil, 30*time.Second, 5*time.Second)

	m.Observe(KnownStatus(true, true))
	c.Advance(4 * time.Second)

	// drop just before the window closes
	m.Observe(KnownStatus(false, false))

	c.Advance(2 * time.Second)
	m.Observe(KnownStatus(true, true))
	assert.Equal(t, m.Online(), false, "the flap should restart the window")

	c.Advance(5 * time.Second)
	m.Observe(KnownStatus(true, true))
	assert.Equal(t, m.Online(), true, "stable again for the full window")
}

func TestMonitorOfflineIsImmediate(t *testing.T) {
	c := clock.NewMock()
	m := New(c, nil, 30*time.Second, 5*time.Second)

	var transitions []bool
	m.Subscribe(func(online bool) {
		transitions = append(transitions, online)
	})

	m.Observe(KnownStatus(true, true))
	c.Advance(5 * time.Second)
	m.Observe(KnownStatus(true, true))
	assert.Equal(t, m.Online(), true, "setup: monitor should be online")

	m.Observe(KnownStatus(false, false))
	assert.Equal(t, m.Online(), false, "going offline must not be debounced")
	assert.DeepEqual(t, transitions, []bool{true, false}, "transition mismatch")
}

func TestMonitorStartTakesFirstObservation(t *testing.T) {
	c := clock.NewMock()
	probed := 0
	m := New(c, func() Status {
		probed++
		return KnownStatus(true, true)
	}, 30*time.Second, 5*time.Second)
	defer m.Stop()

	m.Start()

	assert.Equal(t, m.Online(), true, "the initial state skips the stability window")
	assert.Equal(t, probed, 1, "probe count mismatch")

	c.Advance(30 * time.Second)
	assert.Equal(t, probed, 2, "the monitor should poll at the interval")
}

func TestMonitorStartNotifiesInitialOnline(t *testing.T) {
	c := clock.NewMock()
	m := New(c, func() Status {
		return KnownStatus(true, true)
	}, 30*time.Second, 5*time.Second)
	defer m.Stop()

	var transitions []bool
	m.Subscribe(func(online bool) {
		transitions = append(transitions, online)
	})

	m.Start()

	assert.DeepEqual(t, transitions, []bool{true}, "a session starting online must learn it immediately")
}

func TestMonitorStartIsSilentWhenInitialOffline(t *testing.T) {
	c := clock.NewMock()
	m := New(c, func() Status {
		return KnownStatus(false, false)
	}, 30*time.Second, 5*time.Second)
	defer m.Stop()

	var calls int
	m.Subscribe(func(online bool) {
		calls++
	})

	m.Start()

	assert.Equal(t, m.Online(), false, "initial state mismatch")
	assert.Equal(t, calls, 0, "offline is the assumed state. no notification is due")
}

func TestMonitorUnsubscribe(t *testing.T) {
	c := clock.NewMock()
	m := New(c, nil, 30*time.Second, 5*time.Second)

	var calls int
	unsub := m.Subscribe(func(online bool) {
		calls++
	})
	unsub()

	m.Observe(KnownStatus(true, true))
	c.Advance(5 * time.Second)
	m.Observe(KnownStatus(true, true))

	assert.Equal(t, calls, 0, "an unsubscribed listener must not be notified")
}
