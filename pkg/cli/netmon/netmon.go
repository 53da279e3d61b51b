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

// Package netmon observes network connectivity. Connectivity is frequently
// transiently flaky, so a transition back online is reported only after the
// state has stayed online for a stability window; a transition offline is
// reported immediately.
package netmon

import (
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/clock"
)

// Status is a point-in-time connectivity observation. A nil field means the
// state is unknown, which is treated the same as false: sync is never
// attempted on merely assumed connectivity.
type Status struct {
	Connected *bool
	Reachable *bool
}

// Online returns true only when the device is known to be both connected and
// able to reach the internet.
func (s Status) Online() bool {
	return s.Connected != nil && *s.Connected && s.Reachable != nil && *s.Reachable
}

// KnownStatus builds a status with both fields set
func KnownStatus(connected, reachable bool) Status {
	return Status{Connected: &connected, Reachable: &reachable}
}

// Probe produces a connectivity observation
type Probe func() Status

// DialProbe returns a probe that checks reachability of the given API
// endpoint with a bounded TCP dial.
func DialProbe(apiEndpoint string, timeout time.Duration) Probe {
	return func() Status {
		u, err := url.Parse(apiEndpoint)
		if err != nil {
			return Status{}
		}

		host := u.Host
		if u.Port() == "" {
			if u.Scheme == "https" {
				host = net.JoinHostPort(u.Hostname(), "443")
			} else {
				host = net.JoinHostPort(u.Hostname(), "80")
			}
		}

		conn, err := net.DialTimeout("tcp", host, timeout)
		if err != nil {
			return KnownStatus(false, false)
		}
		conn.Close()

		return KnownStatus(true, true)
	}
}

// Monitor polls a probe and notifies subscribers of online/offline
// transitions.
type Monitor struct {
	clock     clock.Clock
	probe     Probe
	interval  time.Duration
	stability time.Duration

	mu          sync.Mutex
	online      bool
	onlineSince time.Time
	pending     bool
	subs        []func(online bool)
	timer       clock.Timer
	started     bool
	stopped     bool
}

// New returns a monitor that polls the probe at the given interval and holds
// back reconnect notifications until the online state has been stable for the
// given window.
func New(c clock.Clock, probe Probe, interval, stability time.Duration) *Monitor {
	return &Monitor{
		clock:     c,
		probe:     probe,
		interval:  interval,
		stability: stability,
	}
}

// Online returns the last debounced connectivity state
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback invoked on every debounced online/offline
// transition. The returned function unsubscribes it.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs = append(m.subs, fn)
	idx := len(m.subs) - 1

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.subs) {
			m.subs[idx] = nil
		}
	}
}

// Start begins polling. The initial state is taken from the first observation
// without the stability delay, since there is no flap to guard against yet.
// Subscribers registered before Start are notified if that first observation
// is online, so a session starting with connectivity does not sit in the
// offline state until the next transition.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	s := m.probe()
	initial := s.Online()

	m.mu.Lock()
	m.online = initial
	subs := m.snapshotSubs()
	m.mu.Unlock()

	if initial {
		notify(subs, true)
	}

	m.schedule()
}

// Stop cancels polling
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
	}
}

// Observe feeds an externally obtained status into the monitor. Platforms
// with push-based connectivity callbacks use this instead of polling.
func (m *Monitor) Observe(s Status) {
	m.apply(s)
}

func (m *Monitor) schedule() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.timer = m.clock.AfterFunc(m.interval, m.tick)
}

func (m *Monitor) tick() {
	m.apply(m.probe())
	m.schedule()
}

func (m *Monitor) apply(s Status) {
	observed := s.Online()

	m.mu.Lock()

	if !observed {
		m.pending = false
		if !m.online {
			m.mu.Unlock()
			return
		}
		// going offline is reported immediately: sync must never run on
		// assumed connectivity
		m.online = false
		subs := m.snapshotSubs()
		m.mu.Unlock()

		log.Debug("connectivity lost\n")
		notify(subs, false)
		return
	}

	if m.online {
		m.pending = false
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	if !m.pending {
		m.pending = true
		m.onlineSince = now
		m.mu.Unlock()
		return
	}

	if now.Sub(m.onlineSince) < m.stability {
		m.mu.Unlock()
		return
	}

	m.pending = false
	m.online = true
	subs := m.snapshotSubs()
	m.mu.Unlock()

	log.Debug("connectivity restored\n")
	notify(subs, true)
}

func (m *Monitor) snapshotSubs() []func(online bool) {
	subs := make([]func(online bool), len(m.subs))
	copy(subs, m.subs)
	return subs
}

func notify(subs []func(online bool), online bool) {
	for _, fn := range subs {
		if fn != nil {
			fn(online)
		}
	}
}
