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

// Package broadcast implements a publish/subscribe holder of the last known
// state for a logical domain. Many independent observers share one consistent
// view without re-running the logic that produced it. Instances are explicit
// and constructible; there is no module-level singleton, and the holder must
// be Reset when the owning identity changes.
package broadcast

import (
	"sync"
)

type listener[S comparable] struct {
	id int
	fn func(S)
}

// Broadcaster holds one state value and notifies subscribers when it changes.
// Notifications are synchronous and run in registration order, so within one
// publication every listener observes the same state.
type Broadcaster[S comparable] struct {
	mu        sync.Mutex
	state     S
	listeners []listener[S]
	nextID    int
	batching  bool
	batchBase S
}

// New returns a broadcaster holding the given initial state
func New[S comparable](initial S) *Broadcaster[S] {
	return &Broadcaster[S]{state: initial}
}

// Get returns the currently held state
func (b *Broadcaster[S]) Get() S {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Subscribe registers a listener and immediately delivers the current state to
// it. The returned function unsubscribes the listener.
func (b *Broadcaster[S]) Subscribe(fn func(S)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, listener[S]{id: id, fn: fn})
	current := b.state
	b.mu.Unlock()

	fn(current)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish applies the given mutation to the held state and, if the state
// actually changed, notifies every subscriber. Inside a Batch the notification
// is deferred so listeners only ever see the final state of the batch.
func (b *Broadcaster[S]) Publish(apply func(*S)) {
	b.mu.Lock()
	old := b.state
	apply(&b.state)
	changed := b.state != old

	if b.batching || !changed {
		b.mu.Unlock()
		return
	}

	state := b.state
	targets := make([]listener[S], len(b.listeners))
	copy(targets, b.listeners)
	b.mu.Unlock()

	for _, l := range targets {
		l.fn(state)
	}
}

// Batch coalesces all publications made inside fn into at most one
// notification, delivered only if the final state differs from the state held
// when the batch began. No listener observes an intermediate value that a
// later publish in the same batch overwrites.
func (b *Broadcaster[S]) Batch(fn func()) {
	b.mu.Lock()
	if b.batching {
		// nested batch folds into the outer one
		b.mu.Unlock()
		fn()
		return
	}
	b.batching = true
	b.batchBase = b.state
	b.mu.Unlock()

	fn()

	b.mu.Lock()
	b.batching = false
	changed := b.state != b.batchBase
	state := b.state
	targets := make([]listener[S], len(b.listeners))
	copy(targets, b.listeners)
	b.mu.Unlock()

	if !changed {
		return
	}

	for _, l := range targets {
		l.fn(state)
	}
}

// Reset replaces the held state outright. Callers must invoke this on every
// identity change (sign-out, user switch); the held state has no implicit
// per-user partitioning.
func (b *Broadcaster[S]) Reset(s S) {
	b.Publish(func(state *S) {
		*state = s
	})
}
