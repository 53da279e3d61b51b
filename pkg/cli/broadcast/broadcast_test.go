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

package broadcast

import (
	"testing"

	"github.com/everjot/everjot/pkg/assert"
)

type testState struct {
	Status  string
	Pending int
}

func TestSubscribeDeliversCurrentState(t *testing.T) {
	b := New(testState{Status: "saved"})

	var got []testState
	b.Subscribe(func(s testState) {
		got = append(got, s)
	})

	assert.Equal(t, len(got), 1, "subscription should deliver immediately")
	assert.Equal(t, got[0].Status, "saved", "delivered state mismatch")
}

func TestPublishNotifiesOnChangeOnly(t *testing.T) {
	b := New(testState{Status: "saved"})

	var calls int
	b.Subscribe(func(s testState) {
		calls++
	})
	calls = 0

	b.Publish(func(s *testState) {
		s.Status = "unsaved"
	})
	assert.Equal(t, calls, 1, "a change should notify")

	b.Publish(func(s *testState) {
		s.Status = "unsaved"
	})
	assert.Equal(t, calls, 1, "an identical publication must not notify")
}

func TestNotificationOrderFollowsRegistration(t *testing.T) {
	b := New(testState{})

	var order []string
	b.Subscribe(func(s testState) {
		order = append(order, "first")
	})
	b.Subscribe(func(s testState) {
		order = append(order, "second")
	})
	order = nil

	b.Publish(func(s *testState) {
		s.Pending = 1
	})

	assert.DeepEqual(t, order, []string{"first", "second"}, "notification order mismatch")
}

func TestBatchCoalesces(t *testing.T) {
	b := New(testState{Status: "saved"})

	var got []testState
	b.Subscribe(func(s testState) {
		got = append(got, s)
	})
	got = nil

	b.Batch(func() {
		b.Publish(func(s *testState) {
			s.Status = "saving"
		})
		b.Publish(func(s *testState) {
			s.Status = "saved"
			s.Pending = 3
		})
	})

	assert.Equal(t, len(got), 1, "a batch delivers at most one notification")
	assert.Equal(t, got[0].Pending, 3, "the batch should deliver the final state")
	assert.Equal(t, got[0].Status, "saved", "the intermediate status must not leak")
}

func TestBatchWithNoNetChangeIsSilent(t *testing.T) {
	b := New(testState{Status: "saved"})

	var calls int
	b.Subscribe(func(s testState) {
		calls++
	})
	calls = 0

	b.Batch(func() {
		b.Publish(func(s *testState) {
			s.Status = "saving"
		})
		b.Publish(func(s *testState) {
			s.Status = "saved"
		})
	})

	assert.Equal(t, calls, 0, "a batch ending where it began must not notify")
}

func TestNestedBatchFoldsIntoOuter(t *testing.T) {
	b := New(testState{})

	var calls int
	b.Subscribe(func(s testState) {
		calls++
	})
	calls = 0

	b.Batch(func() {
		b.Publish(func(s *testState) {
			s.Pending = 1
		})
		b.Batch(func() {
			b.Publish(func(s *testState) {
				s.Pending = 2
			})
		})
	})

	assert.Equal(t, calls, 1, "a nested batch must not deliver on its own")
	assert.Equal(t, b.Get().Pending, 2, "final state mismatch")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(testState{})

	var calls int
	unsub := b.Subscribe(func(s testState) {
		calls++
	})
	calls = 0

	unsub()
	b.Publish(func(s *testState) {
		s.Pending = 1
	})

	assert.Equal(t, calls, 0, "an unsubscribed listener must not be notified")
}

func TestReset(t *testing.T) {
	b := New(testState{Status: "saved", Pending: 5})

	var got testState
	b.Subscribe(func(s testState) {
		got = s
	})

	b.Reset(testState{})

	assert.Equal(t, got, testState{}, "reset should notify with the fresh state")
	assert.Equal(t, b.Get(), testState{}, "reset should replace the held state")
}
