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

package store

import (
	"testing"

	"github.com/everjot/everjot/pkg/assert"
	"github.com/everjot/everjot/pkg/cli/database"
)

func TestLastSyncTime(t *testing.T) {
	db := database.InitTestMemoryDB(t)

	got, err := GetLastSyncTime(db, testOwnerID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got, int64(0), "a fresh owner has no high-water mark")

	if err := SetLastSyncTime(db, testOwnerID, 1234); err != nil {
		t.Fatal(err)
	}

	got, err = GetLastSyncTime(db, testOwnerID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got, int64(1234), "high-water mark mismatch")

	// advancing the mark must not disturb the pending count
	if err := UpsertEntry(db, testEntry("entry-1", "content", 100), 100); err != nil {
		t.Fatal(err)
	}
	if err := SetLastSyncTime(db, testOwnerID, 2345); err != nil {
		t.Fatal(err)
	}

	pending, err := GetPendingCount(db, testOwnerID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, pending, 1, "pending count survives the mark update")
}

func TestAdoptOwner(t *testing.T) {
	db := database.InitTestMemoryDB(t)

	local := testEntry("entry-1", "written before sign in", 100)
	local.OwnerID = "local"
	if err := UpsertEntry(db, local, 100); err != nil {
		t.Fatal(err)
	}

	localNote := testNote("note-1", "also before sign in", 100)
	localNote.OwnerID = "local"
	if err := UpsertNote(db, localNote, 100); err != nil {
		t.Fatal(err)
	}

	if err := AdoptOwner(db, "local", "real-owner"); err != nil {
		t.Fatal(err)
	}

	e, err := GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, e.OwnerID, "real-owner", "entry owner mismatch after adoption")

	pending, err := GetPendingCount(db, "real-owner")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, pending, 2, "queued work should follow the new owner")

	orphaned, err := GetPendingCount(db, "local")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, orphaned, 0, "nothing should remain under the old owner")
}

func TestResetOwner(t *testing.T) {
	db := database.InitTestMemoryDB(t)

	if err := UpsertEntry(db, testEntry("entry-1", "content", 100), 100); err != nil {
		t.Fatal(err)
	}
	if err := UpsertNote(db, testNote("note-1", "content", 100), 100); err != nil {
		t.Fatal(err)
	}

	other := testEntry("entry-2", "someone else's", 100)
	other.OwnerID = "other-owner"
	if err := UpsertEntry(db, other, 100); err != nil {
		t.Fatal(err)
	}

	if err := ResetOwner(db, testOwnerID); err != nil {
		t.Fatal(err)
	}

	var entryCount int
	database.MustScan(t, "counting entries",
		db.QueryRow("SELECT count(*) FROM entries WHERE owner_id = ?", testOwnerID), &entryCount)
	assert.Equal(t, entryCount, 0, "the owner's entries should be gone")

	pending, err := GetPendingCount(db, testOwnerID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, pending, 0, "the owner's queue should be gone")

	kept, err := GetEntry(db, "entry-2")
	if err != nil {
		t.Fatal(err)
	}
	if kept == nil {
		t.Fatal("other owners' data must be untouched")
	}
}
