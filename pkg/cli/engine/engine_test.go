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

package engine

import (
	"testing"
	"time"

	"github.com/everjot/everjot/pkg/assert"
	"github.com/everjot/everjot/pkg/cli/broadcast"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/cli/remote"
	"github.com/everjot/everjot/pkg/cli/remote/remotetest"
	"github.com/everjot/everjot/pkg/cli/store"
	"github.com/everjot/everjot/pkg/clock"
)

const testOwnerID = "test-owner"

func newTestCtx(t *testing.T, server *remotetest.Server) (context.EverjotCtx, *database.DB) {
	t.Helper()

	db := database.InitTestMemoryDB(t)

	ctx := context.EverjotCtx{
		APIEndpoint: server.URL(),
		Version:     "test",
		DB:          db,
		SessionKey:  "test-session-key",
		OwnerID:     testOwnerID,
		Clock:       clock.New(),
	}

	return ctx, db
}

func mustUpsertEntry(t *testing.T, db *database.DB, e database.Entry) {
	t.Helper()

	if err := store.UpsertEntry(db, e, e.LastUpdated); err != nil {
		t.Fatal(err)
	}
}

func TestSyncPendingUploadsQueuedEntry(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	mustUpsertEntry(t, db, database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "first entry",
		Body:        "written offline",
		CreatedAt:   100,
		LastUpdated: 100,
	})

	e := New(nil)
	res, err := e.SyncPending(ctx, false)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, res.Synced, 1, "synced count mismatch")
	assert.Equal(t, res.Failed, 0, "failed count mismatch")

	remoteEntry, ok := server.Entry("entry-1")
	if !ok {
		t.Fatal("entry did not reach the server")
	}
	assert.Equal(t, remoteEntry.Body, "written offline", "remote body mismatch")

	local, err := store.GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, local.IsSynced, true, "entry should be marked synced")
	assert.Equal(t, local.Dirty, false, "entry should no longer be dirty")
	assert.Equal(t, local.SyncAttempts, 0, "attempt counter should be reset")
	assert.Equal(t, local.LastUpdated, remoteEntry.LastUpdated, "server timestamp should be authoritative")

	pending, err := store.GetPendingCount(db, testOwnerID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, pending, 0, "queue should be empty after sync")
}

func TestSyncPendingRetriesAfterFailure(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	mustUpsertEntry(t, db, database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "flaky",
		Body:        "content",
		CreatedAt:   100,
		LastUpdated: 100,
	})

	e := New(nil)

	server.FailNext(2)
	for i := 1; i <= 2; i++ {
		res, err := e.SyncPending(ctx, false)
		if err != nil {
			t.Fatal(err)
		}
		assert.Equalf(t, res.Failed, 1, "pass %d should fail", i)

		local, err := store.GetEntry(db, "entry-1")
		if err != nil {
			t.Fatal(err)
		}
		assert.Equalf(t, local.SyncAttempts, i, "attempt counter after failure %d", i)
		assert.Equal(t, local.IsSynced, false, "entry must stay unsynced after a failure")

		pending, err := store.GetPendingCount(db, testOwnerID)
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, pending, 1, "failed entry must stay queued")
	}

	res, err := e.SyncPending(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, res.Synced, 1, "pass after the failures should succeed")

	local, err := store.GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, local.IsSynced, true, "entry should be synced after the retry")
	assert.Equal(t, local.SyncAttempts, 0, "attempt counter should reset on success")
}

func TestSyncPendingSkipsWithoutSession(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)
	ctx.SessionKey = ""

	mustUpsertEntry(t, db, database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "anonymous",
		Body:        "content",
		CreatedAt:   100,
		LastUpdated: 100,
	})

	e := New(nil)
	res, err := e.SyncPending(ctx, false)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, res, Result{}, "nothing should be attempted without a session")

	local, err := store.GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, local.SyncAttempts, 0, "a skipped item must not count an attempt")
	assert.Equal(t, server.WriteCalls(), 0, "no request should reach the server")
}

func TestSyncPendingCapsAutomaticRetries(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	mustUpsertEntry(t, db, database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "stuck",
		Body:        "content",
		CreatedAt:   100,
		LastUpdated: 100,
	})
	database.MustExec(t, "maxing out attempts", db,
		"UPDATE sync_queue SET attempts = ? WHERE item_uuid = ?", maxAutoAttempts, "entry-1")

	e := New(nil)
	res, err := e.SyncPending(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, res.Skipped, 1, "capped item should be skipped by automatic sync")
	assert.Equal(t, res.Synced, 0, "capped item should not be pushed")

	res, err = e.SyncPending(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, res.Synced, 1, "manual sync should push past the cap")
}

func TestSyncPendingDeletion(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	// a synced entry gets soft-deleted, then the deletion is uploaded
	synced := database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "doomed",
		Body:        "content",
		CreatedAt:   100,
		LastUpdated: 100,
		IsSynced:    true,
	}
	if err := synced.Insert(db); err != nil {
		t.Fatal(err)
	}
	server.PutEntry(remote.RespEntry{
		UUID: "entry-1", Title: "doomed", Body: "content", CreatedAt: 100, LastUpdated: 100,
	})

	if err := store.DeleteEntry(db, "entry-1", 200); err != nil {
		t.Fatal(err)
	}

	e := New(nil)
	res, err := e.SyncPending(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, res.Synced, 1, "deletion should sync")

	remoteEntry, _ := server.Entry("entry-1")
	assert.Equal(t, remoteEntry.Deleted, true, "server copy should be deleted")

	local, err := store.GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	if local != nil {
		t.Fatal("acknowledged deletion should expunge the local row")
	}
}

func TestSyncPendingCreateConflictFallsBackToUpdate(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	// the server already knows the entry, for instance from a crashed earlier
	// pass that uploaded but never recorded the ack
	server.PutEntry(remote.RespEntry{
		UUID: "entry-1", Title: "old", Body: "old body", CreatedAt: 100, LastUpdated: 100,
	})

	mustUpsertEntry(t, db, database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "new",
		Body:        "new body",
		CreatedAt:   100,
		LastUpdated: 150,
	})

	e := New(nil)
	res, err := e.SyncPending(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, res.Synced, 1, "conflicting create should sync as an update")

	remoteEntry, _ := server.Entry("entry-1")
	assert.Equal(t, remoteEntry.Body, "new body", "server should carry the local content")
}

func TestSyncPendingUploadsNotes(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	if err := store.UpsertNote(db, database.Note{
		UUID:        "note-1",
		OwnerID:     testOwnerID,
		Body:        "quick thought",
		RecordedAt:  100,
		LastUpdated: 100,
	}, 100); err != nil {
		t.Fatal(err)
	}

	notes := broadcast.New(NotesState{})
	e := New(notes)
	res, err := e.SyncPending(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, res.Synced, 1, "note should sync")

	remoteNote, ok := server.Note("note-1")
	if !ok {
		t.Fatal("note did not reach the server")
	}
	assert.Equal(t, remoteNote.Body, "quick thought", "remote note body mismatch")

	state := notes.Get()
	assert.Equal(t, state.Revision, 1, "notes state revision should advance")
	assert.Equal(t, state.PendingCount, 0, "pending count mismatch")
}

func TestDownloadAndMergeAppliesNewerRemote(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	local := database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "shared",
		Body:        "stale local copy",
		CreatedAt:   100,
		LastUpdated: 100,
		IsSynced:    true,
	}
	if err := local.Insert(db); err != nil {
		t.Fatal(err)
	}

	server.PutEntry(remote.RespEntry{
		UUID: "entry-1", Title: "shared", Body: "fresh remote copy", CreatedAt: 100, LastUpdated: 2000,
	})
	server.PutEntry(remote.RespEntry{
		UUID: "entry-2", Title: "new elsewhere", Body: "created on another device", CreatedAt: 1900, LastUpdated: 1900,
	})

	e := New(nil)
	applied, err := e.DownloadAndMerge(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, applied, 2, "both remote documents should apply")

	got, err := store.GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.Body, "fresh remote copy", "newer remote should win")
	assert.Equal(t, got.IsSynced, true, "merged entry is synced")

	got, err = store.GetEntry(db, "entry-2")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("remote-only entry should be inserted")
	}

	// the high-water mark advanced to the server clock, so a second pass
	// fetches nothing new
	mark, err := store.GetLastSyncTime(db, testOwnerID)
	if err != nil {
		t.Fatal(err)
	}
	if mark < 2000 {
		t.Fatalf("high-water mark should be at least the newest remote time, got %d", mark)
	}

	applied, err = e.DownloadAndMerge(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, applied, 0, "nothing new to apply on the second pass")
}

func TestDownloadAndMergeKeepsNewerLocal(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	local := database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "shared",
		Body:        "newer local copy",
		CreatedAt:   100,
		LastUpdated: 3000,
		IsSynced:    true,
	}
	if err := local.Insert(db); err != nil {
		t.Fatal(err)
	}

	server.PutEntry(remote.RespEntry{
		UUID: "entry-1", Title: "shared", Body: "older remote copy", CreatedAt: 100, LastUpdated: 2000,
	})

	e := New(nil)
	applied, err := e.DownloadAndMerge(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, applied, 0, "older remote must not overwrite newer local")

	got, err := store.GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.Body, "newer local copy", "local content should survive")
}

func TestSyncDownloadsBeforeUploading(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	// local has a queued edit, but another device already wrote a newer one
	mustUpsertEntry(t, db, database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "contested",
		Body:        "local edit",
		CreatedAt:   100,
		LastUpdated: 100,
	})
	server.PutEntry(remote.RespEntry{
		UUID: "entry-1", Title: "contested", Body: "remote edit", CreatedAt: 100, LastUpdated: 5000,
	})

	e := New(nil)
	if _, _, err := e.Sync(ctx, false, false); err != nil {
		t.Fatal(err)
	}

	// the newer remote copy superseded the queued local edit; the stale edit
	// must not have been pushed over it
	remoteEntry, _ := server.Entry("entry-1")
	assert.Equal(t, remoteEntry.Body, "remote edit", "stale local edit must not clobber the newer remote copy")

	local, err := store.GetEntry(db, "entry-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, local.Body, "remote edit", "local copy should carry the remote content")

	pending, err := store.GetPendingCount(db, testOwnerID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, pending, 0, "superseded queue item should be gone")
}

func TestHandleReconnectWaitsForStability(t *testing.T) {
	server := remotetest.New()
	defer server.Close()
	ctx, db := newTestCtx(t, server)

	c := clock.NewMock()
	ctx.Clock = c

	mustUpsertEntry(t, db, database.Entry{
		UUID:        "entry-1",
		OwnerID:     testOwnerID,
		Title:       "reconnect",
		Body:        "pending while offline",
		CreatedAt:   100,
		LastUpdated: 100,
	})

	e := New(nil)
	e.HandleReconnect(ctx, true)

	assert.Equal(t, server.WriteCalls(), 0, "sync must wait out the stability window")

	// connection flaps before the window elapses
	c.Advance(time.Second)
	e.HandleReconnect(ctx, false)
	c.Advance(time.Minute)
	assert.Equal(t, server.WriteCalls(), 0, "going offline cancels the scheduled sync")

	e.HandleReconnect(ctx, true)
	c.Advance(2 * time.Second)

	remoteEntry, ok := server.Entry("entry-1")
	if !ok {
		t.Fatal("pending entry should sync after a stable reconnect")
	}
	assert.Equal(t, remoteEntry.Body, "pending while offline", "remote body mismatch")
}
