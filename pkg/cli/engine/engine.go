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

// Package engine moves queued local changes to the remote store and merges
// remote changes back. All reconciliation is last-write-wins on last_updated;
// the remote clock is authoritative for anything already written remotely.
package engine

import (
	"sync"
	"time"

	"github.com/everjot/everjot/pkg/cli/broadcast"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/remote"
	"github.com/everjot/everjot/pkg/cli/store"
	"github.com/everjot/everjot/pkg/cli/utils/diff"
	"github.com/everjot/everjot/pkg/clock"
	"github.com/pkg/errors"
)

// maxAutoAttempts caps how many times a failing item is retried by automatic
// sync passes. Items past the cap wait for a manual sync, which always tries
// everything.
const maxAutoAttempts = 10

// reconnectStability is how long a regained connection must hold before a
// reconnect sync fires. Flapping links do not trigger sync churn.
const reconnectStability = 1500 * time.Millisecond

// Result summarizes one upload pass
type Result struct {
	Synced  int
	Failed  int
	Skipped int
}

// NotesState is the broadcast view of the notes collection. Revision advances
// on every mutation the engine applies, so observers can cheaply detect that
// a re-read is needed.
type NotesState struct {
	Revision     int
	PendingCount int
	LastSyncedAt int64
}

// Engine coordinates sync between the local and the remote store. At most one
// upload pass runs per owner at a time; a second call while one is in flight
// returns immediately with an empty result.
type Engine struct {
	mu             sync.Mutex
	inflight       map[string]bool
	reconnectTimer clock.Timer

	notes *broadcast.Broadcaster[NotesState]
}

// New returns an engine publishing notes collection changes to the given
// broadcaster.
func New(notes *broadcast.Broadcaster[NotesState]) *Engine {
	return &Engine{
		inflight: map[string]bool{},
		notes:    notes,
	}
}

// SyncPending uploads every queued local change, oldest first, entries then
// notes. A missing session is a skip, not a failure: nothing is attempted and
// no counters advance. Items that failed more than maxAutoAttempts times are
// passed over unless manual is set. Failed items stay queued; the next pass
// retries them, there is no tight retry loop within a pass.
func (e *Engine) SyncPending(ctx context.EverjotCtx, manual bool) (Result, error) {
	var res Result

	if !ctx.LoggedIn() {
		log.Debug("not logged in, skipping sync\n")
		return res, nil
	}

	owner := ctx.OwnerID

	e.mu.Lock()
	if e.inflight[owner] {
		e.mu.Unlock()
		log.Debug("sync already in flight for owner %s\n", owner)
		return res, nil
	}
	e.inflight[owner] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, owner)
		e.mu.Unlock()
	}()

	entries, err := store.ListUnsyncedEntries(ctx.DB, owner)
	if err != nil {
		return res, errors.Wrap(err, "listing unsynced entries")
	}

	for _, p := range entries {
		if !manual && p.Attempts >= maxAutoAttempts {
			res.Skipped++
			continue
		}

		now := ctx.Clock.Now().Unix()
		serverTime, err := e.pushEntry(ctx, p)
		if err != nil {
			log.Debug("pushing entry %s: %v\n", p.UUID, err)
			if err := store.MarkEntrySyncResult(ctx.DB, p.UUID, false, 0, 0, now); err != nil {
				return res, errors.Wrap(err, "recording failed entry sync")
			}
			res.Failed++
			continue
		}

		if err := store.MarkEntrySyncResult(ctx.DB, p.UUID, true, p.LastUpdated, serverTime, now); err != nil {
			return res, errors.Wrap(err, "recording entry sync")
		}
		res.Synced++
	}

	notes, err := store.ListUnsyncedNotes(ctx.DB, owner)
	if err != nil {
		return res, errors.Wrap(err, "listing unsynced notes")
	}

	notesTouched := 0
	for _, p := range notes {
		if !manual && p.Attempts >= maxAutoAttempts {
			res.Skipped++
			continue
		}

		now := ctx.Clock.Now().Unix()
		serverTime, err := e.pushNote(ctx, p)
		if err != nil {
			log.Debug("pushing note %s: %v\n", p.UUID, err)
			if err := store.MarkNoteSyncResult(ctx.DB, p.UUID, false, 0, 0, now); err != nil {
				return res, errors.Wrap(err, "recording failed note sync")
			}
			res.Failed++
			continue
		}

		if err := store.MarkNoteSyncResult(ctx.DB, p.UUID, true, p.LastUpdated, serverTime, now); err != nil {
			return res, errors.Wrap(err, "recording note sync")
		}
		res.Synced++
		notesTouched++
	}

	e.publishNotesState(ctx, notesTouched)

	return res, nil
}

// pushEntry sends one pending entry change to the remote store and returns the
// server timestamp assigned to it. A create that the server already knows is
// retried as an update, so replayed queue items stay idempotent.
func (e *Engine) pushEntry(ctx context.EverjotCtx, p store.PendingEntry) (int64, error) {
	payload := remote.EntryPayload{
		UUID:        p.UUID,
		Title:       p.Title,
		Body:        p.Body,
		CreatedAt:   p.CreatedAt,
		LastUpdated: p.LastUpdated,
	}

	switch p.Action {
	case database.ActionCreate:
		resp, err := remote.CreateEntry(ctx, payload)
		if err == nil {
			return resp.Entry.LastUpdated, nil
		}

		var httpErr *remote.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsConflict() {
			resp, err := remote.UpdateEntry(ctx, p.UUID, payload)
			if err != nil {
				return 0, errors.Wrap(err, "updating entry after create conflict")
			}

			return resp.Entry.LastUpdated, nil
		}

		return 0, errors.Wrap(err, "creating entry")
	case database.ActionUpdate:
		resp, err := remote.UpdateEntry(ctx, p.UUID, payload)
		if err != nil {
			return 0, errors.Wrap(err, "updating entry")
		}

		return resp.Entry.LastUpdated, nil
	case database.ActionDelete:
		resp, err := remote.DeleteEntry(ctx, p.UUID)
		if err != nil {
			return 0, errors.Wrap(err, "deleting entry")
		}

		return resp.Entry.LastUpdated, nil
	}

	return 0, errors.Errorf("unknown queue action %s", p.Action)
}

func (e *Engine) pushNote(ctx context.EverjotCtx, p store.PendingNote) (int64, error) {
	payload := remote.NotePayload{
		UUID:        p.UUID,
		Body:        p.Body,
		RecordedAt:  p.RecordedAt,
		LastUpdated: p.LastUpdated,
	}

	switch p.Action {
	case database.ActionCreate:
		resp, err := remote.CreateNote(ctx, payload)
		if err == nil {
			return resp.Note.LastUpdated, nil
		}

		var httpErr *remote.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsConflict() {
			resp, err := remote.UpdateNote(ctx, p.UUID, payload)
			if err != nil {
				return 0, errors.Wrap(err, "updating note after create conflict")
			}

			return resp.Note.LastUpdated, nil
		}

		return 0, errors.Wrap(err, "creating note")
	case database.ActionUpdate:
		resp, err := remote.UpdateNote(ctx, p.UUID, payload)
		if err != nil {
			return 0, errors.Wrap(err, "updating note")
		}

		return resp.Note.LastUpdated, nil
	case database.ActionDelete:
		resp, err := remote.DeleteNote(ctx, p.UUID)
		if err != nil {
			return 0, errors.Wrap(err, "deleting note")
		}

		return resp.Note.LastUpdated, nil
	}

	return 0, errors.Errorf("unknown queue action %s", p.Action)
}

// DownloadAndMerge pulls remote changes made after the local high-water mark
// and reconciles each against the local copy. When full is set, everything is
// re-fetched regardless of the mark. The mark only advances after the whole
// batch has been applied, so an interrupted download is re-fetched rather
// than lost. It returns the number of remote documents applied locally.
func (e *Engine) DownloadAndMerge(ctx context.EverjotCtx, full bool) (int, error) {
	if !ctx.LoggedIn() {
		log.Debug("not logged in, skipping download\n")
		return 0, nil
	}

	owner := ctx.OwnerID

	var since int64
	if !full {
		var err error
		since, err = store.GetLastSyncTime(ctx.DB, owner)
		if err != nil {
			return 0, errors.Wrap(err, "reading last sync time")
		}
	}

	entriesResp, err := remote.GetEntries(ctx, since)
	if err != nil {
		return 0, errors.Wrap(err, "fetching remote entries")
	}

	applied := 0
	for _, re := range entriesResp.Entries {
		ok, prevBody, err := store.MergeRemoteEntry(ctx.DB, database.Entry{
			UUID:        re.UUID,
			OwnerID:     owner,
			Title:       re.Title,
			Body:        re.Body,
			CreatedAt:   re.CreatedAt,
			LastUpdated: re.LastUpdated,
			Deleted:     re.Deleted,
		})
		if err != nil {
			return applied, errors.Wrapf(err, "merging remote entry %s", re.UUID)
		}
		if ok {
			applied++
			if prevBody != "" && prevBody != re.Body {
				log.Debug("remote entry %s replaced local content:\n%s", re.UUID, diff.Report(prevBody, re.Body))
			}
		}
	}

	notesResp, err := remote.GetNotes(ctx, since)
	if err != nil {
		return applied, errors.Wrap(err, "fetching remote notes")
	}

	notesApplied := 0
	for _, rn := range notesResp.Notes {
		ok, prevBody, err := store.MergeRemoteNote(ctx.DB, database.Note{
			UUID:        rn.UUID,
			OwnerID:     owner,
			Body:        rn.Body,
			RecordedAt:  rn.RecordedAt,
			LastUpdated: rn.LastUpdated,
			Deleted:     rn.Deleted,
		})
		if err != nil {
			return applied, errors.Wrapf(err, "merging remote note %s", rn.UUID)
		}
		if ok {
			notesApplied++
			if prevBody != "" && prevBody != rn.Body {
				log.Debug("remote note %s replaced local content:\n%s", rn.UUID, diff.Report(prevBody, rn.Body))
			}
		}
	}
	applied += notesApplied

	// the server clock is the high-water mark so a skewed local clock cannot
	// create a gap
	mark := entriesResp.CurrentTime
	if notesResp.CurrentTime > mark {
		mark = notesResp.CurrentTime
	}
	if mark > 0 {
		if err := store.SetLastSyncTime(ctx.DB, owner, mark); err != nil {
			return applied, errors.Wrap(err, "advancing last sync time")
		}
	}

	e.publishNotesState(ctx, notesApplied)

	return applied, nil
}

// Sync runs a complete pass: download and merge remote changes first, then
// upload what remains queued, so a remote change that supersedes a queued
// local one is never pushed over it.
func (e *Engine) Sync(ctx context.EverjotCtx, full, manual bool) (int, Result, error) {
	applied, err := e.DownloadAndMerge(ctx, full)
	if err != nil {
		return applied, Result{}, err
	}

	res, err := e.SyncPending(ctx, manual)
	return applied, res, err
}

// HandleReconnect schedules a full download-then-upload pass once the regained
// connection has held for the stability window. Another transition before the
// window elapses rearms it; going offline cancels it.
func (e *Engine) HandleReconnect(ctx context.EverjotCtx, online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !online {
		if e.reconnectTimer != nil {
			e.reconnectTimer.Stop()
		}
		return
	}

	fire := func() {
		if _, _, err := e.Sync(ctx, false, false); err != nil {
			log.Debug("reconnect sync: %v\n", err)
		}
	}

	if e.reconnectTimer == nil {
		e.reconnectTimer = ctx.Clock.AfterFunc(reconnectStability, fire)
	} else {
		e.reconnectTimer.Reset(reconnectStability)
	}
}

// publishNotesState refreshes the broadcast notes collection state. Revision
// only advances when the engine actually touched notes.
func (e *Engine) publishNotesState(ctx context.EverjotCtx, touched int) {
	if e.notes == nil {
		return
	}

	pending, err := store.GetPendingCount(ctx.DB, ctx.OwnerID)
	if err != nil {
		log.Debug("counting pending items: %v\n", err)
		return
	}

	now := ctx.Clock.Now().Unix()
	e.notes.Publish(func(s *NotesState) {
		if touched > 0 {
			s.Revision++
			s.LastSyncedAt = now
		}
		s.PendingCount = pending
	})
}
