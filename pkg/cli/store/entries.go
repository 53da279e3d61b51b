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

// Package store implements the owner-scoped persistence operations for entries,
// notes and the sync queue. It never talks to the network and never retries on
// its own; persistence errors are reported to the caller.
package store

import (
	"database/sql"

	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/pkg/errors"
)

// PendingEntry is an entry joined with its sync queue record
type PendingEntry struct {
	database.Entry
	Action   string
	Attempts int
}

const entryColumns = `uuid, owner_id, title, body, created_at, last_updated,
	is_synced, sync_attempts, last_sync_attempt, created_offline, deleted, dirty`

func scanEntry(row interface {
	Scan(dest ...interface{}) error
}, e *database.Entry) error {
	return row.Scan(&e.UUID, &e.OwnerID, &e.Title, &e.Body, &e.CreatedAt, &e.LastUpdated,
		&e.IsSynced, &e.SyncAttempts, &e.LastSyncAttempt, &e.CreatedOffline, &e.Deleted, &e.Dirty)
}

// GetEntry returns the entry with the given uuid, or nil if it does not exist
func GetEntry(db *database.DB, uuid string) (*database.Entry, error) {
	var e database.Entry

	row := db.QueryRow("SELECT "+entryColumns+" FROM entries WHERE uuid = ?", uuid)
	err := scanEntry(row, &e)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting entry %s", uuid)
	}

	return &e, nil
}

// GetLatestEntry returns the owner's entry with the greatest created_at, or nil
// if the owner has no entries. It is used to resume the current editing session
// after a restart.
func GetLatestEntry(db *database.DB, ownerID string) (*database.Entry, error) {
	var e database.Entry

	row := db.QueryRow("SELECT "+entryColumns+" FROM entries WHERE owner_id = ? AND NOT deleted ORDER BY created_at DESC LIMIT 1", ownerID)
	err := scanEntry(row, &e)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting latest entry for owner %s", ownerID)
	}

	return &e, nil
}

// UpsertEntry inserts or overwrites the entry by uuid and records it in the
// sync queue. It is idempotent: repeating the call with identical content does
// not duplicate queue records or reset the attempt counter.
func UpsertEntry(db *database.DB, e database.Entry, now int64) error {
	existing, err := GetEntry(db, e.UUID)
	if err != nil {
		return errors.Wrap(err, "looking up existing entry")
	}

	if existing == nil {
		e.Dirty = true
		e.IsSynced = false
		if err := e.Insert(db); err != nil {
			return errors.Wrap(err, "inserting entry")
		}

		if err := enqueue(db, e.OwnerID, e.UUID, database.KindEntry, database.ActionCreate, now); err != nil {
			return errors.Wrap(err, "queueing entry")
		}

		return nil
	}

	// identical content: nothing to persist, nothing to queue
	if existing.Title == e.Title && existing.Body == e.Body {
		return nil
	}

	_, err = db.Exec("UPDATE entries SET title = ?, body = ?, last_updated = ?, dirty = ? WHERE uuid = ?",
		e.Title, e.Body, e.LastUpdated, true, e.UUID)
	if err != nil {
		return errors.Wrapf(err, "updating entry %s", e.UUID)
	}

	action := database.ActionUpdate
	if !existing.IsSynced {
		// never reached the remote store, so remains a create
		action = database.ActionCreate
	}
	if err := enqueue(db, e.OwnerID, e.UUID, database.KindEntry, action, now); err != nil {
		return errors.Wrap(err, "queueing entry")
	}

	return nil
}

// ListUnsyncedEntries returns all entries of the owner that are present in the
// sync queue, oldest pending change first so worst-case staleness is bounded.
// Repeated uuids are collapsed to the first-seen occurrence.
func ListUnsyncedEntries(db *database.DB, ownerID string) ([]PendingEntry, error) {
	rows, err := db.Query(`SELECT e.uuid, e.owner_id, e.title, e.body, e.created_at, e.last_updated,
		e.is_synced, e.sync_attempts, e.last_sync_attempt, e.created_offline, e.deleted, e.dirty,
		q.action, q.attempts
		FROM entries e
		INNER JOIN sync_queue q ON q.item_uuid = e.uuid
		WHERE e.owner_id = ? AND q.kind = ?
		ORDER BY e.last_updated ASC`, ownerID, database.KindEntry)
	if err != nil {
		return nil, errors.Wrap(err, "querying unsynced entries")
	}
	defer rows.Close()

	var ret []PendingEntry
	seen := map[string]bool{}

	for rows.Next() {
		var p PendingEntry
		err := rows.Scan(&p.UUID, &p.OwnerID, &p.Title, &p.Body, &p.CreatedAt, &p.LastUpdated,
			&p.IsSynced, &p.SyncAttempts, &p.LastSyncAttempt, &p.CreatedOffline, &p.Deleted, &p.Dirty,
			&p.Action, &p.Attempts)
		if err != nil {
			return nil, errors.Wrap(err, "scanning an unsynced entry")
		}

		if seen[p.UUID] {
			continue
		}
		seen[p.UUID] = true

		ret = append(ret, p)
	}

	return ret, nil
}

// MarkEntrySyncResult records the outcome of a sync attempt for the entry.
// pushedAt is the last_updated of the snapshot that was sent to the remote
// store. On success the entry leaves the queue, is marked synced and has its
// attempt counter reset; the server timestamp, when given, becomes
// authoritative for last_updated. If the row's last_updated no longer matches
// pushedAt, an edit landed while the push was in flight: the entry is marked
// as known to the remote store but stays queued and dirty, so the newer
// content is uploaded on the next pass. A soft-deleted entry acknowledged by
// the remote store is expunged. On failure the attempt counters advance and
// the entry stays queued for a later pass.
func MarkEntrySyncResult(db *database.DB, uuid string, success bool, pushedAt, serverTime, now int64) error {
	if success {
		e, err := GetEntry(db, uuid)
		if err != nil {
			return errors.Wrap(err, "looking up entry")
		}
		if e == nil {
			return dequeue(db, uuid)
		}

		if pushedAt > 0 && e.LastUpdated != pushedAt {
			return recordSupersededPush(db, "entries", uuid, e.Deleted)
		}

		if e.Deleted {
			if err := e.Expunge(db); err != nil {
				return errors.Wrap(err, "expunging acknowledged deletion")
			}

			return dequeue(db, uuid)
		}

		if serverTime > 0 {
			_, err := db.Exec("UPDATE entries SET is_synced = ?, dirty = ?, sync_attempts = 0, last_updated = ? WHERE uuid = ?",
				true, false, serverTime, uuid)
			if err != nil {
				return errors.Wrapf(err, "marking entry %s synced", uuid)
			}
		} else {
			_, err := db.Exec("UPDATE entries SET is_synced = ?, dirty = ?, sync_attempts = 0 WHERE uuid = ?",
				true, false, uuid)
			if err != nil {
				return errors.Wrapf(err, "marking entry %s synced", uuid)
			}
		}

		return dequeue(db, uuid)
	}

	_, err := db.Exec("UPDATE entries SET sync_attempts = sync_attempts + 1, last_sync_attempt = ? WHERE uuid = ?", now, uuid)
	if err != nil {
		return errors.Wrapf(err, "recording failed attempt for entry %s", uuid)
	}

	_, err = db.Exec("UPDATE sync_queue SET attempts = attempts + 1, last_attempt = ? WHERE item_uuid = ?", now, uuid)
	if err != nil {
		return errors.Wrapf(err, "recording failed attempt for queue item %s", uuid)
	}

	return nil
}

// MergeRemoteEntry reconciles a remote entry with the local copy. A remote
// entry unknown locally is inserted as synced. A known one is overwritten only
// if the remote last_updated is strictly newer; ties favor local, since the
// device currently editing keeps authority. It returns whether the remote copy
// was applied and, when it overwrote local content, the body it replaced.
func MergeRemoteEntry(db *database.DB, remote database.Entry) (bool, string, error) {
	local, err := GetEntry(db, remote.UUID)
	if err != nil {
		return false, "", errors.Wrap(err, "looking up local entry")
	}

	if local == nil {
		remote.IsSynced = true
		remote.Dirty = false
		remote.SyncAttempts = 0
		if err := remote.Insert(db); err != nil {
			return false, "", errors.Wrap(err, "inserting remote entry")
		}

		return true, "", nil
	}

	if remote.LastUpdated <= local.LastUpdated {
		return false, "", nil
	}

	prevBody := local.Body

	_, err = db.Exec(`UPDATE entries SET title = ?, body = ?, last_updated = ?, deleted = ?,
		is_synced = ?, dirty = ?, sync_attempts = 0 WHERE uuid = ?`,
		remote.Title, remote.Body, remote.LastUpdated, remote.Deleted, true, false, remote.UUID)
	if err != nil {
		return false, "", errors.Wrapf(err, "overwriting local entry %s", remote.UUID)
	}

	// the local pending change, if any, has been superseded by the remote copy
	if err := dequeue(db, remote.UUID); err != nil {
		return false, "", errors.Wrap(err, "removing superseded queue item")
	}

	return true, prevBody, nil
}

// DeleteEntry queues the deletion of an entry like any other mutation. An
// entry that never reached the remote store is expunged outright.
func DeleteEntry(db *database.DB, uuid string, now int64) error {
	e, err := GetEntry(db, uuid)
	if err != nil {
		return errors.Wrap(err, "looking up entry")
	}
	if e == nil {
		return nil
	}

	if !e.IsSynced {
		if err := e.Expunge(db); err != nil {
			return errors.Wrap(err, "expunging unsynced entry")
		}

		return dequeue(db, uuid)
	}

	_, err = db.Exec("UPDATE entries SET deleted = ?, last_updated = ?, dirty = ? WHERE uuid = ?", true, now, true, uuid)
	if err != nil {
		return errors.Wrapf(err, "marking entry %s deleted", uuid)
	}

	return enqueue(db, e.OwnerID, uuid, database.KindEntry, database.ActionDelete, now)
}
