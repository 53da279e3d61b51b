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
	"database/sql"

	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/pkg/errors"
)

// PendingNote is a note joined with its sync queue record
type PendingNote struct {
	database.Note
	Action   string
	Attempts int
}

const noteColumns = `uuid, owner_id, body, recorded_at, last_updated,
	is_synced, sync_attempts, last_sync_attempt, created_offline, deleted, dirty`

func scanNote(row interface {
	Scan(dest ...interface{}) error
}, n *database.Note) error {
	return row.Scan(&n.UUID, &n.OwnerID, &n.Body, &n.RecordedAt, &n.LastUpdated,
		&n.IsSynced, &n.SyncAttempts, &n.LastSyncAttempt, &n.CreatedOffline, &n.Deleted, &n.Dirty)
}

// GetNote returns the note with the given uuid, or nil if it does not exist
func GetNote(db *database.DB, uuid string) (*database.Note, error) {
	var n database.Note

	row := db.QueryRow("SELECT "+noteColumns+" FROM notes WHERE uuid = ?", uuid)
	err := scanNote(row, &n)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting note %s", uuid)
	}

	return &n, nil
}

// ListNotes returns the owner's notes, most recently recorded first
func ListNotes(db *database.DB, ownerID string, limit int) ([]database.Note, error) {
	rows, err := db.Query("SELECT "+noteColumns+" FROM notes WHERE owner_id = ? AND NOT deleted ORDER BY recorded_at DESC LIMIT ?", ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	defer rows.Close()

	var ret []database.Note
	for rows.Next() {
		var n database.Note
		if err := scanNote(rows, &n); err != nil {
			return nil, errors.Wrap(err, "scanning a note")
		}
		ret = append(ret, n)
	}

	return ret, nil
}

// UpsertNote inserts or overwrites the note by uuid and records it in the sync
// queue. Like UpsertEntry, it is idempotent for identical content.
func UpsertNote(db *database.DB, n database.Note, now int64) error {
	existing, err := GetNote(db, n.UUID)
	if err != nil {
		return errors.Wrap(err, "looking up existing note")
	}

	if existing == nil {
		n.Dirty = true
		n.IsSynced = false
		if err := n.Insert(db); err != nil {
			return errors.Wrap(err, "inserting note")
		}

		if err := enqueue(db, n.OwnerID, n.UUID, database.KindNote, database.ActionCreate, now); err != nil {
			return errors.Wrap(err, "queueing note")
		}

		return nil
	}

	if existing.Body == n.Body {
		return nil
	}

	_, err = db.Exec("UPDATE notes SET body = ?, last_updated = ?, dirty = ? WHERE uuid = ?",
		n.Body, n.LastUpdated, true, n.UUID)
	if err != nil {
		return errors.Wrapf(err, "updating note %s", n.UUID)
	}

	action := database.ActionUpdate
	if !existing.IsSynced {
		action = database.ActionCreate
	}
	if err := enqueue(db, n.OwnerID, n.UUID, database.KindNote, action, now); err != nil {
		return errors.Wrap(err, "queueing note")
	}

	return nil
}

// ListUnsyncedNotes returns all notes of the owner present in the sync queue,
// oldest pending change first, with repeated uuids collapsed to the first-seen
// occurrence.
func ListUnsyncedNotes(db *database.DB, ownerID string) ([]PendingNote, error) {
	rows, err := db.Query(`SELECT n.uuid, n.owner_id, n.body, n.recorded_at, n.last_updated,
		n.is_synced, n.sync_attempts, n.last_sync_attempt, n.created_offline, n.deleted, n.dirty,
		q.action, q.attempts
		FROM notes n
		INNER JOIN sync_queue q ON q.item_uuid = n.uuid
		WHERE n.owner_id = ? AND q.kind = ?
		ORDER BY n.last_updated ASC`, ownerID, database.KindNote)
	if err != nil {
		return nil, errors.Wrap(err, "querying unsynced notes")
	}
	defer rows.Close()

	var ret []PendingNote
	seen := map[string]bool{}

	for rows.Next() {
		var p PendingNote
		err := rows.Scan(&p.UUID, &p.OwnerID, &p.Body, &p.RecordedAt, &p.LastUpdated,
			&p.IsSynced, &p.SyncAttempts, &p.LastSyncAttempt, &p.CreatedOffline, &p.Deleted, &p.Dirty,
			&p.Action, &p.Attempts)
		if err != nil {
			return nil, errors.Wrap(err, "scanning an unsynced note")
		}

		if seen[p.UUID] {
			continue
		}
		seen[p.UUID] = true

		ret = append(ret, p)
	}

	return ret, nil
}

// MarkNoteSyncResult records the outcome of a sync attempt for the note,
// with the same semantics as MarkEntrySyncResult.
func MarkNoteSyncResult(db *database.DB, uuid string, success bool, pushedAt, serverTime, now int64) error {
	if success {
		n, err := GetNote(db, uuid)
		if err != nil {
			return errors.Wrap(err, "looking up note")
		}
		if n == nil {
			return dequeue(db, uuid)
		}

		if pushedAt > 0 && n.LastUpdated != pushedAt {
			return recordSupersededPush(db, "notes", uuid, n.Deleted)
		}

		if n.Deleted {
			if err := n.Expunge(db); err != nil {
				return errors.Wrap(err, "expunging acknowledged deletion")
			}

			return dequeue(db, uuid)
		}

		if serverTime > 0 {
			_, err := db.Exec("UPDATE notes SET is_synced = ?, dirty = ?, sync_attempts = 0, last_updated = ? WHERE uuid = ?",
				true, false, serverTime, uuid)
			if err != nil {
				return errors.Wrapf(err, "marking note %s synced", uuid)
			}
		} else {
			_, err := db.Exec("UPDATE notes SET is_synced = ?, dirty = ?, sync_attempts = 0 WHERE uuid = ?",
				true, false, uuid)
			if err != nil {
				return errors.Wrapf(err, "marking note %s synced", uuid)
			}
		}

		return dequeue(db, uuid)
	}

	_, err := db.Exec("UPDATE notes SET sync_attempts = sync_attempts + 1, last_sync_attempt = ? WHERE uuid = ?", now, uuid)
	if err != nil {
		return errors.Wrapf(err, "recording failed attempt for note %s", uuid)
	}

	_, err = db.Exec("UPDATE sync_queue SET attempts = attempts + 1, last_attempt = ? WHERE item_uuid = ?", now, uuid)
	if err != nil {
		return errors.Wrapf(err, "recording failed attempt for queue item %s", uuid)
	}

	return nil
}

// MergeRemoteNote reconciles a remote note with the local copy under the same
// last-write-wins rule as MergeRemoteEntry.
func MergeRemoteNote(db *database.DB, remote database.Note) (bool, string, error) {
	local, err := GetNote(db, remote.UUID)
	if err != nil {
		return false, "", errors.Wrap(err, "looking up local note")
	}

	if local == nil {
		remote.IsSynced = true
		remote.Dirty = false
		remote.SyncAttempts = 0
		if err := remote.Insert(db); err != nil {
			return false, "", errors.Wrap(err, "inserting remote note")
		}

		return true, "", nil
	}

	if remote.LastUpdated <= local.LastUpdated {
		return false, "", nil
	}

	prevBody := local.Body

	_, err = db.Exec(`UPDATE notes SET body = ?, last_updated = ?, deleted = ?,
		is_synced = ?, dirty = ?, sync_attempts = 0 WHERE uuid = ?`,
		remote.Body, remote.LastUpdated, remote.Deleted, true, false, remote.UUID)
	if err != nil {
		return false, "", errors.Wrapf(err, "overwriting local note %s", remote.UUID)
	}

	if err := dequeue(db, remote.UUID); err != nil {
		return false, "", errors.Wrap(err, "removing superseded queue item")
	}

	return true, prevBody, nil
}

// DeleteNote queues the deletion of a note like any other mutation. A note
// that never reached the remote store is expunged outright.
func DeleteNote(db *database.DB, uuid string, now int64) error {
	n, err := GetNote(db, uuid)
	if err != nil {
		return errors.Wrap(err, "looking up note")
	}
	if n == nil {
		return nil
	}

	if !n.IsSynced {
		if err := n.Expunge(db); err != nil {
			return errors.Wrap(err, "expunging unsynced note")
		}

		return dequeue(db, uuid)
	}

	_, err = db.Exec("UPDATE notes SET deleted = ?, last_updated = ?, dirty = ? WHERE uuid = ?", true, now, true, uuid)
	if err != nil {
		return errors.Wrapf(err, "marking note %s deleted", uuid)
	}

	return enqueue(db, n.OwnerID, uuid, database.KindNote, database.ActionDelete, now)
}
