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

// enqueue records that the given item still needs to reach the remote store.
// An item already in the queue keeps its record and attempt counter; only a
// pending deletion overrides the queued action.
func enqueue(db *database.DB, ownerID, itemUUID, kind, action string, now int64) error {
	var existingAction string
	err := db.QueryRow("SELECT action FROM sync_queue WHERE item_uuid = ?", itemUUID).Scan(&existingAction)
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrapf(err, "checking queue for %s", itemUUID)
	}

	if err == sql.ErrNoRows {
		item := database.QueueItem{
			ItemUUID:   itemUUID,
			OwnerID:    ownerID,
			Kind:       kind,
			Action:     action,
			EnqueuedAt: now,
		}
		if err := item.Insert(db); err != nil {
			return errors.Wrap(err, "inserting queue item")
		}

		return refreshPendingCount(db, ownerID)
	}

	if action == database.ActionDelete && existingAction != database.ActionDelete {
		if _, err := db.Exec("UPDATE sync_queue SET action = ? WHERE item_uuid = ?", action, itemUUID); err != nil {
			return errors.Wrapf(err, "updating queued action for %s", itemUUID)
		}
	}

	return nil
}

// dequeue removes the queue record for the given item, if any
func dequeue(db *database.DB, itemUUID string) error {
	var ownerID string
	err := db.QueryRow("SELECT owner_id FROM sync_queue WHERE item_uuid = ?", itemUUID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "looking up queue item %s", itemUUID)
	}

	if _, err := db.Exec("DELETE FROM sync_queue WHERE item_uuid = ?", itemUUID); err != nil {
		return errors.Wrapf(err, "deleting queue item %s", itemUUID)
	}

	return refreshPendingCount(db, ownerID)
}

// recordSupersededPush handles a sync ack for a snapshot that is no longer the
// current row: an edit or deletion landed while the push was in flight. The
// item is now known to the remote store, so the attempt counters reset and a
// queued create becomes an update, but it stays queued and dirty; the newer
// content goes out on the next pass. last_updated is left alone so the local
// edit keeps its timestamp.
func recordSupersededPush(db *database.DB, table, itemUUID string, deleted bool) error {
	_, err := db.Exec("UPDATE "+table+" SET is_synced = ?, sync_attempts = 0 WHERE uuid = ?", true, itemUUID)
	if err != nil {
		return errors.Wrapf(err, "recording superseded push for %s", itemUUID)
	}

	action := database.ActionUpdate
	if deleted {
		action = database.ActionDelete
	}
	_, err = db.Exec("UPDATE sync_queue SET action = ?, attempts = 0 WHERE item_uuid = ?", action, itemUUID)
	if err != nil {
		return errors.Wrapf(err, "requeueing superseded item %s", itemUUID)
	}

	return nil
}

// refreshPendingCount recomputes the denormalized pending count for the owner,
// so that a status display does not need to scan the queue.
func refreshPendingCount(db *database.DB, ownerID string) error {
	_, err := db.Exec(`INSERT INTO sync_state (owner_id, last_sync_time, pending_count)
		VALUES (?, 0, (SELECT count(*) FROM sync_queue WHERE owner_id = ?))
		ON CONFLICT(owner_id) DO UPDATE SET pending_count = (SELECT count(*) FROM sync_queue WHERE owner_id = ?)`,
		ownerID, ownerID, ownerID)
	if err != nil {
		return errors.Wrapf(err, "refreshing pending count for owner %s", ownerID)
	}

	return nil
}

// GetPendingCount returns the number of items still waiting to be synced for
// the owner.
func GetPendingCount(db *database.DB, ownerID string) (int, error) {
	var ret int

	err := db.QueryRow("SELECT pending_count FROM sync_state WHERE owner_id = ?", ownerID).Scan(&ret)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "querying pending count for owner %s", ownerID)
	}

	return ret, nil
}

// GetLastSyncTime returns the owner's download high-water mark
func GetLastSyncTime(db *database.DB, ownerID string) (int64, error) {
	var ret int64

	err := db.QueryRow("SELECT last_sync_time FROM sync_state WHERE owner_id = ?", ownerID).Scan(&ret)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "querying last sync time for owner %s", ownerID)
	}

	return ret, nil
}

// SetLastSyncTime advances the owner's download high-water mark
func SetLastSyncTime(db *database.DB, ownerID string, t int64) error {
	_, err := db.Exec(`INSERT INTO sync_state (owner_id, last_sync_time, pending_count)
		VALUES (?, ?, (SELECT count(*) FROM sync_queue WHERE owner_id = ?))
		ON CONFLICT(owner_id) DO UPDATE SET last_sync_time = excluded.last_sync_time`,
		ownerID, t, ownerID)
	if err != nil {
		return errors.Wrapf(err, "setting last sync time for owner %s", ownerID)
	}

	return nil
}

// AdoptOwner moves all local data from one owner to another. It is used when
// signing in for the first time, so entries written before any account existed
// become syncable under the authenticated owner.
func AdoptOwner(db *database.DB, from, to string) error {
	if _, err := db.Exec("UPDATE entries SET owner_id = ? WHERE owner_id = ?", to, from); err != nil {
		return errors.Wrap(err, "adopting entries")
	}
	if _, err := db.Exec("UPDATE notes SET owner_id = ? WHERE owner_id = ?", to, from); err != nil {
		return errors.Wrap(err, "adopting notes")
	}
	if _, err := db.Exec("UPDATE sync_queue SET owner_id = ? WHERE owner_id = ?", to, from); err != nil {
		return errors.Wrap(err, "adopting queue items")
	}
	if _, err := db.Exec("DELETE FROM sync_state WHERE owner_id = ?", from); err != nil {
		return errors.Wrap(err, "clearing adopted sync state")
	}

	return refreshPendingCount(db, to)
}

// ResetOwner removes all local data belonging to the owner. It is used on
// sign-out so that content from one identity never becomes visible under
// another.
func ResetOwner(db *database.DB, ownerID string) error {
	if _, err := db.Exec("DELETE FROM sync_queue WHERE owner_id = ?", ownerID); err != nil {
		return errors.Wrap(err, "clearing sync queue")
	}
	if _, err := db.Exec("DELETE FROM entries WHERE owner_id = ?", ownerID); err != nil {
		return errors.Wrap(err, "clearing entries")
	}
	if _, err := db.Exec("DELETE FROM notes WHERE owner_id = ?", ownerID); err != nil {
		return errors.Wrap(err, "clearing notes")
	}
	if _, err := db.Exec("DELETE FROM sync_state WHERE owner_id = ?", ownerID); err != nil {
		return errors.Wrap(err, "clearing sync state")
	}

	return nil
}
