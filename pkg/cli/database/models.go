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

package database

import (
	"github.com/pkg/errors"
)

// Queue item kinds
const (
	// KindEntry marks a queue item referring to a journal entry
	KindEntry = "entry"
	// KindNote marks a queue item referring to a note
	KindNote = "note"
)

// Queue item actions
const (
	// ActionCreate marks an item that has never reached the remote store
	ActionCreate = "create"
	// ActionUpdate marks an item that exists remotely but has local changes
	ActionUpdate = "update"
	// ActionDelete marks an item whose deletion is pending upload
	ActionDelete = "delete"
)

// Entry represents a journal entry. The sync metadata lives inline: Dirty
// mirrors membership in the sync queue, IsSynced is set only after a confirmed
// remote acknowledgment.
type Entry struct {
	UUID            string `json:"uuid"`
	OwnerID         string `json:"owner_id"`
	Title           string `json:"title"`
	Body            string `json:"content"`
	CreatedAt       int64  `json:"created_at"`
	LastUpdated     int64  `json:"last_updated"`
	IsSynced        bool   `json:"is_synced"`
	SyncAttempts    int    `json:"sync_attempts"`
	LastSyncAttempt int64  `json:"last_sync_attempt"`
	CreatedOffline  bool   `json:"created_offline"`
	Deleted         bool   `json:"deleted"`
	Dirty           bool   `json:"dirty"`
}

// Note represents a quick timestamped record. It shares the entry's sync
// metadata shape under a different entity shape.
type Note struct {
	UUID            string `json:"uuid"`
	OwnerID         string `json:"owner_id"`
	Body            string `json:"content"`
	RecordedAt      int64  `json:"recorded_at"`
	LastUpdated     int64  `json:"last_updated"`
	IsSynced        bool   `json:"is_synced"`
	SyncAttempts    int    `json:"sync_attempts"`
	LastSyncAttempt int64  `json:"last_sync_attempt"`
	CreatedOffline  bool   `json:"created_offline"`
	Deleted         bool   `json:"deleted"`
	Dirty           bool   `json:"dirty"`
}

// QueueItem is the durable record of an item that still needs to reach the
// remote store.
type QueueItem struct {
	ItemUUID    string `json:"item_uuid"`
	OwnerID     string `json:"owner_id"`
	Kind        string `json:"kind"`
	Action      string `json:"action"`
	EnqueuedAt  int64  `json:"enqueued_at"`
	Attempts    int    `json:"attempts"`
	LastAttempt int64  `json:"last_attempt"`
}

// Insert inserts a new entry
func (e Entry) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO entries
		(uuid, owner_id, title, body, created_at, last_updated, is_synced, sync_attempts, last_sync_attempt, created_offline, deleted, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UUID, e.OwnerID, e.Title, e.Body, e.CreatedAt, e.LastUpdated, e.IsSynced, e.SyncAttempts, e.LastSyncAttempt, e.CreatedOffline, e.Deleted, e.Dirty)

	if err != nil {
		return errors.Wrapf(err, "inserting entry with uuid %s", e.UUID)
	}

	return nil
}

// Update updates the entry with the given data
func (e Entry) Update(db *DB) error {
	_, err := db.Exec(`UPDATE entries SET owner_id = ?, title = ?, body = ?, created_at = ?, last_updated = ?,
		is_synced = ?, sync_attempts = ?, last_sync_attempt = ?, created_offline = ?, deleted = ?, dirty = ? WHERE uuid = ?`,
		e.OwnerID, e.Title, e.Body, e.CreatedAt, e.LastUpdated, e.IsSynced, e.SyncAttempts, e.LastSyncAttempt, e.CreatedOffline, e.Deleted, e.Dirty, e.UUID)

	if err != nil {
		return errors.Wrapf(err, "updating the entry with uuid %s", e.UUID)
	}

	return nil
}

// Expunge hard-deletes the entry from the database
func (e Entry) Expunge(db *DB) error {
	_, err := db.Exec("DELETE FROM entries WHERE uuid = ?", e.UUID)
	if err != nil {
		return errors.Wrap(err, "expunging an entry locally")
	}

	return nil
}

// Insert inserts a new note
func (n Note) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO notes
		(uuid, owner_id, body, recorded_at, last_updated, is_synced, sync_attempts, last_sync_attempt, created_offline, deleted, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UUID, n.OwnerID, n.Body, n.RecordedAt, n.LastUpdated, n.IsSynced, n.SyncAttempts, n.LastSyncAttempt, n.CreatedOffline, n.Deleted, n.Dirty)

	if err != nil {
		return errors.Wrapf(err, "inserting note with uuid %s", n.UUID)
	}

	return nil
}

// Update updates the note with the given data
func (n Note) Update(db *DB) error {
	_, err := db.Exec(`UPDATE notes SET owner_id = ?, body = ?, recorded_at = ?, last_updated = ?,
		is_synced = ?, sync_attempts = ?, last_sync_attempt = ?, created_offline = ?, deleted = ?, dirty = ? WHERE uuid = ?`,
		n.OwnerID, n.Body, n.RecordedAt, n.LastUpdated, n.IsSynced, n.SyncAttempts, n.LastSyncAttempt, n.CreatedOffline, n.Deleted, n.Dirty, n.UUID)

	if err != nil {
		return errors.Wrapf(err, "updating the note with uuid %s", n.UUID)
	}

	return nil
}

// Expunge hard-deletes the note from the database
func (n Note) Expunge(db *DB) error {
	_, err := db.Exec("DELETE FROM notes WHERE uuid = ?", n.UUID)
	if err != nil {
		return errors.Wrap(err, "expunging a note locally")
	}

	return nil
}

// Insert inserts a new queue item
func (q QueueItem) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO sync_queue (item_uuid, owner_id, kind, action, enqueued_at, attempts, last_attempt)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ItemUUID, q.OwnerID, q.Kind, q.Action, q.EnqueuedAt, q.Attempts, q.LastAttempt)

	if err != nil {
		return errors.Wrapf(err, "inserting queue item for %s", q.ItemUUID)
	}

	return nil
}

// Expunge removes the queue item from the database
func (q QueueItem) Expunge(db *DB) error {
	_, err := db.Exec("DELETE FROM sync_queue WHERE item_uuid = ?", q.ItemUUID)
	if err != nil {
		return errors.Wrap(err, "expunging a queue item")
	}

	return nil
}
