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
	"testing"

	"github.com/everjot/everjot/pkg/assert"
)

func TestBeginDispatchesToTx(t *testing.T) {
	db := InitTestMemoryDB(t)

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}

	MustExec(t, "inserting inside tx", tx,
		"INSERT INTO system (key, value) VALUES (?, ?)", "tx-key", "tx-value")

	// reads through the tx handle dispatch to the transaction
	var innerCount int
	MustScan(t, "counting from tx handle",
		tx.QueryRow("SELECT count(*) FROM system WHERE key = ?", "tx-key"), &innerCount)
	assert.Equal(t, innerCount, 1, "the tx should see its own write")

	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	var outerCount int
	MustScan(t, "counting after commit",
		db.QueryRow("SELECT count(*) FROM system WHERE key = ?", "tx-key"), &outerCount)
	assert.Equal(t, outerCount, 1, "the committed write should be visible")
}

func TestRollback(t *testing.T) {
	db := InitTestMemoryDB(t)

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}

	MustExec(t, "inserting inside tx", tx,
		"INSERT INTO system (key, value) VALUES (?, ?)", "tx-key", "tx-value")

	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	var count int
	MustScan(t, "counting after rollback",
		db.QueryRow("SELECT count(*) FROM system WHERE key = ?", "tx-key"), &count)
	assert.Equal(t, count, 0, "a rolled-back write must not persist")
}

func TestSystemKV(t *testing.T) {
	db := InitTestMemoryDB(t)

	// a missing key yields the zero value
	var missing string
	if err := GetSystem(db, "no-such-key", &missing); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, missing, "", "missing key should read as zero value")

	if err := UpdateSystem(db, "session_key", "abc123"); err != nil {
		t.Fatal(err)
	}

	var got string
	if err := GetSystem(db, "session_key", &got); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got, "abc123", "value mismatch")

	// UpdateSystem upserts
	if err := UpdateSystem(db, "session_key", "def456"); err != nil {
		t.Fatal(err)
	}
	if err := GetSystem(db, "session_key", &got); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got, "def456", "updated value mismatch")

	var count int
	MustScan(t, "counting system rows",
		db.QueryRow("SELECT count(*) FROM system WHERE key = ?", "session_key"), &count)
	assert.Equal(t, count, 1, "updating a key must not duplicate it")

	if err := DeleteSystem(db, "session_key"); err != nil {
		t.Fatal(err)
	}
	var afterDelete string
	if err := GetSystem(db, "session_key", &afterDelete); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, afterDelete, "", "deleted key should read as zero value")
}

func TestSystemKVInt(t *testing.T) {
	db := InitTestMemoryDB(t)

	if err := UpdateSystem(db, "session_key_expiry", int64(1700000000)); err != nil {
		t.Fatal(err)
	}

	var got int64
	if err := GetSystem(db, "session_key_expiry", &got); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got, int64(1700000000), "integer value mismatch")
}
