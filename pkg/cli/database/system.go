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
	"database/sql"
	_ "embed"

	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema creates the tables and indices if they do not exist yet
func InitSchema(db *DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "running schema sql")
	}

	return nil
}

// GetSystem scans the given system configuration record into the destination.
// A missing key leaves the destination at its zero value.
func GetSystem(db *DB, key string, dest interface{}) error {
	err := db.QueryRow("SELECT value FROM system WHERE key = ?", key).Scan(dest)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "querying system configuration for %s", key)
	}

	return nil
}

// UpdateSystem inserts or updates the system configuration record for the given key
func UpdateSystem(db *DB, key string, val interface{}) error {
	_, err := db.Exec("INSERT INTO system (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, val)
	if err != nil {
		return errors.Wrapf(err, "updating system configuration for %s", key)
	}

	return nil
}

// DeleteSystem removes the system configuration record for the given key
func DeleteSystem(db *DB, key string) error {
	_, err := db.Exec("DELETE FROM system WHERE key = ?", key)
	if err != nil {
		return errors.Wrapf(err, "deleting system configuration for %s", key)
	}

	return nil
}
