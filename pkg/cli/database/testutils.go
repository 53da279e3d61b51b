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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/everjot/everjot/pkg/cli/utils"
	"github.com/pkg/errors"
)

// MustScan scans the given row and fails a test in case of any errors
func MustScan(t *testing.T, message string, row *sql.Row, args ...interface{}) {
	t.Helper()

	err := row.Scan(args...)
	if err != nil {
		t.Fatal(errors.Wrap(errors.Wrap(err, "scanning a row"), message))
	}
}

// MustExec executes the given SQL query and fails a test if an error occurs
func MustExec(t *testing.T, message string, db *DB, query string, args ...interface{}) sql.Result {
	t.Helper()

	result, err := db.Exec(query, args...)
	if err != nil {
		t.Fatal(errors.Wrap(errors.Wrap(err, "executing sql"), message))
	}

	return result
}

// InitTestMemoryDB initializes an in-memory test database with the schema.
func InitTestMemoryDB(t *testing.T) *DB {
	t.Helper()

	uuid := mustGenerateTestUUID(t)
	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid)

	db, err := Open(dbName)
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening in-memory database"))
	}

	if err := InitSchema(db); err != nil {
		t.Fatal(errors.Wrap(err, "running schema sql"))
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// InitTestFileDB initializes a file-based test database with the schema.
func InitTestFileDB(t *testing.T) (*DB, string) {
	t.Helper()

	uuid := mustGenerateTestUUID(t)
	dbPath := filepath.Join(t.TempDir(), fmt.Sprintf("everjot-%s.db", uuid))
	db := InitTestFileDBRaw(t, dbPath)
	return db, dbPath
}

// InitTestFileDBRaw initializes a file-based test database at the specified path with the schema.
func InitTestFileDBRaw(t *testing.T, dbPath string) *DB {
	t.Helper()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening database"))
	}

	if err := InitSchema(db); err != nil {
		t.Fatal(errors.Wrap(err, "running schema sql"))
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// mustGenerateTestUUID generates a UUID for test databases and fails the test on error
func mustGenerateTestUUID(t *testing.T) string {
	t.Helper()

	uuid, err := utils.GenerateUUID()
	if err != nil {
		t.Fatal(errors.Wrap(err, "generating UUID for test database"))
	}
	return uuid
}
