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

// Package database provides the persistence layer on top of SQLite. It is the
// only package that writes to disk; all other components mutate state through
// the operations defined here and in the store package.
package database

import (
	"database/sql"

	// the sqlite driver registers itself with database/sql
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DB is a handle to the local database. It wraps either a plain connection or
// a transaction, so that callers can run the same operations in both modes.
type DB struct {
	conn *sql.DB
	tx   *sql.Tx
}

// Open opens a database connection at the given path
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening connection")
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, errors.Wrap(err, "enabling foreign keys")
	}

	return &DB{conn: conn}, nil
}

// Begin starts a transaction and returns a handle that runs all operations
// within it until Commit or Rollback is called.
func (db *DB) Begin() (*DB, error) {
	if db.tx != nil {
		return nil, errors.New("transaction already in progress")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "beginning a transaction")
	}

	return &DB{conn: db.conn, tx: tx}, nil
}

// Commit commits the transaction
func (db *DB) Commit() error {
	if db.tx == nil {
		return errors.New("no transaction in progress")
	}

	return db.tx.Commit()
}

// Rollback aborts the transaction
func (db *DB) Rollback() error {
	if db.tx == nil {
		return errors.New("no transaction in progress")
	}

	return db.tx.Rollback()
}

// Close closes the underlying connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Exec executes the given query
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	if db.tx != nil {
		return db.tx.Exec(query, args...)
	}

	return db.conn.Exec(query, args...)
}

// Query runs the given query and returns the matching rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	if db.tx != nil {
		return db.tx.Query(query, args...)
	}

	return db.conn.Query(query, args...)
}

// QueryRow runs the given query expecting at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	if db.tx != nil {
		return db.tx.QueryRow(query, args...)
	}

	return db.conn.QueryRow(query, args...)
}
