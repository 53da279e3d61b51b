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

// Package consts provides definitions of constants
package consts

var (
	// EverjotDirName is the name of the directory containing everjot files
	EverjotDirName = "everjot"
	// EverjotDBFileName is a filename for the Everjot SQLite database
	EverjotDBFileName = "everjot.db"
	// DraftFileBase is the base for the filename of a draft being edited
	DraftFileBase = "EVERJOT_DRAFT"
	// DraftFileExt is the extension for the draft file
	DraftFileExt = "md"
	// ConfigFilename is the name of the config file
	ConfigFilename = "everjotrc"

	// SystemSchema is the key for schema in the system table
	SystemSchema = "schema"
	// SystemSessionKey is the session key
	SystemSessionKey = "session_token"
	// SystemSessionKeyExpiry is the timestamp at which the session key will expire
	SystemSessionKeyExpiry = "session_token_expiry"
	// SystemOwnerID is the identifier of the authenticated owner
	SystemOwnerID = "owner_id"

	// LocalOwnerID is the owner id used for data written before any sign-in.
	// Signing in adopts the rows under the authenticated owner.
	LocalOwnerID = "local"
)

const (
	// SchemaVersion is the current version of the local database schema
	SchemaVersion = 1
)
