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

// Package utils provides general utilities
package utils

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OfflineIDPrefix marks ids generated while disconnected. It aids debugging
// and has no semantic meaning to the sync engine.
const OfflineIDPrefix = "offline-"

// GenerateUUID returns a uuid v4 in string
func GenerateUUID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "generating uuid")
	}

	return u.String(), nil
}

// GenerateEntryID returns a new client-generated id for an entry or a note.
// Ids generated while offline carry a prefix to aid debugging.
func GenerateEntryID(offline bool) (string, error) {
	u, err := GenerateUUID()
	if err != nil {
		return "", err
	}

	if offline {
		return fmt.Sprintf("%s%s", OfflineIDPrefix, u), nil
	}

	return u, nil
}
