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

package remote

import (
	"encoding/json"

	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/pkg/errors"
)

// SyncManifest summarizes the server-side state of the owner's data
type SyncManifest struct {
	CurrentTime int64 `json:"current_time"`
	EntryCount  int   `json:"entry_count"`
	NoteCount   int   `json:"note_count"`
}

// GetSyncManifest fetches the server-side summary for the owner
func GetSyncManifest(ctx context.EverjotCtx) (SyncManifest, error) {
	var ret SyncManifest

	res, err := doAuthorizedReq(ctx, "GET", "/v1/sync/manifest", "")
	if err != nil {
		return ret, errors.Wrap(err, "fetching the sync manifest")
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(&ret); err != nil {
		return ret, errors.Wrap(err, "decoding the response")
	}
	if ret.CurrentTime <= 0 {
		return ret, errors.Wrap(ErrInvalidDocument, "manifest has no current_time")
	}

	return ret, nil
}
