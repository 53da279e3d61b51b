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
	"fmt"
	"net/url"
	"strconv"

	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/pkg/errors"
)

// RespEntry represents a journal entry in a server response
type RespEntry struct {
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	Body        string `json:"content"`
	CreatedAt   int64  `json:"created_at"`
	LastUpdated int64  `json:"last_updated"`
	Deleted     bool   `json:"deleted"`
}

// Validate checks that the document is well-formed enough to enter the merge
// logic.
func (e RespEntry) Validate() error {
	if e.UUID == "" {
		return errors.Wrap(ErrInvalidDocument, "entry is missing uuid")
	}
	if e.CreatedAt <= 0 {
		return errors.Wrapf(ErrInvalidDocument, "entry %s has no created_at", e.UUID)
	}
	if e.LastUpdated <= 0 {
		return errors.Wrapf(ErrInvalidDocument, "entry %s has no last_updated", e.UUID)
	}

	return nil
}

// GetEntriesResp is the response from the list entries endpoint
type GetEntriesResp struct {
	Entries     []RespEntry `json:"entries"`
	CurrentTime int64       `json:"current_time"`
}

// GetEntries lists the owner's entries updated strictly after the given
// timestamp. Zero lists all entries.
func GetEntries(ctx context.EverjotCtx, updatedAfter int64) (GetEntriesResp, error) {
	v := url.Values{}
	v.Set("updated_after", strconv.FormatInt(updatedAfter, 10))

	path := fmt.Sprintf("/v1/entries?%s", v.Encode())
	res, err := doAuthorizedReq(ctx, "GET", path, "")
	if err != nil {
		return GetEntriesResp{}, errors.Wrap(err, "listing entries")
	}
	defer res.Body.Close()

	var resp GetEntriesResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding the response")
	}

	for _, e := range resp.Entries {
		if err := e.Validate(); err != nil {
			return GetEntriesResp{}, errors.Wrap(err, "validating a remote entry")
		}
	}

	return resp, nil
}

// EntryPayload is a payload for creating or updating an entry
type EntryPayload struct {
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	Body        string `json:"content"`
	CreatedAt   int64  `json:"created_at"`
	LastUpdated int64  `json:"last_updated"`
}

// EntryResp is the response from the entry write endpoints
type EntryResp struct {
	Entry RespEntry `json:"entry"`
}

// CreateEntry creates a new entry in the server. The server assigns the
// authoritative last_updated timestamp.
func CreateEntry(ctx context.EverjotCtx, payload EntryPayload) (EntryResp, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return EntryResp{}, errors.Wrap(err, "marshaling payload")
	}

	res, err := doAuthorizedReq(ctx, "POST", "/v1/entries", string(b))
	if err != nil {
		return EntryResp{}, errors.Wrap(err, "posting an entry to the server")
	}
	defer res.Body.Close()

	var resp EntryResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding response payload")
	}
	if err := resp.Entry.Validate(); err != nil {
		return resp, errors.Wrap(err, "validating the created entry")
	}

	return resp, nil
}

// UpdateEntry updates an entry in the server
func UpdateEntry(ctx context.EverjotCtx, uuid string, payload EntryPayload) (EntryResp, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return EntryResp{}, errors.Wrap(err, "marshaling payload")
	}

	endpoint := fmt.Sprintf("/v1/entries/%s", uuid)
	res, err := doAuthorizedReq(ctx, "PATCH", endpoint, string(b))
	if err != nil {
		return EntryResp{}, errors.Wrap(err, "patching an entry in the server")
	}
	defer res.Body.Close()

	var resp EntryResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding payload")
	}
	if err := resp.Entry.Validate(); err != nil {
		return resp, errors.Wrap(err, "validating the updated entry")
	}

	return resp, nil
}

// DeleteEntry deletes an entry in the server
func DeleteEntry(ctx context.EverjotCtx, uuid string) (EntryResp, error) {
	endpoint := fmt.Sprintf("/v1/entries/%s", uuid)
	res, err := doAuthorizedReq(ctx, "DELETE", endpoint, "")
	if err != nil {
		return EntryResp{}, errors.Wrap(err, "deleting an entry in the server")
	}
	defer res.Body.Close()

	var resp EntryResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding the response")
	}

	return resp, nil
}
