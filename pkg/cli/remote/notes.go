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

// RespNote represents a note in a server response
type RespNote struct {
	UUID        string `json:"uuid"`
	Body        string `json:"content"`
	RecordedAt  int64  `json:"recorded_at"`
	LastUpdated int64  `json:"last_updated"`
	Deleted     bool   `json:"deleted"`
}

// Validate checks that the document is well-formed enough to enter the merge
// logic.
func (n RespNote) Validate() error {
	if n.UUID == "" {
		return errors.Wrap(ErrInvalidDocument, "note is missing uuid")
	}
	if n.RecordedAt <= 0 {
		return errors.Wrapf(ErrInvalidDocument, "note %s has no recorded_at", n.UUID)
	}
	if n.LastUpdated <= 0 {
		return errors.Wrapf(ErrInvalidDocument, "note %s has no last_updated", n.UUID)
	}

	return nil
}

// GetNotesResp is the response from the list notes endpoint
type GetNotesResp struct {
	Notes       []RespNote `json:"notes"`
	CurrentTime int64      `json:"current_time"`
}

// GetNotes lists the owner's notes updated strictly after the given timestamp.
// Zero lists all notes.
func GetNotes(ctx context.EverjotCtx, updatedAfter int64) (GetNotesResp, error) {
	v := url.Values{}
	v.Set("updated_after", strconv.FormatInt(updatedAfter, 10))

	path := fmt.Sprintf("/v1/notes?%s", v.Encode())
	res, err := doAuthorizedReq(ctx, "GET", path, "")
	if err != nil {
		return GetNotesResp{}, errors.Wrap(err, "listing notes")
	}
	defer res.Body.Close()

	var resp GetNotesResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding the response")
	}

	for _, n := range resp.Notes {
		if err := n.Validate(); err != nil {
			return GetNotesResp{}, errors.Wrap(err, "validating a remote note")
		}
	}

	return resp, nil
}

// NotePayload is a payload for creating or updating a note
type NotePayload struct {
	UUID        string `json:"uuid"`
	Body        string `json:"content"`
	RecordedAt  int64  `json:"recorded_at"`
	LastUpdated int64  `json:"last_updated"`
}

// NoteResp is the response from the note write endpoints
type NoteResp struct {
	Note RespNote `json:"note"`
}

// CreateNote creates a new note in the server
func CreateNote(ctx context.EverjotCtx, payload NotePayload) (NoteResp, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return NoteResp{}, errors.Wrap(err, "marshaling payload")
	}

	res, err := doAuthorizedReq(ctx, "POST", "/v1/notes", string(b))
	if err != nil {
		return NoteResp{}, errors.Wrap(err, "posting a note to the server")
	}
	defer res.Body.Close()

	var resp NoteResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding response payload")
	}
	if err := resp.Note.Validate(); err != nil {
		return resp, errors.Wrap(err, "validating the created note")
	}

	return resp, nil
}

// UpdateNote updates a note in the server
func UpdateNote(ctx context.EverjotCtx, uuid string, payload NotePayload) (NoteResp, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return NoteResp{}, errors.Wrap(err, "marshaling payload")
	}

	endpoint := fmt.Sprintf("/v1/notes/%s", uuid)
	res, err := doAuthorizedReq(ctx, "PATCH", endpoint, string(b))
	if err != nil {
		return NoteResp{}, errors.Wrap(err, "patching a note in the server")
	}
	defer res.Body.Close()

	var resp NoteResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding payload")
	}
	if err := resp.Note.Validate(); err != nil {
		return resp, errors.Wrap(err, "validating the updated note")
	}

	return resp, nil
}

// DeleteNote deletes a note in the server
func DeleteNote(ctx context.EverjotCtx, uuid string) (NoteResp, error) {
	endpoint := fmt.Sprintf("/v1/notes/%s", uuid)
	res, err := doAuthorizedReq(ctx, "DELETE", endpoint, "")
	if err != nil {
		return NoteResp{}, errors.Wrap(err, "deleting a note in the server")
	}
	defer res.Body.Close()

	var resp NoteResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decoding the response")
	}

	return resp, nil
}
