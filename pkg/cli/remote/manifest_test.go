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

package remote_test

import (
	"testing"

	"github.com/everjot/everjot/pkg/assert"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/remote"
	"github.com/everjot/everjot/pkg/cli/remote/remotetest"
)

func TestGetSyncManifest(t *testing.T) {
	server := remotetest.New()
	defer server.Close()

	server.PutEntry(remote.RespEntry{UUID: "entry-1", Body: "content", CreatedAt: 100, LastUpdated: 1500})
	server.PutNote(remote.RespNote{UUID: "note-1", Body: "content", RecordedAt: 100, LastUpdated: 1600})

	ctx := context.EverjotCtx{
		APIEndpoint: server.URL(),
		SessionKey:  "some-session-key",
		OwnerID:     "test-owner",
		Version:     "0.1.0-test",
	}

	got, err := remote.GetSyncManifest(ctx)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got.EntryCount, 1, "entry count mismatch")
	assert.Equal(t, got.NoteCount, 1, "note count mismatch")
	assert.Equal(t, got.CurrentTime, int64(1600), "the manifest carries the server clock")
}
