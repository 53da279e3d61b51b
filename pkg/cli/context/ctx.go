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

// Package context defines the everjot runtime context
package context

import (
	"net/http"

	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/clock"
)

// Paths contain directory definitions
type Paths struct {
	Home   string
	Config string
	Data   string
	Cache  string
}

// EverjotCtx is a context holding the information of the current runtime
type EverjotCtx struct {
	Paths            Paths
	APIEndpoint      string
	Version          string
	DB               *database.DB
	SessionKey       string
	SessionKeyExpiry int64
	OwnerID          string
	Editor           string
	Clock            clock.Clock
	HTTPClient       *http.Client
}

// LoggedIn returns true if the context carries a usable identity. Sync
// attempts are skipped, not failed, when this is false.
func (ctx EverjotCtx) LoggedIn() bool {
	return ctx.SessionKey != "" && ctx.OwnerID != ""
}

// Redact replaces private information from the context with a set of
// placeholder values.
func Redact(ctx EverjotCtx) EverjotCtx {
	var sessionKey string
	if ctx.SessionKey != "" {
		sessionKey = "1"
	} else {
		sessionKey = "0"
	}
	ctx.SessionKey = sessionKey

	return ctx
}
