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

package login

import (
	"net/url"

	"github.com/everjot/everjot/pkg/cli/consts"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/cli/infra"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/remote"
	"github.com/everjot/everjot/pkg/cli/store"
	"github.com/everjot/everjot/pkg/cli/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  everjot login`

var apiEndpointFlag string

// NewCmd returns a new login command
func NewCmd(ctx context.EverjotCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Login to the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

// getServerDisplayURL derives a display URL for the server from the
// configured API endpoint
func getServerDisplayURL(ctx context.EverjotCtx) string {
	u, err := url.Parse(ctx.APIEndpoint)
	if err != nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}

	return u.Scheme + "://" + u.Host
}

// Do authenticates with the given credentials and saves the session locally.
// Rows written before any sign-in are adopted under the new owner so they
// become syncable.
func Do(ctx context.EverjotCtx, email, password string) error {
	resp, err := remote.Signin(ctx, email, password)
	if err != nil {
		return errors.Wrap(err, "requesting login")
	}

	tx, err := ctx.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	if err := database.UpdateSystem(tx, consts.SystemSessionKey, resp.Key); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving session key")
	}
	if err := database.UpdateSystem(tx, consts.SystemSessionKeyExpiry, resp.ExpiresAt); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving session key expiry")
	}
	if err := database.UpdateSystem(tx, consts.SystemOwnerID, resp.OwnerID); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "saving owner id")
	}

	if err := store.AdoptOwner(tx, consts.LocalOwnerID, resp.OwnerID); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "adopting local data")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing login")
	}

	return nil
}

func newRun(ctx context.EverjotCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
		}

		if displayURL := getServerDisplayURL(ctx); displayURL != "" {
			log.Plainf("logging in to %s\n", displayURL)
		}

		var email, password string
		if err := ui.PromptInput("email", &email); err != nil {
			return errors.Wrap(err, "getting email input")
		}
		if email == "" {
			return errors.New("Email is empty")
		}

		if err := ui.PromptPassword("password", &password); err != nil {
			return errors.Wrap(err, "getting password input")
		}
		if password == "" {
			return errors.New("Password is empty")
		}

		if err := Do(ctx, email, password); err != nil {
			return errors.Wrap(err, "logging in")
		}

		log.Success("logged in\n")

		return nil
	}
}
