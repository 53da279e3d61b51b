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

package logout

import (
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

// ErrNotLoggedIn is an error for logging out when not logged in
var ErrNotLoggedIn = errors.New("not logged in")

var example = `
  everjot logout`

var purgeFlag bool

// NewCmd returns a new logout command
func NewCmd(ctx context.EverjotCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "logout",
		Short:   "Logout from the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVar(&purgeFlag, "purge", false, "also remove the account's local data")

	return cmd
}

// Do performs logout
func Do(ctx context.EverjotCtx, purge bool) error {
	if !ctx.LoggedIn() {
		return ErrNotLoggedIn
	}

	if err := remote.Signout(ctx, ctx.SessionKey); err != nil {
		return errors.Wrap(err, "requesting logout")
	}

	db := ctx.DB
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	if err := database.DeleteSystem(tx, consts.SystemSessionKey); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "deleting session key")
	}
	if err := database.DeleteSystem(tx, consts.SystemSessionKeyExpiry); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "deleting session key expiry")
	}
	if err := database.DeleteSystem(tx, consts.SystemOwnerID); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "deleting owner id")
	}

	if purge {
		if err := store.ResetOwner(tx, ctx.OwnerID); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "purging local data")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing logout")
	}

	return nil
}

func newRun(ctx context.EverjotCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if purgeFlag {
			pending, err := store.GetPendingCount(ctx.DB, ctx.OwnerID)
			if err != nil {
				return errors.Wrap(err, "counting pending items")
			}
			if pending > 0 {
				log.Warnf("%d changes have not been synced and will be lost\n", pending)
			}

			ok, err := ui.Confirm("remove all local data for this account", false)
			if err != nil {
				return errors.Wrap(err, "getting confirmation")
			}
			if !ok {
				log.Plain("aborted\n")
				return nil
			}
		}

		if err := Do(ctx, purgeFlag); err != nil {
			return errors.Wrap(err, "logging out")
		}

		log.Success("logged out\n")

		return nil
	}
}
