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

package status

import (
	"time"

	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/cli/infra"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/netmon"
	"github.com/everjot/everjot/pkg/cli/remote"
	"github.com/everjot/everjot/pkg/cli/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  everjot status`

var verboseFlag bool

// NewCmd returns a new status command
func NewCmd(ctx context.EverjotCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show sync status",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&verboseFlag, "verbose", "v", false, "also check queue integrity")

	return cmd
}

// checkQueueIntegrity reports entries whose dirty flag disagrees with their
// queue membership. The two are written together, so a mismatch means a bug
// or a corrupted database.
func checkQueueIntegrity(db *database.DB, ownerID string) (int, error) {
	var orphans int

	err := db.QueryRow(`SELECT
		(SELECT count(*) FROM entries e WHERE e.owner_id = ? AND e.dirty
			AND NOT EXISTS (SELECT 1 FROM sync_queue q WHERE q.item_uuid = e.uuid)) +
		(SELECT count(*) FROM sync_queue q WHERE q.owner_id = ? AND q.kind = ?
			AND NOT EXISTS (SELECT 1 FROM entries e WHERE e.uuid = q.item_uuid)) +
		(SELECT count(*) FROM notes n WHERE n.owner_id = ? AND n.dirty
			AND NOT EXISTS (SELECT 1 FROM sync_queue q WHERE q.item_uuid = n.uuid)) +
		(SELECT count(*) FROM sync_queue q WHERE q.owner_id = ? AND q.kind = ?
			AND NOT EXISTS (SELECT 1 FROM notes n WHERE n.uuid = q.item_uuid))`,
		ownerID, ownerID, database.KindEntry, ownerID, ownerID, database.KindNote).Scan(&orphans)
	if err != nil {
		return 0, errors.Wrap(err, "counting orphans")
	}

	return orphans, nil
}

func newRun(ctx context.EverjotCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		db := ctx.DB

		pending, err := store.GetPendingCount(db, ctx.OwnerID)
		if err != nil {
			return errors.Wrap(err, "counting pending items")
		}
		log.Infof("%d items pending sync\n", pending)

		lastSync, err := store.GetLastSyncTime(db, ctx.OwnerID)
		if err != nil {
			return errors.Wrap(err, "reading last sync time")
		}
		if lastSync == 0 {
			log.Info("never synced\n")
		} else {
			log.Infof("last synced %s\n", time.Unix(lastSync, 0).Format(time.RFC1123))
		}

		if !ctx.LoggedIn() {
			log.Info("not logged in\n")
		} else {
			probe := netmon.DialProbe(ctx.APIEndpoint, 5*time.Second)
			if !probe().Online() {
				log.Warnf("server unreachable\n")
			} else if m, err := remote.GetSyncManifest(ctx); err != nil {
				log.Debug("fetching sync manifest: %v\n", err)
				log.Success("server reachable\n")
			} else {
				log.Successf("server reachable: %d entries, %d notes\n", m.EntryCount, m.NoteCount)
			}
		}

		if verboseFlag {
			orphans, err := checkQueueIntegrity(db, ctx.OwnerID)
			if err != nil {
				return errors.Wrap(err, "checking queue integrity")
			}
			if orphans == 0 {
				log.Success("sync queue is consistent\n")
			} else {
				log.Warnf("%d orphaned sync records found. run `everjot sync -f` to reconcile\n", orphans)
			}
		}

		return nil
	}
}
