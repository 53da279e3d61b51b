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

package sync

import (
	"github.com/everjot/everjot/pkg/cli/broadcast"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/engine"
	"github.com/everjot/everjot/pkg/cli/infra"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  everjot sync`

var isFullSync bool
var apiEndpointFlag string

// NewCmd returns a new sync command
func NewCmd(ctx context.EverjotCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Sync data with the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&isFullSync, "full", "f", false, "re-fetch everything from the server instead of incrementally syncing only the changed data.")
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

func newRun(ctx context.EverjotCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
		}

		if !ctx.LoggedIn() {
			log.Error("not logged in. please run `everjot login`\n")
			return nil
		}

		log.Info("initiating sync\n")

		eng := engine.New(broadcast.New(engine.NotesState{}))

		applied, res, err := eng.Sync(ctx, isFullSync, true)
		if err != nil {
			return errors.Wrap(err, "syncing")
		}

		log.Successf("downloaded %d changes\n", applied)
		log.Successf("uploaded %d changes\n", res.Synced)

		if res.Failed > 0 {
			log.Warnf("%d items failed to upload and remain queued\n", res.Failed)
		}

		return nil
	}
}
