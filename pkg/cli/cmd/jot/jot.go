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

package jot

import (
	"os"

	"github.com/everjot/everjot/pkg/cli/broadcast"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/cli/engine"
	"github.com/everjot/everjot/pkg/cli/infra"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/store"
	"github.com/everjot/everjot/pkg/cli/ui"
	"github.com/everjot/everjot/pkg/cli/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var contentFlag string

var example = `
 * Open an editor to write content
 everjot jot

 * Skip the editor by providing content directly
 everjot jot -c "ship the release notes by friday"

 * Send stdin content to a jot
 echo "retro went well, keep the shorter standups" | everjot jot`

// NewCmd returns a new jot command
func NewCmd(ctx context.EverjotCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jot",
		Short:   "Jot down a quick note",
		Aliases: []string{"j"},
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVarP(&contentFlag, "content", "c", "", "The content for the note")

	return cmd
}

func getContent(ctx context.EverjotCtx) (string, error) {
	if contentFlag != "" {
		return contentFlag, nil
	}

	// check for piped content
	fInfo, _ := os.Stdin.Stat()
	if fInfo.Mode()&os.ModeCharDevice == 0 {
		c, err := ui.ReadStdInput()
		if err != nil {
			return "", errors.Wrap(err, "getting piped input")
		}
		return c, nil
	}

	fpath, err := ui.GetDraftPath(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting draft file path")
	}

	c, err := ui.GetEditorInput(ctx, fpath)
	if err != nil {
		return "", errors.Wrap(err, "getting editor input")
	}

	return c, nil
}

func newRun(ctx context.EverjotCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		content, err := getContent(ctx)
		if err != nil {
			return errors.Wrap(err, "getting content")
		}
		if content == "" {
			return errors.New("Empty content")
		}

		uuid, err := utils.GenerateUUID()
		if err != nil {
			return errors.Wrap(err, "generating uuid")
		}

		now := ctx.Clock.Now().Unix()
		n := database.Note{
			UUID:        uuid,
			OwnerID:     ctx.OwnerID,
			Body:        content,
			RecordedAt:  now,
			LastUpdated: now,
		}

		tx, err := ctx.DB.Begin()
		if err != nil {
			return errors.Wrap(err, "beginning a transaction")
		}
		if err := store.UpsertNote(tx, n, now); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "writing note")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "committing note")
		}

		log.Success("jotted down\n")

		// best effort: the note is durable either way
		if ctx.LoggedIn() {
			eng := engine.New(broadcast.New(engine.NotesState{}))
			if _, err := eng.SyncPending(ctx, false); err != nil {
				log.Debug("syncing after jot: %v\n", err)
			}
		}

		return nil
	}
}
