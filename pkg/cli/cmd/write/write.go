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

// Package write implements the journal editing session. The entry is edited
// in the user's editor backed by a draft file; every change the editor writes
// to the draft is picked up and autosaved, so work survives a crash of the
// editor or the machine.
package write

import (
	"os"
	"time"

	"github.com/everjot/everjot/pkg/cli/autosave"
	"github.com/everjot/everjot/pkg/cli/broadcast"
	"github.com/everjot/everjot/pkg/cli/config"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/engine"
	"github.com/everjot/everjot/pkg/cli/infra"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/netmon"
	"github.com/everjot/everjot/pkg/cli/store"
	"github.com/everjot/everjot/pkg/cli/ui"
	"github.com/pkg/errors"
	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"
)

var newFlag bool
var titleFlag string

var example = `
 * Continue the latest journal entry
 everjot write

 * Start a fresh entry
 everjot write --new --title "2026-08-26"`

// NewCmd returns a new write command
func NewCmd(ctx context.EverjotCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "write",
		Short:   "Write a journal entry with autosave",
		Aliases: []string{"w"},
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&newFlag, "new", "n", false, "start a new entry instead of continuing the latest one")
	f.StringVarP(&titleFlag, "title", "t", "", "the title for a new entry")

	return cmd
}

func debounceConfig(ctx context.EverjotCtx) (short, long time.Duration, threshold int) {
	cf, err := config.Read(ctx)
	if err != nil {
		log.Debug("reading config for debounce settings: %v\n", err)
		return 0, 0, 0
	}

	return time.Duration(cf.QuickSaveDelaySeconds) * time.Second,
		time.Duration(cf.SaveDelaySeconds) * time.Second,
		cf.SignificantChangeChars
}

// watchDraft feeds every write the editor makes to the draft file into the
// controller. It returns a stop function.
func watchDraft(fpath string, ctl *autosave.Controller) (func(), error) {
	w := watcher.New()
	w.FilterOps(watcher.Write)

	if err := w.Add(fpath); err != nil {
		return nil, errors.Wrap(err, "watching the draft file")
	}

	go func() {
		for {
			select {
			case <-w.Event:
				b, err := os.ReadFile(fpath)
				if err != nil {
					log.Debug("reading draft: %v\n", err)
					continue
				}
				ctl.Update(string(b))
			case err := <-w.Error:
				log.Debug("draft watcher: %v\n", err)
			case <-w.Closed:
				return
			}
		}
	}()

	go func() {
		if err := w.Start(100 * time.Millisecond); err != nil {
			log.Debug("starting draft watcher: %v\n", err)
		}
	}()

	return w.Close, nil
}

func statusLabel(s autosave.SessionState) string {
	switch s.Status {
	case autosave.StatusOffline:
		return "saved locally, offline"
	case autosave.StatusSaveFailed:
		return "SAVE FAILED"
	default:
		return string(s.Status)
	}
}

func newRun(ctx context.EverjotCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		short, long, threshold := debounceConfig(ctx)

		states := broadcast.New(autosave.SessionState{Status: autosave.StatusSaved})
		eng := engine.New(broadcast.New(engine.NotesState{}))

		ctl := autosave.NewController(autosave.Config{
			Clock:            ctx.Clock,
			DB:               ctx.DB,
			OwnerID:          ctx.OwnerID,
			States:           states,
			ShortDelay:       short,
			LongDelay:        long,
			SignificantChars: threshold,
			Sync: func() {
				if _, err := eng.SyncPending(ctx, false); err != nil {
					log.Debug("background sync: %v\n", err)
				}
			},
		})

		mon := netmon.New(ctx.Clock, netmon.DialProbe(ctx.APIEndpoint, 5*time.Second), 30*time.Second, 5*time.Second)
		unsubMon := mon.Subscribe(func(online bool) {
			ctl.SetOnline(online)
			eng.HandleReconnect(ctx, online)
		})
		mon.Start()
		defer func() {
			unsubMon()
			mon.Stop()
		}()

		var initial string
		if newFlag {
			if err := ctl.NewEntry(titleFlag); err != nil {
				return errors.Wrap(err, "starting a new entry")
			}
		} else {
			latest, err := store.GetLatestEntry(ctx.DB, ctx.OwnerID)
			if err != nil {
				return errors.Wrap(err, "finding the latest entry")
			}
			if latest == nil {
				if err := ctl.NewEntry(titleFlag); err != nil {
					return errors.Wrap(err, "starting a new entry")
				}
			} else {
				ctl.Resume(*latest)
				initial = latest.Body
			}
		}

		fpath, err := ui.GetDraftPath(ctx)
		if err != nil {
			return errors.Wrap(err, "getting draft file path")
		}
		if err := os.WriteFile(fpath, []byte(initial), 0600); err != nil {
			return errors.Wrap(err, "writing the draft file")
		}

		stopWatch, err := watchDraft(fpath, ctl)
		if err != nil {
			return err
		}

		unsubStates := states.Subscribe(func(s autosave.SessionState) {
			log.Debug("session: %s\n", statusLabel(s))
		})

		editorCmd := ui.NewEditorCmd(ctx, fpath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr

		editorErr := editorCmd.Run()

		stopWatch()
		unsubStates()

		// the last write may have raced the watcher's poll
		if b, err := os.ReadFile(fpath); err == nil {
			ctl.Update(string(b))
		}

		ctl.End()

		if editorErr != nil {
			return errors.Wrap(editorErr, "running the editor")
		}

		final := states.Get()
		if final.Status == autosave.StatusSaveFailed {
			return errors.Errorf("the entry could not be saved. the draft has been kept at %s", fpath)
		}

		if err := os.Remove(fpath); err != nil {
			log.Debug("removing draft: %v\n", err)
		}

		switch final.Status {
		case autosave.StatusSaved:
			log.Success("entry saved and synced\n")
		case autosave.StatusOffline:
			log.Infof("entry saved locally. %d items will sync when back online\n", final.PendingCount)
		default:
			log.Success("entry saved\n")
		}

		return nil
	}
}
