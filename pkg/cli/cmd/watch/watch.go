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

// Package watch implements the background sync daemon. It keeps an eye on
// connectivity and pushes queued changes whenever the connection comes back,
// plus a periodic pass to pick up remote changes made on other devices.
package watch

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/everjot/everjot/pkg/cli/broadcast"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/engine"
	"github.com/everjot/everjot/pkg/cli/infra"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/netmon"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var example = `
  everjot watch`

var intervalFlag string

// NewCmd returns a new watch command
func NewCmd(ctx context.EverjotCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Keep the journal synced in the background",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&intervalFlag, "interval", "5m", "how often to run a periodic sync pass")

	return cmd
}

func newRun(ctx context.EverjotCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if !ctx.LoggedIn() {
			return errors.New("not logged in. please run `everjot login`")
		}

		notes := broadcast.New(engine.NotesState{})
		eng := engine.New(notes)

		unsubNotes := notes.Subscribe(func(s engine.NotesState) {
			log.Debug("notes state: revision %d, %d pending\n", s.Revision, s.PendingCount)
		})
		defer unsubNotes()

		mon := netmon.New(ctx.Clock, netmon.DialProbe(ctx.APIEndpoint, 5*time.Second), 30*time.Second, 5*time.Second)
		unsubMon := mon.Subscribe(func(online bool) {
			if online {
				log.Info("back online\n")
			} else {
				log.Info("went offline\n")
			}
			eng.HandleReconnect(ctx, online)
		})
		mon.Start()
		defer func() {
			unsubMon()
			mon.Stop()
		}()

		c := cron.New()
		err := c.AddFunc("@every "+intervalFlag, func() {
			if !mon.Online() {
				log.Debug("offline, skipping periodic sync\n")
				return
			}

			applied, res, err := eng.Sync(ctx, false, false)
			if err != nil {
				log.Debug("periodic sync: %v\n", err)
				return
			}
			if applied > 0 || res.Synced > 0 {
				log.Infof("synced: %d down, %d up\n", applied, res.Synced)
			}
		})
		if err != nil {
			return errors.Wrap(err, "scheduling periodic sync")
		}
		c.Start()
		defer c.Stop()

		log.Infof("watching for changes. press ctrl-c to stop\n")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("stopping\n")

		return nil
	}
}
