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

package autosave

import (
	"strings"
	"sync"
	"time"

	"github.com/everjot/everjot/pkg/cli/broadcast"
	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/store"
	"github.com/everjot/everjot/pkg/cli/utils"
	"github.com/everjot/everjot/pkg/clock"
	"github.com/pkg/errors"
)

// Status is the save state of the editing session
type Status string

// Session save statuses. The machine moves saved → unsaved → saving and then
// back to saved, or to offline when the write landed locally but could not
// reach the remote store, or to save_failed when the local write itself
// failed.
const (
	StatusSaved      Status = "saved"
	StatusUnsaved    Status = "unsaved"
	StatusSaving     Status = "saving"
	StatusOffline    Status = "offline"
	StatusSaveFailed Status = "save_failed"
)

// SessionState is the broadcast view of the editing session
type SessionState struct {
	EntryUUID    string
	Status       Status
	PendingCount int
	LastSavedAt  int64
	Online       bool
}

// Config carries the collaborators of a Controller
type Config struct {
	Clock   clock.Clock
	DB      *database.DB
	OwnerID string
	States  *broadcast.Broadcaster[SessionState]

	ShortDelay       time.Duration
	LongDelay        time.Duration
	SignificantChars int

	// Sync, when set, is kicked off in the background after every successful
	// local persist while online. Failures there never affect the local save
	// status.
	Sync func()
}

// Controller drives the autosave of one journal entry per editing session.
// The entry identity is assigned once when the session starts and never
// regenerated, so every save in the session lands on the same row. At most
// one save runs at a time; content arriving during a save is queued and
// the latest version is persisted right after, never dropped and never
// written concurrently.
type Controller struct {
	mu   sync.Mutex
	cond *sync.Cond

	clock   clock.Clock
	db      *database.DB
	ownerID string
	states  *broadcast.Broadcaster[SessionState]
	deb     *Debouncer
	syncFn  func()

	entryUUID string
	title     string
	createdAt int64
	lastSaved string
	online    bool

	saving        bool
	queued        *string
	skipExitFlush bool
	ended         bool
}

// NewController returns a controller with no attached entry. Call Resume or
// NewEntry before feeding it content.
func NewController(cfg Config) *Controller {
	c := &Controller{
		clock:   cfg.Clock,
		db:      cfg.DB,
		ownerID: cfg.OwnerID,
		states:  cfg.States,
		syncFn:  cfg.Sync,
	}
	c.cond = sync.NewCond(&c.mu)
	c.deb = NewDebouncer(cfg.Clock, cfg.ShortDelay, cfg.LongDelay, cfg.SignificantChars, c.save)

	return c
}

// SetOnline records the connectivity the controller reports in its published
// state. It only affects how future saves are labeled; a flip does not itself
// trigger a save.
func (c *Controller) SetOnline(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()

	c.states.Publish(func(s *SessionState) {
		s.Online = online
		if online && s.Status == StatusOffline {
			s.Status = StatusSaved
		}
	})
}

// Resume attaches the controller to an existing entry
func (c *Controller) Resume(e database.Entry) {
	c.mu.Lock()
	c.entryUUID = e.UUID
	c.title = e.Title
	c.createdAt = e.CreatedAt
	c.lastSaved = e.Body
	c.mu.Unlock()

	c.deb.SetBase(e.Body)
	c.states.Publish(func(s *SessionState) {
		s.EntryUUID = e.UUID
		s.Status = StatusSaved
		s.LastSavedAt = e.LastUpdated
	})
}

// NewEntry starts the session on a brand new entry and persists it
// immediately, bypassing the debounce. The uuid is minted here and kept for
// the rest of the session.
func (c *Controller) NewEntry(title string) error {
	c.mu.Lock()
	uuid, err := utils.GenerateEntryID(!c.online)
	if err != nil {
		c.mu.Unlock()
		return errors.Wrap(err, "generating an entry id")
	}

	c.entryUUID = uuid
	c.title = title
	c.createdAt = c.clock.Now().Unix()
	c.lastSaved = ""
	c.mu.Unlock()

	c.deb.SetBase("")

	return c.persist("")
}

// Update feeds the latest editor content into the session. The save is
// debounced; the published status flips to unsaved right away. Content that
// matches the last-saved snapshot after trimming is ignored: a watcher
// replaying an unchanged file must not unsettle a saved session.
func (c *Controller) Update(content string) {
	c.mu.Lock()
	uuid := c.entryUUID
	last := c.lastSaved
	c.mu.Unlock()

	if strings.TrimSpace(content) == strings.TrimSpace(last) {
		return
	}

	c.states.Publish(func(s *SessionState) {
		s.EntryUUID = uuid
		s.Status = StatusUnsaved
	})

	c.deb.Trigger(content)
}

// SaveNow persists any pending content immediately and suppresses the next
// exit flush, so ending the session right after does not write a second time.
func (c *Controller) SaveNow() {
	c.mu.Lock()
	c.skipExitFlush = true
	c.mu.Unlock()

	c.deb.Flush()
}

// End flushes any pending content and waits for the in-flight save to finish.
// It is the last call of the session; the controller accepts no content
// afterwards.
func (c *Controller) End() {
	c.mu.Lock()
	skip := c.skipExitFlush
	c.skipExitFlush = false
	c.ended = true
	c.mu.Unlock()

	if skip {
		c.deb.Cancel()
	} else {
		c.deb.Flush()
	}

	c.mu.Lock()
	for c.saving || c.queued != nil {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// save is the debouncer's fire target. It enforces the single in-flight save:
// content arriving mid-save is parked and only the latest version is written
// once the current save completes.
func (c *Controller) save(content string) {
	c.mu.Lock()
	if c.saving {
		c.queued = &content
		c.mu.Unlock()
		return
	}
	c.saving = true
	c.mu.Unlock()

	for {
		if err := c.persist(content); err != nil {
			log.Error(errors.Wrap(err, "saving the entry").Error() + "\n")
		}

		c.mu.Lock()
		if c.queued == nil {
			c.saving = false
			c.cond.Broadcast()
			c.mu.Unlock()
			return
		}
		content = *c.queued
		c.queued = nil
		c.mu.Unlock()
	}
}

// persist writes the content through the local store and publishes the
// resulting session state. The save is complete once the local write is
// durable; reaching the remote store is the sync engine's business.
func (c *Controller) persist(content string) error {
	c.mu.Lock()
	uuid := c.entryUUID
	e := database.Entry{
		UUID:           uuid,
		OwnerID:        c.ownerID,
		Title:          c.title,
		Body:           content,
		CreatedAt:      c.createdAt,
		CreatedOffline: !c.online,
	}
	online := c.online
	c.mu.Unlock()

	now := c.clock.Now().Unix()
	e.LastUpdated = now

	c.states.Publish(func(s *SessionState) {
		s.EntryUUID = uuid
		s.Status = StatusSaving
	})

	tx, err := c.db.Begin()
	if err != nil {
		c.publishFailure(uuid)
		return errors.Wrap(err, "beginning a transaction")
	}

	if err := store.UpsertEntry(tx, e, now); err != nil {
		tx.Rollback()
		c.publishFailure(uuid)
		return errors.Wrap(err, "upserting the entry")
	}

	if err := tx.Commit(); err != nil {
		c.publishFailure(uuid)
		return errors.Wrap(err, "committing the save")
	}

	pending, err := store.GetPendingCount(c.db, c.ownerID)
	if err != nil {
		return errors.Wrap(err, "counting pending items")
	}

	c.mu.Lock()
	c.lastSaved = content
	c.mu.Unlock()
	c.deb.SetBase(content)

	status := StatusSaved
	if !online {
		status = StatusOffline
	}

	c.states.Publish(func(s *SessionState) {
		s.EntryUUID = uuid
		s.Status = status
		s.PendingCount = pending
		s.LastSavedAt = now
		s.Online = online
	})

	if online && c.syncFn != nil {
		go c.syncFn()
	}

	return nil
}

func (c *Controller) publishFailure(uuid string) {
	c.states.Publish(func(s *SessionState) {
		s.EntryUUID = uuid
		s.Status = StatusSaveFailed
	})
}

// EntryUUID returns the id of the entry the session is attached to
func (c *Controller) EntryUUID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryUUID
}
