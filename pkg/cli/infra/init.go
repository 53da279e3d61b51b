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

// Package infra provides operations and definitions for the
// local infrastructure for Everjot
package infra

import (
	"fmt"
	"time"

	"github.com/everjot/everjot/pkg/cli/config"
	"github.com/everjot/everjot/pkg/cli/consts"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/database"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/everjot/everjot/pkg/cli/remote"
	"github.com/everjot/everjot/pkg/cli/ui"
	"github.com/everjot/everjot/pkg/cli/utils"
	"github.com/everjot/everjot/pkg/clock"
	"github.com/everjot/everjot/pkg/dirs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	// DefaultAPIEndpoint is the default API endpoint used when none is configured
	DefaultAPIEndpoint = "http://localhost:3001/api"
)

// RunEFunc is a function type of everjot commands
type RunEFunc func(*cobra.Command, []string) error

func getDBPath(paths context.Paths, customPath string) string {
	if customPath != "" {
		return customPath
	}

	return fmt.Sprintf("%s/%s/%s", paths.Data, consts.EverjotDirName, consts.EverjotDBFileName)
}

// newBaseCtx creates a minimal context with paths and database connection.
// This base context is used for file and database initialization before
// being enriched with config values by setupCtx.
func newBaseCtx(versionTag, customDBPath string) (context.EverjotCtx, error) {
	base, err := dirs.Resolve()
	if err != nil {
		return context.EverjotCtx{}, errors.Wrap(err, "resolving base directories")
	}

	paths := context.Paths{
		Home:   base.Home,
		Config: base.Config,
		Data:   base.Data,
		Cache:  base.Cache,
	}

	if err := context.InitEverjotDirs(paths); err != nil {
		return context.EverjotCtx{}, errors.Wrap(err, "initializing everjot directories")
	}

	dbPath := getDBPath(paths, customDBPath)

	db, err := database.Open(dbPath)
	if err != nil {
		return context.EverjotCtx{}, errors.Wrap(err, "connecting to db")
	}

	ctx := context.EverjotCtx{
		Paths:   paths,
		Version: versionTag,
		DB:      db,
	}

	return ctx, nil
}

// Init initializes the Everjot environment and returns a new everjot context.
// apiEndpoint is used when creating a new config file.
func Init(versionTag, apiEndpoint, dbPath string) (*context.EverjotCtx, error) {
	ctx, err := newBaseCtx(versionTag, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "initializing a context")
	}

	if err := initConfigFile(ctx, apiEndpoint); err != nil {
		return nil, errors.Wrap(err, "initializing config file")
	}

	if err := database.InitSchema(ctx.DB); err != nil {
		return nil, errors.Wrap(err, "initializing database")
	}
	if err := initSystem(ctx); err != nil {
		return nil, errors.Wrap(err, "initializing system data")
	}

	ctx, err = setupCtx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "setting up the context")
	}

	log.Debug("context: %+v\n", context.Redact(ctx))

	return &ctx, nil
}

// initConfigFile creates a config file if it does not exist
func initConfigFile(ctx context.EverjotCtx, apiEndpoint string) error {
	path := config.GetPath(ctx)
	ok, err := utils.FileExists(path)
	if err != nil {
		return errors.Wrapf(err, "checking if config exists at %s", path)
	}
	if ok {
		return nil
	}

	if apiEndpoint == "" {
		apiEndpoint = DefaultAPIEndpoint
	}

	cf := config.Config{
		Editor:      ui.GetEditorCommand(),
		APIEndpoint: apiEndpoint,
	}

	if err := config.Write(ctx, cf); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}

// initSystem records the schema version on first run
func initSystem(ctx context.EverjotCtx) error {
	var schema int
	if err := database.GetSystem(ctx.DB, consts.SystemSchema, &schema); err != nil {
		return errors.Wrap(err, "querying schema version")
	}
	if schema != 0 {
		return nil
	}

	if err := database.UpdateSystem(ctx.DB, consts.SystemSchema, consts.SchemaVersion); err != nil {
		return errors.Wrap(err, "recording schema version")
	}

	return nil
}

// setupCtx enriches the base context with values from config file and database.
// This is called after files and database have been initialized.
func setupCtx(ctx context.EverjotCtx) (context.EverjotCtx, error) {
	db := ctx.DB

	var sessionKey, ownerID string
	var sessionKeyExpiry int64

	if err := database.GetSystem(db, consts.SystemSessionKey, &sessionKey); err != nil {
		return ctx, errors.Wrap(err, "finding session key")
	}
	if err := database.GetSystem(db, consts.SystemSessionKeyExpiry, &sessionKeyExpiry); err != nil {
		return ctx, errors.Wrap(err, "finding session key expiry")
	}
	if err := database.GetSystem(db, consts.SystemOwnerID, &ownerID); err != nil {
		return ctx, errors.Wrap(err, "finding owner id")
	}

	// an expired session is as good as none
	if sessionKeyExpiry > 0 && sessionKeyExpiry < time.Now().Unix() {
		sessionKey = ""
		ownerID = ""
	}

	// data written before any sign-in belongs to the local owner
	if ownerID == "" {
		ownerID = consts.LocalOwnerID
	}

	cf, err := config.Read(ctx)
	if err != nil {
		return ctx, errors.Wrap(err, "reading config")
	}

	ret := context.EverjotCtx{
		Paths:            ctx.Paths,
		Version:          ctx.Version,
		DB:               ctx.DB,
		SessionKey:       sessionKey,
		SessionKeyExpiry: sessionKeyExpiry,
		OwnerID:          ownerID,
		APIEndpoint:      cf.APIEndpoint,
		Editor:           cf.Editor,
		Clock:            clock.New(),
		HTTPClient:       remote.NewRateLimitedHTTPClient(),
	}

	return ret, nil
}
