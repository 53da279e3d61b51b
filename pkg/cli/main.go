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

package main

import (
	"os"
	"strings"

	"github.com/everjot/everjot/pkg/cli/infra"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	// commands
	"github.com/everjot/everjot/pkg/cli/cmd/jot"
	"github.com/everjot/everjot/pkg/cli/cmd/login"
	"github.com/everjot/everjot/pkg/cli/cmd/logout"
	"github.com/everjot/everjot/pkg/cli/cmd/root"
	"github.com/everjot/everjot/pkg/cli/cmd/status"
	"github.com/everjot/everjot/pkg/cli/cmd/sync"
	"github.com/everjot/everjot/pkg/cli/cmd/version"
	"github.com/everjot/everjot/pkg/cli/cmd/watch"
	"github.com/everjot/everjot/pkg/cli/cmd/write"
)

// apiEndpoint and versionTag are populated during link time
var apiEndpoint string
var versionTag = "master"

// parseDBPath extracts --dbPath flag value from command line arguments
// regardless of where it appears (before or after subcommand).
// Returns empty string if not found.
func parseDBPath(args []string) string {
	for i, arg := range args {
		if strings.HasPrefix(arg, "--dbPath=") {
			return strings.TrimPrefix(arg, "--dbPath=")
		}
		if arg == "--dbPath" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func main() {
	// a .env file can override the environment in development setups
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		log.Debug("loading .env: %v\n", err)
	}

	// --dbPath can appear after the subcommand (e.g. "everjot sync --dbPath=./custom.db"),
	// so it is parsed manually before cobra runs.
	dbPath := parseDBPath(os.Args[1:])

	ctx, err := infra.Init(versionTag, apiEndpoint, dbPath)
	if err != nil {
		panic(errors.Wrap(err, "initializing context"))
	}
	defer ctx.DB.Close()

	root.Register(write.NewCmd(*ctx))
	root.Register(jot.NewCmd(*ctx))
	root.Register(sync.NewCmd(*ctx))
	root.Register(status.NewCmd(*ctx))
	root.Register(watch.NewCmd(*ctx))
	root.Register(login.NewCmd(*ctx))
	root.Register(logout.NewCmd(*ctx))
	root.Register(version.NewCmd(*ctx))

	if err := root.Execute(); err != nil {
		log.Errorf("%s\n", err.Error())
		os.Exit(1)
	}
}
