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

// Package dirs resolves the base directories in which user-specific files
// live, following the XDG base directory specification.
package dirs

import (
	"os"
	"os/user"

	"github.com/pkg/errors"
)

// Base holds the resolved base directories for the current user
type Base struct {
	// Home is the user's home directory
	Home string
	// Config is the directory for user-specific configuration
	Config string
	// Data is the directory for user-specific data files
	Data string
	// Cache is the directory for user-specific non-essential cached data
	Cache string
}

// Resolve returns the base directories for the current user. Environment
// overrides take precedence over the platform defaults.
func Resolve() (Base, error) {
	usr, err := user.Current()
	if err != nil {
		return Base{}, errors.Wrap(err, "getting the current user")
	}

	b := platformDefaults(usr.HomeDir)
	b.Config = override(envConfigHome, b.Config)
	b.Data = override(envDataHome, b.Data)
	b.Cache = override(envCacheHome, b.Cache)

	return b, nil
}

func override(envName, defaultPath string) string {
	if dir := os.Getenv(envName); dir != "" {
		return dir
	}

	return defaultPath
}
