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

package context

import (
	"path/filepath"

	"github.com/everjot/everjot/pkg/cli/consts"
	"github.com/everjot/everjot/pkg/cli/utils"
	"github.com/pkg/errors"
)

// InitEverjotDirs creates the everjot directories if they don't already exist.
func InitEverjotDirs(paths Paths) error {
	if paths.Config != "" {
		configDir := filepath.Join(paths.Config, consts.EverjotDirName)
		if err := utils.EnsureDir(configDir); err != nil {
			return errors.Wrap(err, "initializing config dir")
		}
	}
	if paths.Data != "" {
		dataDir := filepath.Join(paths.Data, consts.EverjotDirName)
		if err := utils.EnsureDir(dataDir); err != nil {
			return errors.Wrap(err, "initializing data dir")
		}
	}
	if paths.Cache != "" {
		cacheDir := filepath.Join(paths.Cache, consts.EverjotDirName)
		if err := utils.EnsureDir(cacheDir); err != nil {
			return errors.Wrap(err, "initializing cache dir")
		}
	}

	return nil
}
