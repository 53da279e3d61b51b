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

// Package config provides the everjot configuration file
package config

import (
	"fmt"
	"os"

	"github.com/everjot/everjot/pkg/cli/consts"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds everjot configuration
type Config struct {
	Editor      string `yaml:"editor"`
	APIEndpoint string `yaml:"apiEndpoint"`
	// SaveDelaySeconds is the debounce delay after a small edit
	SaveDelaySeconds int `yaml:"saveDelaySeconds"`
	// QuickSaveDelaySeconds is the debounce delay after a significant edit
	QuickSaveDelaySeconds int `yaml:"quickSaveDelaySeconds"`
	// SignificantChangeChars is the number of changed characters past which
	// an edit is considered significant
	SignificantChangeChars int `yaml:"significantChangeChars"`
}

// GetPath returns the path to the everjot config file
func GetPath(ctx context.EverjotCtx) string {
	return fmt.Sprintf("%s/%s/%s", ctx.Paths.Config, consts.EverjotDirName, consts.ConfigFilename)
}

// Read reads the config file
func Read(ctx context.EverjotCtx) (Config, error) {
	var ret Config

	configPath := GetPath(ctx)
	b, err := os.ReadFile(configPath)
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	err = yaml.Unmarshal(b, &ret)
	if err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}

	return ret, nil
}

// Write writes the config to the config file
func Write(ctx context.EverjotCtx, cf Config) error {
	path := GetPath(ctx)

	b, err := yaml.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}
