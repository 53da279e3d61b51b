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

package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/everjot/everjot/pkg/cli/consts"
	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/utils"
	"github.com/pkg/errors"
)

// GetDraftPath returns the path to the draft file for an editing session. The
// file lives in the cache directory so a crashed session leaves the draft
// behind for inspection.
func GetDraftPath(ctx context.EverjotCtx) (string, error) {
	for i := 0; ; i++ {
		filename := fmt.Sprintf("%s_%d.%s", consts.DraftFileBase, i, consts.DraftFileExt)
		candidate := fmt.Sprintf("%s/%s/%s", ctx.Paths.Cache, consts.EverjotDirName, filename)

		ok, err := utils.FileExists(candidate)
		if err != nil {
			return "", errors.Wrapf(err, "checking if file exists at %s", candidate)
		}
		if !ok {
			return candidate, nil
		}
	}
}

// GetEditorCommand returns the system's editor command with appropriate flags,
// if necessary, to make the command wait until editor is close to exit.
func GetEditorCommand() string {
	editor := os.Getenv("EDITOR")

	var ret string

	switch editor {
	case "atom":
		ret = "atom -w"
	case "subl":
		ret = "subl -n -w"
	case "mate":
		ret = "mate -w"
	case "vim":
		ret = "vim"
	case "nano":
		ret = "nano"
	case "emacs":
		ret = "emacs"
	case "nvim":
		ret = "nvim"
	default:
		ret = "vi"
	}

	return ret
}

// NewEditorCmd builds the command that launches the configured editor on the
// given file.
func NewEditorCmd(ctx context.EverjotCtx, fpath string) *exec.Cmd {
	args := strings.Fields(ctx.Editor)
	args = append(args, fpath)

	return exec.Command(args[0], args[1:]...)
}

// GetEditorInput gets the user input by launching a text editor and waiting for
// it to exit
func GetEditorInput(ctx context.EverjotCtx, fpath string) (string, error) {
	ok, err := utils.FileExists(fpath)
	if err != nil {
		return "", errors.Wrapf(err, "checking if the file exists at %s", fpath)
	}
	if !ok {
		f, err := os.Create(fpath)
		if err != nil {
			return "", errors.Wrap(err, "creating a draft file")
		}
		err = f.Close()
		if err != nil {
			return "", errors.Wrap(err, "closing the draft file")
		}
	}

	cmd := NewEditorCmd(ctx, fpath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	if err != nil {
		return "", errors.Wrapf(err, "launching an editor")
	}

	err = cmd.Wait()
	if err != nil {
		return "", errors.Wrap(err, "waiting for the editor")
	}

	b, err := os.ReadFile(fpath)
	if err != nil {
		return "", errors.Wrap(err, "reading the draft file")
	}

	err = os.Remove(fpath)
	if err != nil {
		return "", errors.Wrap(err, "removing the draft file")
	}

	raw := string(b)

	return raw, nil
}
