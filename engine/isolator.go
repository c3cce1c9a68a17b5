// Copyright 2024 CoreOS, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/coreos/kyua/system/user"
)

// scrubbedEnvPrefixes names environment variables removed from a
// child's environment before TZ and HOME are rebound.
var scrubbedEnvPrefixes = []string{
	"LANG=", "LC_ALL=", "LC_COLLATE=", "LC_CTYPE=",
	"LC_MESSAGES=", "LC_MONETARY=", "LC_NUMERIC=", "LC_TIME=",
}

// Isolator prepares an *exec.Cmd the way a POSIX implementation
// isolates a forked child: a new process group, a scrubbed locale
// environment, a forced UTC timezone, a dedicated working directory,
// and an optional uid/gid switch. Go cannot run arbitrary code between
// fork and exec, so every one of these is expressed as Cmd/SysProcAttr
// configuration applied before Start rather than as in-child logic.
type Isolator struct {
	WorkDir          string
	UnprivilegedUser *user.User
}

// Prepare configures cmd in place.
func (iso *Isolator) Prepare(cmd *exec.Cmd) error {
	if iso.WorkDir == "" {
		return errors.New("engine: isolator requires a work directory")
	}
	if err := os.MkdirAll(iso.WorkDir, 0755); err != nil {
		return errors.Wrapf(err, "engine: creating work directory %s", iso.WorkDir)
	}
	cmd.Dir = iso.WorkDir
	cmd.Stdin = nil
	cmd.Env = append(scrubEnv(os.Environ()), "TZ=UTC", "HOME="+iso.WorkDir)

	attr := &syscall.SysProcAttr{Setpgid: true}
	if iso.UnprivilegedUser != nil {
		attr.Credential = &syscall.Credential{
			Uid: uint32(iso.UnprivilegedUser.UidNo),
			Gid: uint32(iso.UnprivilegedUser.GidNo),
		}
	}
	cmd.SysProcAttr = attr
	return nil
}

func scrubEnv(env []string) []string {
	out := make([]string, 0, len(env))
outer:
	for _, kv := range env {
		for _, prefix := range scrubbedEnvPrefixes {
			if strings.HasPrefix(kv, prefix) {
				continue outer
			}
		}
		out = append(out, kv)
	}
	return out
}
