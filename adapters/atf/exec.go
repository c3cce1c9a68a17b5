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

package atf

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coreos/kyua/engine"
	"github.com/coreos/kyua/lang/maps"
	"github.com/coreos/kyua/system/user"
)

// listTimeout bounds how long a "-l" invocation may run; ATF test
// programs list their cases without doing real work, so this is
// generous but finite.
const listTimeout = 60 * time.Second

// Adapter implements engine.CleanupAdapter for ATF-based test
// programs. UnprivilegedUser, if set, is the account a case
// declaring require.user=unprivileged is dropped to.
type Adapter struct {
	UnprivilegedUser *user.User
}

// ExecTest spawns the body of an ATF test case: "program -vkey=value...
// -r result-file -s workdir case-name", one "-v" per configuration
// variable. No user flags are passed on the command line; when an
// unprivileged user is requested, the executor switches the child to
// that user's uid and gid.
func (a *Adapter) ExecTest(ctx context.Context, ex *engine.Executor, program engine.TestProgramRef, caseName string, metadata engine.Metadata) (engine.ExecHandle, error) {
	execCtx, err := ex.SpawnPre()
	if err != nil {
		return 0, err
	}
	return ex.Spawn(engine.ChildConfig{
		Path:    program.AbsolutePath(),
		Args:    bodyArgs(execCtx, caseName, metadata),
		Ctx:     execCtx,
		Timeout: metadata.Timeout(),
		User:    a.userFor(metadata),
	})
}

// ExecCleanup spawns the cleanup phase of an ATF test case:
// "program -vkey=value... case-name:cleanup" (no -r or -s), reusing
// base's work directory so the cleanup phase sees whatever the body
// left behind.
func (a *Adapter) ExecCleanup(ctx context.Context, ex *engine.Executor, base *engine.ExitHandle, program engine.TestProgramRef, caseName string, metadata engine.Metadata) (engine.ExecHandle, error) {
	return ex.SpawnFollowup(base, engine.ChildConfig{
		Path:    program.AbsolutePath(),
		Args:    cleanupArgs(caseName, metadata),
		Timeout: metadata.Timeout(),
		User:    a.userFor(metadata),
	})
}

func bodyArgs(execCtx engine.ExecContext, caseName string, metadata engine.Metadata) []string {
	args := configArgs(metadata)
	args = append(args, "-r"+execCtx.ResultFile, "-s"+execCtx.WorkDir, caseName)
	return args
}

func cleanupArgs(caseName string, metadata engine.Metadata) []string {
	args := configArgs(metadata)
	args = append(args, caseName+":cleanup")
	return args
}

func configArgs(metadata engine.Metadata) []string {
	overrides := metadata.CustomOverrides()
	args := make([]string, 0, len(overrides))
	for _, k := range maps.SortedKeys(overrides) {
		args = append(args, fmt.Sprintf("-v%s=%s", k, overrides[k]))
	}
	return args
}

func (a *Adapter) userFor(metadata engine.Metadata) *user.User {
	if metadata.RequiredUserKind() != engine.RequireUnprivileged {
		return nil
	}
	return a.UnprivilegedUser
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func statusString(h *engine.ExitHandle) string {
	if h.Status() == nil {
		return "timed out"
	}
	return h.Status().String()
}
