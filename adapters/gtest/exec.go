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

package gtest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coreos/kyua/engine"
	"github.com/coreos/kyua/lang/maps"
)

// listTimeout bounds how long a --gtest_list_tests invocation may
// run.
const listTimeout = 60 * time.Second

// ExecTest spawns one GoogleTest case via "--gtest_color=no
// --gtest_filter=Suite.Case", with configuration variables passed
// through as TEST_ENV_<KEY>=<value> environment variables, the
// convention the GoogleTest launcher uses to hand ambient parameters
// to a case. A case named "DISABLED_*" is deliberately not forced to
// run here: GoogleTest's own default behavior of printing a "YOU HAVE
// N DISABLED TEST(S)" banner instead of a RUN/OK pair is what
// ComputeResult's disabled-banner scan expects to see.
func (a *Adapter) ExecTest(ctx context.Context, ex *engine.Executor, program engine.TestProgramRef, caseName string, metadata engine.Metadata) (engine.ExecHandle, error) {
	execCtx, err := ex.SpawnPre()
	if err != nil {
		return 0, err
	}
	return ex.Spawn(engine.ChildConfig{
		Path:    program.AbsolutePath(),
		Args:    []string{"--gtest_color=no", "--gtest_filter=" + caseName},
		Env:     envFor(metadata),
		Ctx:     execCtx,
		Timeout: metadata.Timeout(),
	})
}

func envFor(metadata engine.Metadata) []string {
	overrides := metadata.CustomOverrides()
	env := make([]string, 0, len(overrides))
	for _, k := range maps.SortedKeys(overrides) {
		env = append(env, fmt.Sprintf("TEST_ENV_%s=%s", k, overrides[k]))
	}
	return env
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
