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

package main

import (
	"fmt"
	"strings"

	"github.com/coreos/kyua/adapters/atf"
	"github.com/coreos/kyua/adapters/gtest"
	"github.com/coreos/kyua/engine"
	"github.com/coreos/kyua/system"
	"github.com/coreos/kyua/system/user"
)

// parseConfigVars turns "key=value" command-line arguments into the
// DefinedConfigs set a RuntimeContext carries. Only the key is kept:
// a case's required_configs property names keys it expects to be
// defined, not particular values.
func parseConfigVars(raw []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(raw))
	for _, kv := range raw {
		idx := strings.Index(kv, "=")
		if idx <= 0 {
			return nil, &engine.UsageError{Detail: fmt.Sprintf("kyua: invalid -v %q, expected key=value", kv)}
		}
		out[kv[:idx]] = struct{}{}
	}
	return out, nil
}

// globalInterruptController is installed once, before the first child
// is ever spawned, and consulted by main's exit-code mapping to
// re-raise a caught signal after the run has unwound.
var globalInterruptController *engine.InterruptController

// newExecutor installs the process-wide interrupt controller (once)
// and returns a fresh Executor bound to it.
func newExecutor() (*engine.Executor, error) {
	if globalInterruptController == nil {
		globalInterruptController = engine.SetupInterrupts()
	}
	return engine.NewExecutor(globalInterruptController)
}

// newAdapters returns the adapter set every command registers against
// the engine's interface tags.
func newAdapters() (map[engine.InterfaceTag]engine.Adapter, error) {
	adapters := map[engine.InterfaceTag]engine.Adapter{
		engine.InterfaceGTest: &gtest.Adapter{},
	}

	atfAdapter := &atf.Adapter{}
	if unprivilegedUser != "" {
		u, err := user.Lookup(unprivilegedUser)
		if err != nil {
			return nil, fmt.Errorf("kyua: looking up --unprivileged-user %q: %w", unprivilegedUser, err)
		}
		atfAdapter.UnprivilegedUser = u
	}
	adapters[engine.InterfaceATF] = atfAdapter

	return adapters, nil
}

// buildRuntimeContext gathers the host facts a Scheduler evaluates
// per-case requirements against.
func buildRuntimeContext(configVars map[string]struct{}) (engine.RuntimeContext, error) {
	rc := engine.RuntimeContext{
		Architecture:   system.CurrentArchitecture(),
		Platform:       system.CurrentPlatform(),
		DefinedConfigs: configVars,
	}

	mem, err := system.AvailableMemory()
	if err != nil {
		plog.Warningf("kyua: could not determine available memory: %v", err)
	} else {
		rc.AvailableMemory = mem
	}

	cur, err := user.Current()
	if err != nil {
		return rc, fmt.Errorf("kyua: determining current user: %w", err)
	}
	if cur.UidNo == 0 {
		rc.CurrentUser = engine.RequireRoot
	} else {
		rc.CurrentUser = engine.RequireUnprivileged
	}

	return rc, nil
}
