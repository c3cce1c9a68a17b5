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
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	kexec "github.com/coreos/kyua/system/exec"
)

// Exit codes a child reserves to report that execing the test program
// itself failed, before any test code ever ran. Reserving them lets
// the parent tell "the binary could not be started" apart from "the
// test started and then exited".
const (
	ExecFailureEACCES  = 90
	ExecFailureENOENT  = 91
	ExecFailureENOEXEC = 92
	ExecFailureGeneric = 120
)

// launcher is the in-child trampoline every test program is started
// through. The trampoline process carries all of the isolation state
// (process group, scrubbed environment, working directory, dropped
// privileges) and then replaces itself with the target binary, so an
// exec failure surfaces as one of the reserved exit codes instead of
// being indistinguishable from the test's own early exit.
var launcher = kexec.NewEntrypoint("test-program-launcher", runLauncher)

func runLauncher(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("launcher: missing test program path")
	}
	err := unix.Exec(args[0], args, os.Environ())
	switch err {
	case unix.EACCES:
		os.Exit(ExecFailureEACCES)
	case unix.ENOENT:
		os.Exit(ExecFailureENOENT)
	case unix.ENOEXEC:
		os.Exit(ExecFailureENOEXEC)
	}
	fmt.Fprintf(os.Stderr, "launcher: executing %s: %v\n", args[0], err)
	os.Exit(ExecFailureGeneric)
	return nil
}
