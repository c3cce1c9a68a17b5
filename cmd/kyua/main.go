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

// Command kyua loads a test suite manifest and runs or lists the test
// cases it declares.
package main

import (
	"fmt"
	"os"

	"github.com/coreos/pkg/capnslog"
	"github.com/spf13/cobra"

	"github.com/coreos/kyua/engine"
	kexec "github.com/coreos/kyua/system/exec"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/kyua", "cmd/kyua")

var (
	logLevel         string
	unprivilegedUser string
	configVarArgs    []string

	root = &cobra.Command{
		Use:           "kyua",
		Short:         "A minimal, idiomatic-Go test-suite execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}
)

func init() {
	root.PersistentFlags().StringVar(&logLevel, "loglevel", "notice", "log level: critical, error, warning, notice, info, debug, trace")
	root.PersistentFlags().StringVar(&unprivilegedUser, "unprivileged-user", "", "account to run require.user=unprivileged test cases as")
	root.PersistentFlags().StringArrayVarP(&configVarArgs, "variable", "v", nil, "define a config variable a test case's required_configs may reference (key=value)")

	root.AddCommand(cmdList)
	root.AddCommand(cmdRun)
}

func setupLogging() error {
	level, err := capnslog.ParseLevel(logLevel)
	if err != nil {
		return &engine.UsageError{Detail: fmt.Sprintf("kyua: invalid --loglevel %q: %v", logLevel, err)}
	}
	capnslog.SetGlobalLogLevel(level)
	return nil
}

func main() {
	// The executor re-invokes this binary as the trampoline its test
	// program children are launched through.
	kexec.MaybeExec()

	err := root.Execute()
	os.Exit(exitCode(err))
}

// exitCode maps the error taxonomy the engine and front-end commands
// share onto a process exit status. For a propagated
// *engine.Interrupted, exitCode re-raises the signal against this
// process through the interrupt controller, so the process dies with
// the conventional 128+signo status; it returns 1 only when no
// controller is installed or the re-raised signal does not end the
// process.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if interrupted, ok := err.(*engine.Interrupted); ok {
		if ic := globalInterruptController; ic != nil {
			ic.RedeliverToExit(interrupted.Signal)
		}
		return 1
	}
	if _, ok := err.(*engine.UsageError); ok {
		fmt.Fprintf(os.Stderr, "kyua: %v\n", err)
		return 2
	}
	if err == engine.ErrRunFailed {
		return 1
	}
	fmt.Fprintf(os.Stderr, "kyua: %v\n", err)
	return 1
}
