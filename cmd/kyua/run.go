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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coreos/kyua/engine"
	"github.com/coreos/kyua/manifest"
	"github.com/coreos/kyua/system"
)

var (
	kyuafile string
	parallel int

	cmdRun = &cobra.Command{
		Use:   "run [test_filter...]",
		Short: "Run the test cases a manifest declares, optionally restricted by filter",
		Long: `Run loads the manifest named by --kyuafile and executes every test
case it declares, or only those selected by one or more filters of the
form "dir/", "program", or "program:case".`,
		RunE: runRun,
	}
)

func init() {
	cmdRun.Flags().StringVarP(&kyuafile, "kyuafile", "k", "Kyuafile", "path to the test suite manifest")
	cmdRun.Flags().IntVarP(&parallel, "parallel", "j", 1, "number of test programs to run concurrently (0 = all available processors)")
}

func runRun(cmd *cobra.Command, args []string) error {
	programs, err := manifest.Load(kyuafile)
	if err != nil {
		return err
	}

	filters, err := engine.NewFilterSet(args)
	if err != nil {
		return &engine.UsageError{Detail: err.Error()}
	}

	configVars, err := parseConfigVars(configVarArgs)
	if err != nil {
		return err
	}
	runtimeCtx, err := buildRuntimeContext(configVars)
	if err != nil {
		return err
	}

	if parallel < 1 {
		nproc, err := system.GetProcessors()
		if err != nil {
			return fmt.Errorf("kyua: determining processor count for --parallel=0: %w", err)
		}
		parallel = int(nproc)
	}

	adapters, err := newAdapters()
	if err != nil {
		return err
	}

	ex, err := newExecutor()
	if err != nil {
		return err
	}
	defer ex.Cleanup()

	sink := newConsoleSink()
	sched := &engine.Scheduler{
		Adapters: adapters,
		Executor: ex,
		Sink:     sink,
		Runtime:  runtimeCtx,
		Opts:     engine.SchedulerOptions{Parallel: parallel},
	}

	runErr := sched.Run(context.Background(), programs, filters)
	sink.PrintReport(os.Stdout)
	return runErr
}
