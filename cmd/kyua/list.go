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
)

var cmdList = &cobra.Command{
	Use:   "list [test_filter...]",
	Short: "List the test cases a manifest declares, without running them",
	RunE:  runList,
}

func init() {
	cmdList.Flags().StringVarP(&kyuafile, "kyuafile", "k", "Kyuafile", "path to the test suite manifest")
}

func runList(cmd *cobra.Command, args []string) error {
	programs, err := manifest.Load(kyuafile)
	if err != nil {
		return err
	}

	filters, err := engine.NewFilterSet(args)
	if err != nil {
		return &engine.UsageError{Detail: err.Error()}
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

	ctx := context.Background()
	total := 0
	for _, prog := range programs {
		if !filters.MatchesProgram(prog.BinaryPath) {
			continue
		}
		adapter, ok := adapters[prog.Interface]
		if !ok {
			fmt.Fprintf(os.Stderr, "kyua: %s: no adapter registered for interface %q\n", prog.BinaryPath, prog.Interface)
			continue
		}
		listing, err := adapter.List(ctx, ex, prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kyua: %s: %v\n", prog.BinaryPath, err)
			continue
		}
		for _, c := range listing {
			if !filters.MatchesCase(prog.BinaryPath, c.Id.Name) {
				continue
			}
			if desc := c.Metadata.Description(); desc != "" {
				fmt.Printf("%s  (%s)\n", c.Id.String(), desc)
			} else {
				fmt.Println(c.Id.String())
			}
			total++
		}
	}

	for _, name := range filters.Unused() {
		fmt.Fprintf(os.Stderr, "kyua: filter %q did not match any test case\n", name)
		return &engine.UsageError{Detail: fmt.Sprintf("filter %q did not match any test case", name)}
	}

	fmt.Fprintf(os.Stderr, "%d test cases found\n", total)
	return nil
}
