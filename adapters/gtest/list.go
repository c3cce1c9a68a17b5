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

// Package gtest speaks the GoogleTest test-program interface:
// --gtest_list_tests to enumerate cases, --gtest_filter to run one,
// and the "[ RUN/OK/FAILED/SKIPPED ]" banner convention to report
// results.
package gtest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/coreos/pkg/capnslog"

	"github.com/coreos/kyua/engine"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/kyua", "adapters/gtest")

// Adapter implements engine.Adapter for GoogleTest-based test
// programs. It does not implement engine.CleanupAdapter: GoogleTest
// has no separate cleanup phase.
type Adapter struct{}

// parseListing parses the output of "--gtest_list_tests": a sequence
// of unindented "Suite." header lines, each followed by one indented
// case name per line. A trailing " # " comment on a case line (type-
// or value-parameterized instantiation info) is not part of the name.
func parseListing(program string, data []byte) ([]engine.CaseListing, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var out []engine.CaseListing
	suite := ""
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "\t") {
			trimmed := strings.TrimSpace(line)
			if !strings.HasSuffix(trimmed, ".") {
				continue // a stray banner/disabled-count line, not a suite header
			}
			suite = strings.TrimSuffix(trimmed, ".")
			continue
		}
		if suite == "" {
			return nil, &engine.FormatError{Program: program, Detail: "test case name without a preceding suite"}
		}
		name := strings.TrimSpace(line)
		if idx := strings.Index(name, " # "); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		caseName := fmt.Sprintf("%s.%s", suite, name)
		out = append(out, engine.CaseListing{
			Id:       engine.TestCaseId{Program: program, Name: caseName},
			Metadata: engine.DefaultMetadata(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &engine.FormatError{Program: program, Detail: err.Error()}
	}
	if len(out) == 0 {
		return nil, &engine.FormatError{Program: program, Detail: "no test cases"}
	}
	return out, nil
}

// List runs "program --gtest_list_tests" and parses its output. A
// program that cannot be listed surfaces as an error, which the
// scheduler records as a single synthetic broken case, the same
// fallback the ATF adapter relies on.
func (a *Adapter) List(ctx context.Context, ex *engine.Executor, program engine.TestProgramRef) ([]engine.CaseListing, error) {
	listing, err := a.list(ctx, ex, program)
	if err != nil {
		if _, ok := err.(*engine.Interrupted); !ok {
			plog.Warningf("failed to list test cases for %s: %v", program.BinaryPath, err)
		}
		return nil, err
	}
	return listing, nil
}

func (a *Adapter) list(ctx context.Context, ex *engine.Executor, program engine.TestProgramRef) ([]engine.CaseListing, error) {
	execCtx, err := ex.SpawnPre()
	if err != nil {
		return nil, err
	}
	handle, err := ex.Spawn(engine.ChildConfig{
		Path:    program.AbsolutePath(),
		Args:    []string{"--gtest_color=no", "--gtest_list_tests"},
		Ctx:     execCtx,
		Timeout: listTimeout,
	})
	if err != nil {
		return nil, err
	}
	exitHandle, err := ex.Wait(handle)
	if err != nil {
		return nil, err
	}
	defer exitHandle.Cleanup()

	if execErr, ok := engine.AsExecError(exitHandle.Status()); ok {
		return nil, execErr
	}
	if exitHandle.Status() == nil || !exitHandle.Status().Exited() || exitHandle.Status().ExitCode() != 0 {
		return nil, fmt.Errorf("test program did not exit cleanly while listing: %s", statusString(exitHandle))
	}

	data, err := readFile(exitHandle.StdoutFile())
	if err != nil {
		return nil, err
	}
	return parseListing(program.BinaryPath, data)
}
