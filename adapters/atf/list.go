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

// Package atf speaks the ATF test-program interface: "-l" to list
// cases, "-r result -s srvdir case" to run one, and a follow-up
// "case:cleanup" invocation when a case declares has.cleanup.
package atf

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/coreos/pkg/capnslog"

	"github.com/coreos/kyua/engine"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/kyua", "adapters/atf")

const listHeader = `Content-Type: application/X-atf-tp; version="1"`

// wirePropertyNames maps the property names an ATF test program emits
// on the wire to the canonical metadata keys engine.Metadata uses.
var wirePropertyNames = map[string]string{
	"descr":            "description",
	"has.cleanup":      "has_cleanup",
	"require.arch":     "allowed_architectures",
	"require.config":   "required_configs",
	"require.files":    "required_files",
	"require.machine":  "allowed_platforms",
	"require.memory":   "required_memory",
	"require.progs":    "required_programs",
	"require.user":     "required_user",
	"timeout":          "timeout",
}

func translateProperty(name string) (string, bool) {
	if strings.HasPrefix(name, "X-") {
		return name, true
	}
	canonical, ok := wirePropertyNames[name]
	return canonical, ok
}

func splitPropLine(line string) (string, string, error) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		return "", "", fmt.Errorf("invalid property line %q; expecting 'name: value'", line)
	}
	return line[:idx], line[idx+2:], nil
}

// parseListing parses the body of a test program's "-l" output: a
// fixed Content-Type header, a blank line, then one block per test
// case consisting of an "ident: name" line followed by property
// lines, terminated by a blank line or EOF.
func parseListing(program string, data []byte) ([]engine.CaseListing, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, &engine.FormatError{Program: program, Detail: "empty test case list"}
	}
	if scanner.Text() != listHeader {
		return nil, &engine.FormatError{Program: program, Detail: fmt.Sprintf("invalid header, got %q", scanner.Text())}
	}
	if !scanner.Scan() || scanner.Text() != "" {
		return nil, &engine.FormatError{Program: program, Detail: "expected blank line after header"}
	}

	var out []engine.CaseListing
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, err := splitPropLine(line)
		if err != nil {
			return nil, &engine.FormatError{Program: program, Detail: err.Error()}
		}
		if key != "ident" || value == "" {
			return nil, &engine.FormatError{Program: program, Detail: "test case definition must start with 'ident'"}
		}
		name := value

		raw := map[string]string{}
		for scanner.Scan() {
			propLine := scanner.Text()
			if propLine == "" {
				break
			}
			pkey, pvalue, err := splitPropLine(propLine)
			if err != nil {
				return nil, &engine.FormatError{Program: program, Detail: err.Error()}
			}
			canonical, ok := translateProperty(pkey)
			if !ok {
				return nil, &engine.FormatError{Program: program, Detail: fmt.Sprintf("unknown test case metadata property %q", pkey)}
			}
			if _, dup := raw[canonical]; dup {
				return nil, &engine.FormatError{Program: program, Detail: fmt.Sprintf("duplicate value for property %q", pkey)}
			}
			raw[canonical] = pvalue
		}

		md, err := engine.MetadataFromProperties(raw)
		if err != nil {
			return nil, &engine.FormatError{Program: program, Detail: err.Error()}
		}
		out = append(out, engine.CaseListing{
			Id:       engine.TestCaseId{Program: program, Name: name},
			Metadata: md,
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

// List runs "program -l" and parses its output into a case listing.
// A malformed or failing program surfaces as an error; the scheduler
// records it as a single synthetic broken case rather than aborting
// the whole run.
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
		Args:    []string{"-l"},
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
