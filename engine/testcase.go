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
	"path/filepath"
)

// InterfaceTag names which adapter a test program speaks.
type InterfaceTag string

const (
	InterfaceATF   InterfaceTag = "atf"
	InterfaceGTest InterfaceTag = "gtest"
)

// TestProgramRef identifies one test-program binary discovered by a
// manifest.
type TestProgramRef struct {
	BinaryPath string // relative to Root
	Root       string
	SuiteName  string
	Interface  InterfaceTag
}

// AbsolutePath returns the program's absolute path on disk.
func (p TestProgramRef) AbsolutePath() string {
	return filepath.Join(p.Root, p.BinaryPath)
}

// Validate checks the shape of a manifest-supplied reference.
func (p TestProgramRef) Validate() error {
	if p.BinaryPath == "" {
		return fmt.Errorf("engine: test program binary path must not be empty")
	}
	if filepath.IsAbs(p.BinaryPath) {
		return fmt.Errorf("engine: test program binary path %q must be relative to its root", p.BinaryPath)
	}
	return nil
}

// TestCaseId names one case within one program.
type TestCaseId struct {
	Program string
	Name    string
}

func (id TestCaseId) String() string {
	return id.Program + ":" + id.Name
}

// Less orders ids lexicographically over (program, name).
func (id TestCaseId) Less(other TestCaseId) bool {
	if id.Program != other.Program {
		return id.Program < other.Program
	}
	return id.Name < other.Name
}
