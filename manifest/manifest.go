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

// Package manifest reads the YAML file ("Kyuafile" in spirit) that
// declares which test programs belong to a test suite.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/coreos/kyua/engine"
)

// programEntry is the on-disk shape of one test program declaration.
type programEntry struct {
	Path      string `yaml:"path"`
	Interface string `yaml:"interface"`
}

// suiteEntry is the on-disk shape of one test suite declaration.
type suiteEntry struct {
	Name     string         `yaml:"name"`
	Include  []string       `yaml:"include"`
	Programs []programEntry `yaml:"test_programs"`
}

// document is the top-level shape of a manifest file.
type document struct {
	SyntaxVersion int          `yaml:"syntax"`
	Suites        []suiteEntry `yaml:"suites"`
}

// Load reads the manifest at path and returns every test program it
// declares, resolved relative to path's directory. "include" entries
// are resolved relative to the including file and merged in depth
// first, detecting cycles along the way.
func Load(path string) ([]engine.TestProgramRef, error) {
	seen := map[string]bool{}
	return load(path, seen)
}

func load(path string, seen map[string]bool) ([]engine.TestProgramRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if seen[abs] {
		return nil, fmt.Errorf("manifest: include cycle at %s", abs)
	}
	seen[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", abs, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", abs, err)
	}
	if doc.SyntaxVersion != 0 && doc.SyntaxVersion != 2 {
		return nil, fmt.Errorf("manifest: %s: unsupported syntax version %d", abs, doc.SyntaxVersion)
	}

	root := filepath.Dir(abs)
	var out []engine.TestProgramRef
	for _, suite := range doc.Suites {
		for _, inc := range suite.Include {
			incPath := inc
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(root, incPath)
			}
			refs, err := load(incPath, seen)
			if err != nil {
				return nil, err
			}
			out = append(out, refs...)
		}
		for _, prog := range suite.Programs {
			ref := engine.TestProgramRef{
				BinaryPath: prog.Path,
				Root:       root,
				SuiteName:  suite.Name,
				Interface:  engine.InterfaceTag(prog.Interface),
			}
			if ref.Interface == "" {
				ref.Interface = engine.InterfaceATF
			}
			if err := ref.Validate(); err != nil {
				return nil, fmt.Errorf("manifest: %s: %w", abs, err)
			}
			out = append(out, ref)
		}
	}
	return out, nil
}
