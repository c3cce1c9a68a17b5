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
	"strings"
	"sync"

	"github.com/coreos/pkg/multierror"

	"github.com/coreos/kyua/lang/natsort"
)

type filterKind int

const (
	filterDir filterKind = iota // "dir/"
	filterProgram
	filterCase // "program:case"
)

type filter struct {
	kind    filterKind
	program string
	name    string // only set for filterCase
	used    bool
}

func (f *filter) raw() string {
	switch f.kind {
	case filterDir:
		return f.program + "/"
	case filterCase:
		return f.program + ":" + f.name
	default:
		return f.program
	}
}

func parseFilter(raw string) (*filter, error) {
	if raw == "" {
		return nil, fmt.Errorf("engine: empty filter")
	}
	if strings.HasSuffix(raw, "/") {
		return &filter{kind: filterDir, program: strings.TrimSuffix(raw, "/")}, nil
	}
	if idx := strings.Index(raw, ":"); idx >= 0 {
		return &filter{kind: filterCase, program: raw[:idx], name: raw[idx+1:]}, nil
	}
	return &filter{kind: filterProgram, program: raw}, nil
}

// subsumes reports whether broad already selects everything narrow
// would, making the pair a redundant/contradictory filter set.
func subsumes(broad, narrow *filter) bool {
	if broad == narrow {
		return false
	}
	switch broad.kind {
	case filterDir:
		return narrow.program == broad.program || strings.HasPrefix(narrow.program+"/", broad.program+"/")
	case filterProgram:
		return narrow.program == broad.program
	default:
		return false
	}
}

// FilterSet is a disjoint collection of user-supplied test filters,
// each in one of three shapes: "dir/" (every program under dir),
// "program" (every case in program), or "program:case" (one case).
type FilterSet struct {
	mu      sync.Mutex
	filters []*filter
}

// NewFilterSet parses raw filter strings and rejects any set where one
// filter subsumes another.
func NewFilterSet(raw []string) (*FilterSet, error) {
	fs := &FilterSet{}
	var errs multierror.Error
	for _, r := range raw {
		f, err := parseFilter(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fs.filters = append(fs.filters, f)
	}
	if err := errs.AsError(); err != nil {
		return nil, err
	}
	if err := fs.checkDisjoint(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FilterSet) checkDisjoint() error {
	for i, a := range fs.filters {
		for _, b := range fs.filters[i+1:] {
			if subsumes(a, b) || subsumes(b, a) {
				return fmt.Errorf("engine: filter %q subsumes filter %q", a.raw(), b.raw())
			}
		}
	}
	return nil
}

// Empty reports whether the set has no filters, meaning "match
// everything."
func (fs *FilterSet) Empty() bool {
	return len(fs.filters) == 0
}

func (f *filter) matchesProgram(program string) bool {
	switch f.kind {
	case filterDir:
		return program == f.program || strings.HasPrefix(program, f.program+"/")
	default:
		return program == f.program
	}
}

func (f *filter) matchesCase(program, name string) bool {
	if f.kind == filterCase {
		return f.program == program && f.name == name
	}
	return f.matchesProgram(program)
}

// MatchesProgram reports whether program is selected by any filter,
// and marks every matching program or directory filter used; case
// filters are marked only by MatchesCase.
func (fs *FilterSet) MatchesProgram(program string) bool {
	if fs.Empty() {
		return true
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	matched := false
	for _, f := range fs.filters {
		if f.matchesProgram(program) {
			// A case filter is only "used" once its case actually
			// matches; selecting the program for listing is not enough.
			if f.kind != filterCase {
				f.used = true
			}
			matched = true
		}
	}
	return matched
}

// MatchesCase reports whether (program, name) is selected, and marks
// every matching filter used.
func (fs *FilterSet) MatchesCase(program, name string) bool {
	if fs.Empty() {
		return true
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	matched := false
	for _, f := range fs.filters {
		if f.matchesCase(program, name) {
			f.used = true
			matched = true
		}
	}
	return matched
}

// Unused returns the raw text of every filter that never matched,
// naturally sorted for deterministic reporting.
func (fs *FilterSet) Unused() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []string
	for _, f := range fs.filters {
		if !f.used {
			out = append(out, f.raw())
		}
	}
	natsort.Strings(out)
	return out
}
