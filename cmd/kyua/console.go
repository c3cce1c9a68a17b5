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
	"io"
	"os"
	"sync"
	"time"

	"github.com/coreos/pkg/capnslog"

	"github.com/coreos/kyua/engine"
	"github.com/coreos/kyua/util"
)

// resultLine is one case's entry under its result-kind group.
type resultLine struct {
	id       engine.TestCaseId
	result   engine.CanonicalResult
	duration time.Duration
}

// consoleSink accumulates every case's outcome and renders them
// grouped by result kind, followed by a summary line, the same shape
// a terminal test runner's console report takes.
type consoleSink struct {
	mu      sync.Mutex
	lines   map[engine.ResultKind][]resultLine
	first   time.Time
	last    time.Time
	total   int
	skipped int
	xfail   int
	broken  int
	failed  int
}

func newConsoleSink() *consoleSink {
	return &consoleSink{lines: make(map[engine.ResultKind][]resultLine)}
}

// RecordResult implements engine.ResultSink.
func (s *consoleSink) RecordResult(program engine.TestProgramRef, id engine.TestCaseId, result engine.CanonicalResult, start, end time.Time, stdoutPath, stderrPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines[result.Kind] = append(s.lines[result.Kind], resultLine{id: id, result: result, duration: end.Sub(start)})

	if !result.Good() && stderrPath != "" {
		if f, err := os.Open(stderrPath); err == nil {
			util.LogFrom(capnslog.DEBUG, f)
			f.Close()
		}
	}

	if s.first.IsZero() || start.Before(s.first) {
		s.first = start
	}
	if end.After(s.last) {
		s.last = end
	}

	s.total++
	switch result.Kind {
	case engine.Skipped:
		s.skipped++
	case engine.ExpectedFailure:
		s.xfail++
	case engine.Broken:
		s.broken++
	case engine.Failed:
		s.failed++
	}
	return nil
}

var resultGroups = []struct {
	kind  engine.ResultKind
	title string
}{
	{engine.Broken, "Broken tests"},
	{engine.ExpectedFailure, "Expected failures"},
	{engine.Failed, "Failed tests"},
	{engine.Passed, "Passed tests"},
	{engine.Skipped, "Skipped tests"},
}

// PrintReport renders the accumulated results to w: every non-empty
// group under its title, then a summary block.
func (s *consoleSink) PrintReport(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range resultGroups {
		lines := s.lines[g.kind]
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", g.title)
		for _, l := range lines {
			fmt.Fprintf(w, "%s  ->  %s  [%s]\n", l.id.String(), l.result.String(), l.duration)
		}
		fmt.Fprintln(w)
	}

	total := s.last.Sub(s.first)
	if s.first.IsZero() {
		total = 0
	}
	fmt.Fprintln(w, "===> Summary")
	fmt.Fprintf(w, "Test cases: %d total, %d skipped, %d expected failures, %d broken, %d failed\n",
		s.total, s.skipped, s.xfail, s.broken, s.failed)
	fmt.Fprintf(w, "Total time: %s\n", total)
}
