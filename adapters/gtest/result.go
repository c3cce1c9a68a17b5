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

package gtest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coreos/kyua/engine"
)

var (
	startingSentinelRE = regexp.MustCompile(`\[\s+RUN\s+\]\s+[A-Za-z0-9_.]+\.[A-Za-z0-9_]+`)
	endingSentinelRE   = regexp.MustCompile(`\[\s+(FAILED|OK|SKIPPED)\s+\]`)
	disabledRE         = regexp.MustCompile(`(?m)^.*YOU HAVE \d+ DISABLED TESTS?.*$`)
)

type bannerResult struct {
	kind   string // "successful", "failed", "skipped", "broken"
	reason string
}

// scanBanner scans a test case's combined stdout/stderr for the
// GoogleTest "[ RUN ]"/"[ OK|FAILED|SKIPPED ]" banner pair. Output
// between the two sentinels, if any, becomes the failure/skip reason.
// Output with no recognizable banner pair is reported as broken: a
// case that crashed before printing its banner is indistinguishable,
// from the banner's point of view, from one that never ran at all.
func scanBanner(output string) bannerResult {
	lines := strings.SplitAfter(output, "\n")

	capturing := false
	var context strings.Builder
	kind := ""
	found := false

	for _, line := range lines {
		if startingSentinelRE.MatchString(line) {
			capturing = true
			context.Reset()
			continue
		}
		if m := endingSentinelRE.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "OK":
				kind = "successful"
				context.Reset()
			case "FAILED":
				kind = "failed"
			case "SKIPPED":
				kind = "skipped"
			}
			capturing = false
			found = true
			continue
		}
		if capturing {
			context.WriteString(line)
		}
	}

	if !found {
		if m := disabledRE.FindString(output); m != "" {
			return bannerResult{kind: "disabled", reason: strings.TrimSpace(m)}
		}
		return bannerResult{kind: "broken", reason: "invalid output"}
	}
	reason := strings.TrimSpace(context.String())
	if kind == "skipped" && reason == "" {
		reason = "\n"
	}
	return bannerResult{kind: kind, reason: reason}
}

// reinterpret folds the scanned banner result against the body's
// termination status, the same way the ATF adapter reconciles a
// declared result against reality.
func reinterpret(banner bannerResult, status *engine.Status) engine.CanonicalResult {
	if banner.kind == "broken" {
		if banner.reason != "invalid output" {
			return engine.BrokenResult(banner.reason)
		}
		if status == nil {
			return engine.BrokenResult("Test case body timed out")
		}
		return engine.BrokenResult("Premature exit. Test case " + status.String())
	}

	expectPass := banner.kind != "failed"
	ok := status != nil && status.Exited() && (status.ExitCode() == 0) == expectPass
	if !ok {
		verb := "failure"
		if expectPass {
			verb = "success"
		}
		return engine.BrokenResult(fmt.Sprintf("%s test case should have reported %s but %s", banner.kind, verb, describeStatus(status)))
	}
	return toCanonical(banner)
}

func describeStatus(status *engine.Status) string {
	if status == nil {
		return "timed out"
	}
	return status.String()
}

func toCanonical(banner bannerResult) engine.CanonicalResult {
	switch banner.kind {
	case "successful":
		return engine.PassedResult()
	case "failed":
		return engine.FailedResult(banner.reason)
	case "skipped", "disabled":
		return engine.SkippedResult(banner.reason)
	default:
		return engine.BrokenResult(banner.reason)
	}
}

// ComputeResult scans the combined output the case's body produced
// and reconciles it against the process's exit status. GoogleTest has
// no separate machine-readable result file; the banner text in stdout
// is the only record of what happened.
func (a *Adapter) ComputeResult(h *engine.ExitHandle) (engine.CanonicalResult, error) {
	data, err := readFile(h.StdoutFile())
	if err != nil {
		return engine.BrokenResult("could not read test case output"), nil
	}
	banner := scanBanner(string(data))
	return reinterpret(banner, h.Status()), nil
}
