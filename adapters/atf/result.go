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

package atf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/kyua/engine"
)

// rawResult is the parsed first line of an ATF result file: one of
// passed, failed, skipped, broken, expected_death, expected_exit,
// expected_failure, expected_signal, or expected_timeout;
// expected_exit and expected_signal may carry a parenthesized argument.
type rawResult struct {
	kind   string
	arg    string // set for expected_exit/expected_signal, e.g. "0" or "*"
	reason string
}

func parseRawResult(line string) (rawResult, error) {
	line = strings.TrimSuffix(line, "\n")
	kind := line
	rest := ""
	if idx := strings.Index(line, ":"); idx >= 0 {
		kind = line[:idx]
		rest = strings.TrimPrefix(line[idx+1:], " ")
	}

	arg := ""
	if idx := strings.Index(kind, "("); idx >= 0 && strings.HasSuffix(kind, ")") {
		arg = kind[idx+1 : len(kind)-1]
		kind = kind[:idx]
	}

	switch kind {
	case "passed":
		if rest != "" {
			return rawResult{}, fmt.Errorf("passed cannot have a reason")
		}
		return rawResult{kind: kind}, nil
	case "failed", "skipped", "broken", "expected_death", "expected_failure":
		if rest == "" {
			return rawResult{}, fmt.Errorf("%s requires a reason", kind)
		}
		return rawResult{kind: kind, reason: rest}, nil
	case "expected_exit", "expected_signal":
		if rest == "" {
			return rawResult{}, fmt.Errorf("%s requires a reason", kind)
		}
		return rawResult{kind: kind, arg: arg, reason: rest}, nil
	case "expected_timeout":
		if rest == "" {
			return rawResult{}, fmt.Errorf("%s requires a reason", kind)
		}
		return rawResult{kind: kind, reason: rest}, nil
	default:
		return rawResult{}, fmt.Errorf("unknown result type %q", kind)
	}
}

// loadRawResult reads and parses a result file's first line. ATF
// result files may carry trailing diagnostic lines (e.g. a captured
// stack trace); only the first line is part of the grammar.
func loadRawResult(data []byte) (rawResult, error) {
	text := string(data)
	if text == "" {
		return rawResult{}, fmt.Errorf("empty results file")
	}
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	return parseRawResult(line)
}

func matchesExitCode(arg string, code int) bool {
	if arg == "" || arg == "*" {
		return true
	}
	want, err := strconv.Atoi(arg)
	return err == nil && want == code
}

func matchesSignal(arg string, sig int) bool {
	if arg == "" || arg == "*" {
		return true
	}
	want, err := strconv.Atoi(arg)
	return err == nil && want == sig
}

// reinterpret folds a raw result against the body's termination
// status. A mismatch between the declared expectation and reality
// means the test program lied about its own outcome, which is always
// reported as broken rather than whatever the test claimed.
func reinterpret(raw rawResult, status *engine.Status) engine.CanonicalResult {
	switch raw.kind {
	case "passed":
		if status == nil || !status.Exited() || status.ExitCode() != 0 {
			return engine.BrokenResult("test case reported passed but " + describeStatus(status))
		}
		return engine.PassedResult()
	case "failed":
		if status == nil || !status.Exited() || status.ExitCode() == 0 {
			return engine.BrokenResult("test case reported failed but " + describeStatus(status))
		}
		return engine.FailedResult(raw.reason)
	case "skipped":
		if status == nil || !status.Exited() || status.ExitCode() != 0 {
			return engine.BrokenResult("test case reported skipped but " + describeStatus(status))
		}
		return engine.SkippedResult(raw.reason)
	case "broken":
		return engine.BrokenResult(raw.reason)
	case "expected_death":
		return engine.ExpectedFailureResult(raw.reason)
	case "expected_failure":
		if status == nil || !status.Exited() || status.ExitCode() != 0 {
			return engine.BrokenResult("test case reported expected_failure but " + describeStatus(status))
		}
		return engine.ExpectedFailureResult(raw.reason)
	case "expected_exit":
		if status == nil || !status.Exited() || !matchesExitCode(raw.arg, status.ExitCode()) {
			return engine.BrokenResult("test case reported expected_exit but " + describeStatus(status))
		}
		return engine.ExpectedFailureResult(raw.reason)
	case "expected_signal":
		if status == nil || !status.Signaled() || !matchesSignal(raw.arg, status.TermSignal()) {
			return engine.BrokenResult("test case reported expected_signal but " + describeStatus(status))
		}
		return engine.ExpectedFailureResult(raw.reason)
	case "expected_timeout":
		if status != nil {
			return engine.BrokenResult("test case reported expected_timeout but " + describeStatus(status))
		}
		return engine.ExpectedFailureResult(raw.reason)
	default:
		return engine.BrokenResult("unknown result type " + raw.kind)
	}
}

func describeStatus(status *engine.Status) string {
	if status == nil {
		return "timed out"
	}
	return status.String()
}

// missingResult is the outcome for a body that never produced a
// readable results file: either its deadline elapsed or it died
// before the ATF runtime could write one.
func missingResult(status *engine.Status) engine.CanonicalResult {
	if status == nil {
		return engine.BrokenResult("Test case body timed out")
	}
	return engine.BrokenResult("Premature exit. Test case " + status.String())
}

// ComputeResult loads the results file a test case's body left
// behind and folds it against how the body process actually
// terminated.
func (a *Adapter) ComputeResult(h *engine.ExitHandle) (engine.CanonicalResult, error) {
	data, err := readFile(h.ResultFile())
	if err != nil {
		return missingResult(h.Status()), nil
	}
	raw, err := loadRawResult(data)
	if err != nil {
		return engine.BrokenResult(fmt.Sprintf("invalid results file: %v", err)), nil
	}
	return reinterpret(raw, h.Status()), nil
}
