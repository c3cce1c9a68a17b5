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
	"syscall"
	"testing"

	"github.com/coreos/kyua/engine"
)

func exitedStatus(code int) *engine.Status {
	st := engine.NewStatus(1, syscall.WaitStatus(code<<8))
	return &st
}

func TestParseRawResult(t *testing.T) {
	cases := []struct {
		line    string
		wantErr bool
		kind    string
		reason  string
	}{
		{"passed", false, "passed", ""},
		{"passed: oops", true, "", ""},
		{"failed: went wrong", false, "failed", "went wrong"},
		{"failed", true, "", ""},
		{"skipped: not applicable", false, "skipped", "not applicable"},
		{"bogus", true, "", ""},
	}
	for _, c := range cases {
		got, err := parseRawResult(c.line)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseRawResult(%q): expected an error", c.line)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRawResult(%q): unexpected error %v", c.line, err)
			continue
		}
		if got.kind != c.kind || got.reason != c.reason {
			t.Errorf("parseRawResult(%q) = %+v, want kind=%q reason=%q", c.line, got, c.kind, c.reason)
		}
	}
}

func TestReinterpretPassedMatchesExitZero(t *testing.T) {
	result := reinterpret(rawResult{kind: "passed"}, exitedStatus(0))
	if result.Kind != engine.Passed {
		t.Errorf("reinterpret(passed, exit 0) = %v, want Passed", result)
	}
}

func TestReinterpretPassedButNonzeroExitIsBroken(t *testing.T) {
	result := reinterpret(rawResult{kind: "passed"}, exitedStatus(1))
	if result.Kind != engine.Broken {
		t.Errorf("reinterpret(passed, exit 1) = %v, want Broken", result)
	}
}

func TestReinterpretFailedRequiresNonzeroExit(t *testing.T) {
	for _, code := range []int{1, 2, 77} {
		result := reinterpret(rawResult{kind: "failed", reason: "oops"}, exitedStatus(code))
		if result.Kind != engine.Failed || result.Reason != "oops" {
			t.Errorf("reinterpret(failed, exit %d) = %v, want Failed(oops)", code, result)
		}
	}

	result := reinterpret(rawResult{kind: "failed", reason: "oops"}, exitedStatus(0))
	if result.Kind != engine.Broken {
		t.Errorf("reinterpret(failed, exit 0) = %v, want Broken", result)
	}
}

// TestMissingResultAfterCrash covers a body that crashed before ever
// writing a results file.
func TestMissingResultAfterCrash(t *testing.T) {
	st := engine.NewStatus(1, syscall.WaitStatus(0x8b)) // signal 11 (SIGSEGV), core dumped
	result := missingResult(&st)
	if result.Kind != engine.Broken {
		t.Fatalf("expected Broken, got %v", result)
	}
	want := "Premature exit. Test case received signal 11 (core dumped)"
	if result.Reason != want {
		t.Errorf("Reason = %q, want %q", result.Reason, want)
	}
}

// TestMissingResultAfterTimeout covers a body that timed out before
// writing a results file: no process status at all.
func TestMissingResultAfterTimeout(t *testing.T) {
	result := missingResult(nil)
	if result.Kind != engine.Broken || result.Reason != "Test case body timed out" {
		t.Errorf("got %v", result)
	}
}

func TestReinterpretBrokenAlwaysBroken(t *testing.T) {
	result := reinterpret(rawResult{kind: "broken", reason: "bang"}, exitedStatus(0))
	if result.Kind != engine.Broken || result.Reason != "bang" {
		t.Errorf("got %v", result)
	}
	result = reinterpret(rawResult{kind: "broken", reason: "bang"}, exitedStatus(1))
	if result.Kind != engine.Broken || result.Reason != "bang" {
		t.Errorf("got %v", result)
	}
}

func TestReinterpretExpectedFailure(t *testing.T) {
	result := reinterpret(rawResult{kind: "expected_failure", reason: "known bug"}, exitedStatus(0))
	if result.Kind != engine.ExpectedFailure || result.Reason != "known bug" {
		t.Errorf("got %v", result)
	}
	result = reinterpret(rawResult{kind: "expected_failure", reason: "known bug"}, exitedStatus(1))
	if result.Kind != engine.Broken {
		t.Errorf("expected_failure with nonzero exit should be Broken, got %v", result)
	}
}

func TestLoadRawResultParsesFirstLineOnly(t *testing.T) {
	raw, err := loadRawResult([]byte("passed\nsome trailing diagnostic\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.kind != "passed" {
		t.Errorf("kind = %q, want %q", raw.kind, "passed")
	}
}
