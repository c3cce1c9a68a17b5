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

import "fmt"

// ResultKind enumerates the five canonical outcome categories every
// adapter's raw result is reinterpreted into.
type ResultKind int

const (
	Passed ResultKind = iota
	Failed
	Skipped
	Broken
	ExpectedFailure
)

func (k ResultKind) externalName() string {
	switch k {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Broken:
		return "broken"
	case ExpectedFailure:
		return "expected_failure"
	default:
		return "unknown"
	}
}

// CanonicalResult is the outcome of one test case execution, reduced
// to the five-way sum a store or report renderer understands.
type CanonicalResult struct {
	Kind   ResultKind
	Reason string
}

// Good reports whether this result should be treated as a non-failure
// for exit-code purposes.
func (r CanonicalResult) Good() bool {
	switch r.Kind {
	case Passed, Skipped, ExpectedFailure:
		return true
	default:
		return false
	}
}

// ExternalName returns the result's wire/report name.
func (r CanonicalResult) ExternalName() string { return r.Kind.externalName() }

func (r CanonicalResult) String() string {
	if r.Reason == "" {
		return r.Kind.externalName()
	}
	return fmt.Sprintf("%s: %s", r.Kind.externalName(), r.Reason)
}

// PassedResult builds a Passed result; it never carries a reason.
func PassedResult() CanonicalResult { return CanonicalResult{Kind: Passed} }

// FailedResult builds a Failed result.
func FailedResult(reason string) CanonicalResult { return CanonicalResult{Kind: Failed, Reason: reason} }

// SkippedResult builds a Skipped result.
func SkippedResult(reason string) CanonicalResult {
	return CanonicalResult{Kind: Skipped, Reason: reason}
}

// BrokenResult builds a Broken result.
func BrokenResult(reason string) CanonicalResult { return CanonicalResult{Kind: Broken, Reason: reason} }

// ExpectedFailureResult builds an ExpectedFailure result.
func ExpectedFailureResult(reason string) CanonicalResult {
	return CanonicalResult{Kind: ExpectedFailure, Reason: reason}
}
