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

// FormatError indicates an adapter's input stream violated its
// grammar: a malformed ATF listing, an unparseable gtest banner, and
// so on.
type FormatError struct {
	Program string
	Detail  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("engine: %s: %s", e.Program, e.Detail)
}

// ExecError indicates a child failed to exec, identified by one of a
// small set of reserved exit codes a launcher uses to signal that the
// failure happened before the test program's own code ever ran.
type ExecError struct {
	Code int
}

func (e *ExecError) Error() string {
	switch e.Code {
	case ExecFailureEACCES:
		return "engine: permission denied executing test program"
	case ExecFailureENOENT:
		return "engine: test program not found"
	case ExecFailureENOEXEC:
		return "engine: test program is not executable"
	case ExecFailureGeneric:
		return "engine: failed to execute test program"
	default:
		return fmt.Sprintf("engine: exec failed with distinguished code %d", e.Code)
	}
}

// AsExecError maps a child's termination status onto an *ExecError if
// it used one of the reserved exec-failure exit codes.
func AsExecError(status *Status) (*ExecError, bool) {
	if status == nil || !status.Exited() {
		return nil, false
	}
	switch code := status.ExitCode(); code {
	case ExecFailureEACCES, ExecFailureENOENT, ExecFailureENOEXEC, ExecFailureGeneric:
		return &ExecError{Code: code}, true
	default:
		return nil, false
	}
}

// UsageError indicates an invalid filter or command-line option. It
// never originates inside engine itself; it is defined here so
// front-ends share one error taxonomy with the execution core.
type UsageError struct {
	Detail string
}

func (e *UsageError) Error() string { return e.Detail }

// ErrRunFailed is returned by Scheduler.Run when every case executed
// without a core-level error but at least one result was not good
// (failed or broken; skips and expected failures are good), or a
// supplied filter never matched anything.
var ErrRunFailed = fmt.Errorf("engine: one or more test cases did not pass")
