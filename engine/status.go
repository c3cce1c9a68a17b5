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
	"os"
	"syscall"
)

// Status is an immutable view of the POSIX wait status reported for a
// terminated child process.
type Status struct {
	pid int
	ws  syscall.WaitStatus
}

// NewStatus wraps a raw wait status for pid.
func NewStatus(pid int, ws syscall.WaitStatus) Status {
	return Status{pid: pid, ws: ws}
}

// FromProcessState extracts a Status from a completed os/exec
// invocation.
func FromProcessState(ps *os.ProcessState) Status {
	return NewStatus(ps.Pid(), ps.Sys().(syscall.WaitStatus))
}

// Pid returns the pid the status was reported for.
func (s Status) Pid() int { return s.pid }

// Exited reports whether the child terminated via _exit/exit.
func (s Status) Exited() bool { return s.ws.Exited() }

// ExitCode returns the exit code. Panics if !Exited().
func (s Status) ExitCode() int {
	if !s.Exited() {
		panic("engine: ExitCode called on a non-exited status")
	}
	return s.ws.ExitStatus()
}

// Signaled reports whether the child was terminated by a signal.
func (s Status) Signaled() bool { return s.ws.Signaled() }

// TermSignal returns the terminating signal. Panics if !Signaled().
func (s Status) TermSignal() int {
	if !s.Signaled() {
		panic("engine: TermSignal called on a non-signaled status")
	}
	return int(s.ws.Signal())
}

// CoreDumped reports whether the child dumped core. Only meaningful
// when Signaled().
func (s Status) CoreDumped() bool { return s.ws.CoreDump() }

// String renders the status the way diagnostic messages in result
// reasons quote it, e.g. "exited with code 1" or "received signal 11".
func (s Status) String() string {
	switch {
	case s.Exited():
		return fmt.Sprintf("exited with code %d", s.ExitCode())
	case s.Signaled() && s.CoreDumped():
		return fmt.Sprintf("received signal %d (core dumped)", s.TermSignal())
	case s.Signaled():
		return fmt.Sprintf("received signal %d", s.TermSignal())
	default:
		return "terminated with unknown status"
	}
}
