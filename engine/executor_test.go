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
	"os"
	"time"

	"testing"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	ex, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}
	t.Cleanup(func() { _ = ex.Cleanup() })
	return ex
}

func TestExecutorSpawnAndWaitSuccess(t *testing.T) {
	ex := newTestExecutor(t)

	ctx, err := ex.SpawnPre()
	if err != nil {
		t.Fatalf("SpawnPre failed: %v", err)
	}

	handle, err := ex.Spawn(ChildConfig{
		Path: "/bin/sh",
		Args: []string{"-c", "echo hello; exit 0"},
		Ctx:  ctx,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	exitHandle, err := ex.Wait(handle)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	defer exitHandle.Cleanup()

	if exitHandle.Status() == nil {
		t.Fatalf("expected a status, got a timeout")
	}
	if !exitHandle.Status().Exited() || exitHandle.Status().ExitCode() != 0 {
		t.Errorf("status = %v, want exit 0", exitHandle.Status())
	}

	data, err := os.ReadFile(exitHandle.StdoutFile())
	if err != nil {
		t.Fatalf("reading stdout file: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("stdout = %q, want %q", data, "hello\n")
	}
}

func TestExecutorDeadlineTimesOut(t *testing.T) {
	ex := newTestExecutor(t)

	ctx, err := ex.SpawnPre()
	if err != nil {
		t.Fatalf("SpawnPre failed: %v", err)
	}

	handle, err := ex.Spawn(ChildConfig{
		Path:    "/bin/sleep",
		Args:    []string{"3600"},
		Ctx:     ctx,
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	exitHandle, err := ex.Wait(handle)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	defer exitHandle.Cleanup()

	if exitHandle.Status() != nil {
		t.Errorf("expected status()==nil for a timed-out child, got %v", exitHandle.Status())
	}
}

func TestExecutorStdoutStderrAlwaysCreated(t *testing.T) {
	ex := newTestExecutor(t)

	ctx, err := ex.SpawnPre()
	if err != nil {
		t.Fatalf("SpawnPre failed: %v", err)
	}
	handle, err := ex.Spawn(ChildConfig{Path: "/bin/sh", Args: []string{"-c", "true"}, Ctx: ctx})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	exitHandle, err := ex.Wait(handle)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	defer exitHandle.Cleanup()

	for _, path := range []string{exitHandle.StdoutFile(), exitHandle.StderrFile()} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}
}

func TestExecutorCleanupIdempotent(t *testing.T) {
	ex := newTestExecutor(t)

	ctx, err := ex.SpawnPre()
	if err != nil {
		t.Fatalf("SpawnPre failed: %v", err)
	}
	handle, err := ex.Spawn(ChildConfig{Path: "/bin/sh", Args: []string{"-c", "true"}, Ctx: ctx})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	exitHandle, err := ex.Wait(handle)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if err := exitHandle.Cleanup(); err != nil {
		t.Fatalf("first Cleanup failed: %v", err)
	}
	if _, err := os.Stat(exitHandle.ControlDirectory()); !os.IsNotExist(err) {
		t.Errorf("expected control directory to be removed")
	}
	if err := exitHandle.Cleanup(); err != nil {
		t.Errorf("second Cleanup should be a no-op, got: %v", err)
	}
}

func TestExecutorFollowupDoesNotOwnDirectory(t *testing.T) {
	ex := newTestExecutor(t)

	ctx, err := ex.SpawnPre()
	if err != nil {
		t.Fatalf("SpawnPre failed: %v", err)
	}
	base, err := ex.Spawn(ChildConfig{Path: "/bin/sh", Args: []string{"-c", "echo body"}, Ctx: ctx})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	baseExit, err := ex.Wait(base)
	if err != nil {
		t.Fatalf("Wait(base) failed: %v", err)
	}

	followup, err := ex.SpawnFollowup(baseExit, ChildConfig{Path: "/bin/sh", Args: []string{"-c", "echo cleanup"}})
	if err != nil {
		t.Fatalf("SpawnFollowup failed: %v", err)
	}
	followupExit, err := ex.Wait(followup)
	if err != nil {
		t.Fatalf("Wait(followup) failed: %v", err)
	}

	if followupExit.StdoutFile() != baseExit.StdoutFile() {
		t.Errorf("follow-up stdout = %q, want the base's %q", followupExit.StdoutFile(), baseExit.StdoutFile())
	}
	data, err := os.ReadFile(baseExit.StdoutFile())
	if err != nil {
		t.Fatalf("reading stdout file: %v", err)
	}
	if string(data) != "body\ncleanup\n" {
		t.Errorf("stdout = %q, want the follow-up appended after the body", data)
	}

	if err := followupExit.Cleanup(); err != nil {
		t.Fatalf("follow-up Cleanup failed: %v", err)
	}
	if _, err := os.Stat(baseExit.ControlDirectory()); err != nil {
		t.Errorf("follow-up cleanup must not remove the base's control directory: %v", err)
	}
	if err := baseExit.Cleanup(); err != nil {
		t.Errorf("base Cleanup failed: %v", err)
	}
}

func TestExecutorSpawnMissingProgramReportsReservedCode(t *testing.T) {
	ex := newTestExecutor(t)

	ctx, err := ex.SpawnPre()
	if err != nil {
		t.Fatalf("SpawnPre failed: %v", err)
	}
	handle, err := ex.Spawn(ChildConfig{Path: "/nonexistent/test-program", Ctx: ctx})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	exitHandle, err := ex.Wait(handle)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	defer exitHandle.Cleanup()

	st := exitHandle.Status()
	if st == nil || !st.Exited() || st.ExitCode() != ExecFailureENOENT {
		t.Fatalf("status = %v, want exit %d", st, ExecFailureENOENT)
	}
	execErr, ok := AsExecError(st)
	if !ok {
		t.Fatalf("AsExecError did not recognize the reserved code")
	}
	if execErr.Code != ExecFailureENOENT {
		t.Errorf("Code = %d, want %d", execErr.Code, ExecFailureENOENT)
	}
}

func TestExecutorCleanupRemovesRoot(t *testing.T) {
	ex, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}
	root := ex.root

	ctx, err := ex.SpawnPre()
	if err != nil {
		t.Fatalf("SpawnPre failed: %v", err)
	}
	handle, err := ex.Spawn(ChildConfig{Path: "/bin/sleep", Args: []string{"3600"}, Ctx: ctx})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	_ = handle

	if err := ex.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("expected root work directory %s to be removed after Cleanup", root)
	}
}
