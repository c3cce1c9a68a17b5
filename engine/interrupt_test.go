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
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestInterruptControllerKillsRegisteredChildren spawns and registers
// three children, delivers a single SIGHUP to this process, and
// expects every registered process group to be reaped with SIGKILL
// before the next CheckInterrupt call observes the interrupt exactly
// once.
//
// This test never lets the controller deliver a second signal:
// RedeliverToExit re-raises with the default disposition restored,
// which would terminate the whole test binary.
func TestInterruptControllerKillsRegisteredChildren(t *testing.T) {
	ic := SetupInterrupts()

	const n = 3
	cmds := make([]*exec.Cmd, n)
	for i := range cmds {
		cmd := exec.Command("sleep", "3600")
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		if err := cmd.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		cmds[i] = cmd
		ic.AddPidToKill(cmd.Process.Pid)
	}

	if err := unix.Kill(os.Getpid(), unix.SIGHUP); err != nil {
		t.Fatalf("sending SIGHUP to self: %v", err)
	}

	for _, cmd := range cmds {
		err := cmd.Wait()
		if err == nil {
			t.Errorf("expected child to be killed, it exited cleanly instead")
			continue
		}
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			t.Errorf("unexpected wait error: %v", err)
			continue
		}
		status := exitErr.Sys().(syscall.WaitStatus)
		if !status.Signaled() || status.Signal() != syscall.SIGKILL {
			t.Errorf("child terminated with %v, want SIGKILL", status)
		}
		ic.RemovePidToKill(cmd.Process.Pid)
	}

	if err := ic.CheckInterrupt(); err == nil {
		t.Fatalf("expected CheckInterrupt to report the delivered signal")
	} else if interrupted, ok := err.(*Interrupted); !ok {
		t.Fatalf("unexpected error type %T", err)
	} else if interrupted.Signal != syscall.SIGHUP {
		t.Errorf("Interrupted.Signal = %v, want SIGHUP", interrupted.Signal)
	}

	if err := ic.CheckInterrupt(); err != nil {
		t.Errorf("a second CheckInterrupt call should return nil, got %v", err)
	}
}

func TestInterruptControllerAddRemoveRoundTrip(t *testing.T) {
	ic := &InterruptController{pgids: make(map[int]struct{})}
	ic.cond = sync.NewCond(&ic.mu)

	ic.AddPidToKill(42)
	ic.RemovePidToKill(42)

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected a panic removing an already-removed pid")
			}
		}()
		ic.RemovePidToKill(42)
	}()
}

func TestDeadlineKillerWaitsForRealTimer(t *testing.T) {
	start := time.Now()
	cmd := exec.Command("sleep", "3600")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	killer := NewDeadlineKiller(10*time.Millisecond, cmd.Process.Pid)
	_ = cmd.Wait()
	killer.Unprogram()
	if !killer.Fired() {
		t.Fatalf("expected the killer to fire")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("deadline took implausibly long: %s", elapsed)
	}
}
