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
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestDeadlineKillerFires(t *testing.T) {
	cmd := exec.Command("sleep", "3600")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	killer := NewDeadlineKiller(50*time.Millisecond, cmd.Process.Pid)
	_ = cmd.Wait()
	killer.Unprogram()

	if !killer.Fired() {
		t.Errorf("expected Fired() true after the deadline elapsed")
	}
}

func TestDeadlineKillerUnprogramBeforeExpiry(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	killer := NewDeadlineKiller(time.Hour, cmd.Process.Pid)
	_ = cmd.Wait()
	killer.Unprogram()

	if killer.Fired() {
		t.Errorf("expected Fired() false when the child exits well before the deadline")
	}
}

func TestDeadlineKillerZeroTimeoutDisablesDeadline(t *testing.T) {
	killer := NewDeadlineKiller(0, 1)
	killer.Unprogram()
	if killer.Fired() {
		t.Errorf("a zero timeout must never fire")
	}
}
