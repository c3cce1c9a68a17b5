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
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DeadlineKiller is a one-shot timer that SIGKILLs a process group if
// it has not been unprogrammed before the timeout elapses. Unlike the
// single process-wide SIGALRM timer a POSIX implementation is limited
// to, each DeadlineKiller here owns an independent runtime timer, so
// callers are free to have many outstanding at once without
// serializing through a registry.
type DeadlineKiller struct {
	mu    sync.Mutex
	timer *time.Timer
	fired bool
	pgid  int
}

// NewDeadlineKiller programs a timer that sends SIGKILL to the process
// group led by pgid once timeout elapses. A non-positive timeout
// disables the deadline: Unprogram becomes a no-op and Fired always
// reports false.
func NewDeadlineKiller(timeout time.Duration, pgid int) *DeadlineKiller {
	k := &DeadlineKiller{pgid: pgid}
	if timeout <= 0 {
		return k
	}
	k.timer = time.AfterFunc(timeout, func() {
		k.mu.Lock()
		k.fired = true
		k.mu.Unlock()
		_ = unix.Kill(-pgid, unix.SIGKILL)
	})
	return k
}

// Unprogram cancels the timer. Must be called exactly once on every
// path that reaps the associated child, before inspecting Fired.
func (k *DeadlineKiller) Unprogram() {
	if k.timer != nil {
		k.timer.Stop()
	}
}

// Fired reports whether the deadline elapsed and SIGKILL was sent.
// Only meaningful after Unprogram has returned.
func (k *DeadlineKiller) Fired() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.fired
}
