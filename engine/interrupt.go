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
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Interrupted is returned by CheckInterrupt once a tracked signal has
// been delivered to the process.
type Interrupted struct {
	Signal os.Signal
}

func (e *Interrupted) Error() string {
	return fmt.Sprintf("engine: interrupted by %v", e.Signal)
}

// InterruptController is a process-wide signal handler: on the first
// SIGHUP/SIGINT/SIGTERM it kills every registered process group, and on
// a second delivery it re-raises the signal against itself with its
// default disposition restored, so the process dies with the
// conventional 128+signo exit status. Exactly one should be set up per
// process, before any child is spawned.
type InterruptController struct {
	mu         sync.Mutex
	cond       *sync.Cond
	pgids      map[int]struct{}
	whichFired os.Signal
	killed     bool
	ch         chan os.Signal
}

// SetupInterrupts installs and returns the process-wide controller.
func SetupInterrupts() *InterruptController {
	ic := &InterruptController{pgids: make(map[int]struct{})}
	ic.cond = sync.NewCond(&ic.mu)
	ic.ch = make(chan os.Signal, 4)
	signal.Notify(ic.ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go ic.run()
	return ic
}

func (ic *InterruptController) run() {
	for sig := range ic.ch {
		ic.mu.Lock()
		if ic.whichFired == nil {
			ic.whichFired = sig
			for pgid := range ic.pgids {
				_ = unix.Kill(-pgid, unix.SIGKILL)
			}
			ic.killed = true
			ic.cond.Broadcast()
			ic.mu.Unlock()
			continue
		}
		ic.mu.Unlock()
		ic.redeliver(sig)
		return
	}
}

func (ic *InterruptController) redeliver(sig os.Signal) {
	signal.Stop(ic.ch)
	signal.Reset(sig)
	_ = unix.Kill(unix.Getpid(), sig.(syscall.Signal))
}

// RedeliverToExit re-raises sig against this process with its default
// disposition restored, terminating the process with the conventional
// 128+signo exit status. Call this after CheckInterrupt returns an
// *Interrupted error and all cleanup has finished, to deterministically
// produce the second-delivery behavior even if the user never sends a
// second signal.
func (ic *InterruptController) RedeliverToExit(sig os.Signal) {
	ic.redeliver(sig)
}

// AddPidToKill registers pgid (a child's own pid, since every isolated
// child leads its own process group) to be killed on interrupt.
func (ic *InterruptController) AddPidToKill(pgid int) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if _, dup := ic.pgids[pgid]; dup {
		panic(fmt.Sprintf("engine: pid %d already registered for interrupt", pgid))
	}
	ic.pgids[pgid] = struct{}{}
}

// RemovePidToKill unregisters pgid once its child has been reaped.
func (ic *InterruptController) RemovePidToKill(pgid int) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if _, ok := ic.pgids[pgid]; !ok {
		panic(fmt.Sprintf("engine: pid %d not registered for interrupt", pgid))
	}
	delete(ic.pgids, pgid)
}

// CheckInterrupt returns an *Interrupted error the first time it is
// called after a signal fired, then returns nil until the next signal.
// Call this at every safe suspension point before committing further
// resources; Executor.SpawnPre is the canonical call site.
func (ic *InterruptController) CheckInterrupt() error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.whichFired == nil {
		return nil
	}
	for !ic.killed {
		ic.cond.Wait()
	}
	sig := ic.whichFired
	ic.whichFired = nil
	return &Interrupted{Signal: sig}
}

// ResetInChild restores the signal disposition a freshly spawned child
// should see. Go's signal package intercepts SIGHUP/SIGINT/SIGTERM at
// the runtime level instead of via a process-wide sigprocmask, so
// children spawned through os/exec never inherit a blocked mask for
// these signals in the first place; this is a deliberate no-op, kept
// only for interface parity with the POSIX fork/exec design.
func (ic *InterruptController) ResetInChild() {}
