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
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/coreos/kyua/lang/destructor"
	"github.com/coreos/kyua/system/user"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/kyua", "engine")

// ExecHandle identifies one spawned, not-yet-reaped child.
type ExecHandle int

// ExecContext is the per-execution scratch area SpawnPre allocates:
// one control directory holding a work subdirectory plus the stdout,
// stderr, and (adapter-specific) result files a child's invocation
// will produce.
type ExecContext struct {
	ControlDir string
	WorkDir    string
	StdoutFile string
	StderrFile string
	ResultFile string
}

// ChildConfig describes one child invocation.
type ChildConfig struct {
	Path    string
	Args    []string
	Env     []string // appended after the scrubbed base environment
	Ctx     ExecContext
	Timeout time.Duration
	User    *user.User
}

type execEntry struct {
	ctx        ExecContext
	proc       *os.Process
	killer     *DeadlineKiller
	start      time.Time
	user       *user.User
	isFollowup bool
	done       chan struct{}
	status     *Status // nil means the deadline killer fired first
}

// Executor owns a root scratch directory and spawns/reaps isolated
// child processes on behalf of one run.
type Executor struct {
	interrupt *InterruptController
	root      string
	runID     string

	mu        sync.Mutex
	counter   int
	entries   map[ExecHandle]*execEntry
	completed chan ExecHandle
}

var umaskMu sync.Mutex

// NewExecutor creates a root temporary directory, namespaced by a
// fresh run ID, and returns an Executor bound to it. ic may be nil to
// run without interrupt tracking (e.g. in tests).
func NewExecutor(ic *InterruptController) (*Executor, error) {
	runID := uuid.NewString()
	root, err := os.MkdirTemp("", fmt.Sprintf("kyua.%s.", runID))
	if err != nil {
		return nil, errors.Wrap(err, "engine: creating root work directory")
	}
	return &Executor{
		interrupt: ic,
		root:      root,
		runID:     runID,
		entries:   make(map[ExecHandle]*execEntry),
		completed: make(chan ExecHandle, 64),
	}, nil
}

// RunID returns the unique identifier stamped on this Executor's root
// work directory, usable to correlate stored results back to the run
// that produced them.
func (e *Executor) RunID() string { return e.runID }

// SpawnPre allocates a control/work directory pair for an upcoming
// execution. This is a safe suspension point: it checks for a pending
// interrupt before allocating anything further.
func (e *Executor) SpawnPre() (ExecContext, error) {
	if e.interrupt != nil {
		if err := e.interrupt.CheckInterrupt(); err != nil {
			return ExecContext{}, err
		}
	}

	e.mu.Lock()
	e.counter++
	n := e.counter
	e.mu.Unlock()

	control := filepath.Join(e.root, fmt.Sprintf("%d", n))
	work := filepath.Join(control, "work")
	if err := os.MkdirAll(work, 0755); err != nil {
		return ExecContext{}, errors.Wrapf(err, "engine: creating work directory under %s", control)
	}
	return ExecContext{
		ControlDir: control,
		WorkDir:    work,
		StdoutFile: filepath.Join(control, "stdout"),
		StderrFile: filepath.Join(control, "stderr"),
		ResultFile: filepath.Join(control, "result"),
	}, nil
}

// Spawn starts cfg.Path as a newly isolated child and returns a handle
// for the eventual Wait.
func (e *Executor) Spawn(cfg ChildConfig) (ExecHandle, error) {
	return e.spawn(cfg, false)
}

// SpawnFollowup starts a follow-up execution (an ATF cleanup phase) in
// the context of base's completed execution, reusing its
// control/work/stdout/stderr paths. The base child must already have
// been reaped but not cleaned up; the resulting ExitHandle does not
// own the control directory.
func (e *Executor) SpawnFollowup(base *ExitHandle, cfg ChildConfig) (ExecHandle, error) {
	cfg.Ctx = base.ctx
	return e.spawn(cfg, true)
}

func (e *Executor) spawn(cfg ChildConfig, isFollowup bool) (ExecHandle, error) {
	var files destructor.MultiDestructor
	defer func() { files.Destroy() }()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if isFollowup {
		// A follow-up shares the base execution's files; append so the
		// body's captured output survives.
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	stdout, err := os.OpenFile(cfg.Ctx.StdoutFile, flags, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "engine: opening %s", cfg.Ctx.StdoutFile)
	}
	files.AddCloser(stdout)
	stderr, err := os.OpenFile(cfg.Ctx.StderrFile, flags, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "engine: opening %s", cfg.Ctx.StderrFile)
	}
	files.AddCloser(stderr)

	cmd := launcher.Command(append([]string{cfg.Path}, cfg.Args...)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	iso := &Isolator{WorkDir: cfg.Ctx.WorkDir, UnprivilegedUser: cfg.User}
	if err := iso.Prepare(cmd.Cmd); err != nil {
		return 0, err
	}
	cmd.Env = append(cmd.Env, cfg.Env...)

	umaskMu.Lock()
	old := unix.Umask(0022)
	err = cmd.Start()
	unix.Umask(old)
	umaskMu.Unlock()
	if err != nil {
		return 0, errors.Wrapf(err, "engine: starting %s", cfg.Path)
	}

	handle := ExecHandle(cmd.Pid())
	entry := &execEntry{
		ctx:        cfg.Ctx,
		proc:       cmd.Process,
		start:      time.Now(),
		user:       cfg.User,
		isFollowup: isFollowup,
		done:       make(chan struct{}),
	}
	entry.killer = NewDeadlineKiller(cfg.Timeout, cmd.Pid())

	e.mu.Lock()
	e.entries[handle] = entry
	e.mu.Unlock()

	if e.interrupt != nil {
		e.interrupt.AddPidToKill(cmd.Pid())
	}

	go func() {
		_ = cmd.Wait()
		entry.killer.Unprogram()
		if e.interrupt != nil {
			e.interrupt.RemovePidToKill(cmd.Pid())
		}
		if !entry.killer.Fired() {
			st := FromProcessState(cmd.ProcessState)
			entry.status = &st
		}
		close(entry.done)
		e.completed <- handle
	}()

	return handle, nil
}

// Wait blocks until handle's child has been reaped and returns its
// ExitHandle.
func (e *Executor) Wait(handle ExecHandle) (*ExitHandle, error) {
	e.mu.Lock()
	entry, ok := e.entries[handle]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("engine: unknown handle %d", handle)
	}
	<-entry.done
	return e.finalize(handle, entry), nil
}

// WaitAny blocks until any outstanding child has been reaped and
// returns its ExitHandle.
func (e *Executor) WaitAny() (*ExitHandle, error) {
	handle, ok := <-e.completed
	if !ok {
		return nil, fmt.Errorf("engine: no outstanding children")
	}
	e.mu.Lock()
	entry, ok := e.entries[handle]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("engine: handle %d already reaped", handle)
	}
	return e.finalize(handle, entry), nil
}

func (e *Executor) finalize(handle ExecHandle, entry *execEntry) *ExitHandle {
	e.mu.Lock()
	delete(e.entries, handle)
	e.mu.Unlock()

	eh := &ExitHandle{
		exec:       e,
		handle:     handle,
		status:     entry.status,
		user:       entry.user,
		start:      entry.start,
		end:        time.Now(),
		ctx:        entry.ctx,
		isFollowup: entry.isFollowup,
	}
	runtime.SetFinalizer(eh, func(h *ExitHandle) {
		h.mu.Lock()
		cleaned := h.cleaned
		h.mu.Unlock()
		if !cleaned {
			plog.Warningf("engine: ExitHandle for %s dropped without Cleanup; cleaning up now", eh.ctx.ControlDir)
			_ = h.Cleanup()
		}
	})
	return eh
}

// Cleanup terminates and reaps any still-live children, removes every
// control directory, and removes the root directory. Idempotent.
func (e *Executor) Cleanup() error {
	e.mu.Lock()
	entries := e.entries
	e.entries = make(map[ExecHandle]*execEntry)
	e.mu.Unlock()

	for handle, entry := range entries {
		if entry.proc != nil {
			_ = unix.Kill(-entry.proc.Pid, unix.SIGKILL)
		}
		<-entry.done
		if err := os.RemoveAll(entry.ctx.ControlDir); err != nil {
			plog.Warningf("engine: removing control directory for handle %d: %v", handle, err)
		}
	}
	if err := os.RemoveAll(e.root); err != nil {
		return errors.Wrapf(err, "engine: removing root directory %s", e.root)
	}
	return nil
}

// ExitHandle is produced once a child has been reaped; it is the only
// way to learn its outcome and to release its scratch directory.
type ExitHandle struct {
	exec       *Executor
	handle     ExecHandle
	status     *Status // nil means the deadline killer fired
	user       *user.User
	start, end time.Time
	ctx        ExecContext
	isFollowup bool

	mu      sync.Mutex
	cleaned bool
}

// Handle returns the ExecHandle this exit corresponds to.
func (h *ExitHandle) Handle() ExecHandle { return h.handle }

// Status returns the terminated child's wait status, or nil if its
// deadline elapsed before it terminated on its own.
func (h *ExitHandle) Status() *Status { return h.status }

// UnprivilegedUser returns the user the child ran as, if one was
// configured.
func (h *ExitHandle) UnprivilegedUser() *user.User { return h.user }

// StartTime returns when the child was spawned.
func (h *ExitHandle) StartTime() time.Time { return h.start }

// EndTime returns when the child was reaped.
func (h *ExitHandle) EndTime() time.Time { return h.end }

// ControlDirectory returns the control directory path.
func (h *ExitHandle) ControlDirectory() string { return h.ctx.ControlDir }

// WorkDirectory returns the child's working directory path.
func (h *ExitHandle) WorkDirectory() string { return h.ctx.WorkDir }

// StdoutFile returns the path the child's stdout was redirected to.
func (h *ExitHandle) StdoutFile() string { return h.ctx.StdoutFile }

// StderrFile returns the path the child's stderr was redirected to.
func (h *ExitHandle) StderrFile() string { return h.ctx.StderrFile }

// ResultFile returns the path an adapter's result protocol writes to.
func (h *ExitHandle) ResultFile() string { return h.ctx.ResultFile }

// Cleanup removes the control directory tree, unless this handle is a
// follow-up execution that does not own it. Idempotent; dropping an
// ExitHandle without calling this logs a warning and cleans up anyway.
func (h *ExitHandle) Cleanup() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cleaned || h.isFollowup {
		h.cleaned = true
		return nil
	}
	h.cleaned = true
	if err := os.RemoveAll(h.ctx.ControlDir); err != nil {
		return errors.Wrapf(err, "engine: removing control directory %s", h.ctx.ControlDir)
	}
	return nil
}
