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
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/coreos/pkg/multierror"

	"github.com/coreos/kyua/lang/worker"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var schedPlog = capnslog.NewPackageLogger("github.com/coreos/kyua", "scheduler")

// CaseListing is one case an Adapter's List turned up, together with
// its already-validated metadata.
type CaseListing struct {
	Id       TestCaseId
	Metadata Metadata
}

// Adapter speaks one test-program interface (ATF, GoogleTest, ...).
type Adapter interface {
	List(ctx context.Context, ex *Executor, program TestProgramRef) ([]CaseListing, error)
	ExecTest(ctx context.Context, ex *Executor, program TestProgramRef, caseName string, metadata Metadata) (ExecHandle, error)
	ComputeResult(h *ExitHandle) (CanonicalResult, error)
}

// CleanupAdapter is implemented by adapters whose cases may carry a
// follow-up cleanup phase. Only the ATF adapter does. The base
// ExitHandle is the reaped, not-yet-cleaned body execution whose
// scratch context the cleanup phase reuses.
type CleanupAdapter interface {
	Adapter
	ExecCleanup(ctx context.Context, ex *Executor, base *ExitHandle, program TestProgramRef, caseName string, metadata Metadata) (ExecHandle, error)
}

// ResultSink is the operation-shaped interface the execution core
// needs from a persistent store: one call per finished case.
type ResultSink interface {
	RecordResult(program TestProgramRef, id TestCaseId, result CanonicalResult, start, end time.Time, stdoutPath, stderrPath string) error
}

// RuntimeContext describes the host the scheduler evaluates per-case
// requirements against.
type RuntimeContext struct {
	Architecture      string
	Platform          string
	CurrentUser       RequiredUser // RequireRoot or RequireUnprivileged, never AnyUser
	DefinedConfigs    map[string]struct{}
	AvailablePrograms map[string]struct{} // extra leaf names known to be present
	AvailableMemory   uint64              // 0 means unknown/unconstrained
}

// SchedulerOptions configures how many test programs may run
// concurrently. The default, 1, preserves a fully sequential run;
// values above 1 opt into the concurrent-outstanding-children mode
// the Executor is structured to support.
type SchedulerOptions struct {
	Parallel int
}

// Scheduler orchestrates list-then-run across a manifest of test
// programs, evaluating metadata before paying the cost of a spawn.
type Scheduler struct {
	Adapters map[InterfaceTag]Adapter
	Executor *Executor
	Sink     ResultSink
	Runtime  RuntimeContext
	Opts     SchedulerOptions
}

// Run executes every program in programs that filters selects. It
// returns ErrRunFailed if the run as a whole should be considered
// failed (any non-good result, or any filter that matched nothing),
// or an *Interrupted error if a signal aborted the run.
func (s *Scheduler) Run(ctx context.Context, programs []TestProgramRef, filters *FilterSet) error {
	limit := s.Opts.Parallel
	if limit < 1 {
		limit = 1
	}
	wg := worker.NewWorkerGroup(ctx, limit)

	var mu sync.Mutex
	anyBad := false

	for _, prog := range programs {
		prog := prog
		if !filters.MatchesProgram(prog.BinaryPath) {
			continue
		}
		if err := wg.Start(func(ctx context.Context) error {
			bad, err := s.runProgram(ctx, prog, filters)
			mu.Lock()
			if bad {
				anyBad = true
			}
			mu.Unlock()
			return err
		}); err != nil {
			break
		}
	}

	if err := wg.Wait(); err != nil {
		// WorkerGroup aggregates worker errors; an interrupt must come
		// back out as itself so the caller can redeliver the signal.
		var merr multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr {
				if i, ok := asInterrupted(e); ok {
					return i
				}
			}
		}
		return err
	}

	for _, name := range filters.Unused() {
		schedPlog.Warningf("filter %q did not match any test case", name)
		anyBad = true
	}

	if anyBad {
		return ErrRunFailed
	}
	return nil
}

func asInterrupted(err error) (*Interrupted, bool) {
	var i *Interrupted
	if errors.As(err, &i) {
		return i, true
	}
	return nil, false
}

func (s *Scheduler) runProgram(ctx context.Context, prog TestProgramRef, filters *FilterSet) (bool, error) {
	adapter, ok := s.Adapters[prog.Interface]
	if !ok {
		id := TestCaseId{Program: prog.BinaryPath, Name: "__test_cases_list__"}
		_ = s.Sink.RecordResult(prog, id, BrokenResult(fmt.Sprintf("no adapter registered for interface %q", prog.Interface)), time.Now(), time.Now(), "", "")
		return true, nil
	}

	listing, err := adapter.List(ctx, s.Executor, prog)
	if err != nil {
		if interrupted, ok := asInterrupted(err); ok {
			return true, interrupted
		}
		id := TestCaseId{Program: prog.BinaryPath, Name: "__test_cases_list__"}
		_ = s.Sink.RecordResult(prog, id, BrokenResult(err.Error()), time.Now(), time.Now(), "", "")
		return true, nil
	}

	anyBad := false
	for _, c := range listing {
		if !filters.MatchesCase(prog.BinaryPath, c.Id.Name) {
			continue
		}
		start := time.Now()
		result, exitHandle, err := s.runCase(ctx, adapter, prog, c)
		if err != nil {
			if exitHandle != nil {
				_ = exitHandle.Cleanup()
			}
			return anyBad, err
		}
		end := time.Now()
		var stdoutPath, stderrPath string
		if exitHandle != nil {
			start, end = exitHandle.StartTime(), exitHandle.EndTime()
			stdoutPath, stderrPath = exitHandle.StdoutFile(), exitHandle.StderrFile()
		}
		if !result.Good() {
			anyBad = true
		}
		// Persist before releasing the scratch directory so the sink
		// can still read the captured stdout/stderr files.
		recordErr := s.Sink.RecordResult(prog, c.Id, result, start, end, stdoutPath, stderrPath)
		if exitHandle != nil {
			if err := exitHandle.Cleanup(); err != nil {
				schedPlog.Warningf("cleaning up after %s: %v", c.Id, err)
			}
		}
		if recordErr != nil {
			return anyBad, recordErr
		}
	}
	return anyBad, nil
}

// runCase executes one case's body (and cleanup phase, if any) and
// returns its result together with the body's ExitHandle, still
// uncleaned so the caller can persist the captured output paths
// first. The handle is nil when nothing was spawned (a skip, or a
// spawn failure already folded into the result).
func (s *Scheduler) runCase(ctx context.Context, adapter Adapter, prog TestProgramRef, c CaseListing) (CanonicalResult, *ExitHandle, error) {
	if reason, skip := s.evaluateSkip(c.Metadata); skip {
		return SkippedResult(reason), nil, nil
	}

	handle, err := adapter.ExecTest(ctx, s.Executor, prog, c.Id.Name, c.Metadata)
	if err != nil {
		if i, ok := asInterrupted(err); ok {
			return CanonicalResult{}, nil, i
		}
		return BrokenResult(err.Error()), nil, nil
	}
	exitHandle, err := s.Executor.Wait(handle)
	if err != nil {
		return BrokenResult(err.Error()), nil, nil
	}

	result, err := adapter.ComputeResult(exitHandle)
	if err != nil {
		result = BrokenResult(err.Error())
	}

	if cleanupAdapter, ok := adapter.(CleanupAdapter); ok && c.Metadata.HasCleanup() {
		result = s.runCleanup(ctx, cleanupAdapter, prog, c, exitHandle, result)
	}

	return result, exitHandle, nil
}

// runCleanup folds the result of a case's cleanup phase into the body
// result: a cleanup failure downgrades a Passed body to Broken;
// otherwise the body result wins regardless of the cleanup's outcome.
func (s *Scheduler) runCleanup(ctx context.Context, adapter CleanupAdapter, prog TestProgramRef, c CaseListing, base *ExitHandle, body CanonicalResult) CanonicalResult {
	handle, err := adapter.ExecCleanup(ctx, s.Executor, base, prog, c.Id.Name, c.Metadata)
	if err != nil {
		if body.Kind != Passed {
			return body
		}
		return BrokenResult(fmt.Sprintf("cleanup failed to start: %v", err))
	}
	exitHandle, err := s.Executor.Wait(handle)
	if err != nil {
		if body.Kind != Passed {
			return body
		}
		return BrokenResult(fmt.Sprintf("cleanup failed: %v", err))
	}
	defer exitHandle.Cleanup()

	cleanupOK := exitHandle.Status() != nil && exitHandle.Status().Exited() && exitHandle.Status().ExitCode() == 0
	if !cleanupOK && body.Kind == Passed {
		return BrokenResult("cleanup part of the test case body failed")
	}
	return body
}

func (s *Scheduler) evaluateSkip(m Metadata) (string, bool) {
	if m.RequiredUserKind() == RequireRoot && s.Runtime.CurrentUser != RequireRoot {
		return "requires root privileges", true
	}
	if m.RequiredUserKind() == RequireUnprivileged && s.Runtime.CurrentUser == RequireRoot {
		return "requires an unprivileged user", true
	}
	if !m.AllowsArchitecture(s.Runtime.Architecture) {
		return fmt.Sprintf("unsupported architecture %q", s.Runtime.Architecture), true
	}
	if !m.AllowsPlatform(s.Runtime.Platform) {
		return fmt.Sprintf("unsupported platform %q", s.Runtime.Platform), true
	}
	for _, prog := range m.RequiredPrograms() {
		if !s.hasProgram(prog) {
			return fmt.Sprintf("required program %q not found", prog), true
		}
	}
	for _, f := range m.RequiredFiles() {
		if !fileExists(f) {
			return fmt.Sprintf("required file %q not found", f), true
		}
	}
	for _, cfg := range m.RequiredConfigs() {
		if _, ok := s.Runtime.DefinedConfigs[cfg]; !ok {
			return fmt.Sprintf("required config %q not defined", cfg), true
		}
	}
	if m.RequiredMemory() > 0 && s.Runtime.AvailableMemory > 0 && m.RequiredMemory() > s.Runtime.AvailableMemory {
		return "not enough memory available", true
	}
	return "", false
}

func (s *Scheduler) hasProgram(name string) bool {
	if filepath.IsAbs(name) {
		return fileExists(name)
	}
	if s.Runtime.AvailablePrograms != nil {
		if _, ok := s.Runtime.AvailablePrograms[name]; ok {
			return true
		}
	}
	_, err := exec.LookPath(name)
	return err == nil
}
