package runner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/loomrun/loom/internal/backend"
	"github.com/loomrun/loom/internal/cmdrun"
	"github.com/loomrun/loom/internal/errtax"
)

// Worker wraps one manifest-declared worker's backend with the lazy
// setup/teardown lifecycle the taskset scheduler drives: an engine is
// only provisioned the first time a layer actually targets it, and only
// torn down once, on Clean.
//
// Grounded on original_source/src/worker.rs's Worker::ensure_setup/
// ensure_remove.
type Worker struct {
	Name    string
	Backend *backend.Backend

	mu       sync.Mutex
	didSetup bool
	workdir  string
}

// NewWorker builds a Worker bound to engine under name, not yet set up.
func NewWorker(name string, engine backend.Engine, logger *slog.Logger) *Worker {
	return &Worker{Name: name, Backend: backend.New(name, engine, logger)}
}

// EnsureSetup provisions the worker's engine exactly once. A second call
// (from another layer, or another task in the same layer) is a no-op.
// After Setup succeeds it records the worker's workdir path by echoing
// ${TMPDIR:-${TMP:-/tmp}}/lineup through the worker's shell, failing with
// errtax.WorkerSetupFailed if that command does not succeed; the
// directory itself is neither created nor checked for writability.
func (w *Worker) EnsureSetup(ctx context.Context, action *backend.ExistsAction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.didSetup {
		return nil
	}

	act := backend.ExistsIgnore
	if action != nil {
		act = *action
	}
	if err := w.Backend.Setup(ctx, act); err != nil {
		return err
	}

	out, err := w.Backend.Shell(ctx, "echo ${TMPDIR:-${TMP:-/tmp}}/lineup", cmdrun.CmdParams{Result: cmdrun.ResultStdout})
	if err != nil {
		return errtax.WorkerSetupFailed(w.Name)
	}
	w.workdir, _ = out.(string)
	w.didSetup = true
	return nil
}

// EnsureRemove tears the worker down if it was ever set up. A no-op
// otherwise (matching ensure_remove's setup-guarded teardown).
func (w *Worker) EnsureRemove(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.didSetup {
		return nil
	}
	if err := w.Backend.Remove(ctx); err != nil {
		return err
	}
	w.didSetup = false
	return nil
}

// Renamed returns a fresh, not-yet-set-up Worker bound to the same
// engine under a new name — used by RunTaskset's worker-rename selector
// (spec §4.6's run-taskset `workers_names` / rename form).
func (w *Worker) Renamed(name string) *Worker {
	return NewWorker(name, w.Backend.Engine, w.Backend.Logger)
}
