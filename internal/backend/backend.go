// Package backend implements the worker backend abstraction (spec
// §4.4): a small family of engines that each know how to
// setup/remove/copy/get/shell/exec against one kind of worker (a bare
// host, a container runtime, or a debug stub), plus the shared Backend
// wrapper that runs an Engine's argv through a cmdrun.Runner.
//
// Grounded on original_source/src/engine/{mod,base,host,dbg,docker,podman}.rs:
// an EngineBase common to every variant, an ExistsAction enum
// governing setup-time collision handling, and per-engine shell_cmd
// methods that return the local argv needed to run a command inside
// that worker (e.g. `docker exec -i <name> sh -c <command>`).
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/loomrun/loom/internal/cmdrun"
	"github.com/loomrun/loom/internal/errtax"
	"github.com/loomrun/loom/internal/quote"
	"github.com/loomrun/loom/pkg/storage"
)

// ExistsAction governs what setup does when a named worker resource
// already exists.
type ExistsAction string

const (
	ExistsFail    ExistsAction = "fail"
	ExistsIgnore  ExistsAction = "ignore" // default
	ExistsReplace ExistsAction = "replace"
)

// EngineBase holds the fields every engine variant shares.
type EngineBase struct {
	Name  string // overrides the worker's manifest name when talking to the engine
	Setup bool   // if false, Setup/Remove are no-ops (spec §4.4)
}

// DefaultEngineBase matches the original's default_engine_base_setup: true.
func DefaultEngineBase() EngineBase { return EngineBase{Setup: true} }

// resolvedName returns base.Name if set, else the worker's manifest name.
func (b EngineBase) resolvedName(name string) string {
	if b.Name != "" {
		return b.Name
	}
	return name
}

// Engine is the contract every backend variant implements (spec §4.4).
type Engine interface {
	Base() EngineBase

	// Setup provisions the worker (starting/creating it) per action,
	// which overrides the engine's own configured ExistsAction when
	// non-empty. Backend.Setup skips the call when Base().Setup is false.
	Setup(ctx context.Context, name string, action ExistsAction) error

	// Remove tears the worker down. Backend.Remove skips the call when
	// Base().Setup is false; it is a no-op for engines with no managed
	// lifecycle (Host).
	Remove(ctx context.Context, name string) error

	// Copy uploads a local file to dst inside the worker.
	Copy(ctx context.Context, name, src, dst string) error

	// Get downloads a file at src inside the worker to a local dst.
	Get(ctx context.Context, name, src, dst string) error

	// ShellArgv returns the local argv that, when run, executes
	// command inside the worker via its shell (sh -c).
	ShellArgv(name, command string) []string

	// ExecArgv returns the local argv for a direct (non-shell) exec of
	// args inside the worker, when the engine has a native form.
	// Engines without one realize exec via ShellArgv(quote(args)).
	ExecArgv(name string, args []string) []string

	// Special performs a backend-specific action outside the normal
	// command path (spec §4.6's Special task; currently only
	// "restart"). Returns an *errtax.Error of kind
	// UnsupportedSpecialTask if this engine has no such action.
	Special(ctx context.Context, name, kind string) error
}

const SpecialRestart = "restart"

// Backend binds an Engine to one worker name, runs the Engine's argv
// through a cmdrun.Runner, and adapts it to the narrow ShellRunner
// interfaces (items.ShellRunner, table.ShellRunner) the rest of loom
// depends on.
type Backend struct {
	WorkerName string
	Engine     Engine
	Logger     *slog.Logger

	runner cmdrun.Runner // overridable for tests; defaults to cmdrun.OSRunner{}
}

// New returns a Backend that runs commands via the real OS process
// launcher.
func New(workerName string, engine Engine, logger *slog.Logger) *Backend {
	return &Backend{WorkerName: workerName, Engine: engine, Logger: logger, runner: cmdrun.OSRunner{}}
}

func (b *Backend) runnerOrDefault() cmdrun.Runner {
	if b.runner != nil {
		return b.runner
	}
	return cmdrun.OSRunner{}
}

// Setup provisions the worker, honoring Engine.Base().Setup.
func (b *Backend) Setup(ctx context.Context, action ExistsAction) error {
	if !b.Engine.Base().Setup {
		return nil
	}
	return b.Engine.Setup(ctx, b.WorkerName, action)
}

// Remove tears the worker down, honoring Engine.Base().Setup.
func (b *Backend) Remove(ctx context.Context) error {
	if !b.Engine.Base().Setup {
		return nil
	}
	return b.Engine.Remove(ctx, b.WorkerName)
}

// Copy uploads src (local) to dst inside the worker. When dst (or src)
// names an s3:// or http(s):// URL, the transfer goes through
// pkg/storage instead of the engine — a remote artifact store, not the
// worker, is the real destination.
func (b *Backend) Copy(ctx context.Context, src, dst string) error {
	start := time.Now()
	if handled, err := storage.Transfer(ctx, src, dst); handled {
		b.logTransfer("copy", src, dst, start, err)
		return err
	}
	err := b.Engine.Copy(ctx, b.WorkerName, src, dst)
	b.logTransfer("copy", src, dst, start, err)
	return err
}

// Get downloads src inside the worker to dst (local), or from a remote
// s3://, http:// or https:// URL when src names one.
func (b *Backend) Get(ctx context.Context, src, dst string) error {
	start := time.Now()
	if handled, err := storage.Transfer(ctx, src, dst); handled {
		b.logTransfer("get", src, dst, start, err)
		return err
	}
	err := b.Engine.Get(ctx, b.WorkerName, src, dst)
	b.logTransfer("get", src, dst, start, err)
	return err
}

// logTransfer reports a file task's size and rate in human-readable form
// (spec §4.6's file/get tasks). After a successful transfer it stats dst
// on the local filesystem and logs nothing more if that stat fails; a
// failed transfer is logged without size or rate.
func (b *Backend) logTransfer(op, src, dst string, start time.Time, err error) {
	if b.Logger == nil {
		return
	}
	if err != nil {
		b.Logger.Debug(op+" failed", "worker", b.WorkerName, "src", src, "dst", dst, "error", err)
		return
	}
	info, statErr := os.Stat(dst)
	if statErr != nil {
		return
	}
	elapsed := time.Since(start)
	rate := "n/a"
	if elapsed > 0 {
		bps := float64(info.Size()) / elapsed.Seconds()
		rate = humanize.Bytes(uint64(bps)) + "/s"
	}
	b.Logger.Debug(op+" finished", "worker", b.WorkerName, "size", humanize.Bytes(uint64(info.Size())), "rate", rate, "elapsed", elapsed)
}

// Shell runs a single command string inside the worker via the
// command runner, classifying success per cmdrun.CmdParams.
func (b *Backend) Shell(ctx context.Context, command string, params cmdrun.CmdParams) (any, error) {
	argv := b.Engine.ShellArgv(b.WorkerName, command)
	return cmdrun.Run(ctx, b.runnerOrDefault(), argv, params, b.Logger)
}

// Exec runs args inside the worker. Per spec §4.4, exec MUST be
// semantically equivalent to shell(quote(argv)); engines with a native
// exec form may still realize it directly via ExecArgv, but the
// observable behavior (and failure/result shaping) is identical either
// way since both paths funnel through cmdrun.Run.
func (b *Backend) Exec(ctx context.Context, args []string, params cmdrun.CmdParams) (any, error) {
	native := b.Engine.ExecArgv(b.WorkerName, args)
	if native != nil {
		return cmdrun.Run(ctx, b.runnerOrDefault(), native, params, b.Logger)
	}
	quoted, err := quote.QuoteJoin(args, " ")
	if err != nil {
		return nil, err
	}
	return b.Shell(ctx, quoted, params)
}

// Special performs a backend-specific special action (spec §4.6). If
// the engine does not support kind and ignoreUnsupported is true, the
// error is swallowed rather than propagated.
func (b *Backend) Special(ctx context.Context, kind string, ignoreUnsupported bool) error {
	err := b.Engine.Special(ctx, b.WorkerName, kind)
	if err == nil {
		return nil
	}
	if ignoreUnsupported {
		if e, ok := err.(*errtax.Error); ok && e.Kind == errtax.KindUnsupportedSpecialTask {
			return nil
		}
	}
	return err
}

// RunShell adapts Shell to the narrow ShellRunner interfaces
// internal/items and internal/table declare locally: run a command,
// return only its captured stdout.
func (b *Backend) RunShell(command string) (string, error) {
	result, err := b.Shell(context.Background(), command, cmdrun.CmdParams{Result: cmdrun.ResultStdout})
	if err != nil {
		return "", err
	}
	s, _ := result.(string)
	return s, nil
}

// runLocal launches argv as a local process and returns its stdout,
// for engine lifecycle commands (docker start, cp, ...) that are
// always issued from the host regardless of which engine is in play.
func runLocal(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("backend: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %w (stderr: %s)", argv[0], err, string(exitErr.Stderr))
		}
		return string(out), err
	}
	return string(out), nil
}

// runLocalOK reports whether argv, run locally, exits zero, without
// surfacing an error for a non-zero exit — used for existence checks
// like `docker container inspect`.
func runLocalOK(ctx context.Context, argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	return cmd.Run() == nil
}
