// Package taskline implements the taskline interpreter (spec §4.7):
// sequential composition of tasks, lazy {file, name} module resolution,
// the `taskline` context-key stamping Break targets against, and
// result/vars threading between steps.
//
// Grounded on original_source/src/taskline.rs (the Taskline sum type)
// and the RunTaskline arm of src/task_type.rs's TaskType::run, which
// contains the actual lazy-resolution loop (task_type.rs combines what
// this module's package layout splits into internal/task + internal/
// expander + internal/taskline).
package taskline

import (
	"context"
	"fmt"

	"github.com/loomrun/loom/internal/errtax"
	"github.com/loomrun/loom/internal/expander"
	"github.com/loomrun/loom/internal/result"
	"github.com/loomrun/loom/internal/task"
)

// Elem is one taskline step: a name (filled into an empty Config.Name,
// so it shows in the step's log lines) paired with its full expander
// configuration and leaf task.
type Elem struct {
	Name   string
	Config *expander.Config
	Leaf   *task.Task
}

// Kind tags which Taskline variant is populated.
type Kind string

const (
	KindLine Kind = "line"
	KindFile Kind = "file"
)

// Taskline is either a literal sequence of steps or a lazy reference
// to a named taskline in another manifest.
type Taskline struct {
	Kind Kind
	Line []Elem

	File string
	Name string
}

// IsLine reports whether t is already resolved to a literal sequence.
func (t Taskline) IsLine() bool { return t.Kind == KindLine }

// Manifest is the subset of a loaded manifest the interpreter needs
// when resolving a {file, name} reference. Declared locally (rather
// than importing internal/manifest) to avoid a dependency cycle:
// internal/manifest itself imports internal/taskline.
type Manifest struct {
	Dir       string
	Vars      map[string]any // the referenced manifest's own vars context
	Tasklines map[string]Taskline
}

// Loader loads the manifest at path, rendering its vars against the
// given context (spec §4.10's "use" units and §4.7's module load are
// both backed by the same manifest-loading entry point).
type Loader interface {
	LoadManifest(path string, ctx map[string]any) (*Manifest, error)
}

// Renderer renders a template string against a context.
type Renderer interface {
	Render(tmplText string, ctx map[string]any) (string, error)
}

// ModuleResolver resolves a module path against a base directory.
type ModuleResolver interface {
	Resolve(modulePath, callerDir string) (string, error)
}

// Interpreter runs tasklines, resolving {file, name} references lazily
// and dispatching each step through internal/expander.
type Interpreter struct {
	Tasklines map[string]Taskline // the current manifest's own tasklines
	Dir       string              // the current manifest's base directory
	Loader    Loader
	Resolver  ModuleResolver
	Renderer  Renderer
	Deps      expander.Deps // threaded through to every step's Expand call
}

var _ task.TasklineRunner = (*Interpreter)(nil)

// RunTaskline implements task.TasklineRunner: resolves name (optionally
// via modulePath) to a literal sequence and runs it to completion,
// returning the last step's Result (or an inner taskline's Break
// target, unwrapped if it names this taskline).
func (in *Interpreter) RunTaskline(ctx context.Context, tmplCtx map[string]any, name, modulePath string) (*result.Result, error) {
	dir := in.Dir
	tasklines := in.Tasklines
	workCtx := tmplCtx

	var tl Taskline
	taskFile := ""

	if modulePath == "" {
		found, ok := tasklines[name]
		if !ok {
			return nil, errtax.BadTaskline(name, "")
		}
		tl = found
	} else {
		file, err := in.Resolver.Resolve(modulePath, dir)
		if err != nil {
			return nil, fmt.Errorf("resolve taskline module %s: %w", modulePath, err)
		}
		taskFile = file
		tl = Taskline{Kind: KindFile, File: file, Name: name}
	}

	for !tl.IsLine() {
		if tl.Kind != KindFile {
			return nil, fmt.Errorf("taskline: unresolved reference with kind %q", tl.Kind)
		}
		manifest, err := in.Loader.LoadManifest(tl.File, workCtx)
		if err != nil {
			return nil, fmt.Errorf("load taskline module %s: %w", tl.File, err)
		}
		dir = manifest.Dir
		tasklines = manifest.Tasklines
		workCtx = mergeContext(manifest.Vars, workCtx)

		next, ok := tasklines[tl.Name]
		if !ok {
			return nil, errtax.BadTaskline(tl.Name, tl.File)
		}
		tl = next
	}

	taskFileStr := taskFile
	taskName := name
	var taskline string
	switch {
	case taskFileStr == "":
		taskline = taskName
	case taskName == "":
		taskline = taskFileStr
	default:
		taskline = taskFileStr + ":" + taskName
	}
	workCtx = cloneCtx(workCtx)
	workCtx["taskline"] = taskline

	var value any
	for i, elem := range tl.Line {
		r, err := expander.Expand(ctx, elemConfig(elem, dir), elem.Leaf, workCtx, withDir(in.Deps, dir))
		if err != nil {
			return nil, fmt.Errorf("taskline `%s`, number %d: %w", taskline, i, err)
		}

		if !r.IsException() {
			if vars, ok := r.AsContext(); ok {
				for k, v := range vars {
					workCtx[k] = v
				}
			}
			value = r.Value
			workCtx["result"] = value
			continue
		}

		exc := r.Exception
		target := exc.Taskline
		if target == "" {
			target = taskline
		}
		if target == taskline {
			return result.FromValue(exc.Result), nil
		}
		return r, nil
	}

	return result.FromValue(value), nil
}

func elemConfig(elem Elem, dir string) *expander.Config {
	cfg := elem.Config
	if cfg == nil {
		cfg = &expander.Config{}
	}
	if cfg.Name == "" {
		cfg.Name = elem.Name
	}
	return cfg
}

func withDir(d expander.Deps, dir string) expander.Deps {
	d.Dir = dir
	return d
}

func mergeContext(manifestVars, existing map[string]any) map[string]any {
	out := make(map[string]any, len(manifestVars)+len(existing))
	for k, v := range manifestVars {
		out[k] = v
	}
	for k, v := range existing {
		out[k] = v
	}
	return out
}

func cloneCtx(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		out[k] = v
	}
	return out
}
