// Package manifest loads a loom manifest document and resolves it into
// the runtime graph internal/runner schedules: vars, workers, the
// taskset DAG, and the tasklines a module exposes.
//
// Grounded on original_source/src/manifest.rs (the Manifest/Workers/
// Taskset/TasklineElem schema) and src/runner.rs's Runner::from_manifest
// (the vars/use/workers resolution order). Manifest documents are TOML,
// not YAML: runner.rs's own loader calls toml::from_str on the manifest
// text, and this module follows that. Only the engine kinds internal/backend implements (host,
// debug, docker, podman) are schema-supported; manifest.rs's vml/ssh/
// incus engine variants have no backend in this repo to construct, so
// the `engine.kind` discriminator rejects them with a clear error
// rather than silently accepting unimplementable config.
package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"time"

	"github.com/BurntSushi/toml"

	"github.com/loomrun/loom/internal/backend"
	"github.com/loomrun/loom/internal/cmdrun"
	"github.com/loomrun/loom/internal/errtax"
	"github.com/loomrun/loom/internal/expander"
	"github.com/loomrun/loom/internal/items"
	"github.com/loomrun/loom/internal/module"
	"github.com/loomrun/loom/internal/table"
	"github.com/loomrun/loom/internal/task"
	"github.com/loomrun/loom/internal/taskline"
	"github.com/loomrun/loom/internal/vars"
)

// Ext is the on-disk extension loom manifests use.
const Ext = module.ManifestExt

// --- wire-level document shape (what toml.Decode fills in) ---

type itemsDoc struct {
	Kind    string `toml:"kind"`
	Words   []any  `toml:"words"`
	Start   string `toml:"start"`
	End     string `toml:"end"`
	Step    string `toml:"step"`
	Command string `toml:"command"`
	JSON    any    `toml:"json"`
	VarName string `toml:"var"`
}

func (d *itemsDoc) build() *items.Items {
	if d == nil || d.Kind == "" {
		return nil
	}
	return &items.Items{
		Kind:    items.Kind(d.Kind),
		Words:   d.Words,
		Start:   d.Start,
		End:     d.End,
		Step:    d.Step,
		Command: d.Command,
		JSON:    d.JSON,
		VarName: d.VarName,
	}
}

type tableDoc struct {
	Kind    string           `toml:"kind"`
	Maps    []map[string]any `toml:"maps"`
	Command string           `toml:"command"`
	Format  string           `toml:"format"`
}

func (d *tableDoc) build() *table.Table {
	if d == nil || d.Kind == "" {
		return nil
	}
	return &table.Table{
		Kind:    table.Kind(d.Kind),
		Maps:    d.Maps,
		Command: d.Command,
		Format:  table.Format(d.Format),
	}
}

// engineDoc is a flat, kind-discriminated engine declaration. Go's TOML
// decoder has no equivalent of serde's untagged-enum field sniffing, so
// authors pick the engine with an explicit `kind`, the way the teacher's
// own manifest-shaped configs (open-platform-model-cli) discriminate
// variant structs.
type engineDoc struct {
	Kind   string `toml:"kind"`
	Name   string `toml:"name"`
	Setup  *bool  `toml:"setup"`
	Image  string `toml:"image"`
	Memory string `toml:"memory"`
	Load   string `toml:"load"`
	Pod    string `toml:"pod"`
	User   string `toml:"user"`
	Exists string `toml:"exists"`
}

func (d *engineDoc) base() backend.EngineBase {
	b := backend.DefaultEngineBase()
	b.Name = d.Name
	if d.Setup != nil {
		b.Setup = *d.Setup
	}
	return b
}

func (d *engineDoc) build() (backend.Engine, error) {
	if d == nil {
		return nil, nil
	}
	switch d.Kind {
	case "host", "":
		return backend.NewHostEngine(), nil
	case "debug", "dbg":
		return backend.NewDebugEngine(), nil
	case "docker":
		e := backend.NewDockerEngine(d.Image)
		e.EngineBase = d.base()
		e.Memory, e.Load, e.User = d.Memory, d.Load, d.User
		if d.Exists != "" {
			e.Exists = backend.ExistsAction(d.Exists)
		}
		return e, nil
	case "podman":
		e := backend.NewPodmanEngine(d.Image)
		e.EngineBase = d.base()
		e.Memory, e.Load, e.Pod, e.User = d.Memory, d.Load, d.Pod, d.User
		if d.Exists != "" {
			e.Exists = backend.ExistsAction(d.Exists)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("manifest: engine kind %q is not implemented by this backend (vml/ssh/incus have no Go engine yet)", d.Kind)
	}
}

type workerDoc struct {
	Items       *itemsDoc  `toml:"items"`
	TableByItem *tableDoc  `toml:"table_by_item"`
	TableByName *tableDoc  `toml:"table_by_name"`
	Engine      *engineDoc `toml:"engine"`
}

type defaultWorkerDoc struct {
	Items       *itemsDoc  `toml:"items"`
	TableByItem *tableDoc  `toml:"table_by_item"`
	Engine      *engineDoc `toml:"engine"`
}

type defaultsDoc struct {
	Worker defaultWorkerDoc `toml:"worker"`
}

type useUnitDoc struct {
	Module string   `toml:"module"`
	Prefix string   `toml:"prefix"`
	Items  []string `toml:"items"`
}

func (d useUnitDoc) build() module.UseUnit {
	return module.UseUnit{Module: d.Module, Prefix: d.Prefix, Items: d.Items}
}

type useDoc struct {
	Vars      []useUnitDoc `toml:"vars"`
	Tasklines []useUnitDoc `toml:"tasklines"`
}

// taskDoc is one task declaration: the expander.Config fields (table,
// condition, vars, items_table, parallel, try, export_vars,
// result_fs_var) flattened together with the leaf task_type fields,
// discriminated by `type`, mirroring task.rs's Task struct (which
// flattens TaskItemsTable and TaskType onto itself the same way).
type taskDoc struct {
	Type string `toml:"type"`

	Table       *tableDoc      `toml:"table"`
	Condition   string         `toml:"condition"`
	CleanVars   bool           `toml:"clean_vars"`
	Parallel    *bool          `toml:"parallel"`
	ResultFsVar string         `toml:"result_fs_var"`
	Vars        map[string]any `toml:"vars"`
	ExportVars  []string       `toml:"export_vars"`

	Items       *itemsDoc `toml:"items"`
	ItemsVar    string    `toml:"items_var"`
	TableByItem *tableDoc `toml:"table_by_item"`

	Try *tryDoc `toml:"try"`

	// Break
	BreakTaskline string `toml:"break_taskline"`
	BreakResult   any    `toml:"break_result"`

	// Debug/Trace/Info/Warn
	Msg       string `toml:"msg"`
	MsgResult any    `toml:"result"`

	// Dummy
	DummyResult any `toml:"dummy_result"`

	// Ensure
	Ensure []string `toml:"ensure"`

	// Error
	ErrorMsg   string `toml:"error"`
	ErrorCode  int    `toml:"code"`
	ErrorTrace bool   `toml:"trace"`

	// Exec/Shell
	Shell        string   `toml:"shell"`
	Exec         []string `toml:"exec"`
	Check        *bool    `toml:"check"`
	SuccessCodes []int    `toml:"success_codes"`

	// File
	FileDst     string `toml:"dst"`
	FileSrc     string `toml:"src"`
	FileContent string `toml:"content"`
	Chown       string `toml:"chown"`
	Chmod       string `toml:"chmod"`

	// Get
	GetDst string `toml:"get_dst"`

	// Run / RunTaskline
	Run         string `toml:"run"`
	RunTaskline string `toml:"run_taskline"`
	ModulePath  string `toml:"module"`

	// RunTaskset
	RunTaskset   string   `toml:"run_taskset"`
	TasksetNames []string `toml:"workers_names"`

	// Special
	Special           string `toml:"special"`
	IgnoreUnsupported bool   `toml:"ignore_unsupported"`

	// Test
	Test []testCmdDoc `toml:"test"`
}

type tryDoc struct {
	Attempts int      `toml:"attempts"`
	Sleep    string   `toml:"sleep"`
	Cleanup  *taskDoc `toml:"cleanup"`
}

type testCmdDoc struct {
	Shell string   `toml:"shell"`
	Exec  []string `toml:"exec"`
}

// TasksetElem is one scheduled node: its dependency/worker-selection
// metadata plus the task it runs.
type TasksetElem struct {
	Requires []string
	Workers  []string
	Config   *expander.Config
	Leaf     *task.Task
}

type tasksetElemDoc struct {
	taskDoc
	Requires []string `toml:"requires"`
	Workers  []string `toml:"workers"`
}

type tasklineElemDoc struct {
	Name string `toml:"name"`
	taskDoc
}

type document struct {
	Vars      map[string]any               `toml:"vars"`
	Use       useDoc                       `toml:"use"`
	Default   defaultsDoc                  `toml:"default"`
	Workers   map[string]workerDoc         `toml:"workers"`
	Taskset   map[string]tasksetElemDoc    `toml:"taskset"`
	Taskline  []tasklineElemDoc            `toml:"taskline"`
	Tasklines map[string][]tasklineElemDoc `toml:"tasklines"`
}

// --- resolved runtime shape ---

// WorkerSpec is one resolved worker: a name and the engine it talks to.
type WorkerSpec struct {
	Name   string
	Engine backend.Engine
}

// Manifest is a fully resolved document: vars already ordered (not yet
// rendered — rendering happens once, against extra-vars, at Runner
// construction), workers, the taskset graph, and every taskline the
// manifest exposes directly or re-exports via `use`.
type Manifest struct {
	Dir       string
	Vars      *vars.Vars
	Workers   []WorkerSpec
	Taskset   map[string]TasksetElem
	Tasklines map[string]taskline.Taskline
}

// Resolver adapts internal/module's free Resolve function to the
// taskline.ModuleResolver interface the taskline interpreter and runner
// depend on.
type Resolver struct{}

func (Resolver) Resolve(modulePath, callerDir string) (string, error) {
	return module.Resolve(modulePath, callerDir)
}

// Loader reads and resolves manifest documents from disk, rendering
// `use` imports against ctx as it goes. It implements
// internal/taskline.Loader so the taskline interpreter can follow
// {file, name} references without importing this package back.
type Loader struct {
	Renderer taskline.Renderer
	Shell    expander.ShellRunner
	Logger   *slog.Logger

	// resolved caches manifests already parsed this run, keyed by the
	// path exactly as passed to Parse, so a module `use`d from several places is only
	// read and parsed once.
	resolved map[string]*Manifest
}

func NewLoader(r taskline.Renderer, shell expander.ShellRunner, logger *slog.Logger) *Loader {
	return &Loader{Renderer: r, Shell: shell, Logger: logger, resolved: map[string]*Manifest{}}
}

// Parse decodes the TOML bytes at path into a document and resolves it
// (vars, use imports, workers, taskset, tasklines) against ctx.
func (l *Loader) Parse(path string, ctx map[string]any) (*Manifest, error) {
	if m, ok := l.resolved[path]; ok {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errtax.BadManifest(path)
	}

	var doc document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	m, err := l.resolve(dir, &doc, ctx)
	if err != nil {
		return nil, err
	}
	l.resolved[path] = m
	return m, nil
}

func (l *Loader) resolve(dir string, doc *document, ctx map[string]any) (*Manifest, error) {
	ownVars, err := docVars(doc.Vars)
	if err != nil {
		return nil, err
	}

	merged := vars.NewVars()
	for _, u := range doc.Use.Vars {
		unit := u.build()
		modPath, err := module.Resolve(unit.Module, dir)
		if err != nil {
			return nil, err
		}
		used, err := l.Parse(modPath, ctx)
		if err != nil {
			return nil, fmt.Errorf("use vars from %s: %w", unit.Module, err)
		}
		flatUsed, err := renderVarsOnce(used.Vars, ctx)
		if err != nil {
			return nil, err
		}
		filtered, err := module.FilterVars(unit, flatUsed)
		if err != nil {
			return nil, err
		}
		for k, v := range filtered {
			merged.Set(&vars.Var{Name: k, Kind: vars.KindRaw}, v)
		}
	}
	for _, name := range ownVars.order() {
		v, raw := ownVars.get(name)
		merged.Set(v, raw)
	}

	tasklines := map[string]taskline.Taskline{}
	for _, u := range doc.Use.Tasklines {
		unit := u.build()
		modPath, err := module.Resolve(unit.Module, dir)
		if err != nil {
			return nil, err
		}
		used, err := l.Parse(modPath, ctx)
		if err != nil {
			return nil, fmt.Errorf("use tasklines from %s: %w", unit.Module, err)
		}
		usedAsAny := make(map[string]any, len(used.Tasklines))
		for k, v := range used.Tasklines {
			usedAsAny[k] = v
		}
		filtered, err := module.FilterTasklines(unit, usedAsAny)
		if err != nil {
			return nil, err
		}
		for k, v := range filtered {
			tasklines[k] = v.(taskline.Taskline)
		}
	}

	for name, elems := range doc.Tasklines {
		line, err := buildLine(elems)
		if err != nil {
			return nil, fmt.Errorf("tasklines.%s: %w", name, err)
		}
		tasklines[name] = taskline.Taskline{Kind: taskline.KindLine, Line: line}
	}
	if len(doc.Taskline) > 0 {
		line, err := buildLine(doc.Taskline)
		if err != nil {
			return nil, fmt.Errorf("taskline: %w", err)
		}
		tasklines[""] = taskline.Taskline{Kind: taskline.KindLine, Line: line}
	}

	workers, err := buildWorkers(doc.Workers, doc.Default.Worker)
	if err != nil {
		return nil, err
	}

	taskset := map[string]TasksetElem{}
	for name, elemDoc := range doc.Taskset {
		cfg, leaf, err := elemDoc.taskDoc.build(name)
		if err != nil {
			return nil, fmt.Errorf("taskset.%s: %w", name, err)
		}
		requires := elemDoc.Requires
		wk := elemDoc.Workers
		if len(wk) == 0 {
			wk = []string{".*"}
		}
		taskset[name] = TasksetElem{Requires: requires, Workers: wk, Config: cfg, Leaf: leaf}
	}
	if len(taskset) == 0 {
		cfg := &expander.Config{Name: "Run taskline", Parallel: true}
		leaf := &task.Task{Kind: task.KindRunTaskline, TasklineName: ""}
		taskset["Run taskline"] = TasksetElem{Workers: []string{".*"}, Config: cfg, Leaf: leaf}
	}

	return &Manifest{Dir: dir, Vars: merged, Workers: workers, Taskset: taskset, Tasklines: tasklines}, nil
}

// LoadManifest implements taskline.Loader.
func (l *Loader) LoadManifest(path string, ctx map[string]any) (*taskline.Manifest, error) {
	m, err := l.Parse(path, ctx)
	if err != nil {
		return nil, err
	}
	flat, err := renderVarsOnce(m.Vars, ctx)
	if err != nil {
		return nil, err
	}
	return &taskline.Manifest{Dir: m.Dir, Vars: flat, Tasklines: m.Tasklines}, nil
}

func renderVarsOnce(vs *vars.Vars, ctx map[string]any) (map[string]any, error) {
	if vs == nil || vs.Len() == 0 {
		return map[string]any{}, nil
	}
	return vs.Render(ctx, identityRenderer{}, nil)
}

// identityRenderer is used when rendering a `use`d manifest's vars for
// filtering purposes only: module.FilterVars operates on already
// concrete values, so no template substitution is needed at this step
// (the importing manifest renders the merged set again, for real, at
// Runner construction).
type identityRenderer struct{}

func (identityRenderer) Render(tmplText string, ctx map[string]any) (string, error) {
	return tmplText, nil
}

// --- builders ---

// orderedRaw is a minimal ordered name->(Var,raw) builder for a TOML
// vars table. BurntSushi/toml decodes tables into plain Go maps, which
// have no declaration order; entries are applied in sorted-name order
// instead, a documented simplification (see DESIGN.md) since TOML's Go
// decoder gives us no order to preserve faithfully.
type orderedRaw struct {
	names []string
	vs    map[string]*vars.Var
	raws  map[string]any
}

func (o *orderedRaw) order() []string                  { return o.names }
func (o *orderedRaw) get(name string) (*vars.Var, any) { return o.vs[name], o.raws[name] }

func docVars(raw map[string]any) (*orderedRaw, error) {
	o := &orderedRaw{vs: map[string]*vars.Var{}, raws: map[string]any{}}
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v, err := vars.Parse(k)
		if err != nil {
			return nil, err
		}
		o.names = append(o.names, v.Name)
		o.vs[v.Name] = v
		o.raws[v.Name] = raw[k]
	}
	return o, nil
}

func buildWorkers(docs map[string]workerDoc, def defaultWorkerDoc) ([]WorkerSpec, error) {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []WorkerSpec
	for _, name := range names {
		d := docs[name]
		engineDoc := d.Engine
		if engineDoc == nil {
			engineDoc = def.Engine
		}
		if engineDoc == nil {
			return nil, errtax.NoEngine(name)
		}
		engine, err := engineDoc.build()
		if err != nil {
			return nil, fmt.Errorf("worker %s: %w", name, err)
		}

		itemsSrc := d.Items
		if itemsSrc == nil {
			itemsSrc = def.Items
		}
		it := itemsSrc.build()
		if it == nil {
			out = append(out, WorkerSpec{Name: name, Engine: engine})
			continue
		}
		list, err := it.List(map[string]any{}, noopRenderer{}, noopShell{})
		if err != nil {
			return nil, fmt.Errorf("worker %s items: %w", name, err)
		}
		if len(list) == 0 {
			list = []string{""}
		}
		for _, item := range list {
			n := name
			if item != "" {
				n = name + "-" + item
			}
			out = append(out, WorkerSpec{Name: n, Engine: engine})
		}
	}
	if len(out) == 0 {
		return nil, errtax.NoWorkers()
	}
	return out, nil
}

type noopRenderer struct{}

func (noopRenderer) Render(tmplText string, ctx map[string]any) (string, error) { return tmplText, nil }

type noopShell struct{}

func (noopShell) RunShell(command string) (string, error) { return "", nil }

func buildLine(docs []tasklineElemDoc) ([]taskline.Elem, error) {
	out := make([]taskline.Elem, 0, len(docs))
	for _, d := range docs {
		cfg, leaf, err := d.taskDoc.build(d.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, taskline.Elem{Name: d.Name, Config: cfg, Leaf: leaf})
	}
	return out, nil
}

func boolOr(p *bool, dflt bool) bool {
	if p == nil {
		return dflt
	}
	return *p
}

// build converts a taskDoc into the expander config + leaf task pair
// internal/expander and internal/task consume. name becomes the Config's
// own Name field and labels a try.sleep parse error.
func (d *taskDoc) build(name string) (*expander.Config, *task.Task, error) {
	leaf, err := d.buildLeaf()
	if err != nil {
		return nil, nil, err
	}

	var varsSteps []*vars.Vars
	if len(d.Vars) > 0 {
		o, err := docVars(d.Vars)
		if err != nil {
			return nil, nil, err
		}
		vs := vars.NewVars()
		for _, n := range o.order() {
			v, raw := o.get(n)
			vs.Set(v, raw)
		}
		varsSteps = append(varsSteps, vs)
	}

	cfg := &expander.Config{
		Name:       name,
		CleanVars:  d.CleanVars,
		VarsSteps:  varsSteps,
		ExportVars: d.ExportVars,
		ItemsTable: expander.ItemsTable{
			Items:       d.Items.build(),
			ItemsVar:    d.ItemsVar,
			TableByItem: d.TableByItem.build(),
		},
		Table:       d.Table.build(),
		Parallel:    boolOr(d.Parallel, true),
		Condition:   d.Condition,
		ResultFsVar: d.ResultFsVar,
	}

	if d.Try != nil {
		sleep, err := parseDuration(d.Try.Sleep)
		if err != nil {
			return nil, nil, fmt.Errorf("task %s: try.sleep: %w", name, err)
		}
		var cleanup *task.Task
		if d.Try.Cleanup != nil {
			cleanup, err = d.Try.Cleanup.buildLeaf()
			if err != nil {
				return nil, nil, err
			}
		}
		cfg.Try = &expander.Try{Attempts: d.Try.Attempts, Sleep: sleep, Cleanup: cleanup}
	}

	return cfg, leaf, nil
}

func (d *taskDoc) buildLeaf() (*task.Task, error) {
	switch strings.ToLower(d.Type) {
	case "break":
		return &task.Task{Kind: task.KindBreak, BreakTaskline: d.BreakTaskline, BreakResult: d.BreakResult, HasBreakResult: d.BreakResult != nil}, nil
	case "debug":
		return &task.Task{Kind: task.KindDebug, Msg: d.Msg, MsgResult: d.MsgResult, HasResult: d.MsgResult != nil}, nil
	case "trace":
		return &task.Task{Kind: task.KindTrace, Msg: d.Msg, MsgResult: d.MsgResult, HasResult: d.MsgResult != nil}, nil
	case "info":
		return &task.Task{Kind: task.KindInfo, Msg: d.Msg, MsgResult: d.MsgResult, HasResult: d.MsgResult != nil}, nil
	case "warn":
		return &task.Task{Kind: task.KindWarn, Msg: d.Msg, MsgResult: d.MsgResult, HasResult: d.MsgResult != nil}, nil
	case "dummy":
		return &task.Task{Kind: task.KindDummy, DummyResult: d.DummyResult, HasDummyResult: d.DummyResult != nil}, nil
	case "ensure":
		vs := make([]*vars.Var, 0, len(d.Ensure))
		for _, raw := range d.Ensure {
			v, err := vars.Parse(raw)
			if err != nil {
				return nil, err
			}
			vs = append(vs, v)
		}
		return &task.Task{Kind: task.KindEnsure, EnsureVars: vs}, nil
	case "error":
		return &task.Task{Kind: task.KindError, ErrorMsg: d.ErrorMsg, ErrorCode: d.ErrorCode, ErrorTrace: d.ErrorTrace}, nil
	case "exec":
		return &task.Task{Kind: task.KindExec, Args: d.Exec, CmdParams: cmdParamsOf(d)}, nil
	case "shell":
		return &task.Task{Kind: task.KindShell, Command: d.Shell, CmdParams: cmdParamsOf(d)}, nil
	case "file":
		return &task.Task{
			Kind: task.KindFile, FileDst: d.FileDst, FileSrc: d.FileSrc,
			FileContent: d.FileContent, HasFileContent: d.FileContent != "",
			Chown: d.Chown, Chmod: d.Chmod,
		}, nil
	case "get":
		return &task.Task{Kind: task.KindGet, GetSrc: d.FileSrc, GetDst: d.GetDst}, nil
	case "run":
		return &task.Task{Kind: task.KindRun, TasklineName: d.Run}, nil
	case "run-taskline":
		return &task.Task{Kind: task.KindRunTaskline, TasklineName: d.RunTaskline, ModulePath: d.ModulePath}, nil
	case "run-taskset":
		sel := task.Selector{Kind: task.SelectorAll}
		if len(d.TasksetNames) > 0 {
			sel = task.Selector{Kind: task.SelectorNames, Names: d.TasksetNames}
		}
		return &task.Task{Kind: task.KindRunTaskset, TasksetModule: d.ModulePath, TasksetSelector: sel}, nil
	case "special":
		return &task.Task{Kind: task.KindSpecial, SpecialKind: d.Special, IgnoreUnsupported: d.IgnoreUnsupported}, nil
	case "test":
		cmds := make([]task.Command, 0, len(d.Test))
		for _, c := range d.Test {
			if c.Shell != "" {
				cmds = append(cmds, task.Command{Kind: task.CommandShell, Command: c.Shell})
			} else {
				cmds = append(cmds, task.Command{Kind: task.CommandExec, Args: c.Exec})
			}
		}
		return &task.Task{Kind: task.KindTest, TestCommands: cmds, TestCheck: true}, nil
	default:
		return nil, fmt.Errorf("manifest: unknown task type %q", d.Type)
	}
}

func cmdParamsOf(d *taskDoc) cmdrun.CmdParams {
	return cmdrun.CmdParams{Check: d.Check, SuccessCodes: d.SuccessCodes}
}

// parseDuration accepts either a Go duration string ("5s") or a bare
// integer count of seconds, matching the leniency spec §4.8's `try.sleep`
// authoring convention favors for manifest authors who don't think in
// Go's duration syntax.
func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	var secs int
	if _, err := fmt.Sscanf(raw, "%d", &secs); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}
