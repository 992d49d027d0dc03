// Package expander implements the task expander (spec §4.8): the
// items×table fan-out, per-row condition/vars/retry handling, timing
// log lines, and the fold_vec/fold_items result folding that sits
// between the DAG scheduler (internal/runner) and the per-kind leaf
// dispatcher (internal/task).
//
// Grounded on original_source/src/task.rs's Task::run body — the
// fan-out/fold/timing wrapper around TaskType::run, which
// internal/task implements as the leaf dispatch.
package expander

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomrun/loom/internal/items"
	"github.com/loomrun/loom/internal/result"
	"github.com/loomrun/loom/internal/semaphore"
	"github.com/loomrun/loom/internal/table"
	"github.com/loomrun/loom/internal/task"
	"github.com/loomrun/loom/internal/vars"
)

// ItemsTable is the outer item fan-out configuration (spec §4.6's
// `items_table` field).
type ItemsTable struct {
	Items       *items.Items
	ItemsVar    string // default "item"
	TableByItem *table.Table
}

// Try is a task's retry policy (spec §4.6/§4.8's `try` field).
type Try struct {
	Attempts int
	Sleep    time.Duration
	Cleanup  *task.Task
}

// Config is everything the expander needs beyond the leaf Task itself.
type Config struct {
	Name       string // task name, for log lines and error breadcrumbs
	WorkerName string

	CleanVars  bool
	VarsSteps  []*vars.Vars // applied in order, each visible to the next
	ExportVars []string

	ItemsTable ItemsTable
	Table      *table.Table // row fan-out; nil => single empty row
	Parallel   bool

	Condition string
	Try       *Try

	ResultFsVar string
}

// Renderer renders a template string against a context.
type Renderer interface {
	Render(tmplText string, ctx map[string]any) (string, error)
}

// ShellRunner runs a command on the task's target worker and returns
// its captured stdout, used by Items/Table command sources and by
// condition evaluation.
type ShellRunner interface {
	RunShell(command string) (stdout string, err error)
}

// FsWriter persists a value to a named, process-wide FS variable. Bound
// by the caller to internal/vars' fs-var write path.
type FsWriter interface {
	WriteFsVar(name string, value any) error
}

// Deps bundles everything Expand threads through to Items/Table/Task.
type Deps struct {
	Renderer Renderer
	Shell    ShellRunner
	Backend  task.Backend
	Taskline task.TasklineRunner
	Taskset  task.TasksetRunner
	Logger   *slog.Logger
	Dir      string // manifest base dir, passed through to the Get task
	FsWriter FsWriter

	// Sem bounds total concurrent goroutines across both fan-outs below
	// (spec §5's single global worker pool, sized by --num-threads). A
	// nil Sem means unlimited, matching internal/semaphore's own
	// nil-is-unbounded contract.
	Sem *semaphore.Semaphore
}

// Expand runs cfg/leaf's full fan-out against baseCtx, returning the
// folded Result.
func Expand(ctx context.Context, cfg *Config, leaf *task.Task, baseCtx map[string]any, d Deps) (*result.Result, error) {
	tmplCtx := baseCtx
	if cfg.CleanVars {
		tmplCtx = map[string]any{}
	}

	itemsVar := cfg.ItemsTable.ItemsVar
	if itemsVar == "" {
		itemsVar = "item"
	}

	itemList := []string{""}
	hasItemsTable := cfg.ItemsTable.Items != nil
	if hasItemsTable {
		list, err := cfg.ItemsTable.Items.List(tmplCtx, d.Renderer, d.Shell)
		if err != nil {
			return nil, fmt.Errorf("task %s: resolve items: %w", cfg.Name, err)
		}
		if len(list) > 0 {
			itemList = list
		}
	}

	var byItemRows []table.Row
	if hasItemsTable && cfg.ItemsTable.TableByItem != nil {
		rows, err := cfg.ItemsTable.TableByItem.List(tmplCtx, d.Renderer, d.Shell)
		if err != nil {
			return nil, fmt.Errorf("task %s: resolve items_table.table_by_item: %w", cfg.Name, err)
		}
		byItemRows = rows
	}

	itemResults := make([]result.ItemResult, len(itemList))
	itemErrs := make([]error, len(itemList))

	runOne := func(i int) {
		item := itemList[i]
		itemCtx := cloneCtx(tmplCtx)
		itemCtx[itemsVar] = item
		if byItemRows != nil {
			for _, row := range byItemRows {
				if row["item"] == item {
					itemCtx["row_by_item"] = row
					break
				}
			}
		}

		r, err := expandRows(ctx, cfg, leaf, itemCtx, item, hasItemsTable, d)
		itemResults[i] = result.ItemResult{Item: item, Result: r}
		itemErrs[i] = err
	}

	if cfg.Parallel && len(itemList) > 1 {
		var wg sync.WaitGroup
		for i := range itemList {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if !d.Sem.Acquire(ctx) {
					itemErrs[i] = ctx.Err()
					return
				}
				defer d.Sem.Release()
				runOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range itemList {
			runOne(i)
			if itemErrs[i] != nil {
				break
			}
		}
	}

	for i, err := range itemErrs {
		if err != nil {
			item := itemList[i]
			if hasItemsTable {
				return nil, fmt.Errorf("item `%s`: %w", item, err)
			}
			return nil, err
		}
	}

	var final *result.Result
	if hasItemsTable {
		final = result.FoldItems(itemResults)
	} else {
		final = itemResults[0].Result
	}

	if cfg.ResultFsVar != "" && final != nil && !final.IsException() {
		name, err := d.Renderer.Render(cfg.ResultFsVar, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("render result_fs_var name: %w", err)
		}
		if d.FsWriter != nil {
			if err := d.FsWriter.WriteFsVar(name, final.Value); err != nil {
				return nil, fmt.Errorf("write result_fs_var %s: %w", name, err)
			}
		}
	}

	return final, nil
}

// expandRows runs the inner row fan-out for one resolved item.
func expandRows(ctx context.Context, cfg *Config, leaf *task.Task, itemCtx map[string]any, item string, hasItemsTable bool, d Deps) (*result.Result, error) {
	rows := []table.Row{{}}
	hasTable := cfg.Table != nil
	if hasTable {
		list, err := cfg.Table.List(itemCtx, d.Renderer, d.Shell)
		if err != nil {
			return nil, fmt.Errorf("resolve table: %w", err)
		}
		if len(list) > 0 {
			rows = list
		}
	}

	rowResults := make([]*result.Result, len(rows))
	rowErrs := make([]error, len(rows))

	runOne := func(i int) {
		rowResults[i], rowErrs[i] = runRow(ctx, cfg, leaf, itemCtx, rows[i], item, hasItemsTable, hasTable, d)
	}

	if cfg.Parallel && len(rows) > 1 {
		var wg sync.WaitGroup
		for i := range rows {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if !d.Sem.Acquire(ctx) {
					rowErrs[i] = ctx.Err()
					return
				}
				defer d.Sem.Release()
				runOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range rows {
			runOne(i)
			if rowErrs[i] != nil {
				break
			}
		}
	}

	for _, err := range rowErrs {
		if err != nil {
			return nil, err
		}
	}

	if !hasTable {
		return rowResults[0], nil
	}
	return result.FoldVec(rowResults), nil
}

// runRow renders this row's vars, evaluates the condition, executes
// (with retry if configured), logs timing, and attaches export_vars.
func runRow(ctx context.Context, cfg *Config, leaf *task.Task, itemCtx map[string]any, row table.Row, item string, hasItemsTable, hasTable bool, d Deps) (*result.Result, error) {
	rowCtx := cloneCtx(itemCtx)
	rowCtx["row"] = row

	exported := map[string]any{}
	for _, step := range cfg.VarsSteps {
		rendered, err := step.Render(rowCtx, d.Renderer, nil)
		if err != nil {
			return nil, fmt.Errorf("render task vars: %w", err)
		}
		rowCtx = rendered
	}
	for _, name := range cfg.ExportVars {
		if v, ok := rowCtx[name]; ok {
			exported[name] = v
		}
	}

	if cfg.Condition != "" {
		proceed, err := evalCondition(cfg.Condition, rowCtx, d)
		if err != nil {
			return nil, err
		}
		if !proceed {
			inherited := rowCtx["result"]
			r := result.FromValue(inherited)
			r.AddVars(exported)
			return r, nil
		}
	}

	logStart(d.Logger, cfg.Name, cfg.WorkerName, item, row, hasItemsTable, hasTable)
	start := time.Now()

	r, err := runWithRetry(ctx, cfg, leaf, rowCtx, d)

	logFinish(d.Logger, cfg.Name, cfg.WorkerName, time.Since(start))

	if err != nil {
		return nil, err
	}
	r.AddVars(exported)
	return r, nil
}

func runWithRetry(ctx context.Context, cfg *Config, leaf *task.Task, rowCtx map[string]any, d Deps) (*result.Result, error) {
	if cfg.Try == nil {
		return task.Run(ctx, leaf, rowCtx, d.Dir, d.Renderer, d.Backend, d.Taskline, d.Taskset)
	}

	attempts := cfg.Try.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		r, err := task.Run(ctx, leaf, rowCtx, d.Dir, d.Renderer, d.Backend, d.Taskline, d.Taskset)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if d.Logger != nil {
			d.Logger.Warn("task attempt failed", "task", cfg.Name, "attempt", attempt, "attempts", attempts, "error", err)
		}
		if attempt == attempts {
			break
		}
		if cfg.Try.Cleanup != nil {
			if _, cleanupErr := task.Run(ctx, cfg.Try.Cleanup, rowCtx, d.Dir, d.Renderer, d.Backend, d.Taskline, d.Taskset); cleanupErr != nil {
				if d.Logger != nil {
					d.Logger.Warn("retry cleanup failed", "task", cfg.Name, "error", cleanupErr)
				}
			}
		}
		if cfg.Try.Sleep > 0 {
			select {
			case <-time.After(cfg.Try.Sleep):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// evalCondition renders cond; the literal "true"/"false" short-circuit,
// anything else is run as a shell command on the worker and judged by
// its exit success.
func evalCondition(cond string, ctx map[string]any, d Deps) (bool, error) {
	rendered, err := d.Renderer.Render(cond, ctx)
	if err != nil {
		return false, fmt.Errorf("render condition: %w", err)
	}
	switch rendered {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if d.Shell == nil {
		return false, fmt.Errorf("condition %q requires a shell runner", rendered)
	}
	_, err = d.Shell.RunShell(rendered)
	return err == nil, nil
}

func logStart(logger *slog.Logger, name, worker, item string, row table.Row, hasItemsTable, hasTable bool) {
	if logger == nil {
		return
	}
	attrs := []any{"worker", worker}
	if hasItemsTable {
		attrs = append(attrs, "item", item)
	}
	if hasTable {
		attrs = append(attrs, "row", row)
	}
	logger.Info(fmt.Sprintf("Run task %s", name), attrs...)
}

func logFinish(logger *slog.Logger, name, worker string, d time.Duration) {
	if logger == nil {
		return
	}
	logger.Info(fmt.Sprintf("Task %s on worker %s finished in %s", name, worker, showDuration(d)))
}

// showDuration renders d the way the original CLI's progress lines do:
// whole milliseconds below 2s, whole seconds at or above.
func showDuration(d time.Duration) string {
	if d < 2*time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return fmt.Sprintf("%d s", int(d.Seconds()))
}

func cloneCtx(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx)+2)
	for k, v := range ctx {
		out[k] = v
	}
	return out
}
