package expander

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/loomrun/loom/internal/cmdrun"
	"github.com/loomrun/loom/internal/items"
	"github.com/loomrun/loom/internal/result"
	"github.com/loomrun/loom/internal/task"
)

type fakeRenderer struct{}

func (fakeRenderer) Render(tmplText string, ctx map[string]any) (string, error) {
	return tmplText, nil
}

type fakeBackend struct {
	mu       sync.Mutex
	shells   []string
	failN    int // fail the first N Shell calls
	attempts int
}

func (f *fakeBackend) Shell(ctx context.Context, command string, params cmdrun.CmdParams) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shells = append(f.shells, command)
	f.attempts++
	if f.attempts <= f.failN {
		return nil, errBoom
	}
	return "ok", nil
}

func (f *fakeBackend) Exec(ctx context.Context, args []string, params cmdrun.CmdParams) (any, error) {
	return "ok", nil
}
func (f *fakeBackend) Copy(ctx context.Context, src, dst string) error { return nil }
func (f *fakeBackend) Get(ctx context.Context, src, dst string) error  { return nil }
func (f *fakeBackend) Special(ctx context.Context, kind string, ignoreUnsupported bool) error {
	return nil
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}

type fakeShell struct{}

func (fakeShell) RunShell(command string) (string, error) { return "", nil }

type fakeFsWriter struct {
	name  string
	value any
}

func (f *fakeFsWriter) WriteFsVar(name string, value any) error {
	f.name, f.value = name, value
	return nil
}

func baseDeps() Deps {
	return Deps{
		Renderer: fakeRenderer{},
		Shell:    fakeShell{},
		Backend:  &fakeBackend{},
		Taskline: nil,
		Taskset:  nil,
		Logger:   slog.New(slog.NewTextHandler(discard{}, nil)),
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestExpandSingleItemSingleRow(t *testing.T) {
	cfg := &Config{Name: "t1", WorkerName: "w1"}
	leaf := &task.Task{Kind: task.KindShell, Command: "echo hi"}
	r, err := Expand(context.Background(), cfg, leaf, map[string]any{}, baseDeps())
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if r.Value != "ok" {
		t.Errorf("Value = %v", r.Value)
	}
}

func TestExpandItemsFoldsAsObject(t *testing.T) {
	cfg := &Config{
		Name:       "t1",
		WorkerName: "w1",
		ItemsTable: ItemsTable{Items: &items.Items{Kind: items.KindWords, Words: []any{"a", "b"}}},
	}
	leaf := &task.Task{Kind: task.KindShell, Command: "echo {{ item }}"}
	r, err := Expand(context.Background(), cfg, leaf, map[string]any{}, baseDeps())
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	m, ok := r.Value.(map[string]any)
	if !ok || len(m) != 2 {
		t.Fatalf("Value = %#v, want object keyed by item", r.Value)
	}
}

func TestExpandConditionFalseSkipsAndInheritsResult(t *testing.T) {
	cfg := &Config{Name: "t1", WorkerName: "w1", Condition: "false"}
	leaf := &task.Task{Kind: task.KindShell, Command: "should not run"}
	b := &fakeBackend{}
	deps := baseDeps()
	deps.Backend = b
	r, err := Expand(context.Background(), cfg, leaf, map[string]any{"result": "inherited"}, deps)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if r.Value != "inherited" {
		t.Errorf("Value = %v, want inherited", r.Value)
	}
	if len(b.shells) != 0 {
		t.Errorf("shell should not have run, got %v", b.shells)
	}
}

func TestExpandRetrySucceedsAfterFailures(t *testing.T) {
	b := &fakeBackend{failN: 2}
	cfg := &Config{
		Name:       "t1",
		WorkerName: "w1",
		Try:        &Try{Attempts: 3, Sleep: time.Millisecond},
	}
	leaf := &task.Task{Kind: task.KindShell, Command: "flaky"}
	deps := baseDeps()
	deps.Backend = b
	r, err := Expand(context.Background(), cfg, leaf, map[string]any{}, deps)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if r.Value != "ok" {
		t.Errorf("Value = %v", r.Value)
	}
	if b.attempts != 3 {
		t.Errorf("attempts = %d, want 3", b.attempts)
	}
}

func TestExpandRetryExhaustedReturnsLastError(t *testing.T) {
	b := &fakeBackend{failN: 5}
	cfg := &Config{
		Name:       "t1",
		WorkerName: "w1",
		Try:        &Try{Attempts: 2},
	}
	leaf := &task.Task{Kind: task.KindShell, Command: "always fails"}
	deps := baseDeps()
	deps.Backend = b
	_, err := Expand(context.Background(), cfg, leaf, map[string]any{}, deps)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if b.attempts != 2 {
		t.Errorf("attempts = %d, want 2", b.attempts)
	}
}

func TestExpandExportVarsAttachedToResult(t *testing.T) {
	cfg := &Config{
		Name:       "t1",
		WorkerName: "w1",
		ExportVars: []string{"k"},
	}
	leaf := &task.Task{Kind: task.KindDummy}
	r, err := Expand(context.Background(), cfg, leaf, map[string]any{"k": "v"}, baseDeps())
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	m, ok := r.AsContext()
	if !ok || m["k"] != "v" {
		t.Errorf("exported vars = %#v", m)
	}
}

func TestExpandResultFsVarWritesValue(t *testing.T) {
	fw := &fakeFsWriter{}
	cfg := &Config{Name: "t1", WorkerName: "w1", ResultFsVar: "out"}
	leaf := &task.Task{Kind: task.KindShell, Command: "echo hi"}
	deps := baseDeps()
	deps.FsWriter = fw
	_, err := Expand(context.Background(), cfg, leaf, map[string]any{}, deps)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if fw.name != "out" || fw.value != "ok" {
		t.Errorf("fs write = %q %v", fw.name, fw.value)
	}
}

func TestExpandBreakPropagatesException(t *testing.T) {
	cfg := &Config{Name: "t1", WorkerName: "w1"}
	leaf := &task.Task{Kind: task.KindBreak, BreakTaskline: "outer"}
	r, err := Expand(context.Background(), cfg, leaf, map[string]any{}, baseDeps())
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if !r.IsException() {
		t.Fatal("expected exception")
	}
	_ = result.ExceptionBreakTaskline
}

func TestShowDuration(t *testing.T) {
	if got := showDuration(500 * time.Millisecond); got != "500 ms" {
		t.Errorf("showDuration(500ms) = %q", got)
	}
	if got := showDuration(3 * time.Second); got != "3 s" {
		t.Errorf("showDuration(3s) = %q", got)
	}
}
