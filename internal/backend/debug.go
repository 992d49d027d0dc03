package backend

import (
	"context"
	"fmt"
)

// DebugEngine performs no real work: every operation prints what it
// would have done and returns success. Grounded on
// original_source/src/engine/dbg.rs, used by the `--worker-exists`/dry
// run style flows and by tests that exercise the task dispatcher
// without real infrastructure.
type DebugEngine struct {
	EngineBase EngineBase
}

func NewDebugEngine() *DebugEngine {
	return &DebugEngine{EngineBase: DefaultEngineBase()}
}

func (e *DebugEngine) Base() EngineBase { return e.EngineBase }

func (e *DebugEngine) Setup(ctx context.Context, name string, action ExistsAction) error {
	fmt.Printf("Worker %s: start\n", name)
	return nil
}

func (e *DebugEngine) Remove(ctx context.Context, name string) error {
	fmt.Printf("Worker %s: stop\n", name)
	return nil
}

func (e *DebugEngine) Copy(ctx context.Context, name, src, dst string) error {
	fmt.Printf("Worker %s: upload(file) file from %s to %s:%s\n", name, src, name, dst)
	return nil
}

func (e *DebugEngine) Get(ctx context.Context, name, src, dst string) error {
	fmt.Printf("Worker %s: download(get) file from %s:%s to %s\n", name, name, src, dst)
	return nil
}

func (e *DebugEngine) ShellArgv(name, command string) []string {
	fmt.Printf("Worker %s: run shell command `%s`\n", name, command)
	return []string{"true"}
}

func (e *DebugEngine) ExecArgv(name string, args []string) []string {
	fmt.Printf("Worker %s: exec %v\n", name, args)
	return []string{"true"}
}

func (e *DebugEngine) Special(ctx context.Context, name, kind string) error {
	fmt.Printf("Worker %s: %s\n", name, kind)
	return nil
}
