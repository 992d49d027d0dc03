package backend

import (
	"context"

	"github.com/loomrun/loom/internal/errtax"
)

// HostEngine runs everything directly on the local machine: no
// provisioning, no teardown, copy is a plain filesystem copy. Grounded
// on original_source/src/engine/host.rs.
type HostEngine struct {
	EngineBase EngineBase
}

func NewHostEngine() *HostEngine {
	return &HostEngine{EngineBase: DefaultEngineBase()}
}

func (e *HostEngine) Base() EngineBase { return e.EngineBase }

func (e *HostEngine) Setup(ctx context.Context, name string, action ExistsAction) error {
	return nil
}

func (e *HostEngine) Remove(ctx context.Context, name string) error { return nil }

func (e *HostEngine) Copy(ctx context.Context, name, src, dst string) error {
	_, err := runLocal(ctx, []string{"cp", src, dst})
	return err
}

func (e *HostEngine) Get(ctx context.Context, name, src, dst string) error {
	_, err := runLocal(ctx, []string{"cp", src, dst})
	return err
}

func (e *HostEngine) ShellArgv(name, command string) []string {
	return []string{"sh", "-c", command}
}

// ExecArgv runs args directly with no intervening shell, matching
// host.rs's exec_cmd (Cmd::from_args_str).
func (e *HostEngine) ExecArgv(name string, args []string) []string {
	return append([]string(nil), args...)
}

// Special has no meaning for the host: there is no container to
// restart, so every kind is unsupported.
func (e *HostEngine) Special(ctx context.Context, name, kind string) error {
	return errtax.UnsupportedSpecialTask(kind)
}
