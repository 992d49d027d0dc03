package backend

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/loomrun/loom/internal/errtax"
)

// PodmanEngine runs workers as Podman containers via the podman CLI.
// Grounded on original_source/src/engine/podman.rs — nearly identical
// to DockerEngine, differing in its existence check (`container
// exists` rather than `container inspect`), its optional --pod
// attachment, and its use of --replace instead of an explicit rm+run
// on ExistsReplace.
type PodmanEngine struct {
	EngineBase EngineBase

	Bin    string // defaults to "podman"
	Image  string
	Memory string
	Load   string
	Pod    string // optional --pod to join
	User   string
	Exists ExistsAction
	Dir    string
}

func NewPodmanEngine(image string) *PodmanEngine {
	return &PodmanEngine{
		EngineBase: DefaultEngineBase(),
		Bin:        "podman",
		Image:      image,
		Exists:     ExistsIgnore,
	}
}

func (e *PodmanEngine) Base() EngineBase { return e.EngineBase }

func (e *PodmanEngine) bin() string {
	if e.Bin == "" {
		return "podman"
	}
	return e.Bin
}

func (e *PodmanEngine) name(name string) string { return e.EngineBase.resolvedName(name) }

func (e *PodmanEngine) Setup(ctx context.Context, name string, action ExistsAction) error {
	bin := e.bin()
	n := e.name(name)

	if e.Load != "" {
		load := e.Load
		if !filepath.IsAbs(load) && e.Dir != "" {
			load = filepath.Join(e.Dir, load)
		}
		if _, err := runLocal(ctx, []string{bin, "load", "-qi", load}); err != nil {
			return fmt.Errorf("podman load: %w", err)
		}
	}

	resolvedAction := action
	if resolvedAction == "" {
		resolvedAction = e.Exists
	}
	if resolvedAction == "" {
		resolvedAction = ExistsIgnore
	}

	options := []string{"-dt"}
	if e.Memory != "" {
		options = append(options, "--memory", e.Memory)
	}
	if e.Pod != "" {
		options = append(options, "--pod", e.Pod)
	}
	options = append(options, "--name", n)

	switch resolvedAction {
	case ExistsFail:
	case ExistsIgnore:
		if runLocalOK(ctx, []string{bin, "container", "exists", n}) {
			running, err := runLocal(ctx, []string{bin, "inspect", "-f", "{{.State.Running}}", n})
			if err != nil {
				return fmt.Errorf("podman inspect: %w", err)
			}
			if trimNL(running) == "false" {
				if _, err := runLocal(ctx, []string{bin, "start", n}); err != nil {
					return fmt.Errorf("podman start: %w", err)
				}
			}
			return nil
		}
	case ExistsReplace:
		options = append(options, "--replace")
	}

	argv := append([]string{bin, "run"}, options...)
	argv = append(argv, e.Image)
	if _, err := runLocal(ctx, argv); err != nil {
		return fmt.Errorf("podman run: %w", err)
	}
	return nil
}

func (e *PodmanEngine) Remove(ctx context.Context, name string) error {
	bin := e.bin()
	n := e.name(name)
	if runLocalOK(ctx, []string{bin, "container", "exists", n}) {
		_, err := runLocal(ctx, []string{bin, "rm", "-f", n})
		return err
	}
	return nil
}

func (e *PodmanEngine) Copy(ctx context.Context, name, src, dst string) error {
	n := e.name(name)
	_, err := runLocal(ctx, []string{e.bin(), "cp", src, n + ":" + dst})
	return err
}

func (e *PodmanEngine) Get(ctx context.Context, name, src, dst string) error {
	n := e.name(name)
	_, err := runLocal(ctx, []string{e.bin(), "cp", n + ":" + src, dst})
	return err
}

func (e *PodmanEngine) ShellArgv(name, command string) []string {
	n := e.name(name)
	argv := []string{e.bin(), "exec", "-i"}
	if e.User != "" {
		argv = append(argv, "--user", e.User)
	}
	argv = append(argv, n, "sh", "-c", command)
	return argv
}

func (e *PodmanEngine) ExecArgv(name string, args []string) []string { return nil }

// Special implements "restart" as `podman stop` then `podman start`.
func (e *PodmanEngine) Special(ctx context.Context, name, kind string) error {
	if kind != SpecialRestart {
		return errtax.UnsupportedSpecialTask(kind)
	}
	bin := e.bin()
	n := e.name(name)
	if _, err := runLocal(ctx, []string{bin, "stop", n}); err != nil {
		return fmt.Errorf("podman stop: %w", err)
	}
	if _, err := runLocal(ctx, []string{bin, "start", n}); err != nil {
		return fmt.Errorf("podman start: %w", err)
	}
	return nil
}
