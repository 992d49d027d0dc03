package backend

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/loomrun/loom/internal/errtax"
)

// DockerEngine runs workers as Docker containers via the docker CLI.
// Grounded on original_source/src/engine/docker.rs.
type DockerEngine struct {
	EngineBase EngineBase

	Bin    string // defaults to "docker"
	Image  string
	Memory string // optional --memory value
	Load   string // optional image tarball to `docker load` before start
	User   string // optional --user for exec
	Exists ExistsAction
	Dir    string // base dir Load is resolved against, if relative
}

func NewDockerEngine(image string) *DockerEngine {
	return &DockerEngine{
		EngineBase: DefaultEngineBase(),
		Bin:        "docker",
		Image:      image,
		Exists:     ExistsIgnore,
	}
}

func (e *DockerEngine) Base() EngineBase { return e.EngineBase }

func (e *DockerEngine) bin() string {
	if e.Bin == "" {
		return "docker"
	}
	return e.Bin
}

func (e *DockerEngine) name(name string) string { return e.EngineBase.resolvedName(name) }

func (e *DockerEngine) Setup(ctx context.Context, name string, action ExistsAction) error {
	bin := e.bin()
	n := e.name(name)

	if e.Load != "" {
		load := e.Load
		if !filepath.IsAbs(load) && e.Dir != "" {
			load = filepath.Join(e.Dir, load)
		}
		if _, err := runLocal(ctx, []string{bin, "load", "-qi", load}); err != nil {
			return fmt.Errorf("docker load: %w", err)
		}
	}

	resolvedAction := action
	if resolvedAction == "" {
		resolvedAction = e.Exists
	}
	if resolvedAction == "" {
		resolvedAction = ExistsIgnore
	}

	switch resolvedAction {
	case ExistsFail:
		// fall through to `docker run`; a name collision surfaces as
		// the command's own failure.
	case ExistsIgnore:
		if runLocalOK(ctx, []string{bin, "container", "inspect", "-f", "{{.Id}}", n}) {
			running, err := runLocal(ctx, []string{bin, "container", "inspect", "-f", "{{.State.Running}}", n})
			if err != nil {
				return fmt.Errorf("docker container inspect: %w", err)
			}
			if trimNL(running) == "false" {
				if _, err := runLocal(ctx, []string{bin, "start", n}); err != nil {
					return fmt.Errorf("docker start: %w", err)
				}
			}
			return nil
		}
	case ExistsReplace:
		_, _ = runLocal(ctx, []string{bin, "rm", "-f", n})
	}

	argv := []string{bin, "run", "-dt"}
	if e.Memory != "" {
		argv = append(argv, "--memory", e.Memory)
	}
	argv = append(argv, "--name", n, e.Image)
	if _, err := runLocal(ctx, argv); err != nil {
		return fmt.Errorf("docker run: %w", err)
	}
	return nil
}

func (e *DockerEngine) Remove(ctx context.Context, name string) error {
	bin := e.bin()
	n := e.name(name)
	if runLocalOK(ctx, []string{bin, "container", "inspect", "-f", "{{.Id}}", n}) {
		_, err := runLocal(ctx, []string{bin, "rm", "-f", n})
		return err
	}
	return nil
}

func (e *DockerEngine) Copy(ctx context.Context, name, src, dst string) error {
	n := e.name(name)
	_, err := runLocal(ctx, []string{e.bin(), "cp", src, n + ":" + dst})
	return err
}

func (e *DockerEngine) Get(ctx context.Context, name, src, dst string) error {
	n := e.name(name)
	_, err := runLocal(ctx, []string{e.bin(), "cp", n + ":" + src, dst})
	return err
}

func (e *DockerEngine) ShellArgv(name, command string) []string {
	n := e.name(name)
	argv := []string{e.bin(), "exec", "-i"}
	if e.User != "" {
		argv = append(argv, "--user", e.User)
	}
	argv = append(argv, n, "sh", "-c", command)
	return argv
}

// ExecArgv returns nil: Docker has no native non-shell exec form in
// the original, so exec is always realized via shell(quote(argv)).
func (e *DockerEngine) ExecArgv(name string, args []string) []string { return nil }

// Special implements "restart" as `docker stop` then `docker start`,
// matching docker.rs's restart(). No other special kind is supported.
func (e *DockerEngine) Special(ctx context.Context, name, kind string) error {
	if kind != SpecialRestart {
		return errtax.UnsupportedSpecialTask(kind)
	}
	bin := e.bin()
	n := e.name(name)
	if _, err := runLocal(ctx, []string{bin, "stop", n}); err != nil {
		return fmt.Errorf("docker stop: %w", err)
	}
	if _, err := runLocal(ctx, []string{bin, "start", n}); err != nil {
		return fmt.Errorf("docker start: %w", err)
	}
	return nil
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
