package backend

import (
	"context"
	"reflect"
	"testing"

	"github.com/loomrun/loom/internal/cmdrun"
)

func TestHostEngineShellArgv(t *testing.T) {
	e := NewHostEngine()
	got := e.ShellArgv("w1", "echo hi")
	want := []string{"sh", "-c", "echo hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShellArgv() = %v, want %v", got, want)
	}
}

func TestHostEngineExecArgvNoShell(t *testing.T) {
	e := NewHostEngine()
	got := e.ExecArgv("w1", []string{"echo", "hi there"})
	want := []string{"echo", "hi there"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExecArgv() = %v, want %v", got, want)
	}
}

func TestDebugEngineShellArgvReturnsTrue(t *testing.T) {
	e := NewDebugEngine()
	got := e.ShellArgv("w1", "anything")
	if !reflect.DeepEqual(got, []string{"true"}) {
		t.Errorf("ShellArgv() = %v", got)
	}
}

func TestDockerEngineShellArgv(t *testing.T) {
	e := NewDockerEngine("alpine")
	got := e.ShellArgv("w1", "echo hi")
	want := []string{"docker", "exec", "-i", "w1", "sh", "-c", "echo hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShellArgv() = %v, want %v", got, want)
	}
}

func TestDockerEngineShellArgvWithUser(t *testing.T) {
	e := NewDockerEngine("alpine")
	e.User = "root"
	got := e.ShellArgv("w1", "id")
	want := []string{"docker", "exec", "-i", "--user", "root", "w1", "sh", "-c", "id"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShellArgv() = %v, want %v", got, want)
	}
}

func TestDockerEngineNameOverride(t *testing.T) {
	e := NewDockerEngine("alpine")
	e.EngineBase.Name = "fixed-name"
	got := e.ShellArgv("w1", "echo hi")
	if got[3] != "fixed-name" {
		t.Errorf("ShellArgv() = %v, want name override", got)
	}
}

func TestDockerEngineExecArgvNilFallsBackToShell(t *testing.T) {
	e := NewDockerEngine("alpine")
	if got := e.ExecArgv("w1", []string{"echo"}); got != nil {
		t.Errorf("ExecArgv() = %v, want nil", got)
	}
}

func TestPodmanEngineShellArgv(t *testing.T) {
	e := NewPodmanEngine("alpine")
	got := e.ShellArgv("w1", "echo hi")
	want := []string{"podman", "exec", "-i", "w1", "sh", "-c", "echo hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShellArgv() = %v, want %v", got, want)
	}
}

type fakeRunner struct {
	argv []string
	out  *cmdrun.Output
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, stdin string) (*cmdrun.Output, error) {
	f.argv = argv
	return f.out, f.err
}

func TestBackendShellUsesEngineArgv(t *testing.T) {
	fr := &fakeRunner{out: &cmdrun.Output{Stdout: "hi\n", ExitCode: 0}}
	b := &Backend{WorkerName: "w1", Engine: NewHostEngine(), runner: fr}
	got, err := b.Shell(context.Background(), "echo hi", cmdrun.CmdParams{})
	if err != nil {
		t.Fatalf("Shell() error: %v", err)
	}
	if got != "hi\n" {
		t.Errorf("Shell() = %v", got)
	}
	want := []string{"sh", "-c", "echo hi"}
	if !reflect.DeepEqual(fr.argv, want) {
		t.Errorf("runner saw argv %v, want %v", fr.argv, want)
	}
}

func TestBackendExecEquivalentToShellQuote(t *testing.T) {
	fr := &fakeRunner{out: &cmdrun.Output{Stdout: "ok", ExitCode: 0}}
	b := &Backend{WorkerName: "w1", Engine: NewHostEngine(), runner: fr}
	_, err := b.Exec(context.Background(), []string{"echo", "a b"}, cmdrun.CmdParams{})
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	// HostEngine has a native ExecArgv, so Exec bypasses quoting and
	// passes args straight through.
	want := []string{"echo", "a b"}
	if !reflect.DeepEqual(fr.argv, want) {
		t.Errorf("runner saw argv %v, want %v", fr.argv, want)
	}
}

func TestBackendExecQuotesWhenNoNativeForm(t *testing.T) {
	fr := &fakeRunner{out: &cmdrun.Output{Stdout: "ok", ExitCode: 0}}
	b := &Backend{WorkerName: "w1", Engine: NewDockerEngine("alpine"), runner: fr}
	_, err := b.Exec(context.Background(), []string{"echo", "hi"}, cmdrun.CmdParams{})
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if len(fr.argv) < 2 || fr.argv[0] != "docker" {
		t.Errorf("runner saw argv %v, want docker exec form", fr.argv)
	}
}

func TestBackendRunShellReturnsStdout(t *testing.T) {
	fr := &fakeRunner{out: &cmdrun.Output{Stdout: "out", ExitCode: 0}}
	b := &Backend{WorkerName: "w1", Engine: NewHostEngine(), runner: fr}
	got, err := b.RunShell("echo out")
	if err != nil {
		t.Fatalf("RunShell() error: %v", err)
	}
	if got != "out" {
		t.Errorf("RunShell() = %q", got)
	}
}

func TestBackendSpecialUnsupportedSwallowedWhenIgnored(t *testing.T) {
	b := &Backend{WorkerName: "w1", Engine: NewHostEngine()}
	if err := b.Special(context.Background(), SpecialRestart, true); err != nil {
		t.Errorf("Special() with ignoreUnsupported = %v, want nil", err)
	}
}

func TestBackendSpecialUnsupportedPropagatedWhenNotIgnored(t *testing.T) {
	b := &Backend{WorkerName: "w1", Engine: NewHostEngine()}
	if err := b.Special(context.Background(), SpecialRestart, false); err == nil {
		t.Error("Special() expected UnsupportedSpecialTask error")
	}
}

func TestBackendSetupNoOpWhenBaseSetupFalse(t *testing.T) {
	host := NewHostEngine()
	host.EngineBase.Setup = false
	b := &Backend{WorkerName: "w1", Engine: host}
	if err := b.Setup(context.Background(), ExistsIgnore); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
}
