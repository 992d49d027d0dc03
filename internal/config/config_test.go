package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Error.ContextLines != 20 {
		t.Errorf("ContextLines = %d, want 20", cfg.Error.ContextLines)
	}
	if cfg.Clean.Default != false {
		t.Errorf("Clean.Default = %v, want false", cfg.Clean.Default)
	}
	if cfg.Worker.ExistsAction != "ignore" {
		t.Errorf("Worker.ExistsAction = %q, want %q", cfg.Worker.ExistsAction, "ignore")
	}
}

func TestDir_UsesXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	want := filepath.Join("/tmp/xdg-test", "loom")
	if dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestDir_FallsBackToHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".config", "loom")
	if dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoad_ParsesOverrides(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := filepath.Join(xdg, "loom")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	contents := `
[error]
context_lines = 5

[clean]
default = true

[worker]
exists_action = "replace"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Error.ContextLines != 5 {
		t.Errorf("ContextLines = %d, want 5", cfg.Error.ContextLines)
	}
	if !cfg.Clean.Default {
		t.Errorf("Clean.Default = false, want true")
	}
	if cfg.Worker.ExistsAction != "replace" {
		t.Errorf("Worker.ExistsAction = %q, want %q", cfg.Worker.ExistsAction, "replace")
	}
}

func TestLoad_EnvOverridesContextLines(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LOOM_CONTEXT_LINES", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Error.ContextLines != 7 {
		t.Errorf("ContextLines = %d, want 7", cfg.Error.ContextLines)
	}
}

func TestBootstrap_CreatesDefaultFile(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if err := Bootstrap(); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	path := filepath.Join(xdg, "loom", "config.toml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config.toml to exist: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() after Bootstrap() error: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Load() after Bootstrap() = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestBootstrap_DoesNotOverwriteExisting(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := filepath.Join(xdg, "loom")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	custom := "[error]\ncontext_lines = 1\n"
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Bootstrap(); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Error.ContextLines != 1 {
		t.Errorf("Bootstrap overwrote existing config: ContextLines = %d, want 1", cfg.Error.ContextLines)
	}
}
