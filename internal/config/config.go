// Package config loads loom's own configuration — distinct from the
// manifest a user runs, the way the teacher separated server flags from
// the CWL documents it executed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// ErrorConfig controls how much of a failed command's captured context
// the error formatter prints (spec §7).
type ErrorConfig struct {
	// ContextLines caps the number of lines kept from each captured
	// context value (stdin/stdout/stderr/matches) before truncation.
	// Overridable by the LOOM_CONTEXT_LINES environment variable.
	ContextLines int `toml:"context_lines"`
}

// CleanConfig controls the default post-run worker teardown behavior,
// overridable per-invocation by --clean/--no-clean.
type CleanConfig struct {
	Default bool `toml:"default"`
}

// WorkerConfig controls the default ExistsAction applied during worker
// setup, overridable per-invocation by --worker-exists.
type WorkerConfig struct {
	ExistsAction string `toml:"exists_action"`
}

// InitProfile is one named `loom init` template: either a literal
// manifest body, or (Render true) a template rendered against the
// profile's own vars merged with whatever vars the caller passes on the
// command line.
type InitProfile struct {
	Render   bool           `toml:"render"`
	Manifest string         `toml:"manifest"`
	Vars     map[string]any `toml:"vars"`
}

// InitConfig holds the named profiles `loom init <profile>` picks from.
// The original's CONFIG.init.profiles has no visible definition in the
// filtered source this repo was built from (see DESIGN.md); this shape
// is this repo's own reconstruction of what a profile needs to carry.
type InitConfig struct {
	Profiles map[string]InitProfile `toml:"profiles"`
}

// Config is loom's own configuration, loaded from
// $XDG_CONFIG_HOME/loom/config.toml (default ~/.config/loom/config.toml).
type Config struct {
	LogLevel string       `toml:"log_level"`
	Error    ErrorConfig  `toml:"error"`
	Clean    CleanConfig  `toml:"clean"`
	Worker   WorkerConfig `toml:"worker"`
	Init     InitConfig   `toml:"init"`
}

// DefaultConfig returns loom's built-in configuration defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Error:    ErrorConfig{ContextLines: 20},
		Clean:    CleanConfig{Default: false},
		Worker:   WorkerConfig{ExistsAction: "ignore"},
		Init: InitConfig{Profiles: map[string]InitProfile{
			"default": {
				Render:   false,
				Manifest: "# loom manifest\n\n[workers.local]\nengine = { kind = \"host\" }\n\n[taskset.hello]\ntype = \"shell\"\nshell = \"echo hello from loom\"\n",
			},
		}},
	}
}

// Dir resolves the configuration directory root: $XDG_CONFIG_HOME/loom, or
// ~/.config/loom when XDG_CONFIG_HOME is unset.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "loom"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "loom"), nil
}

// Load reads config.toml from the configuration directory, falling back to
// DefaultConfig() for any field left unset. A missing file is not an error;
// the first run is expected to populate the directory via Bootstrap.
func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the file-loaded
// config, per spec §6 ("Environment variables consumed").
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOOM_CONTEXT_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Error.ContextLines = n
		}
	}
}

// Bootstrap ensures the configuration directory exists, writing a default
// config.toml (DefaultConfig encoded as TOML) if one is not already
// present. It mirrors the teacher's asset-install-on-first-run pattern; an
// existing config.toml is left untouched.
func Bootstrap() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(DefaultConfig())
}
