// Package module implements the module/use resolver (spec §4.10):
// turning a manifest-relative module path into an absolute manifest
// file path, and filtering+prefixing a referenced manifest's
// tasklines/vars for a `use` import.
//
// Grounded on original_source/src/module.rs (Resolve) and
// src/use_unit.rs (the UseUnit filter/prefix shape).
package module

import (
	"path/filepath"
	"strings"

	"github.com/loomrun/loom/internal/config"
	"github.com/loomrun/loom/internal/errtax"
)

// ManifestExt is the on-disk extension loom manifests use, matched to
// this module's adoption of BurntSushi/toml (the teacher's config
// format) for every loom-native document, not just loom's own config.
const ManifestExt = ".toml"

// Resolve turns a module path into an absolute manifest file path,
// per spec §4.10:
//   - absolute paths are returned unchanged;
//   - "./"/"../"-prefixed paths are resolved against callerDir;
//   - anything else is looked up under <config_dir>/modules/<path>.toml.
func Resolve(modulePath, callerDir string) (string, error) {
	if filepath.IsAbs(modulePath) {
		return modulePath, nil
	}
	if strings.HasPrefix(modulePath, "./") || strings.HasPrefix(modulePath, "../") || modulePath == "." || modulePath == ".." {
		return filepath.Join(callerDir, modulePath), nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	name := modulePath
	if filepath.Ext(name) == "" {
		name += ManifestExt
	}
	return filepath.Join(dir, "modules", name), nil
}

// Kind tags which names a UseUnit filters: tasklines or vars.
type Kind string

const (
	KindTasklines Kind = "tasklines"
	KindVars      Kind = "vars"
)

// UseUnit is one `use` entry: import `Items` from `Module`, renamed
// under `Prefix` (default: the module's base name without extension).
type UseUnit struct {
	Module string
	Prefix string
	Items  []string
}

// ResolvedName returns the prefix to apply, defaulting to the
// module's base name (extension stripped) when Prefix is unset.
func (u UseUnit) ResolvedName() string {
	if u.Prefix != "" {
		return u.Prefix
	}
	base := filepath.Base(u.Module)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FilterTasklines picks the named tasklines out of all, prefixing each
// surviving name `prefix:name`. Any name in u.Items absent from all is
// an UseTasklines error.
func FilterTasklines(u UseUnit, all map[string]any) (map[string]any, error) {
	prefix := u.ResolvedName()
	out := make(map[string]any, len(u.Items))
	var missing []string
	for _, name := range u.Items {
		v, ok := all[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[prefix+":"+name] = v
	}
	if len(missing) > 0 {
		return nil, errtax.UseTasklines(strings.Join(missing, ", "), u.Module)
	}
	return out, nil
}

// FilterVars picks the named vars out of all, prefixing each surviving
// name `prefix_name` (variables use `_`, not `:`, and any `-` in the
// prefix is itself rewritten to `_` to stay a valid dotted-path
// segment). Any name in u.Items absent from all is an UseVars error.
func FilterVars(u UseUnit, all map[string]any) (map[string]any, error) {
	prefix := strings.ReplaceAll(u.ResolvedName(), "-", "_")
	out := make(map[string]any, len(u.Items))
	var missing []string
	for _, name := range u.Items {
		v, ok := all[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[prefix+"_"+name] = v
	}
	if len(missing) > 0 {
		return nil, errtax.UseVars(strings.Join(missing, ", "), u.Module)
	}
	return out, nil
}
