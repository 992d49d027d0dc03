package vars

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"github.com/loomrun/loom/internal/errtax"
)

// Renderer is the subset of internal/tmpl.Engine that variable processing
// needs. Declared locally to avoid vars depending on tmpl's full surface
// (and to keep the two packages free of an import cycle, since tmpl's fs
// function reads back what vars writes).
type Renderer interface {
	Render(tmplText string, ctx map[string]any) (string, error)
}

// FSDir supplies the directory filesystem-backed variables are written
// under ($TMPDIR/fs_vars/simple), bound to the process-wide tmproot.Root
// by the caller.
type FSDir func() string

// ProcessValue applies v's kind-directed transformation to raw (the
// manifest-provided value), per the spec §4.2 table.
func ProcessValue(v *Var, raw any, ctx map[string]any, r Renderer, fsDir FSDir) (any, error) {
	switch v.Kind {
	case KindRaw:
		return raw, nil

	case KindNothing:
		return renderLeaf(v, raw, ctx, r, true)

	case KindJSON:
		s, ok := raw.(string)
		if !ok {
			return nil, errtax.WrongVarType(v.Name, "string")
		}
		if v.shouldRender(true) {
			rendered, err := r.Render(s, ctx)
			if err != nil {
				return nil, err
			}
			s = rendered
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("parse variable `%s` as json: %w", v.Name, err)
		}
		return normalizeJSON(out), nil

	case KindYAML:
		s, ok := raw.(string)
		if !ok {
			return nil, errtax.WrongVarType(v.Name, "string")
		}
		if v.shouldRender(true) {
			rendered, err := r.Render(s, ctx)
			if err != nil {
				return nil, err
			}
			s = rendered
		}
		var out any
		if err := yaml.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("parse variable `%s` as yaml: %w", v.Name, err)
		}
		return normalizeJSON(out), nil

	case KindFS:
		s, ok := raw.(string)
		if !ok {
			return nil, errtax.WrongVarType(v.Name, "string")
		}
		if v.shouldRender(true) {
			rendered, err := r.Render(s, ctx)
			if err != nil {
				return nil, err
			}
			s = rendered
		}
		name, err := v.fsName()
		if err != nil {
			return nil, err
		}
		if fsDir == nil {
			return nil, fmt.Errorf("fs variable `%s`: no fs-vars directory configured", v.Name)
		}
		if err := WriteFsVar(fsDir(), name, s); err != nil {
			return nil, err
		}
		return name, nil

	default:
		return nil, errtax.UnknownVarKind(string(v.Kind))
	}
}

// renderLeaf renders raw if it is a string and rendering is enabled;
// non-string values (numbers, bools, already-structured arrays/objects
// produced by the manifest loader) pass through unchanged, since there is
// no template text to substitute into.
func renderLeaf(v *Var, raw any, ctx map[string]any, r Renderer, defaultRender bool) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	if !v.shouldRender(defaultRender) {
		return s, nil
	}
	return r.Render(s, ctx)
}

// normalizeJSON converts yaml.v3's map[interface{}]any (and any nested
// occurrences) into map[string]any so downstream code — and text/template
// field access — only ever sees JSON-shaped values.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeJSON(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeJSON(e)
		}
		return out
	default:
		return val
	}
}

// WriteFsVar persists content to dir/name, holding an advisory exclusive
// lock for the duration of the write so concurrent tasks (in this process
// or another) never observe a torn file, per spec §5. Exported so
// internal/expander's result_fs_var path (driven from cmd/loom) shares
// this exact locking mechanism instead of reimplementing it.
func WriteFsVar(dir, name, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fs-vars directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open fs var %s: %w", path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock fs var %s: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write fs var %s: %w", path, err)
	}
	return nil
}

// ReadFsVar reads a previously-written filesystem-backed variable,
// failing with NoFsVar if it does not exist. Used by the `fs` template
// filter/function.
func ReadFsVar(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errtax.NoFsVar(name)
		}
		return "", fmt.Errorf("read fs var %s: %w", path, err)
	}
	return string(data), nil
}
