package main

import (
	"encoding/json"
	"fmt"

	"github.com/loomrun/loom/internal/tmpl"
	"github.com/loomrun/loom/internal/tmproot"
	"github.com/loomrun/loom/internal/vars"
)

// rendererAdapter makes *tmpl.Engine satisfy the module's various
// Renderer interfaces (runner.Renderer, taskline.Renderer, vars.Renderer,
// expander.Renderer, manifest's taskline.Renderer field), which all
// declare Render(string, map[string]any). tmpl.Engine.Render takes a
// tmpl.Context, a distinct named type with the same underlying type —
// Go requires exact parameter-type identity for interface satisfaction,
// so the engine itself cannot be passed directly wherever one of these
// interfaces is expected.
type rendererAdapter struct {
	eng *tmpl.Engine
}

func (a rendererAdapter) Render(tmplText string, ctx map[string]any) (string, error) {
	return a.eng.Render(tmplText, tmpl.Context(ctx))
}

// fsVarWriter adapts tmproot's fs-vars directory and internal/vars' own
// fs-var write path to expander.FsWriter, the result_fs_var sink. The
// original always JSON-encodes a task result before persisting it
// (src/fs_var.rs's FsVar::write taking a serde_json::Value); a bare
// string result is written as-is, matching the raw-string convention
// internal/vars' own KindFS variable-declaration path already uses for
// the same files.
type fsVarWriter struct {
	root *tmproot.Root
}

func (w fsVarWriter) WriteFsVar(name string, value any) error {
	content, ok := value.(string)
	if !ok {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode result_fs_var %s: %w", name, err)
		}
		content = string(data)
	}
	return vars.WriteFsVar(w.root.FsVarsDir(), name, content)
}

func fsReaderFor(root *tmproot.Root) tmpl.FsReader {
	return func(name string) (string, error) {
		return vars.ReadFsVar(root.FsVarsDir(), name)
	}
}
