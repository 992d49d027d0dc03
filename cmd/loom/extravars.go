package main

import (
	"strings"

	"github.com/loomrun/loom/internal/errtax"
	"github.com/loomrun/loom/internal/vars"
)

// extraVarsCtx parses --extra-vars entries ("name=value", one var
// declaration per entry per the usual KIND%name:type grammar before the
// "=") and renders them against an empty base context, producing the
// map that both seeds the manifest's own vars render (so manifest vars
// can reference extra-vars values) and, merged back on top afterward,
// always wins over whatever the manifest derives — mirroring
// original_source/src/main.rs's inner_main, which renders extra_vars
// once and applies it both before and after Runner::from_manifest.
func extraVarsCtx(raw []string, r rendererAdapter) (map[string]any, error) {
	vs := vars.NewVars()
	for _, entry := range raw {
		idx := strings.Index(entry, "=")
		if idx < 0 {
			return nil, errtax.BadExtraVar(entry)
		}
		name, value := entry[:idx], entry[idx+1:]
		v, err := vars.Parse(name)
		if err != nil {
			return nil, err
		}
		vs.Set(v, value)
	}
	return vs.Render(map[string]any{}, r, nil)
}

// mergeOver returns a copy of base with over's entries applied on top.
func mergeOver(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
