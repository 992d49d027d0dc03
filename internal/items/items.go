// Package items implements the Items producer (spec §3, §4.3): a
// closed set of sources that each resolve, deterministically, to an
// ordered string sequence for a task's outer fan-out.
package items

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/loomrun/loom/internal/errtax"
	"github.com/loomrun/loom/internal/ordered"
)

// Kind tags which Items variant is populated. A closed tagged union
// (struct + Kind switch) rather than an interface, matching spec §9's
// design note that these small, fixed sum types should be modeled as
// Kind-discriminated structs.
type Kind string

const (
	KindWords   Kind = "words"
	KindRange   Kind = "range"
	KindCommand Kind = "command"
	KindJSON    Kind = "json"
	KindVar     Kind = "var"
)

// Items is the parsed producer configuration.
type Items struct {
	Kind Kind

	Words []any // heterogeneous string/integer literals

	Start string // range bound, may be a template
	End   string
	Step  string // empty => 1

	Command string // shell command; stdout lines form the list

	JSON any // []any or *ordered.Map

	VarName string // named variable; looked up in context
}

// Renderer renders a template string against a context, matching the
// subset of internal/tmpl.Engine every Items variant needs.
type Renderer interface {
	Render(tmplText string, ctx map[string]any) (string, error)
}

// ShellRunner runs a command on the task's target worker and returns its
// captured stdout. Bound by the caller to internal/backend's shell verb.
type ShellRunner interface {
	RunShell(command string) (stdout string, err error)
}

// List resolves the Items to an ordered string sequence against ctx. The
// empty Items value (Kind == "") is not handled here — callers substitute
// []string{""} per spec §4.8 step 2 before calling List, since that
// default is a task-expander concern, not an Items concern.
func (it *Items) List(ctx map[string]any, r Renderer, sh ShellRunner) ([]string, error) {
	switch it.Kind {
	case KindWords:
		out := make([]string, 0, len(it.Words))
		for _, w := range it.Words {
			out = append(out, fmt.Sprint(w))
		}
		return out, nil

	case KindRange:
		return it.listRange(ctx, r)

	case KindCommand:
		stdout, err := it.listCommand(ctx, r, sh)
		if err != nil {
			return nil, err
		}
		return stdout, nil

	case KindJSON:
		return listFromValue(it.JSON), nil

	case KindVar:
		v, ok := ctx[it.VarName]
		if !ok {
			return nil, errtax.NoItemsVar(it.VarName)
		}
		return listFromValue(v), nil

	default:
		return nil, fmt.Errorf("items: unknown kind %q", it.Kind)
	}
}

func (it *Items) listRange(ctx map[string]any, r Renderer) ([]string, error) {
	start, err := renderInt(it.Start, ctx, r, 0)
	if err != nil {
		return nil, fmt.Errorf("items range start: %w", err)
	}
	end, err := renderInt(it.End, ctx, r, 0)
	if err != nil {
		return nil, fmt.Errorf("items range end: %w", err)
	}
	step, err := renderInt(it.Step, ctx, r, 1)
	if err != nil {
		return nil, fmt.Errorf("items range step: %w", err)
	}
	if step == 0 {
		return nil, fmt.Errorf("items range: step must not be zero")
	}

	var out []string
	if step > 0 {
		for i := start; i < end; i += step {
			out = append(out, strconv.Itoa(i))
		}
	} else {
		for i := start; i > end; i += step {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out, nil
}

func renderInt(raw string, ctx map[string]any, r Renderer, dflt int) (int, error) {
	if raw == "" {
		return dflt, nil
	}
	rendered, err := r.Render(raw, ctx)
	if err != nil {
		return 0, err
	}
	rendered = strings.TrimSpace(rendered)
	n, err := strconv.Atoi(rendered)
	if err != nil {
		return 0, fmt.Errorf("parse %q as integer: %w", rendered, err)
	}
	return n, nil
}

func (it *Items) listCommand(ctx map[string]any, r Renderer, sh ShellRunner) ([]string, error) {
	cmd, err := r.Render(it.Command, ctx)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, fmt.Errorf("items command: no shell runner configured")
	}
	stdout, err := sh.RunShell(cmd)
	if err != nil {
		return nil, err
	}
	stdout = strings.TrimRight(stdout, "\n")
	if stdout == "" {
		return nil, nil
	}
	return strings.Split(stdout, "\n"), nil
}

// listFromValue stringifies an array, or takes the keys of an object:
// an *ordered.Map yields its keys in insertion order; a plain map keeps
// no insertion order, so its keys come back sorted.
func listFromValue(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case *ordered.Map:
		return append([]string(nil), val.Keys()...)
	case map[string]any:
		out := make([]string, 0, len(val))
		for k := range val {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
