// Package table implements the Table producer (spec §3, §4.3): an
// ordered list of row-mappings built either from inline rows or from a
// shell command's stdout parsed in a declared format.
//
// spec.md's distillation names the formats "CSV, tabular markup, tree
// markup, or YAML"; original_source/src/table.rs (the pre-distillation
// implementation) defines the concrete four as Csv/Json/Toml/Yaml. Per
// the system prompt's rule for resolving spec ambiguity, this package
// follows the original's concrete format set (documented in DESIGN.md).
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the shell-command table's stdout encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Row is a single table row: string column name to stringified value.
type Row map[string]string

// Kind tags which Table variant is populated.
type Kind string

const (
	KindMaps    Kind = "maps"
	KindCommand Kind = "command"
)

// Table is the parsed producer configuration.
type Table struct {
	Kind Kind

	// Maps holds inline rows (column name -> templated value, rendered
	// per-cell).
	Maps []map[string]any

	// Command holds a shell command whose stdout is parsed as Format.
	Command string
	Format  Format
}

// Renderer renders a template string against a context.
type Renderer interface {
	Render(tmplText string, ctx map[string]any) (string, error)
}

// ShellRunner runs a command on the task's target worker and returns its
// captured stdout.
type ShellRunner interface {
	RunShell(command string) (stdout string, err error)
}

// List resolves the Table to an ordered row list against ctx. The empty
// Table (Kind == "") is a task-expander concern (defaults to a single
// empty row), not handled here.
func (tb *Table) List(ctx map[string]any, r Renderer, sh ShellRunner) ([]Row, error) {
	switch tb.Kind {
	case KindMaps:
		return tb.listMaps(ctx, r)
	case KindCommand:
		return tb.listCommand(ctx, r, sh)
	default:
		return nil, fmt.Errorf("table: unknown kind %q", tb.Kind)
	}
}

func (tb *Table) listMaps(ctx map[string]any, r Renderer) ([]Row, error) {
	rows := make([]Row, 0, len(tb.Maps))
	for _, m := range tb.Maps {
		row := make(Row, len(m))
		for k, v := range m {
			s := fmt.Sprint(v)
			rendered, err := r.Render(s, ctx)
			if err != nil {
				return nil, fmt.Errorf("render table cell %q: %w", k, err)
			}
			row[k] = rendered
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (tb *Table) listCommand(ctx map[string]any, r Renderer, sh ShellRunner) ([]Row, error) {
	cmd, err := r.Render(tb.Command, ctx)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, fmt.Errorf("table command: no shell runner configured")
	}
	stdout, err := sh.RunShell(cmd)
	if err != nil {
		return nil, err
	}

	var raw []map[string]any
	switch tb.Format {
	case FormatJSON:
		if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
			return nil, fmt.Errorf("parse table json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(stdout), &raw); err != nil {
			return nil, fmt.Errorf("parse table yaml: %w", err)
		}
	case FormatTOML:
		// TOML documents must be rooted in a table, so an array of rows
		// is only expressible as an array of tables under a wrapper key
		// (`[[rows]] ...`) — a bare top-level array is not valid TOML.
		var wrapper struct {
			Rows []map[string]any `toml:"rows"`
		}
		if _, err := toml.Decode(stdout, &wrapper); err != nil {
			return nil, fmt.Errorf("parse table toml: %w", err)
		}
		raw = wrapper.Rows
	case FormatCSV:
		parsed, err := parseCSV(stdout)
		if err != nil {
			return nil, fmt.Errorf("parse table csv: %w", err)
		}
		raw = parsed
	default:
		return nil, fmt.Errorf("table: unknown format %q", tb.Format)
	}

	rows := make([]Row, 0, len(raw))
	for _, m := range raw {
		row := make(Row, len(m))
		for k, v := range m {
			row[k] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseCSV(data string) ([]map[string]any, error) {
	rd := csv.NewReader(strings.NewReader(data))
	records, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	out := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		m := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				m[col] = rec[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}
