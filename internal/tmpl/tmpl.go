// Package tmpl is loom's template substrate (spec §4.1): a process-wide
// engine exposing render(template, context) -> string plus the filter
// and function library every task-level render call uses. Built on
// text/template, the way the corpus's own file/config renderers are
// (see open-platform-model-cli's internal/templates.Renderer), with
// dlclark/regexp2 wired in for the ECMAScript-flavored re_match/re_sub
// filters and mattn/go-isatty for the interactive confirm function (input
// reads stdin without a terminal check).
package tmpl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/mattn/go-isatty"

	"github.com/loomrun/loom/internal/quote"
)

// Context is the render-time variable bag. Dotted-path nesting (a.b.c)
// is ordinary map-of-maps, which text/template already walks with plain
// `.a.b.c` field access.
type Context map[string]any

// TmpdirFunc resolves the tmpdir() template function; bound to the
// process-wide tmproot.Root by the caller that constructs an Engine, to
// avoid an import cycle between tmpl and tmproot.
type TmpdirFunc func() string

// FsReader resolves the fs filter/function, reading a filesystem-backed
// variable's persisted content by name. Bound by the caller (internal/vars
// owns the write side) to avoid a tmpl -> vars import cycle.
type FsReader func(name string) (string, error)

// Engine is the process-wide template engine. One Engine is constructed
// at startup and shared (read-only after construction) across every
// concurrent render call, per spec §4.1's concurrency contract.
type Engine struct {
	tmpdir TmpdirFunc
	fsRead FsReader
	stdin  *bufio.Reader
}

// New constructs the template engine. tmpdir and fsRead may be nil in
// contexts that never call the corresponding function (e.g. unit tests
// of plain filters).
func New(tmpdir TmpdirFunc, fsRead FsReader) *Engine {
	return &Engine{
		tmpdir: tmpdir,
		fsRead: fsRead,
		stdin:  bufio.NewReader(os.Stdin),
	}
}

// Render renders tmplText against ctx using loom's filter/function set.
func (e *Engine) Render(tmplText string, ctx Context) (string, error) {
	t, err := template.New("render").Funcs(e.funcMap()).Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any(ctx)); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func (e *Engine) funcMap() template.FuncMap {
	return template.FuncMap{
		"dict":     dictFn,
		"basename": basenameFilter,
		"dirname":  dirnameFilter,
		"cond":     condFilter,
		"is_empty": isEmptyFilter,
		"j":        jsonFilter,
		"json":     jsonFilter,
		"lines":    linesFilter,
		"q":        quoteFilter,
		"quote":    quoteFilter,
		"re_match": reMatchFilter,
		"re_sub":   reSubFilter,

		"fs":       e.fsFunc,
		"confirm":  e.confirmFunc,
		"input":    e.inputFunc,
		"host_cmd": hostCmdFunc,
		"tmpdir":   e.tmpdirFunc,
	}
}

// dictFn builds a map[string]any from alternating key/value arguments,
// the standard text/template idiom (as used by sprig/helm) for passing
// named arguments into a filter that otherwise only accepts positionals.
func dictFn(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	d := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		d[key] = pairs[i+1]
	}
	return d, nil
}

func (e *Engine) tmpdirFunc() (string, error) {
	if e.tmpdir == nil {
		return "", fmt.Errorf("tmpdir: no process-wide temp directory configured")
	}
	return e.tmpdir(), nil
}

func (e *Engine) fsFunc(name string) (string, error) {
	if e.fsRead == nil {
		return "", fmt.Errorf("fs: no filesystem-variable reader configured")
	}
	return e.fsRead(name)
}

func (e *Engine) confirmFunc(args map[string]any) (bool, error) {
	msg, _ := args["msg"].(string)
	def, hasDefault := args["default"].(bool)

	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		if hasDefault {
			return def, nil
		}
		return false, fmt.Errorf("confirm %q: stdin is not a terminal and no default was given", msg)
	}

	suffix := " [y/n] "
	if hasDefault {
		if def {
			suffix = " [Y/n] "
		} else {
			suffix = " [y/N] "
		}
	}
	fmt.Fprint(os.Stderr, msg+suffix)

	line, err := e.stdin.ReadString('\n')
	if err != nil && line == "" {
		if hasDefault {
			return def, nil
		}
		return false, fmt.Errorf("confirm %q: %w", msg, err)
	}
	line = strings.TrimSpace(strings.ToLower(line))
	switch line {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	case "":
		if hasDefault {
			return def, nil
		}
		return false, fmt.Errorf("confirm %q: no response and no default", msg)
	default:
		return false, fmt.Errorf("confirm %q: unrecognized response %q", msg, line)
	}
}

func (e *Engine) inputFunc(msg string) (string, error) {
	fmt.Fprint(os.Stderr, msg+" ")
	line, err := e.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("input %q: %w", msg, err)
	}
	return strings.TrimRight(line, "\n"), nil
}

// hostCmdFunc runs cmd on the invoking host. cmd is either a string
// (interpreted via `sh -c`) or a []any of argv elements. capture selects
// stdout (default) or stderr; check, when true, fails on non-zero exit.
func hostCmdFunc(args map[string]any) (string, error) {
	capture, _ := args["capture"].(string)
	if capture == "" {
		capture = "stdout"
	}
	check := true
	if v, ok := args["check"].(bool); ok {
		check = v
	}

	var execCmd *exec.Cmd
	switch cmd := args["cmd"].(type) {
	case string:
		execCmd = exec.Command("sh", "-c", cmd)
	case []any:
		argv := make([]string, 0, len(cmd))
		for _, a := range cmd {
			argv = append(argv, fmt.Sprint(a))
		}
		if len(argv) == 0 {
			return "", fmt.Errorf("host_cmd: empty argv")
		}
		execCmd = exec.Command(argv[0], argv[1:]...)
	default:
		return "", fmt.Errorf("host_cmd: cmd must be a string or an array")
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr
	runErr := execCmd.Run()

	if check && runErr != nil {
		return "", fmt.Errorf("host_cmd %v failed: %w (stderr: %s)", args["cmd"], runErr, strings.TrimSpace(stderr.String()))
	}

	if capture == "stderr" {
		return strings.TrimRight(stderr.String(), "\n"), nil
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

func basenameFilter(path string) string {
	return filepath.Base(path)
}

func dirnameFilter(path string) string {
	return filepath.Dir(path)
}

// condFilter implements the `cond` filter: `{{ flag | cond (dict "if"
// "A" "else" "B") }}` returns args.if when flag is true, args.else when
// false, empty string when the corresponding arg is absent.
func condFilter(args map[string]any, flag bool) string {
	key := "else"
	if flag {
		key = "if"
	}
	if v, ok := args[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func isEmptyFilter(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// jsonFilter implements `j`/`json`: JSON-encodes v, indenting when
// args.pretty is true. Accepts either a bare value (no args) or (args,
// value) — text/template passes the piped value last.
func jsonFilter(a any, rest ...any) (string, error) {
	var args map[string]any
	var v any
	if len(rest) == 0 {
		v = a
	} else {
		args, _ = a.(map[string]any)
		v = rest[0]
	}

	pretty, _ := args["pretty"].(bool)
	if pretty {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("json: %w", err)
		}
		return string(data), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json: %w", err)
	}
	return string(data), nil
}

func linesFilter(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// quoteFilter implements `q`/`quote`: shell-quotes a scalar, or each
// element of an array joined by a separator (args.sep, default space).
func quoteFilter(a any, rest ...any) (string, error) {
	if len(rest) == 0 {
		switch v := a.(type) {
		case []any:
			return quoteSlice(v, " ")
		default:
			return quote.Quote(fmt.Sprint(v))
		}
	}
	args, _ := a.(map[string]any)
	sep, _ := args["sep"].(string)
	switch v := rest[0].(type) {
	case []any:
		return quoteSlice(v, sep)
	default:
		return quote.Quote(fmt.Sprint(v))
	}
}

func quoteSlice(v []any, sep string) (string, error) {
	strs := make([]string, 0, len(v))
	for _, e := range v {
		strs = append(strs, fmt.Sprint(e))
	}
	return quote.QuoteJoin(strs, sep)
}

// sortedKeys returns m's keys sorted. It is unexported and nothing in
// this package calls it, so internal/items and internal/table do not
// use it.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
