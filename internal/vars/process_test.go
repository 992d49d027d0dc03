package vars

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// passthroughRenderer treats `{{X}}` as a literal lookup into ctx["X"]
// converted to a string, just enough to exercise the render path without
// depending on internal/tmpl (avoiding a tmpl <-> vars import cycle in
// tests mirrors the production wiring, where the caller supplies the
// real engine).
type passthroughRenderer struct{}

func (passthroughRenderer) Render(tmplText string, ctx map[string]any) (string, error) {
	out := tmplText
	for k, v := range ctx {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = strings.ReplaceAll(out, "{{"+k+"}}", s)
	}
	return out, nil
}

func TestProcessValueRawNeverRenders(t *testing.T) {
	v, _ := Parse("raw % greeting")
	out, err := ProcessValue(v, "hello {{name}}", map[string]any{"name": "world"}, passthroughRenderer{}, nil)
	if err != nil {
		t.Fatalf("ProcessValue() error: %v", err)
	}
	if out != "hello {{name}}" {
		t.Errorf("ProcessValue() = %q, want unrendered literal", out)
	}
}

func TestProcessValueNothingRenders(t *testing.T) {
	v, _ := Parse("greeting")
	out, err := ProcessValue(v, "hello {{name}}", map[string]any{"name": "world"}, passthroughRenderer{}, nil)
	if err != nil {
		t.Fatalf("ProcessValue() error: %v", err)
	}
	if out != "hello world" {
		t.Errorf("ProcessValue() = %q, want %q", out, "hello world")
	}
}

func TestProcessValueJSON(t *testing.T) {
	v, _ := Parse("json % payload")
	out, err := ProcessValue(v, `{"a": 1, "b": [1,2,3]}`, nil, passthroughRenderer{}, nil)
	if err != nil {
		t.Fatalf("ProcessValue() error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("ProcessValue() = %T, want map[string]any", out)
	}
	if m["a"].(float64) != 1 {
		t.Errorf("m[a] = %v, want 1", m["a"])
	}
}

func TestProcessValueYAML(t *testing.T) {
	v, _ := Parse("yaml % payload")
	out, err := ProcessValue(v, "a: 1\nb:\n  - x\n  - y\n", nil, passthroughRenderer{}, nil)
	if err != nil {
		t.Fatalf("ProcessValue() error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("ProcessValue() = %T, want map[string]any", out)
	}
	if list, ok := m["b"].([]any); !ok || len(list) != 2 {
		t.Errorf("m[b] = %v, want 2-element array", m["b"])
	}
}

func TestProcessValueFsWritesAndReturnsName(t *testing.T) {
	dir := t.TempDir()
	v, _ := Parse("fs % myvar")
	out, err := ProcessValue(v, "secret-{{x}}", map[string]any{"x": "1"}, passthroughRenderer{}, func() string { return dir })
	if err != nil {
		t.Fatalf("ProcessValue() error: %v", err)
	}
	if out != "myvar" {
		t.Errorf("ProcessValue() = %v, want %q", out, "myvar")
	}

	data, err := os.ReadFile(filepath.Join(dir, "myvar"))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "secret-1" {
		t.Errorf("file content = %q, want %q", data, "secret-1")
	}
}

func TestReadFsVarMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFsVar(dir, "nope")
	if err == nil {
		t.Fatal("expected NoFsVar error")
	}
}

func TestReadFsVarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	got, err := ReadFsVar(dir, "x")
	if err != nil {
		t.Fatalf("ReadFsVar() error: %v", err)
	}
	if got != "content" {
		t.Errorf("ReadFsVar() = %q, want %q", got, "content")
	}
}
