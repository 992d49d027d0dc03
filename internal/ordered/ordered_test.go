package ordered

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSetPreservesInsertionOrder(t *testing.T) {
	m := NewMap()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("c", 3)

	want := []string{"b", "a", "c"}
	got := m.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSetOverrideKeepsPosition(t *testing.T) {
	m := NewMap()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 99)

	if len(m.Keys()) != 2 {
		t.Fatalf("Keys() = %v, want 2 entries", m.Keys())
	}
	v, _ := m.Get("a")
	if v != 99 {
		t.Errorf("Get(a) = %v, want 99", v)
	}
	if m.Keys()[0] != "a" {
		t.Errorf("Keys()[0] = %q, want a (override keeps original position)", m.Keys()[0])
	}
}

func TestDecodeYAMLNodePreservesOrder(t *testing.T) {
	var root yaml.Node
	src := "zebra: 1\napple: 2\nmango: 3\n"
	if err := yaml.Unmarshal([]byte(src), &root); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}

	m, err := DecodeYAMLNode(root.Content[0])
	if err != nil {
		t.Fatalf("DecodeYAMLNode() error: %v", err)
	}
	want := []string{"zebra", "apple", "mango"}
	got := m.Keys()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeYAMLNodeNested(t *testing.T) {
	var root yaml.Node
	src := "outer:\n  inner: 1\nlist:\n  - a\n  - b\n"
	if err := yaml.Unmarshal([]byte(src), &root); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}

	m, err := DecodeYAMLNode(root.Content[0])
	if err != nil {
		t.Fatalf("DecodeYAMLNode() error: %v", err)
	}

	outerVal, _ := m.Get("outer")
	outer, ok := outerVal.(*Map)
	if !ok {
		t.Fatalf("outer = %T, want *Map", outerVal)
	}
	if v, _ := outer.Get("inner"); v != 1 {
		t.Errorf("outer[inner] = %v, want 1", v)
	}

	listVal, _ := m.Get("list")
	list, ok := listVal.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("list = %v, want 2-element slice", listVal)
	}
}

func TestToPlainMap(t *testing.T) {
	m := NewMap()
	m.Set("a", 1)
	nested := NewMap()
	nested.Set("b", 2)
	m.Set("nested", nested)

	plain := ToPlainMap(m)
	if plain["a"] != 1 {
		t.Errorf("plain[a] = %v, want 1", plain["a"])
	}
	nestedPlain, ok := plain["nested"].(map[string]any)
	if !ok {
		t.Fatalf("plain[nested] = %T, want map[string]any", plain["nested"])
	}
	if nestedPlain["b"] != 2 {
		t.Errorf("plain[nested][b] = %v, want 2", nestedPlain["b"])
	}
}
