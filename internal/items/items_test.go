package items

import (
	"reflect"
	"testing"

	"github.com/loomrun/loom/internal/ordered"
)

type fakeRenderer struct{}

func (fakeRenderer) Render(tmplText string, ctx map[string]any) (string, error) {
	return tmplText, nil
}

type fakeShell struct {
	stdout string
	err    error
}

func (f fakeShell) RunShell(command string) (string, error) { return f.stdout, f.err }

func TestListWords(t *testing.T) {
	it := &Items{Kind: KindWords, Words: []any{"a", 1, "c"}}
	got, err := it.List(nil, fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"a", "1", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListRangeAscending(t *testing.T) {
	it := &Items{Kind: KindRange, Start: "1", End: "5", Step: "2"}
	got, err := it.List(nil, fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"1", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListRangeDescending(t *testing.T) {
	it := &Items{Kind: KindRange, Start: "5", End: "1", Step: "-2"}
	got, err := it.List(nil, fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"5", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListRangeDefaultStep(t *testing.T) {
	it := &Items{Kind: KindRange, Start: "0", End: "3"}
	got, err := it.List(nil, fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"0", "1", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListCommand(t *testing.T) {
	it := &Items{Kind: KindCommand, Command: "ls"}
	got, err := it.List(nil, fakeRenderer{}, fakeShell{stdout: "a\nb\nc\n"})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListCommandEmptyOutput(t *testing.T) {
	it := &Items{Kind: KindCommand, Command: "true"}
	got, err := it.List(nil, fakeRenderer{}, fakeShell{stdout: ""})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
}

func TestListJSONArray(t *testing.T) {
	it := &Items{Kind: KindJSON, JSON: []any{"x", "y"}}
	got, err := it.List(nil, fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"x", "y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListJSONObjectKeysInOrder(t *testing.T) {
	m := ordered.NewMap()
	m.Set("b", 1)
	m.Set("a", 2)
	it := &Items{Kind: KindJSON, JSON: m}
	got, err := it.List(nil, fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListVarMissing(t *testing.T) {
	it := &Items{Kind: KindVar, VarName: "nope"}
	_, err := it.List(map[string]any{}, fakeRenderer{}, nil)
	if err == nil {
		t.Fatal("expected NoItemsVar-equivalent error")
	}
}

func TestListVarArray(t *testing.T) {
	it := &Items{Kind: KindVar, VarName: "things"}
	got, err := it.List(map[string]any{"things": []any{"p", "q"}}, fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"p", "q"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}
