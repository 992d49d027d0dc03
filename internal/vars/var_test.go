package vars

import (
	"testing"

	"github.com/loomrun/loom/internal/errtax"
)

func TestParsePlainName(t *testing.T) {
	v, err := Parse("name")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if v.Name != "name" || v.Kind != KindNothing || len(v.Types) != 0 {
		t.Errorf("Parse() = %+v, want name=name kind=nothing no types", v)
	}
}

func TestParseWithTypes(t *testing.T) {
	v, err := Parse("name : object | string")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if v.Name != "name" {
		t.Errorf("Name = %q, want %q", v.Name, "name")
	}
	if len(v.Types) != 2 || v.Types[0] != "object" || v.Types[1] != "string" {
		t.Errorf("Types = %v, want [object string]", v.Types)
	}
}

func TestParseWithKindAndArgs(t *testing.T) {
	v, err := Parse("json(render:false) % user.profile : object | string")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if v.Kind != KindJSON {
		t.Errorf("Kind = %q, want json", v.Kind)
	}
	if v.Name != "user.profile" {
		t.Errorf("Name = %q, want user.profile", v.Name)
	}
	if v.KindArgs["render"] != "false" {
		t.Errorf("KindArgs[render] = %q, want false", v.KindArgs["render"])
	}
}

func TestParseUnknownKind(t *testing.T) {
	_, err := Parse("bogus % name")
	if _, ok := err.(*errtax.Error); !ok {
		t.Fatalf("expected *errtax.Error, got %T (%v)", err, err)
	}
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse("name : nonsense")
	if _, ok := err.(*errtax.Error); !ok {
		t.Fatalf("expected *errtax.Error, got %T (%v)", err, err)
	}
}

func TestParseBadKindArgRender(t *testing.T) {
	_, err := Parse("json(render:maybe) % name")
	if _, ok := err.(*errtax.Error); !ok {
		t.Fatalf("expected *errtax.Error, got %T (%v)", err, err)
	}
}

func TestCheckType(t *testing.T) {
	v, _ := Parse("name : number | string")
	if err := v.CheckType("hi"); err != nil {
		t.Errorf("CheckType(string) unexpected error: %v", err)
	}
	if err := v.CheckType(3.14); err != nil {
		t.Errorf("CheckType(number) unexpected error: %v", err)
	}
	if err := v.CheckType(true); err == nil {
		t.Errorf("CheckType(bool) expected WrongVarType error")
	}
}

func TestCheckTypeNoDeclaredTypesAlwaysPasses(t *testing.T) {
	v, _ := Parse("name")
	if err := v.CheckType(map[string]any{"a": 1}); err != nil {
		t.Errorf("CheckType() unexpected error: %v", err)
	}
}

func TestFsNameValidation(t *testing.T) {
	v, _ := Parse("fs % my.weird-name")
	if _, err := v.fsName(); err == nil {
		t.Errorf("expected BadFsVar for hyphenated fs name")
	}

	v2, _ := Parse("fs % plain_name")
	name, err := v2.fsName()
	if err != nil {
		t.Fatalf("fsName() error: %v", err)
	}
	if name != "plain_name" {
		t.Errorf("fsName() = %q, want plain_name", name)
	}
}
