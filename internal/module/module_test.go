package module

import (
	"path/filepath"
	"testing"
)

func TestResolveAbsolute(t *testing.T) {
	got, err := Resolve("/abs/path.toml", "/caller")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != "/abs/path.toml" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolveRelativeDot(t *testing.T) {
	got, err := Resolve("./sub/mod.toml", "/caller")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != filepath.Join("/caller", "sub/mod.toml") {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolveRelativeDotDot(t *testing.T) {
	got, err := Resolve("../sibling.toml", "/caller/dir")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != filepath.Join("/caller/dir", "../sibling.toml") {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolveBareNameUsesConfigModulesDir(t *testing.T) {
	got, err := Resolve("deploy", "/caller")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if filepath.Base(got) != "deploy.toml" {
		t.Errorf("Resolve() = %q, want *.toml", got)
	}
	if filepath.Base(filepath.Dir(got)) != "modules" {
		t.Errorf("Resolve() = %q, want .../modules/...", got)
	}
}

func TestUseUnitResolvedNameDefaultsToBaseName(t *testing.T) {
	u := UseUnit{Module: "net-utils.toml"}
	if got := u.ResolvedName(); got != "net-utils" {
		t.Errorf("ResolvedName() = %q", got)
	}
}

func TestFilterTasklinesPrefixesWithColon(t *testing.T) {
	u := UseUnit{Module: "deploy.toml", Items: []string{"build"}}
	all := map[string]any{"build": "x", "test": "y"}
	out, err := FilterTasklines(u, all)
	if err != nil {
		t.Fatalf("FilterTasklines() error: %v", err)
	}
	if out["deploy:build"] != "x" {
		t.Errorf("got %#v", out)
	}
}

func TestFilterTasklinesMissingErrors(t *testing.T) {
	u := UseUnit{Module: "deploy.toml", Items: []string{"missing"}}
	_, err := FilterTasklines(u, map[string]any{})
	if err == nil {
		t.Fatal("expected UseTasklines error")
	}
}

func TestFilterVarsPrefixesWithUnderscoreAndDashRewrite(t *testing.T) {
	u := UseUnit{Module: "net-utils.toml", Items: []string{"port"}}
	all := map[string]any{"port": 8080}
	out, err := FilterVars(u, all)
	if err != nil {
		t.Fatalf("FilterVars() error: %v", err)
	}
	if out["net_utils_port"] != 8080 {
		t.Errorf("got %#v", out)
	}
}

func TestFilterVarsMissingErrors(t *testing.T) {
	u := UseUnit{Module: "net-utils.toml", Items: []string{"missing"}}
	_, err := FilterVars(u, map[string]any{})
	if err == nil {
		t.Fatal("expected UseVars error")
	}
}
