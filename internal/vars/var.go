// Package vars implements loom's typed, kind-tagged variable model
// (spec §3, §4.2): parsing the `[KIND(args) %] name [: type|type]` grammar,
// kind-directed value transformation (nothing/raw/json/yaml/fs), dotted
// nested-object insertion, and filesystem-backed persistence with
// advisory cross-process locking.
package vars

import (
	"regexp"
	"strings"

	"github.com/loomrun/loom/internal/errtax"
)

// Kind is the variable's kind-directed transformation, spec §4.2.
type Kind string

const (
	KindNothing Kind = "nothing"
	KindRaw     Kind = "raw"
	KindJSON    Kind = "json"
	KindYAML    Kind = "yaml"
	KindFS      Kind = "fs"
)

var validKinds = map[Kind]bool{
	KindNothing: true,
	KindRaw:     true,
	KindJSON:    true,
	KindYAML:    true,
	KindFS:      true,
}

// validTypes is the type-set vocabulary a Var's declared types must draw
// from, per spec §3: {bool, number, u64, i64, f64, string, array, object}.
var validTypes = map[string]bool{
	"bool": true, "number": true, "u64": true, "i64": true, "f64": true,
	"string": true, "array": true, "object": true,
}

var fsNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
var kindArgRe = regexp.MustCompile(`^(\w+)(?:\((.*)\))?$`)

// Var is a parsed variable declaration: its dotted name, optional
// acceptable-type set, kind, and kind-arguments.
type Var struct {
	Name     string
	Types    []string
	Kind     Kind
	KindArgs map[string]string
}

// Parse parses the single-line grammar
//
//	[KIND ['(' k:v [, k:v]* ')'] '%'] name [':' type ['|' type]*]
func Parse(raw string) (*Var, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errtax.BadVar(raw)
	}

	var kindSpec, rest string
	if idx := strings.Index(trimmed, "%"); idx >= 0 {
		kindSpec = strings.TrimSpace(trimmed[:idx])
		rest = strings.TrimSpace(trimmed[idx+1:])
	} else {
		rest = trimmed
	}

	v := &Var{Kind: KindNothing, KindArgs: map[string]string{}}

	if kindSpec != "" {
		m := kindArgRe.FindStringSubmatch(kindSpec)
		if m == nil {
			return nil, errtax.BadVar(raw)
		}
		kind := Kind(m[1])
		if !validKinds[kind] {
			return nil, errtax.UnknownVarKind(string(kind))
		}
		v.Kind = kind

		if m[2] != "" {
			for _, pair := range strings.Split(m[2], ",") {
				pair = strings.TrimSpace(pair)
				if pair == "" {
					continue
				}
				kv := strings.SplitN(pair, ":", 2)
				if len(kv) != 2 {
					return nil, errtax.BadKindArg(pair)
				}
				key := strings.TrimSpace(kv[0])
				val := strings.TrimSpace(kv[1])
				if key == "render" && val != "true" && val != "false" {
					return nil, errtax.BadKindArgRender(val)
				}
				v.KindArgs[key] = val
			}
		}
	}

	if rest == "" {
		return nil, errtax.BadVar(raw)
	}

	nameAndTypes := strings.SplitN(rest, ":", 2)
	v.Name = strings.TrimSpace(nameAndTypes[0])
	if v.Name == "" {
		return nil, errtax.BadVar(raw)
	}

	if len(nameAndTypes) == 2 {
		for _, t := range strings.Split(nameAndTypes[1], "|") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if !validTypes[t] {
				return nil, errtax.UnknownVarType(t)
			}
			v.Types = append(v.Types, t)
		}
	}

	return v, nil
}

// shouldRender reports whether the kind-argument "render" override (if
// any) or the kind's own default says this value should be rendered.
func (v *Var) shouldRender(defaultRender bool) bool {
	if override, ok := v.KindArgs["render"]; ok {
		return override == "true"
	}
	return defaultRender
}

// CheckType fails with WrongVarType when value matches none of v's
// declared types. An empty type-set always passes.
func (v *Var) CheckType(value any) error {
	if len(v.Types) == 0 {
		return nil
	}
	for _, t := range v.Types {
		if matchesType(t, value) {
			return nil
		}
	}
	return errtax.WrongVarType(v.Name, strings.Join(v.Types, " | "))
}

func matchesType(t string, value any) bool {
	switch t {
	case "bool":
		_, ok := value.(bool)
		return ok
	case "number", "u64", "i64", "f64":
		switch value.(type) {
		case float64, float32, int, int64, uint64:
			return true
		}
		return false
	case "string":
		_, ok := value.(string)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}

// fsName returns the filesystem-backed variable's file name: the final
// dotted-path segment, validated against [A-Za-z0-9_]+ per spec §4.2.
func (v *Var) fsName() (string, error) {
	segs := strings.Split(v.Name, ".")
	name := segs[len(segs)-1]
	if !fsNameRe.MatchString(name) {
		return "", errtax.BadFsVar(name)
	}
	return name, nil
}
