package tmpl

import (
	"fmt"
	"regexp"

	"github.com/dlclark/regexp2"
)

// compileRe compiles re as an ECMAScript-flavored pattern (dlclark/regexp2,
// the engine originally bundled with the corpus's JS VM) unless fix is
// true, in which case re is escaped to a fixed (literal) string first.
func compileRe(re string, fix bool) (*regexp2.Regexp, error) {
	pattern := re
	if fix {
		pattern = regexp.QuoteMeta(re)
	}
	compiled, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("compile regex %q: %w", re, err)
	}
	return compiled, nil
}

func re2Match(re *regexp2.Regexp, s string) (bool, error) {
	m, err := re.MatchString(s)
	if err != nil {
		return false, err
	}
	return m, nil
}

// reMatchFilter implements `re_match{re, fix?}`: a boolean for a scalar
// input, or a filtered array (elements that match) for an array input.
// text/template passes the piped value as the final positional argument.
func reMatchFilter(a any, rest ...any) (any, error) {
	var args map[string]any
	var v any
	if len(rest) == 0 {
		return nil, fmt.Errorf("re_match: missing pattern argument")
	}
	args, _ = a.(map[string]any)
	v = rest[0]

	reStr, _ := args["re"].(string)
	fix, _ := args["fix"].(bool)
	re, err := compileRe(reStr, fix)
	if err != nil {
		return nil, err
	}

	switch val := v.(type) {
	case []any:
		out := make([]any, 0, len(val))
		for _, e := range val {
			ok, err := re2Match(re, fmt.Sprint(e))
			if err != nil {
				return nil, fmt.Errorf("re_match: %w", err)
			}
			if ok {
				out = append(out, e)
			}
		}
		return out, nil
	default:
		return re2Match(re, fmt.Sprint(val))
	}
}

// reSubFilter implements `re_sub{re, str, n?, fix?, matches_only?}`:
// substitutes up to n occurrences (0 = all) of re with str. For array
// input, substitution runs per-element; matches_only=true drops elements
// that had no match instead of keeping them unmodified.
func reSubFilter(a any, rest ...any) (any, error) {
	if len(rest) == 0 {
		return nil, fmt.Errorf("re_sub: missing pattern argument")
	}
	args, _ := a.(map[string]any)
	v := rest[0]

	reStr, _ := args["re"].(string)
	replacement, _ := args["str"].(string)
	fix, _ := args["fix"].(bool)
	matchesOnly, _ := args["matches_only"].(bool)
	n := -1 // regexp2.Replace: -1 means replace all
	if raw, ok := args["n"]; ok {
		switch num := raw.(type) {
		case int:
			n = num
		case int64:
			n = int(num)
		case float64:
			n = int(num)
		}
		if n == 0 {
			n = -1
		}
	}

	re, err := compileRe(reStr, fix)
	if err != nil {
		return nil, err
	}

	substitute := func(s string) (string, bool, error) {
		matched, err := re2Match(re, s)
		if err != nil {
			return "", false, err
		}
		out, err := re.Replace(s, replacement, 0, n)
		if err != nil {
			return "", false, fmt.Errorf("re_sub: %w", err)
		}
		return out, matched, nil
	}

	switch val := v.(type) {
	case []any:
		out := make([]any, 0, len(val))
		for _, e := range val {
			replaced, matched, err := substitute(fmt.Sprint(e))
			if err != nil {
				return nil, err
			}
			if matchesOnly && !matched {
				continue
			}
			out = append(out, replaced)
		}
		return out, nil
	default:
		replaced, _, err := substitute(fmt.Sprint(val))
		if err != nil {
			return nil, err
		}
		return replaced, nil
	}
}
