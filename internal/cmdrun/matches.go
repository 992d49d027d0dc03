package cmdrun

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// MatchKind tags which Matches variant is populated. A closed tagged
// union (struct + Kind switch) rather than an interface, matching the
// same sum-type convention used by internal/items and internal/table.
type MatchKind string

const (
	MatchAnd   MatchKind = "and"
	MatchOr    MatchKind = "or"
	MatchAnyRe MatchKind = "any-re"
	MatchOutRe MatchKind = "out-re"
	MatchErrRe MatchKind = "err-re"
)

// Matches is the recursive match predicate used by success_matches and
// failure_matches (spec §4.5), grounded on
// original_source/src/matches.rs's And/Or/AnyRe/OutRe/ErrRe enum.
type Matches struct {
	Kind     MatchKind
	Children []*Matches // And / Or
	Re       string     // AnyRe / OutRe / ErrRe
}

// IsMatch evaluates the predicate against a command's captured stdout
// and stderr.
func (m *Matches) IsMatch(out, err string) (bool, error) {
	if m == nil {
		return false, nil
	}
	switch m.Kind {
	case MatchAnd:
		for _, c := range m.Children {
			ok, e := c.IsMatch(out, err)
			if e != nil {
				return false, e
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case MatchOr:
		for _, c := range m.Children {
			ok, e := c.IsMatch(out, err)
			if e != nil {
				return false, e
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case MatchAnyRe:
		o, e := reMatches(m.Re, out)
		if e != nil {
			return false, e
		}
		if o {
			return true, nil
		}
		return reMatches(m.Re, err)

	case MatchOutRe:
		return reMatches(m.Re, out)

	case MatchErrRe:
		return reMatches(m.Re, err)

	default:
		return false, fmt.Errorf("cmdrun: unknown matches kind %q", m.Kind)
	}
}

func reMatches(pattern, s string) (bool, error) {
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return false, fmt.Errorf("compile matches regex %q: %w", pattern, err)
	}
	m, err := re.FindStringMatch(s)
	if err != nil {
		return false, fmt.Errorf("eval matches regex %q: %w", pattern, err)
	}
	return m != nil, nil
}

// jsonMatches is the JSON-serializable shape of a Matches tree, used by
// errtax.ContextBag's "matches" field (spec §4.5: the failure context
// bag records the matches predicate that was evaluated, as JSON).
// Mirrors the kebab-case externally-tagged encoding of the original
// Rust enum (serde's default tagged-enum representation).
type jsonMatches map[string]any

// ToJSON renders m into the tagged-map shape above.
func (m *Matches) ToJSON() jsonMatches {
	if m == nil {
		return nil
	}
	switch m.Kind {
	case MatchAnd, MatchOr:
		children := make([]jsonMatches, 0, len(m.Children))
		for _, c := range m.Children {
			children = append(children, c.ToJSON())
		}
		return jsonMatches{string(m.Kind): children}
	default:
		return jsonMatches{string(m.Kind): m.Re}
	}
}
