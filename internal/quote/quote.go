// Package quote shell-quotes strings the same way the original
// implementation did: by shelling out to `printf %q`, so loom's quoting
// rules are always whatever the invoking shell's printf considers safe
// rather than a hand-maintained escaping table.
package quote

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Quote shell-quotes a single scalar value via `printf %q`.
func Quote(s string) (string, error) {
	cmd := exec.Command("printf", "%q", s)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("quote %q: %w", s, err)
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

// QuoteJoin shell-quotes each element of args and joins the results with
// sep (the `q`/`quote` filter's array form; sep defaults to a single
// space when empty).
func QuoteJoin(args []string, sep string) (string, error) {
	if sep == "" {
		sep = " "
	}
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		q, err := Quote(a)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, sep), nil
}
