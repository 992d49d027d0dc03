package vars

import "strings"

// entry pairs a parsed Var with the raw value the manifest assigned it.
type entry struct {
	v   *Var
	raw any
}

// Vars is the ordered mapping from Variable to raw value described in
// spec §3. Insertion overrides a previous entry of the same name in
// place, preserving its original position — rendering is then strictly
// sequential, each entry seeing the accumulated rendered values of every
// entry before it.
type Vars struct {
	order   []string
	entries map[string]entry
}

// NewVars returns an empty ordered variable set.
func NewVars() *Vars {
	return &Vars{entries: map[string]entry{}}
}

// Set inserts or overrides v's entry.
func (vs *Vars) Set(v *Var, raw any) {
	if _, exists := vs.entries[v.Name]; !exists {
		vs.order = append(vs.order, v.Name)
	}
	vs.entries[v.Name] = entry{v: v, raw: raw}
}

// Len reports the number of distinct variable names held.
func (vs *Vars) Len() int { return len(vs.order) }

// Render sequentially processes every entry against an accumulator
// context seeded from base (base is not mutated; a shallow copy is
// cloned before inserts), returning the resulting context.
func (vs *Vars) Render(base map[string]any, r Renderer, fsDir FSDir) (map[string]any, error) {
	ctx := cloneContext(base)

	for _, name := range vs.order {
		e := vs.entries[name]
		value, err := ProcessValue(e.v, e.raw, ctx, r, fsDir)
		if err != nil {
			return nil, err
		}
		if err := e.v.CheckType(value); err != nil {
			return nil, err
		}
		setDotted(ctx, e.v.Name, value)
	}

	return ctx, nil
}

// cloneContext performs a shallow copy of the top-level map; nested maps
// are shared until setDotted needs to write through one of them, at
// which point that path is copy-on-write so sibling render calls sharing
// the same base are never mutated.
func cloneContext(base map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	return out
}

// setDotted inserts value at the dotted path name within ctx, creating
// intermediate map[string]any nodes (copy-on-write) as needed so that
// ctx.a.b.c == value afterward.
func setDotted(ctx map[string]any, name string, value any) {
	segs := strings.Split(name, ".")
	if len(segs) == 1 {
		ctx[segs[0]] = value
		return
	}

	cur := ctx
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
		} else {
			copied := make(map[string]any, len(next))
			for k, v := range next {
				copied[k] = v
			}
			next = copied
		}
		cur[seg] = next
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}
