// Package result implements TaskResult (spec §4.6/§4.8): the value a
// task execution produces, which is either a plain value (optionally
// carrying exported vars) or an Exception propagating a control-flow
// signal (currently only BreakTaskline) up through the caller chain.
//
// Grounded on original_source/src/task_result.rs and
// src/exception.rs.
package result

// ExceptionKind tags which Exception variant is populated. A single
// variant today (BreakTaskline), modeled as a Kind-tagged struct for
// consistency with the rest of the sum types in this codebase and to
// leave room for more control-flow signals without an interface
// rewrite.
type ExceptionKind string

const ExceptionBreakTaskline ExceptionKind = "break-taskline"

// Exception is a control-flow signal a task can raise instead of
// returning a value — currently only the `break` task's
// BreakTaskline{taskline, result}, which unwinds taskline execution up
// to (and including) the named taskline, or the innermost one if
// Taskline is empty.
type Exception struct {
	Kind     ExceptionKind
	Taskline string // empty means "the innermost taskline"
	Result   any    // the value the broken-out-of taskline should resolve to
}

// Result is a task's TaskResult: either a Value (with optional Vars to
// export into the caller's context) or an Exception.
type Result struct {
	Value     any
	Vars      any // map[string]any of vars exported alongside Value; nil if none
	Exception *Exception
}

// FromValue wraps a plain value as a successful Result.
func FromValue(v any) *Result { return &Result{Value: v} }

// FromException wraps an Exception as a Result.
func FromException(e *Exception) *Result { return &Result{Exception: e} }

// IsException reports whether r carries a control-flow Exception
// rather than a plain value.
func (r *Result) IsException() bool { return r != nil && r.Exception != nil }

// AddVars attaches vars to a value-carrying Result; a no-op on an
// Exception-carrying Result (mirrors add_vars's behavior of only
// mutating the Value variant).
func (r *Result) AddVars(vars any) {
	if r == nil || r.Exception != nil {
		return
	}
	r.Vars = vars
}

// AsContext returns r.Vars as a map, if present.
func (r *Result) AsContext() (map[string]any, bool) {
	if r == nil || r.Exception != nil || r.Vars == nil {
		return nil, false
	}
	m, ok := r.Vars.(map[string]any)
	return m, ok
}

// FoldVec folds a sequence of per-iteration Results (spec §4.8's table
// fan-out) into one Result: value becomes the ordered array of each
// iteration's value, and vars becomes, per var name, the ordered array
// of that var's value across iterations. The first Exception
// encountered short-circuits the fold and is returned as-is.
func FoldVec(results []*Result) *Result {
	valueArray := make([]any, 0, len(results))
	var varsArray []map[string]any

	for _, r := range results {
		if r.Exception != nil {
			return r
		}
		valueArray = append(valueArray, r.Value)
		if m, ok := r.AsContext(); ok {
			varsArray = append(varsArray, m)
		}
	}

	out := FromValue(valueArray)
	if len(varsArray) > 0 {
		varsObject := make(map[string]any)
		for _, vars := range varsArray {
			for name, value := range vars {
				list, _ := varsObject[name].([]any)
				varsObject[name] = append(list, value)
			}
		}
		out.AddVars(varsObject)
	}
	return out
}

// ItemResult pairs a fanned-out item's key with its Result, the input
// shape for FoldItems.
type ItemResult struct {
	Item   string
	Result *Result
}

// FoldItems folds a sequence of per-item Results (spec §4.8's items
// fan-out) into one Result: value becomes an object keyed by item,
// and vars becomes, per var name, an object keyed by item. The first
// Exception encountered short-circuits the fold and is returned as-is.
func FoldItems(results []ItemResult) *Result {
	valueObject := make(map[string]any, len(results))
	itemsVars := make(map[string]map[string]any)

	for _, ir := range results {
		if ir.Result.Exception != nil {
			return ir.Result
		}
		valueObject[ir.Item] = ir.Result.Value
		if m, ok := ir.Result.AsContext(); ok {
			itemsVars[ir.Item] = m
		}
	}

	out := FromValue(valueObject)
	if len(itemsVars) > 0 {
		varsObject := make(map[string]any)
		for item, vars := range itemsVars {
			for name, value := range vars {
				m, _ := varsObject[name].(map[string]any)
				if m == nil {
					m = make(map[string]any)
				}
				m[item] = value
				varsObject[name] = m
			}
		}
		out.AddVars(varsObject)
	}
	return out
}
