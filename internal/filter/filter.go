// Package filter decides which traffic entries survive a run: an exact status
// code, inclusion and exclusion patterns over the decoded response, and an
// optional boolean expression over the entry's fields. All configured
// predicates must hold for an entry to be included.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/olegiv/burplog-go/internal/traffic"
)

// Spec is the filter configuration. Zero value means no filtering.
type Spec struct {
	// StatusCode, when set, must equal the entry's status code exactly.
	StatusCode *int
	// Include holds comma-separated sub-patterns; at least one must match
	// the decoded response.
	Include string
	// Exclude holds comma-separated sub-patterns; any match drops the entry.
	Exclude string
	// Expression is an optional boolean expression over entry fields,
	// e.g. `method == "POST" && length > 1000`.
	Expression string
}

// IsEmpty reports whether no predicate is configured.
func (s Spec) IsEmpty() bool {
	return s.StatusCode == nil &&
		len(SplitPatterns(s.Include)) == 0 &&
		len(SplitPatterns(s.Exclude)) == 0 &&
		strings.TrimSpace(s.Expression) == ""
}

// String describes the configured predicates, for logs and export records.
func (s Spec) String() string {
	var parts []string
	if s.StatusCode != nil {
		parts = append(parts, "status_code="+strconv.Itoa(*s.StatusCode))
	}
	if p := SplitPatterns(s.Include); len(p) > 0 {
		parts = append(parts, "include="+strings.Join(p, ","))
	}
	if p := SplitPatterns(s.Exclude); len(p) > 0 {
		parts = append(parts, "exclude="+strings.Join(p, ","))
	}
	if e := strings.TrimSpace(s.Expression); e != "" {
		parts = append(parts, "where="+e)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// Filter is a compiled Spec. It holds no mutable state and is safe for
// concurrent use.
type Filter struct {
	spec    Spec
	status  *int
	include []Pattern
	exclude []Pattern
	program *vm.Program
}

// Compile builds a Filter from spec. Sub-patterns never fail to compile
// (invalid regex falls back to literal matching); only an invalid
// Expression returns an error.
func Compile(spec Spec) (*Filter, error) {
	f := &Filter{
		spec:    spec,
		include: compileAll(spec.Include),
		exclude: compileAll(spec.Exclude),
	}
	if spec.StatusCode != nil {
		code := *spec.StatusCode
		f.status = &code
	}

	if e := strings.TrimSpace(spec.Expression); e != "" {
		program, err := expr.Compile(e,
			expr.Env(exprEnv()),
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("invalid filter expression %q: %w", e, err)
		}
		f.program = program
	}

	return f, nil
}

// exprEnv types the numeric fields as int for the checker. At run time a
// missing value is nil, and ordering it fails inside eval.
func exprEnv() map[string]interface{} {
	env := traffic.Entry{}.Fields()
	env["status_code"] = 0
	env["length"] = 0
	return env
}

// Spec returns the configuration the filter was compiled from.
func (f *Filter) Spec() Spec {
	if f == nil {
		return Spec{}
	}
	return f.spec
}

// IsNoop reports whether the filter includes every entry.
func (f *Filter) IsNoop() bool {
	return f == nil || (f.status == nil && len(f.include) == 0 && len(f.exclude) == 0 && f.program == nil)
}

// Include reports whether e passes every configured predicate.
// A nil Filter includes everything.
func (f *Filter) Include(e traffic.Entry) bool {
	if f == nil {
		return true
	}
	if f.status != nil && !e.HasStatus(*f.status) {
		return false
	}
	if len(f.include) > 0 && !matchAny(f.include, e.DecodedResponse) {
		return false
	}
	if len(f.exclude) > 0 && matchAny(f.exclude, e.DecodedResponse) {
		return false
	}
	if f.program != nil && !f.eval(e) {
		return false
	}
	return true
}

// Apply returns the entries that pass, in their original order.
func (f *Filter) Apply(entries []traffic.Entry) []traffic.Entry {
	if f.IsNoop() {
		return entries
	}
	out := make([]traffic.Entry, 0, len(entries))
	for _, e := range entries {
		if f.Include(e) {
			out = append(out, e)
		}
	}
	return out
}

// eval runs the expression. A runtime error, such as ordering a nil
// status code, counts as no match.
func (f *Filter) eval(e traffic.Entry) bool {
	out, err := expr.Run(f.program, e.Fields())
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}
