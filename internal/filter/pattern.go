package filter

import (
	"regexp"
	"strings"
)

// PatternKind tells how a sub-pattern matches.
type PatternKind int

const (
	// PatternRegex matches with a compiled, unanchored regular expression.
	PatternRegex PatternKind = iota
	// PatternLiteral matches as a case-sensitive substring. Used when the
	// sub-pattern does not compile as a regular expression.
	PatternLiteral
)

func (k PatternKind) String() string {
	if k == PatternLiteral {
		return "literal"
	}
	return "regex"
}

// Pattern is one sub-pattern, decided once as regex or literal.
type Pattern struct {
	source string
	kind   PatternKind
	re     *regexp.Regexp
}

// CompilePattern compiles s as a regular expression, falling back to a
// literal substring match when s is not valid regex syntax.
func CompilePattern(s string) Pattern {
	re, err := regexp.Compile(s)
	if err != nil {
		return Pattern{source: s, kind: PatternLiteral}
	}
	return Pattern{source: s, kind: PatternRegex, re: re}
}

// Kind returns how the pattern matches.
func (p Pattern) Kind() PatternKind {
	return p.kind
}

// String returns the sub-pattern as configured.
func (p Pattern) String() string {
	return p.source
}

// Match reports whether the pattern occurs anywhere in text.
func (p Pattern) Match(text string) bool {
	if p.kind == PatternLiteral {
		return strings.Contains(text, p.source)
	}
	return p.re.MatchString(text)
}

// SplitPatterns splits a comma-separated option value into trimmed,
// non-empty sub-patterns.
func SplitPatterns(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func compileAll(option string) []Pattern {
	parts := SplitPatterns(option)
	if len(parts) == 0 {
		return nil
	}
	patterns := make([]Pattern, len(parts))
	for i, part := range parts {
		patterns[i] = CompilePattern(part)
	}
	return patterns
}

func matchAny(patterns []Pattern, text string) bool {
	for _, p := range patterns {
		if p.Match(text) {
			return true
		}
	}
	return false
}
