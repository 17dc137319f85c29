package rules

import (
	"fmt"
	"path"
	"regexp"
)

// Kind selects the matching semantics of a pattern.
type Kind string

const (
	KindLiteral Kind = "literal"
	KindGlob    Kind = "glob"
	KindRegex   Kind = "regex"
)

// Scope is the visibility a matched window receives.
type Scope string

const (
	// ScopeScoped ties the window to the active project.
	ScopeScoped Scope = "scoped"
	// ScopeGlobal keeps the window visible regardless of active project.
	ScopeGlobal Scope = "global"
)

// PatternRule is a compiled classification predicate. Regex patterns compile
// exactly once here; an invalid pattern can never reach the matching path.
type PatternRule struct {
	Raw         string
	Kind        Kind
	Scope       Scope
	Priority    int
	Description string

	re *regexp.Regexp
}

// NewPatternRule validates and compiles a pattern rule.
func NewPatternRule(kind Kind, raw string, scope Scope, priority int, description string) (PatternRule, error) {
	if raw == "" {
		return PatternRule{}, fmt.Errorf("pattern cannot be empty")
	}
	if priority < 0 {
		return PatternRule{}, fmt.Errorf("pattern %q: priority must be non-negative, got %d", raw, priority)
	}
	switch scope {
	case ScopeScoped, ScopeGlobal:
	default:
		return PatternRule{}, fmt.Errorf("pattern %q: unknown scope %q", raw, scope)
	}
	rule := PatternRule{
		Raw:         raw,
		Kind:        kind,
		Scope:       scope,
		Priority:    priority,
		Description: description,
	}
	switch kind {
	case KindLiteral, KindGlob:
	case KindRegex:
		re, err := regexp.Compile(raw)
		if err != nil {
			return PatternRule{}, fmt.Errorf("pattern %q: %w", raw, err)
		}
		rule.re = re
	default:
		return PatternRule{}, fmt.Errorf("pattern %q: unknown kind %q", raw, kind)
	}
	return rule, nil
}

// Matches evaluates the candidate string. It is deterministic and never
// fails: literal is byte equality, glob matches the whole candidate with
// shell wildcards, and regex searches anywhere in the candidate.
func (p PatternRule) Matches(candidate string) bool {
	switch p.Kind {
	case KindLiteral:
		return p.Raw == candidate
	case KindGlob:
		ok, err := path.Match(p.Raw, candidate)
		if err != nil {
			// Degenerate globs like "[" fall back to byte equality.
			return p.Raw == candidate
		}
		return ok
	case KindRegex:
		return p.re.MatchString(candidate)
	default:
		return false
	}
}
