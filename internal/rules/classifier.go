package rules

import "sort"

// Source names the precedence level that produced a classification.
type Source string

const (
	SourceProject    Source = "project"
	SourceWindowRule Source = "window_rule"
	SourceAppClasses Source = "app_classes"
	SourceDefault    Source = "default"
)

// Classification is the result of classifying one window class. Workspace 0
// means no placement preference.
type Classification struct {
	Scope     Scope  `json:"scope"`
	Workspace int    `json:"workspace,omitempty"`
	Source    Source `json:"source"`
	Rule      string `json:"rule,omitempty"`
	Command   string `json:"command,omitempty"`
}

// Ruleset is an immutable compiled view of the configured rules. Both rule
// lists are sorted descending by priority at construction; equal priorities
// keep their original document order.
type Ruleset struct {
	WindowRules   []WindowRule
	AppPatterns   []PatternRule
	ScopedClasses map[string]struct{}
	GlobalClasses map[string]struct{}
}

// NewRuleset normalizes the rule ordering once so classification never sorts.
func NewRuleset(windowRules []WindowRule, appPatterns []PatternRule, scoped, global []string) *Ruleset {
	rs := &Ruleset{
		WindowRules:   append([]WindowRule(nil), windowRules...),
		AppPatterns:   append([]PatternRule(nil), appPatterns...),
		ScopedClasses: make(map[string]struct{}, len(scoped)),
		GlobalClasses: make(map[string]struct{}, len(global)),
	}
	sort.SliceStable(rs.WindowRules, func(i, j int) bool {
		return rs.WindowRules[i].Pattern.Priority > rs.WindowRules[j].Pattern.Priority
	})
	sort.SliceStable(rs.AppPatterns, func(i, j int) bool {
		return rs.AppPatterns[i].Priority > rs.AppPatterns[j].Priority
	})
	for _, class := range scoped {
		rs.ScopedClasses[class] = struct{}{}
	}
	for _, class := range global {
		rs.GlobalClasses[class] = struct{}{}
	}
	return rs
}

// Context carries the active project's explicit class set alongside the
// compiled rules for one classification call.
type Context struct {
	ProjectName    string
	ProjectClasses map[string]struct{}
	Rules          *Ruleset
}

// Classify applies the four precedence levels, first match wins. Lower
// levels are never evaluated once a higher one matches; window rules always
// outrank app-classification patterns regardless of numeric priority.
func Classify(windowClass string, ctx Context) Classification {
	if _, ok := ctx.ProjectClasses[windowClass]; ok {
		return Classification{Scope: ScopeScoped, Source: SourceProject}
	}

	rules := ctx.Rules
	if rules != nil {
		for _, rule := range rules.WindowRules {
			if !rule.Matches(windowClass) {
				continue
			}
			scope := rule.Pattern.Scope
			if rule.Exclude {
				scope = ScopeGlobal
			}
			return Classification{
				Scope:     scope,
				Workspace: rule.Workspace,
				Source:    SourceWindowRule,
				Rule:      rule.Pattern.Raw,
				Command:   rule.Command,
			}
		}
		for _, pattern := range rules.AppPatterns {
			if pattern.Matches(windowClass) {
				return Classification{
					Scope:  pattern.Scope,
					Source: SourceAppClasses,
					Rule:   pattern.Raw,
				}
			}
		}
		if _, ok := rules.ScopedClasses[windowClass]; ok {
			return Classification{Scope: ScopeScoped, Source: SourceAppClasses}
		}
		if _, ok := rules.GlobalClasses[windowClass]; ok {
			return Classification{Scope: ScopeGlobal, Source: SourceAppClasses}
		}
	}

	// Unknown classes stay global so they are never hidden from the user's
	// current project view.
	return Classification{Scope: ScopeGlobal, Source: SourceDefault}
}
