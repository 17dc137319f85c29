package config

import (
	"fmt"
	"strings"

	"github.com/swayscope/swayscope/internal/outputs"
	"github.com/swayscope/swayscope/internal/rules"
)

// Default priority weights for rules that do not set one. Window rules sit
// in a band above app-classification patterns; the level ordering decides
// across the two sets regardless.
const (
	defaultWindowRulePriority = 300
	defaultAppPatternPriority = 100
)

// Project is the canonical in-memory project.
type Project struct {
	Name           string
	Directory      string
	Classes        map[string]struct{}
	Remote         *RemoteConfig
	WorkspaceRoles map[int]outputs.Role
}

// Snapshot is the immutable compiled configuration the decision engines
// read. Reload builds a fresh snapshot and swaps it atomically; an in-flight
// classification sees either the old or the new one in full.
type Snapshot struct {
	Projects map[string]Project
	Ruleset  *rules.Ruleset
}

// ProjectClasses returns the scoped-class set of the named project, or nil.
func (s *Snapshot) ProjectClasses(name string) map[string]struct{} {
	if s == nil {
		return nil
	}
	if project, ok := s.Projects[name]; ok {
		return project.Classes
	}
	return nil
}

// WorkspaceRoles returns the named project's workspace role preferences.
func (s *Snapshot) WorkspaceRoles(name string) map[int]outputs.Role {
	if s == nil {
		return nil
	}
	if project, ok := s.Projects[name]; ok {
		return project.WorkspaceRoles
	}
	return nil
}

// Compile turns validated documents into the canonical snapshot. Rule
// construction is the fail-fast boundary: a corrupt rule rejects the whole
// compile and never enters a live rule set.
func Compile(docs *Documents) (*Snapshot, error) {
	snapshot := &Snapshot{Projects: make(map[string]Project, len(docs.Projects))}

	for _, doc := range docs.Projects {
		project := Project{
			Name:      doc.Name,
			Directory: doc.Directory,
			Classes:   make(map[string]struct{}, len(doc.Classes)),
			Remote:    doc.Remote,
		}
		for _, class := range doc.Classes {
			project.Classes[class] = struct{}{}
		}
		if len(doc.Workspaces) > 0 {
			project.WorkspaceRoles = make(map[int]outputs.Role, len(doc.Workspaces))
			for workspace, role := range doc.Workspaces {
				project.WorkspaceRoles[workspace] = outputs.Role(role)
			}
		}
		snapshot.Projects[doc.Name] = project
	}

	windowRules := make([]rules.WindowRule, 0, len(docs.WindowRules))
	for i, doc := range docs.WindowRules {
		pattern, err := compilePattern(doc, defaultWindowRulePriority)
		if err != nil {
			return nil, fmt.Errorf("window rule %d: %w", i, err)
		}
		rule, err := rules.NewWindowRule(pattern, doc.Workspace, doc.Command, doc.Exclude, doc.GlobalWildcard, doc.Blacklist)
		if err != nil {
			return nil, fmt.Errorf("window rule %d: %w", i, err)
		}
		windowRules = append(windowRules, rule)
	}

	appPatterns := make([]rules.PatternRule, 0, len(docs.AppClasses.Patterns))
	for i, doc := range docs.AppClasses.Patterns {
		pattern, err := compilePattern(doc, defaultAppPatternPriority)
		if err != nil {
			return nil, fmt.Errorf("app pattern %d: %w", i, err)
		}
		appPatterns = append(appPatterns, pattern)
	}

	snapshot.Ruleset = rules.NewRuleset(windowRules, appPatterns, docs.AppClasses.Scoped, docs.AppClasses.Global)
	return snapshot, nil
}

// compilePattern converges the legacy prefix encoding and the structured
// match form on one rules.PatternRule; nothing downstream of loading ever
// branches on the document format again.
func compilePattern(doc RuleDoc, defaultPriority int) (rules.PatternRule, error) {
	kind := rules.KindLiteral
	raw := doc.Pattern
	if doc.Match != nil {
		raw = doc.Match.Pattern
		switch doc.Match.Kind {
		case "literal", "":
			kind = rules.KindLiteral
		case "glob":
			kind = rules.KindGlob
		case "regex":
			kind = rules.KindRegex
		default:
			return rules.PatternRule{}, fmt.Errorf("unknown match kind %q", doc.Match.Kind)
		}
	} else {
		switch {
		case strings.HasPrefix(raw, "regex:"):
			kind = rules.KindRegex
			raw = strings.TrimPrefix(raw, "regex:")
		case strings.HasPrefix(raw, "glob:"):
			kind = rules.KindGlob
			raw = strings.TrimPrefix(raw, "glob:")
		}
	}

	scope := rules.ScopeGlobal
	if doc.Scope == "scoped" {
		scope = rules.ScopeScoped
	}
	priority := defaultPriority
	if doc.Priority != nil {
		priority = *doc.Priority
	}
	return rules.NewPatternRule(kind, raw, scope, priority, doc.Description)
}
