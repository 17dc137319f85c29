package rules

import "fmt"

// WindowRule extends a pattern with placement behavior: an optional target
// workspace, a post-match command, an exclusion modifier, and a blacklist of
// identities a global wildcard must not capture.
type WindowRule struct {
	Pattern        PatternRule
	Workspace      int
	Command        string
	Exclude        bool
	GlobalWildcard bool
	Blacklist      []string
}

// NewWindowRule validates the composition. A blacklist only makes sense on a
// global wildcard rule; anything else is a corrupt rule and is rejected
// before it can enter a live rule set.
func NewWindowRule(pattern PatternRule, workspace int, command string, exclude, globalWildcard bool, blacklist []string) (WindowRule, error) {
	if workspace != 0 && (workspace < 1 || workspace > 9) {
		return WindowRule{}, fmt.Errorf("rule %q: workspace must be 1-9, got %d", pattern.Raw, workspace)
	}
	if len(blacklist) > 0 && !globalWildcard {
		return WindowRule{}, fmt.Errorf("rule %q: blacklist requires the global wildcard modifier", pattern.Raw)
	}
	return WindowRule{
		Pattern:        pattern,
		Workspace:      workspace,
		Command:        command,
		Exclude:        exclude,
		GlobalWildcard: globalWildcard,
		Blacklist:      append([]string(nil), blacklist...),
	}, nil
}

// Matches applies the pattern and, for global wildcard rules, the blacklist.
func (r WindowRule) Matches(candidate string) bool {
	if r.GlobalWildcard {
		for _, excluded := range r.Blacklist {
			if excluded == candidate {
				return false
			}
		}
	}
	return r.Pattern.Matches(candidate)
}
