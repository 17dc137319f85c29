package rules

import "testing"

func TestLiteralMatchIsExact(t *testing.T) {
	rule, err := NewPatternRule(KindLiteral, "fire*fox", ScopeGlobal, 100, "")
	if err != nil {
		t.Fatalf("NewPatternRule: %v", err)
	}
	if !rule.Matches("fire*fox") {
		t.Fatal("literal should match itself")
	}
	// Metacharacters in a literal have no wildcard semantics.
	if rule.Matches("firefox") {
		t.Fatal("literal must not glob")
	}
	if rule.Matches("Fire*fox") {
		t.Fatal("literal is case-sensitive")
	}
}

func TestGlobMatchesWholeCandidate(t *testing.T) {
	tests := []struct {
		pattern   string
		candidate string
		want      bool
	}{
		{"jetbrains-*", "jetbrains-idea", true},
		{"jetbrains-*", "org.jetbrains-idea", false},
		{"fo?", "foo", true},
		{"[ft]oo", "too", true},
		{"*", "anything", true},
	}
	for _, tt := range tests {
		rule, err := NewPatternRule(KindGlob, tt.pattern, ScopeGlobal, 100, "")
		if err != nil {
			t.Fatalf("NewPatternRule(%q): %v", tt.pattern, err)
		}
		if got := rule.Matches(tt.candidate); got != tt.want {
			t.Fatalf("glob %q vs %q = %v, want %v", tt.pattern, tt.candidate, got, tt.want)
		}
	}
}

func TestGlobDegenerateFallsBackToLiteral(t *testing.T) {
	rule, err := NewPatternRule(KindGlob, "[", ScopeGlobal, 100, "")
	if err != nil {
		t.Fatalf("degenerate globs must construct: %v", err)
	}
	if rule.Matches("x") {
		t.Fatal("bad glob should not match arbitrary strings")
	}
	if !rule.Matches("[") {
		t.Fatal("bad glob should still match its own text")
	}
}

func TestRegexSearchesSubstring(t *testing.T) {
	rule, err := NewPatternRule(KindRegex, "^org\\.", ScopeScoped, 100, "")
	if err != nil {
		t.Fatalf("NewPatternRule: %v", err)
	}
	if !rule.Matches("org.gnome.Nautilus") {
		t.Fatal("regex should search the candidate")
	}
	unanchored, err := NewPatternRule(KindRegex, "term", ScopeGlobal, 100, "")
	if err != nil {
		t.Fatalf("NewPatternRule: %v", err)
	}
	if !unanchored.Matches("foot-terminal") {
		t.Fatal("regex need not match the whole candidate")
	}
}

func TestInvalidRegexFailsAtConstruction(t *testing.T) {
	if _, err := NewPatternRule(KindRegex, "(unclosed", ScopeGlobal, 100, ""); err == nil {
		t.Fatal("invalid regex must fail at construction")
	}
}

func TestNegativePriorityRejected(t *testing.T) {
	if _, err := NewPatternRule(KindLiteral, "firefox", ScopeGlobal, -1, ""); err == nil {
		t.Fatal("negative priority must be rejected")
	}
}

func TestMatchesIsDeterministic(t *testing.T) {
	rule, err := NewPatternRule(KindRegex, "code|Code", ScopeScoped, 100, "")
	if err != nil {
		t.Fatalf("NewPatternRule: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !rule.Matches("Code") {
			t.Fatal("repeated calls must agree")
		}
	}
}

func TestWindowRuleBlacklistRequiresGlobalWildcard(t *testing.T) {
	pattern, err := NewPatternRule(KindGlob, "*", ScopeGlobal, 400, "")
	if err != nil {
		t.Fatalf("NewPatternRule: %v", err)
	}
	if _, err := NewWindowRule(pattern, 0, "", false, false, []string{"mpv"}); err == nil {
		t.Fatal("blacklist without global wildcard must fail construction")
	}
	rule, err := NewWindowRule(pattern, 0, "", false, true, []string{"mpv"})
	if err != nil {
		t.Fatalf("NewWindowRule: %v", err)
	}
	if rule.Matches("mpv") {
		t.Fatal("blacklisted identity must not match")
	}
	if !rule.Matches("firefox") {
		t.Fatal("non-blacklisted identity should match the wildcard")
	}
}

func TestWindowRuleWorkspaceRange(t *testing.T) {
	pattern, _ := NewPatternRule(KindLiteral, "slack", ScopeGlobal, 300, "")
	if _, err := NewWindowRule(pattern, 12, "", false, false, nil); err == nil {
		t.Fatal("workspace outside 1-9 must be rejected")
	}
	if _, err := NewWindowRule(pattern, 9, "", false, false, nil); err != nil {
		t.Fatalf("workspace 9 should be valid: %v", err)
	}
}
