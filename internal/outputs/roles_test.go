package outputs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func threeOutputs() []OutputState {
	return []OutputState{
		{Name: "DP-1", Active: true, X: 0},
		{Name: "DP-2", Active: true, X: 2560},
		{Name: "HDMI-A-1", Active: true, X: 5120},
	}
}

func TestAssignRolesOrdersByPosition(t *testing.T) {
	// Listed out of order; x position decides.
	states := []OutputState{
		{Name: "HDMI-A-1", Active: true, X: 5120},
		{Name: "DP-1", Active: true, X: 0},
		{Name: "DP-2", Active: true, X: 2560},
	}
	want := map[Role]string{
		RolePrimary:   "DP-1",
		RoleSecondary: "DP-2",
		RoleTertiary:  "HDMI-A-1",
	}
	if diff := cmp.Diff(want, AssignRoles(states)); diff != "" {
		t.Fatalf("assignments mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignRolesSkipsInactiveAndAbsentRoles(t *testing.T) {
	states := []OutputState{
		{Name: "eDP-1", Active: true, X: 0},
		{Name: "DP-3", Active: false, X: 1920},
	}
	got := AssignRoles(states)
	if len(got) != 1 || got[RolePrimary] != "eDP-1" {
		t.Fatalf("unexpected assignments %v", got)
	}
	if _, ok := got[RoleSecondary]; ok {
		t.Fatal("secondary must be absent, not a placeholder")
	}
}

func TestRoleForWorkspaceBanding(t *testing.T) {
	tests := map[int]Role{
		1: RolePrimary,
		5: RolePrimary,
		6: RoleSecondary,
		7: RoleSecondary,
		8: RoleTertiary,
		9: RoleTertiary,
	}
	for workspace, want := range tests {
		if got := RoleForWorkspace(workspace, nil); got != want {
			t.Fatalf("RoleForWorkspace(%d) = %v, want %v", workspace, got, want)
		}
	}
	preferred := map[int]Role{2: RoleTertiary}
	if got := RoleForWorkspace(2, preferred); got != RoleTertiary {
		t.Fatalf("explicit preference ignored: %v", got)
	}
}

func TestFallbackChain(t *testing.T) {
	assignments := map[Role]string{RolePrimary: "DP-1"}
	if name, ok := Fallback(assignments, RoleTertiary); !ok || name != "DP-1" {
		t.Fatalf("tertiary must fall back through secondary to primary, got %q/%v", name, ok)
	}
	if _, ok := Fallback(map[Role]string{}, RolePrimary); ok {
		t.Fatal("primary has no fallback")
	}
}

func TestFallbackIsHistoryFree(t *testing.T) {
	preferred := map[int]Role{9: RoleTertiary}
	full := AssignRoles(threeOutputs())

	before, ok := OutputForWorkspace(9, full, preferred)
	if !ok || before != "HDMI-A-1" {
		t.Fatalf("expected HDMI-A-1, got %q", before)
	}

	// HDMI-A-1 disconnects: workspace 9 falls back to secondary.
	reduced := AssignRoles(threeOutputs()[:2])
	during, ok := OutputForWorkspace(9, reduced, preferred)
	if !ok || during != "DP-2" {
		t.Fatalf("expected fallback to DP-2, got %q", during)
	}

	// Reconnect: the mapping returns to C with no residual effect.
	after, ok := OutputForWorkspace(9, AssignRoles(threeOutputs()), preferred)
	if !ok || after != before {
		t.Fatalf("expected %q after reconnect, got %q", before, after)
	}
}

func TestOutputForWorkspaceNoOutputs(t *testing.T) {
	if _, ok := OutputForWorkspace(1, AssignRoles(nil), nil); ok {
		t.Fatal("no active outputs means no resolution")
	}
}
