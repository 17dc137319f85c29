// Package outputs maps physical displays to stable logical roles and tracks
// output topology changes.
package outputs

import (
	"fmt"
	"sort"

	"github.com/swayscope/swayscope/internal/ipc"
)

// Role is a stable logical rank used to place workspaces independent of
// physical output names.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
	RoleTertiary  Role = "tertiary"
)

// roleOrder is the assignment order over the stable output ordering.
var roleOrder = []Role{RolePrimary, RoleSecondary, RoleTertiary}

// OutputState is the daemon's snapshot of one output.
type OutputState struct {
	Name      string  `json:"name"`
	Active    bool    `json:"active"`
	Power     bool    `json:"power"`
	Mode      string  `json:"mode,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
	Transform string  `json:"transform,omitempty"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
}

// StateFromIPC converts a get_outputs entry into a snapshot.
func StateFromIPC(out ipc.Output) OutputState {
	state := OutputState{
		Name:      out.Name,
		Active:    out.Active,
		Power:     out.Power,
		Scale:     out.Scale,
		Transform: out.Transform,
		X:         out.Rect.X,
		Y:         out.Rect.Y,
	}
	if out.CurrentMode.Width > 0 {
		state.Mode = fmt.Sprintf("%dx%d@%dmHz", out.CurrentMode.Width, out.CurrentMode.Height, out.CurrentMode.Refresh)
	}
	return state
}

// AssignRoles maps the active outputs to roles. Ordering is by x position,
// ties by name, so the leftmost active output is primary. Roles beyond the
// number of active outputs are simply absent.
func AssignRoles(states []OutputState) map[Role]string {
	active := make([]OutputState, 0, len(states))
	for _, state := range states {
		if state.Active {
			active = append(active, state)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].X != active[j].X {
			return active[i].X < active[j].X
		}
		return active[i].Name < active[j].Name
	})
	assignments := make(map[Role]string, len(roleOrder))
	for i, role := range roleOrder {
		if i >= len(active) {
			break
		}
		assignments[role] = active[i].Name
	}
	return assignments
}

// RoleForWorkspace returns the workspace's desired role: the explicit
// preference when configured, otherwise a fixed banding over the workspace
// number (1-5 primary, 6-7 secondary, 8-9 tertiary).
func RoleForWorkspace(workspace int, preferred map[int]Role) Role {
	if role, ok := preferred[workspace]; ok {
		return role
	}
	switch {
	case workspace >= 8:
		return RoleTertiary
	case workspace >= 6:
		return RoleSecondary
	default:
		return RolePrimary
	}
}

// OutputForWorkspace resolves the physical output a workspace should render
// on, applying the fallback chain when its desired role is unassigned. The
// result is a pure function of current topology, so a reconnected monitor
// snaps previously fallen-back workspaces straight back.
func OutputForWorkspace(workspace int, assignments map[Role]string, preferred map[int]Role) (string, bool) {
	role := RoleForWorkspace(workspace, preferred)
	if name, ok := assignments[role]; ok {
		return name, true
	}
	return Fallback(assignments, role)
}

// Fallback walks tertiary -> secondary -> primary. Primary has no fallback:
// with zero active outputs there is nothing to return.
func Fallback(assignments map[Role]string, missing Role) (string, bool) {
	for {
		switch missing {
		case RoleTertiary:
			missing = RoleSecondary
		case RoleSecondary:
			missing = RolePrimary
		default:
			return "", false
		}
		if name, ok := assignments[missing]; ok {
			return name, true
		}
	}
}
