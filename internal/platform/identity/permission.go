// Package identity implements the user/role/group/permission core (§3, §4.12):
// bitfield action/scope permissions, predefined system roles, permission
// resolution by flattening roles and group memberships, and token-gated
// mutating operations.
package identity

import "fmt"

// permissionString renders p as "<resource>.<scope>.<action>" with scope and
// action as decimal bitfields, the wire form carried in an access token (§3).
func permissionString(p Permission) string {
	return fmt.Sprintf("%s.%d.%d", p.Resource, p.Scope, p.Action)
}

// Action is a bitfield of CRUD operations a Permission grants (§3).
type Action uint8

// Action bits.
const (
	ActionRead Action = 1 << iota
	ActionWrite
	ActionUpdate
	ActionDelete

	ActionCRUD = ActionRead | ActionWrite | ActionUpdate | ActionDelete
)

// Has reports whether a contains every bit set in want.
func (a Action) Has(want Action) bool { return a&want == want }

// Scope is a bitfield describing how broadly a Permission applies (§3).
type Scope uint8

// Scope bits.
const (
	ScopeSelf Scope = 1 << iota
	ScopeUsers
	ScopeRoles
	ScopeGroups
	ScopeOrg

	ScopeAll Scope = 0xFF
)

// Has reports whether s contains every bit set in want.
func (s Scope) Has(want Scope) bool { return s&want == want }

// Permission grants Action on Scope over a named resource (§3). The zero
// value grants nothing.
type Permission struct {
	Resource string `json:"resource"`
	Action   Action `json:"action"`
	Scope    Scope  `json:"scope"`
}

// key identifies permissions that should merge by bitwise OR during
// resolution (§4.12 step 2): the full (resource, action, scope) triple.
// Two rules only collapse into one entry when all three fields already
// match, so a role granting {identity, READ, Self} and another granting
// {identity, DELETE, All} stay as two distinct entries rather than
// combining into {identity, READ|DELETE, Self|All} — the latter would grant
// READ at All scope that no single role ever actually conferred.
type permissionKey struct {
	resource string
	action   Action
	scope    Scope
}

// mergePermissions flattens a list of permissions into one per distinct
// (resource, action, scope) triple, OR-ing bits only across entries that
// already share all three fields (§4.12 step 2). Entries with the same
// resource but different action/scope are kept separate, never combined.
func mergePermissions(perms []Permission) []Permission {
	merged := make(map[permissionKey]*Permission)
	order := make([]permissionKey, 0, len(perms))

	for _, p := range perms {
		key := permissionKey{resource: p.Resource, action: p.Action, scope: p.Scope}

		existing, ok := merged[key]
		if !ok {
			copyP := p
			merged[key] = &copyP
			order = append(order, key)

			continue
		}

		existing.Action |= p.Action
		existing.Scope |= p.Scope
	}

	out := make([]Permission, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}

	return out
}

// hasPermission implements §4.12 step 4: true iff some resolved permission
// names exactly wantedResource (or "*") and its action/scope bits are a
// superset of what's wanted.
func hasPermission(resolved []Permission, wantedAction Action, wantedScope Scope, wantedResource string) bool {
	for _, p := range resolved {
		if p.Resource != wantedResource && p.Resource != "*" {
			continue
		}

		if p.Action.Has(wantedAction) && p.Scope.Has(wantedScope) {
			return true
		}
	}

	return false
}
