package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionHas(t *testing.T) {
	assert.True(t, ActionCRUD.Has(ActionRead))
	assert.True(t, ActionCRUD.Has(ActionWrite|ActionDelete))
	assert.False(t, (ActionRead | ActionWrite).Has(ActionDelete))
}

func TestScopeHas(t *testing.T) {
	assert.True(t, ScopeAll.Has(ScopeSelf))
	assert.True(t, ScopeAll.Has(ScopeOrg))
	assert.False(t, ScopeSelf.Has(ScopeUsers))
}

func TestMergePermissionsDedupesExactTriples(t *testing.T) {
	merged := mergePermissions([]Permission{
		{Resource: "identity", Action: ActionRead, Scope: ScopeSelf},
		{Resource: "identity", Action: ActionRead, Scope: ScopeSelf},
	})

	assert.Len(t, merged, 1)
	assert.Equal(t, ActionRead, merged[0].Action)
	assert.Equal(t, ScopeSelf, merged[0].Scope)
}

// TestMergePermissionsDoesNotEscalateAcrossDifferentScopes guards against the
// privilege escalation a resource-only merge key would cause: a role granting
// READ at Self scope and another granting DELETE at All scope must never
// combine into a single entry granting READ at All scope.
func TestMergePermissionsDoesNotEscalateAcrossDifferentScopes(t *testing.T) {
	merged := mergePermissions([]Permission{
		{Resource: "identity", Action: ActionRead, Scope: ScopeSelf},
		{Resource: "identity", Action: ActionDelete, Scope: ScopeAll},
	})

	assert.Len(t, merged, 2)
	assert.False(t, hasPermission(merged, ActionRead, ScopeAll, "identity"))
	assert.True(t, hasPermission(merged, ActionRead, ScopeSelf, "identity"))
	assert.True(t, hasPermission(merged, ActionDelete, ScopeAll, "identity"))
}

func TestHasPermissionWildcardResource(t *testing.T) {
	resolved := []Permission{{Resource: "*", Action: ActionCRUD, Scope: ScopeAll}}

	assert.True(t, hasPermission(resolved, ActionDelete, ScopeUsers, "identity"))
	assert.True(t, hasPermission(resolved, ActionRead, ScopeOrg, "anything"))
}

func TestHasPermissionRequiresExactResourceOtherwise(t *testing.T) {
	resolved := []Permission{{Resource: "network", Action: ActionCRUD, Scope: ScopeAll}}

	assert.False(t, hasPermission(resolved, ActionRead, ScopeUsers, "identity"))
	assert.True(t, hasPermission(resolved, ActionRead, ScopeUsers, "network"))
}

func TestPermissionString(t *testing.T) {
	p := Permission{Resource: "identity", Scope: ScopeUsers, Action: ActionRead}
	assert.Equal(t, "identity.2.1", permissionString(p))
}
