package identity

import "time"

// Role groups a set of permissions under a name (§3).
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	IsCustom    bool         `json:"isCustom"`
	OrgID       string       `json:"orgId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Predefined system role names (§3); created idempotently on first boot and
// never modifiable or deletable.
const (
	RoleSystem          = "SYSTEM"
	RoleAdmin           = "ADMIN"
	RoleNetworkManager  = "NETWORK_MANAGER"
	RoleSecurityManager = "SECURITY_MANAGER"
	RoleDataManager     = "DATA_MANAGER"
	RoleAppManager      = "APP_MANAGER"
	RoleConfigManager   = "CONFIG_MANAGER"
	RoleUser            = "USER"
)

// predefinedRoleNames lists every built-in role name, in the order seeded (§4.12).
var predefinedRoleNames = []string{
	RoleSystem,
	RoleAdmin,
	RoleNetworkManager,
	RoleSecurityManager,
	RoleDataManager,
	RoleAppManager,
	RoleConfigManager,
	RoleUser,
}

// predefinedRolePermissions defines what each built-in role grants. SYSTEM
// gets every resource via the "*" wildcard with CRUD/ALL; ADMIN gets the
// same reach but is distinguished for display/auditing; the remaining
// manager roles are scoped to their named resource domain; USER gets
// read-only self-scope on its own resources.
func predefinedRolePermissions(name string) []Permission {
	switch name {
	case RoleSystem, RoleAdmin:
		return []Permission{{Resource: "*", Action: ActionCRUD, Scope: ScopeAll}}
	case RoleNetworkManager:
		return []Permission{{Resource: "network", Action: ActionCRUD, Scope: ScopeAll}}
	case RoleSecurityManager:
		return []Permission{
			{Resource: "identity", Action: ActionCRUD, Scope: ScopeAll},
			{Resource: "security", Action: ActionCRUD, Scope: ScopeAll},
		}
	case RoleDataManager:
		return []Permission{{Resource: "data", Action: ActionCRUD, Scope: ScopeAll}}
	case RoleAppManager:
		return []Permission{{Resource: "app", Action: ActionCRUD, Scope: ScopeAll}}
	case RoleConfigManager:
		return []Permission{{Resource: "config", Action: ActionCRUD, Scope: ScopeAll}}
	case RoleUser:
		return []Permission{{Resource: "identity", Action: ActionRead, Scope: ScopeSelf}}
	default:
		return nil
	}
}
