package identity

// Group aggregates role membership for batches of users (§3).
type Group struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	RoleIDs     []string     `json:"roleIds"`
	Permissions []Permission `json:"permissions,omitempty"`
	OrgID       string       `json:"orgId,omitempty"`
}
