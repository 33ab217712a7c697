package identity

// User is an account with role assignments and provider-linked metadata (§3).
type User struct {
	ID                 string         `json:"id"`
	Username           string         `json:"username"`
	PasswordHash       string         `json:"passwordHash"`
	Email              string         `json:"email,omitempty"`
	RoleIDs            []string       `json:"roleIds"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	OrgID              string         `json:"orgId,omitempty"`
	BlockedUntil       int64          `json:"blockedUntil,omitempty"`
	PermanentlyBlocked bool           `json:"permanentlyBlocked,omitempty"`
}

// toPermissionStrings renders resolved permissions in the wire form carried
// on an access token, for projection into a session.Principal (§4.7, §4.12).
func (u User) toPermissionStrings(resolved []Permission) []string {
	strs := make([]string, 0, len(resolved))

	for _, p := range resolved {
		strs = append(strs, permissionString(p))
	}

	return strs
}
