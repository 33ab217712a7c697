package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arnforge/modkit/internal/platform/errs"
	"github.com/arnforge/modkit/internal/platform/session"
	"github.com/arnforge/modkit/internal/platform/store"
)

const (
	kindUser  = "identity_user"
	kindRole  = "identity_role"
	kindGroup = "identity_group"
)

// TokenVerifier is the narrow slice of session.TokenService the manager
// needs to gate mutating calls (§4.12 "Token gating").
type TokenVerifier interface {
	VerifyAccessToken(token string) (session.VerifyResult, error)
}

// Manager implements the users/roles/groups/permissions submanagers
// described in §4.12 over the narrow store.Store contract.
type Manager struct {
	backing store.Store
	tokens  TokenVerifier
}

// NewManager builds a Manager persisting to backing and verifying tokens
// through tokens.
func NewManager(backing store.Store, tokens TokenVerifier) *Manager {
	return &Manager{backing: backing, tokens: tokens}
}

// Lookup implements session.UserLookup by projecting a resolved user into a
// session.Principal, letting the token service issue fresh access tokens
// without importing the identity package (§4.7).
func (m *Manager) Lookup(userID string) (session.Principal, error) {
	ctx := context.Background()

	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return session.Principal{}, err
	}

	resolved, err := m.ResolvePermissions(ctx, userID, user.OrgID)
	if err != nil {
		return session.Principal{}, err
	}

	provider, _ := user.Metadata["provider"].(string)

	return session.Principal{
		UserID:      user.ID,
		Permissions: user.toPermissionStrings(resolved),
		Provider:    provider,
		Username:    user.Username,
		Email:       user.Email,
		OrgID:       user.OrgID,
	}, nil
}

// ResolvedPermission is a single contributing permission alongside where it
// came from, before merging (§4.12: "resolvePermissions(userId, orgId?) →
// [{resource, action, scope, granted, source}]").
type ResolvedPermission struct {
	Permission
	Granted bool
	Source  string // "role:<id>" or "group:<id>"
}

// Resolve implements §4.12's resolvePermissions verbatim: every contributing
// permission, tagged with the role or group it came from, before the
// exact-triple dedup ResolvePermissions performs for hasPermission checks.
func (m *Manager) Resolve(ctx context.Context, userID, orgID string) ([]ResolvedPermission, error) {
	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []ResolvedPermission

	directRoles, err := m.rolesForIDs(ctx, user.RoleIDs)
	if err != nil {
		return nil, err
	}

	for _, r := range directRoles {
		if orgID != "" && r.IsCustom && r.OrgID != orgID {
			continue
		}

		for _, p := range r.Permissions {
			out = append(out, ResolvedPermission{Permission: p, Granted: true, Source: "role:" + r.ID})
		}
	}

	groups, err := m.groupsContaining(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		for _, p := range g.Permissions {
			out = append(out, ResolvedPermission{Permission: p, Granted: true, Source: "group:" + g.ID})
		}

		groupRoles, err := m.rolesForIDs(ctx, g.RoleIDs)
		if err != nil {
			return nil, err
		}

		for _, r := range groupRoles {
			if orgID != "" && r.IsCustom && r.OrgID != orgID {
				continue
			}

			for _, p := range r.Permissions {
				out = append(out, ResolvedPermission{Permission: p, Granted: true, Source: "group:" + g.ID + ",role:" + r.ID})
			}
		}
	}

	return out, nil
}

// ResolvePermissions implements §4.12 steps 1-3: flattens Resolve's
// contributing permissions and dedups exact (resource, action, scope)
// triples, the form HasPermission and token projection need.
func (m *Manager) ResolvePermissions(ctx context.Context, userID, orgID string) ([]Permission, error) {
	resolved, err := m.Resolve(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	flat := make([]Permission, 0, len(resolved))
	for _, r := range resolved {
		flat = append(flat, r.Permission)
	}

	return mergePermissions(flat), nil
}

// HasPermission implements §4.12 step 4.
func (m *Manager) HasPermission(ctx context.Context, userID string, action Action, scope Scope, resource string) (bool, error) {
	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}

	resolved, err := m.ResolvePermissions(ctx, userID, user.OrgID)
	if err != nil {
		return false, err
	}

	return hasPermission(resolved, action, scope, resource), nil
}

// authorize implements "token gating" (§4.12): if token is non-empty, it
// must verify and the caller must hold wantedAction/wantedScope over
// resource, or the call fails with an AuthorizationError carrying code.
func (m *Manager) authorize(ctx context.Context, token string, wantedAction Action, wantedScope Scope, resource, code string) error {
	if token == "" {
		return nil
	}

	result, err := m.tokens.VerifyAccessToken(token)
	if err != nil || !result.Valid {
		return errs.NewAuthenticationError("invalid or expired token")
	}

	ok, err := m.HasPermission(ctx, result.Session.UserID, wantedAction, wantedScope, resource)
	if err != nil {
		return err
	}

	if !ok {
		return errs.NewAuthorizationError(code)
	}

	return nil
}

// GetUser loads a user by id.
func (m *Manager) GetUser(ctx context.Context, id string) (User, error) {
	doc, err := m.backing.Get(ctx, kindUser, id)
	if err != nil {
		return User{}, fmt.Errorf("%w: user %q", errs.ErrNotFound, id)
	}

	var u User

	if err := json.Unmarshal(doc.Data, &u); err != nil {
		return User{}, fmt.Errorf("failed to unmarshal user %q: %w", id, err)
	}

	return u, nil
}

// CreateUser creates a user, enforcing token gating for identity.write.users
// when token is non-empty (§4.12).
func (m *Manager) CreateUser(ctx context.Context, token string, u User) (User, error) {
	if err := m.authorize(ctx, token, ActionWrite, ScopeUsers, "identity", "identity.users.WRITE.denied"); err != nil {
		return User{}, err
	}

	if existing, _ := m.findUserByUsername(ctx, u.Username); existing != nil {
		return User{}, &errs.ConflictError{Field: "username", Value: u.Username}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	if len(u.RoleIDs) == 0 {
		u.RoleIDs = []string{RoleUser}
	}

	if err := m.putUser(ctx, u); err != nil {
		return User{}, err
	}

	return u, nil
}

// DeleteUser deletes a user, enforcing token gating for identity.delete.users.
func (m *Manager) DeleteUser(ctx context.Context, token, userID string) error {
	if err := m.authorize(ctx, token, ActionDelete, ScopeUsers, "identity", "identity.users.DELETE.denied"); err != nil {
		return err
	}

	return m.backing.Delete(ctx, kindUser, userID)
}

// GetAllUsers lists every user, enforcing token gating for identity.read.users.
func (m *Manager) GetAllUsers(ctx context.Context, token string) ([]User, error) {
	if err := m.authorize(ctx, token, ActionRead, ScopeUsers, "identity", "identity.users.READ.denied"); err != nil {
		return nil, err
	}

	docs, err := m.backing.List(ctx, kindUser)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(docs))

	for _, doc := range docs {
		var u User
		if err := json.Unmarshal(doc.Data, &u); err != nil {
			continue
		}

		users = append(users, u)
	}

	return users, nil
}

func (m *Manager) putUser(ctx context.Context, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	return m.backing.Put(ctx, store.Document{Kind: kindUser, ID: u.ID, Data: data})
}

// FindUserByUsername looks up a user by username, returning errs.ErrNotFound
// if none matches; used by the login endpoint to resolve credentials (§4.11).
func (m *Manager) FindUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := m.findUserByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}

	if u == nil {
		return User{}, fmt.Errorf("%w: user %q", errs.ErrNotFound, username)
	}

	return *u, nil
}

// SetBlockStatus persists a user's block state. It is the
// session.BlockCallbacks.UpdateBlockStatus the attempt tracker invokes on a
// blocking transition (§4.9), the one place User.BlockedUntil/
// PermanentlyBlocked are ever written. blockedUntil nil clears a temporary
// block's expiry.
func (m *Manager) SetBlockStatus(userID string, blockedUntil *time.Time, permanent bool) error {
	u, err := m.GetUser(context.Background(), userID)
	if err != nil {
		return err
	}

	if blockedUntil != nil {
		u.BlockedUntil = blockedUntil.Unix()
	} else {
		u.BlockedUntil = 0
	}

	u.PermanentlyBlocked = permanent

	return m.putUser(context.Background(), u)
}

// LinkProviderID stamps metadataKey=value onto userID's metadata and
// persists it, used when an OAuth login resolves to an existing user by
// email on a provider the account was not yet linked to (§3 "metadata
// carries provider-specific identifiers (<provider>Id)").
func (m *Manager) LinkProviderID(ctx context.Context, userID, metadataKey, value string) (User, error) {
	u, err := m.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}

	if u.Metadata == nil {
		u.Metadata = map[string]any{}
	}

	u.Metadata[metadataKey] = value

	if err := m.putUser(ctx, u); err != nil {
		return User{}, err
	}

	return u, nil
}

func (m *Manager) findUserByUsername(ctx context.Context, username string) (*User, error) {
	docs, err := m.backing.List(ctx, kindUser)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		var u User
		if err := json.Unmarshal(doc.Data, &u); err != nil {
			continue
		}

		if u.Username == username {
			return &u, nil
		}
	}

	return nil, nil
}

// GetRole loads a role by id.
func (m *Manager) GetRole(ctx context.Context, id string) (Role, error) {
	doc, err := m.backing.Get(ctx, kindRole, id)
	if err != nil {
		return Role{}, fmt.Errorf("%w: role %q", errs.ErrNotFound, id)
	}

	var r Role

	if err := json.Unmarshal(doc.Data, &r); err != nil {
		return Role{}, fmt.Errorf("failed to unmarshal role %q: %w", id, err)
	}

	return r, nil
}

// UpdateRole updates a custom role, refusing predefined roles (§4.12).
func (m *Manager) UpdateRole(ctx context.Context, token, roleID string, mutate func(*Role)) (Role, error) {
	if err := m.authorize(ctx, token, ActionUpdate, ScopeRoles, "identity", "identity.roles.UPDATE.denied"); err != nil {
		return Role{}, err
	}

	role, err := m.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}

	if !role.IsCustom {
		return Role{}, fmt.Errorf("%w: CANNOT_MODIFY_PREDEFINED", errs.ErrValidation)
	}

	mutate(&role)

	data, err := json.Marshal(role)
	if err != nil {
		return Role{}, fmt.Errorf("failed to marshal role: %w", err)
	}

	if err := m.backing.Put(ctx, store.Document{Kind: kindRole, ID: role.ID, Data: data}); err != nil {
		return Role{}, err
	}

	return role, nil
}

// DeleteRole deletes a custom role, refusing predefined roles (§4.12).
func (m *Manager) DeleteRole(ctx context.Context, token, roleID string) error {
	if err := m.authorize(ctx, token, ActionDelete, ScopeRoles, "identity", "identity.roles.DELETE.denied"); err != nil {
		return err
	}

	role, err := m.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	if !role.IsCustom {
		return fmt.Errorf("%w: CANNOT_DELETE_PREDEFINED", errs.ErrValidation)
	}

	return m.backing.Delete(ctx, kindRole, roleID)
}

// CreateRole creates a custom role.
func (m *Manager) CreateRole(ctx context.Context, token string, r Role) (Role, error) {
	if err := m.authorize(ctx, token, ActionWrite, ScopeRoles, "identity", "identity.roles.WRITE.denied"); err != nil {
		return Role{}, err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	r.IsCustom = true

	data, err := json.Marshal(r)
	if err != nil {
		return Role{}, fmt.Errorf("failed to marshal role: %w", err)
	}

	if err := m.backing.Put(ctx, store.Document{Kind: kindRole, ID: r.ID, Data: data}); err != nil {
		return Role{}, err
	}

	return r, nil
}

func (m *Manager) rolesForIDs(ctx context.Context, ids []string) ([]Role, error) {
	roles := make([]Role, 0, len(ids))

	for _, id := range ids {
		r, err := m.GetRole(ctx, id)
		if err != nil {
			continue // a dangling role reference is skipped, not fatal
		}

		roles = append(roles, r)
	}

	return roles, nil
}

func (m *Manager) groupsContaining(ctx context.Context, userID string) ([]Group, error) {
	docs, err := m.backing.List(ctx, kindGroup)
	if err != nil {
		return nil, err
	}

	var groups []Group

	for _, doc := range docs {
		var g groupWithMembers
		if err := json.Unmarshal(doc.Data, &g); err != nil {
			continue
		}

		for _, member := range g.MemberIDs {
			if member == userID {
				groups = append(groups, g.Group)

				break
			}
		}
	}

	return groups, nil
}

// groupWithMembers extends Group with the member-id list persisted
// alongside it; Group itself stays a pure projection of §3's shape.
type groupWithMembers struct {
	Group
	MemberIDs []string `json:"memberIds"`
}

// CreateGroup creates a group with its member list.
func (m *Manager) CreateGroup(ctx context.Context, token string, g Group, memberIDs []string) (Group, error) {
	if err := m.authorize(ctx, token, ActionWrite, ScopeGroups, "identity", "identity.groups.WRITE.denied"); err != nil {
		return Group{}, err
	}

	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	data, err := json.Marshal(groupWithMembers{Group: g, MemberIDs: memberIDs})
	if err != nil {
		return Group{}, fmt.Errorf("failed to marshal group: %w", err)
	}

	if err := m.backing.Put(ctx, store.Document{Kind: kindGroup, ID: g.ID, Data: data}); err != nil {
		return Group{}, err
	}

	return g, nil
}
