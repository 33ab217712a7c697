package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arnforge/modkit/internal/platform/session"
	"github.com/arnforge/modkit/internal/platform/store"
)

// SystemUserID is the fixed id of the singleton SYSTEM user (§3, §4.12).
const SystemUserID = "00000000-0000-0000-0000-000000000000"

// Bootstrap idempotently seeds the predefined roles and the SYSTEM user the
// first time the identity service starts, mirroring the teacher's
// ensure-initial-resources pattern generalized from users to roles (§4.12).
func (m *Manager) Bootstrap(ctx context.Context) error {
	for _, name := range predefinedRoleNames {
		if err := m.ensureRole(ctx, name); err != nil {
			return fmt.Errorf("failed to seed predefined role %s: %w", name, err)
		}
	}

	return m.ensureSystemUser(ctx)
}

func (m *Manager) ensureRole(ctx context.Context, name string) error {
	if _, err := m.backing.Get(ctx, kindRole, name); err == nil {
		return nil // already seeded
	}

	role := Role{
		ID:          name,
		Name:        name,
		Description: fmt.Sprintf("predefined %s role", name),
		Permissions: predefinedRolePermissions(name),
		IsCustom:    false,
		CreatedAt:   time.Now(),
	}

	data, err := json.Marshal(role)
	if err != nil {
		return fmt.Errorf("failed to marshal role: %w", err)
	}

	return m.backing.Put(ctx, store.Document{Kind: kindRole, ID: role.ID, Data: data})
}

func (m *Manager) ensureSystemUser(ctx context.Context) error {
	if _, err := m.backing.Get(ctx, kindUser, SystemUserID); err == nil {
		return nil // already seeded
	}

	passwordHash, err := session.HashPassword(uuid.NewString())
	if err != nil {
		return fmt.Errorf("failed to hash system user password: %w", err)
	}

	u := User{
		ID:           SystemUserID,
		Username:     "SYSTEM",
		PasswordHash: passwordHash,
		RoleIDs:      []string{RoleSystem},
		Metadata:     map[string]any{"provider": "internal"},
	}

	return m.putUser(ctx, u)
}

// GetSystemUser retrieves the SYSTEM user directly. The capability-gated
// entry point callers outside the identity package should use is
// Service.GetSystemUser, which enforces §4.12's "only callers holding the
// kernel capability key" requirement.
func (m *Manager) GetSystemUser(ctx context.Context) (User, error) {
	return m.GetUser(ctx, SystemUserID)
}
