package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arnforge/modkit/internal/platform/errs"
	"github.com/arnforge/modkit/internal/platform/store"
)

// RefreshRecord is a persisted refresh token (§3).
type RefreshRecord struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	DeviceID  string    `json:"deviceId"`
	IPAddress string    `json:"ipAddress"`
	Country   string    `json:"country,omitempty"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	version int64
}

// RefreshRepository persists refresh tokens on top of the narrow store.Store
// contract (§4.8).
type RefreshRepository struct {
	backing store.Store
}

// NewRefreshRepository builds a RefreshRepository over backing.
func NewRefreshRepository(backing store.Store) *RefreshRepository {
	return &RefreshRepository{backing: backing}
}

// Create persists a new refresh record.
func (r *RefreshRepository) Create(ctx context.Context, rec RefreshRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh record: %w", err)
	}

	return r.backing.Put(ctx, store.Document{Kind: refreshDocKind, ID: rec.Token, Data: data})
}

// FindByToken looks up a refresh record by its opaque token string.
func (r *RefreshRepository) FindByToken(ctx context.Context, token string) (RefreshRecord, error) {
	doc, err := r.backing.Get(ctx, refreshDocKind, token)
	if err != nil {
		return RefreshRecord{}, fmt.Errorf("%w: refresh token not found", errs.ErrAuthentication)
	}

	var rec RefreshRecord
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return RefreshRecord{}, fmt.Errorf("failed to unmarshal refresh record: %w", err)
	}

	rec.version = doc.Version

	return rec, nil
}

// Revoke deletes a single refresh token unconditionally.
func (r *RefreshRepository) Revoke(ctx context.Context, token string) error {
	return r.backing.Delete(ctx, refreshDocKind, token)
}

// Rotate atomically replaces old with replacement: old is deleted via
// CompareAndDelete keyed on the version FindByToken observed, so a
// concurrent rotation of the same token loses the race with ErrIntegrity
// rather than both succeeding (§4.7 invariant 5, §4.8).
func (r *RefreshRepository) Rotate(ctx context.Context, old RefreshRecord, replacement RefreshRecord) error {
	if err := r.backing.CompareAndDelete(ctx, refreshDocKind, old.Token, old.version); err != nil {
		return fmt.Errorf("%w: refresh token already rotated", errs.ErrIntegrity)
	}

	return r.Create(ctx, replacement)
}

// RevokeAllForUser deletes every refresh token belonging to userID, returning
// the count removed (§4.8, invoked on geo-change and permanent block).
func (r *RefreshRepository) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	docs, err := r.backing.List(ctx, refreshDocKind)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, doc := range docs {
		var rec RefreshRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			continue
		}

		if rec.UserID != userID {
			continue
		}

		if err := r.backing.Delete(ctx, refreshDocKind, doc.ID); err != nil {
			return count, err
		}

		count++
	}

	return count, nil
}

// DeleteAllForUser is an alias for RevokeAllForUser kept to mirror the
// spec's distinct revoke/delete verbs; both erase every token for a user.
func (r *RefreshRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	return r.RevokeAllForUser(ctx, userID)
}
