package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnforge/modkit/internal/platform/session"
	"github.com/arnforge/modkit/internal/platform/store"
)

func TestRefreshRepositoryCreateAndFind(t *testing.T) {
	ctx := t.Context()
	repo := session.NewRefreshRepository(store.NewMemory())

	rec := session.RefreshRecord{Token: "tok-1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestRefreshRepositoryRotateIsSingleUse(t *testing.T) {
	ctx := t.Context()
	repo := session.NewRefreshRepository(store.NewMemory())

	rec := session.RefreshRecord{Token: "tok-1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, rec))

	stored, err := repo.FindByToken(ctx, "tok-1")
	require.NoError(t, err)

	replacement := session.RefreshRecord{Token: "tok-2", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Rotate(ctx, stored, replacement))

	_, err = repo.FindByToken(ctx, "tok-1")
	require.Error(t, err)

	_, err = repo.FindByToken(ctx, "tok-2")
	require.NoError(t, err)

	// A second rotation attempt against the same (now-stale) observed
	// version must lose the race.
	err = repo.Rotate(ctx, stored, session.RefreshRecord{Token: "tok-3", UserID: "u1"})
	require.Error(t, err)
}

func TestRefreshRepositoryRevokeAllForUser(t *testing.T) {
	ctx := t.Context()
	repo := session.NewRefreshRepository(store.NewMemory())

	require.NoError(t, repo.Create(ctx, session.RefreshRecord{Token: "a", UserID: "u1"}))
	require.NoError(t, repo.Create(ctx, session.RefreshRecord{Token: "b", UserID: "u1"}))
	require.NoError(t, repo.Create(ctx, session.RefreshRecord{Token: "c", UserID: "u2"}))

	count, err := repo.RevokeAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = repo.FindByToken(ctx, "c")
	require.NoError(t, err)
}
