package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnforge/modkit/internal/platform/session"
	"github.com/arnforge/modkit/internal/platform/store"
)

type fakeUsers struct {
	byID map[string]session.Principal
}

func (f fakeUsers) Lookup(userID string) (session.Principal, error) {
	p, ok := f.byID[userID]
	if !ok {
		return session.Principal{}, assert.AnError
	}

	return p, nil
}

func newTestTokenService(t *testing.T) (*session.TokenService, *session.KeyStore) {
	t.Helper()

	var key session.Key
	key[0] = 0xAB

	keys := session.NewKeyStore(key)
	repo := session.NewRefreshRepository(store.NewMemory())
	users := fakeUsers{byID: map[string]session.Principal{
		"u1": {UserID: "u1", Permissions: []string{"identity.users.255.15"}, Username: "alice"},
	}}

	return session.NewTokenService(keys, repo, users, 0, 0), keys
}

func TestCreateAndVerifyAccessToken(t *testing.T) {
	svc, _ := newTestTokenService(t)
	ctx := t.Context()

	pair, err := svc.CreateTokenPair(ctx, session.Principal{UserID: "u1", Username: "alice"}, "device-1", "1.2.3.4", "US", "ua")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	result, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.False(t, result.UsedPreviousKey)
	assert.Equal(t, "u1", result.Session.UserID)
}

func TestVerifyAccessTokenFallsBackToPreviousKey(t *testing.T) {
	svc, keys := newTestTokenService(t)
	ctx := t.Context()

	pair, err := svc.CreateTokenPair(ctx, session.Principal{UserID: "u1"}, "device-1", "1.2.3.4", "US", "ua")
	require.NoError(t, err)

	var rotated session.Key
	rotated[0] = 0xCD
	keys.Rotate(rotated)

	result, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.UsedPreviousKey)
}

func TestVerifyAccessTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestTokenService(t)

	_, err := svc.VerifyAccessToken("not-a-real-token")
	require.Error(t, err)
}

func TestRefreshTokensRotatesAtomically(t *testing.T) {
	var key session.Key
	keys := session.NewKeyStore(key)
	repo := session.NewRefreshRepository(store.NewMemory())
	users := fakeUsers{byID: map[string]session.Principal{"u1": {UserID: "u1"}}}
	svc := session.NewTokenService(keys, repo, users, 0, 0)
	ctx := t.Context()

	pair, err := svc.CreateTokenPair(ctx, session.Principal{UserID: "u1"}, "device-1", "1.2.3.4", "US", "ua")
	require.NoError(t, err)

	noGeo := func(string, string) error { return nil }

	newPair, err := svc.RefreshTokens(ctx, pair.RefreshToken, "1.2.3.4", "US", "ua", noGeo)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	_, err = svc.RefreshTokens(ctx, pair.RefreshToken, "1.2.3.4", "US", "ua", noGeo)
	require.Error(t, err, "the old refresh token must not be usable twice")
}

func TestRefreshTokensEnforcesGeoValidator(t *testing.T) {
	var key session.Key
	keys := session.NewKeyStore(key)
	repo := session.NewRefreshRepository(store.NewMemory())
	users := fakeUsers{byID: map[string]session.Principal{"u1": {UserID: "u1"}}}
	svc := session.NewTokenService(keys, repo, users, 0, 0)
	ctx := t.Context()

	pair, err := svc.CreateTokenPair(ctx, session.Principal{UserID: "u1"}, "device-1", "1.2.3.4", "US", "ua")
	require.NoError(t, err)

	geo := session.NewGeoValidator("")
	failingGeo := func(stored, current string) error { return geo.ValidateTransition(stored, current) }

	_, err = svc.RefreshTokens(ctx, pair.RefreshToken, "5.6.7.8", "FR", "ua", failingGeo)
	require.Error(t, err)
}
