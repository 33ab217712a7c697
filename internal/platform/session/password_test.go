package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnforge/modkit/internal/platform/session"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := session.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, hash, "argon2id$")

	ok, err := session.VerifyPassword(hash, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = session.VerifyPassword(hash, "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordProducesDistinctSalts(t *testing.T) {
	a, err := session.HashPassword("same-password")
	require.NoError(t, err)

	b, err := session.HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
