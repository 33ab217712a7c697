package session_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnforge/modkit/internal/platform/session"
	"github.com/arnforge/modkit/internal/platform/store"
)

func TestStoreCounterIncrementPersistsAcrossInstances(t *testing.T) {
	backing := store.NewMemory()

	first := session.NewStoreCounter(backing)
	n, err := first.Increment("u1", session.PurposeLogin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A second counter over the same backing store picks up where the
	// first left off, simulating a process restart.
	second := session.NewStoreCounter(backing)
	n, err = second.Increment("u1", session.PurposeLogin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreCounterResetClearsCount(t *testing.T) {
	backing := store.NewMemory()
	counter := session.NewStoreCounter(backing)

	_, err := counter.Increment("u1", session.PurposeRefresh, time.Minute)
	require.NoError(t, err)

	require.NoError(t, counter.Reset("u1", session.PurposeRefresh))

	n, err := counter.Increment("u1", session.PurposeRefresh, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreCounterPurposesAreIndependent(t *testing.T) {
	backing := store.NewMemory()
	counter := session.NewStoreCounter(backing)

	_, err := counter.Increment("u1", session.PurposeLogin, time.Hour)
	require.NoError(t, err)

	n, err := counter.Increment("u1", session.PurposeRefresh, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "refresh counter must not share state with login counter for the same user")
}

func TestTrackerWithCounterSurvivesRebuildAgainstSameStore(t *testing.T) {
	backing := store.NewMemory()

	tr := session.NewTrackerWithCounter(session.BlockCallbacks{}, clock.New(), session.NewStoreCounter(backing))
	tr.RecordLoginFailure("u1")
	tr.RecordLoginFailure("u1")

	// A freshly constructed Tracker against the same backing store resumes
	// the failure count instead of starting over, per §4.9.
	rebuilt := session.NewTrackerWithCounter(session.BlockCallbacks{}, clock.New(), session.NewStoreCounter(backing))
	state := rebuilt.RecordLoginFailure("u1")

	assert.Equal(t, session.StateTempBlocked, state)
}
