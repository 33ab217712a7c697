package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnforge/modkit/internal/platform/store"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := t.Context()
	m := store.NewMemory()

	require.NoError(t, m.Put(ctx, store.Document{Kind: "user", ID: "1", Data: []byte("a")}))

	got, err := m.Get(ctx, "user", "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got.Data)
	assert.EqualValues(t, 1, got.Version)
}

func TestMemoryPutIncrementsVersion(t *testing.T) {
	ctx := t.Context()
	m := store.NewMemory()

	require.NoError(t, m.Put(ctx, store.Document{Kind: "user", ID: "1", Data: []byte("a")}))
	require.NoError(t, m.Put(ctx, store.Document{Kind: "user", ID: "1", Data: []byte("b")}))

	got, err := m.Get(ctx, "user", "1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Version)
	assert.Equal(t, []byte("b"), got.Data)
}

func TestMemoryGetNotFound(t *testing.T) {
	_, err := store.NewMemory().Get(t.Context(), "user", "missing")
	require.Error(t, err)

	var nf *store.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestMemoryList(t *testing.T) {
	ctx := t.Context()
	m := store.NewMemory()

	require.NoError(t, m.Put(ctx, store.Document{Kind: "user", ID: "1"}))
	require.NoError(t, m.Put(ctx, store.Document{Kind: "user", ID: "2"}))
	require.NoError(t, m.Put(ctx, store.Document{Kind: "role", ID: "admin"}))

	docs, err := m.List(ctx, "user")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestMemoryCompareAndDelete(t *testing.T) {
	ctx := t.Context()
	m := store.NewMemory()

	require.NoError(t, m.Put(ctx, store.Document{Kind: "refresh", ID: "tok"}))

	err := m.CompareAndDelete(ctx, "refresh", "tok", 2)
	require.Error(t, err)

	var conflict *store.VersionConflictError
	require.ErrorAs(t, err, &conflict)

	require.NoError(t, m.CompareAndDelete(ctx, "refresh", "tok", 1))

	_, err = m.Get(ctx, "refresh", "tok")
	require.Error(t, err)
}

func TestMemoryDeleteMissingIsNoop(t *testing.T) {
	require.NoError(t, store.NewMemory().Delete(t.Context(), "user", "missing"))
}
