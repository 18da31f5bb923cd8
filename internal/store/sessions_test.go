package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/model"
)

func testUser(id string) model.User {
	return model.User{
		ID:          id,
		Email:       id + "@shop.test",
		Permissions: []model.Permission{{CompanyID: "C1", RoleID: "cashier", StoreID: "S1"}},
	}
}

func TestSaveSessionExclusive_RemovesOthers(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, m.SaveSessionCoexist(ctx, testUser("userB")))

	require.NoError(t, m.SaveSessionExclusive(ctx, testUser("userA")))

	all := m.Sessions().All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "userA", all[0].ID)
	assert.True(t, all[0].IsLoggedIn)
}

func TestSaveSessionCoexist_FlipsOthers(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, m.SaveSessionCoexist(ctx, testUser("userB")))
	require.NoError(t, m.SaveSessionCoexist(ctx, testUser("userA")))

	assert.Equal(t, 2, m.Sessions().Count(ctx))
	assert.Equal(t, 1, m.LoggedInCount(ctx))

	active, ok := m.ActiveSession(ctx)
	require.True(t, ok)
	assert.Equal(t, "userA", active.ID)

	b, _ := m.Sessions().Get(ctx, "userB")
	assert.False(t, b.IsLoggedIn)
}

func TestSetActiveSession(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, m.SaveSessionCoexist(ctx, testUser("userA")))
	require.NoError(t, m.SaveSessionCoexist(ctx, testUser("userB")))

	u, err := m.SetActiveSession(ctx, "userA")
	require.NoError(t, err)
	assert.Equal(t, "userA", u.ID)
	assert.Equal(t, 2, m.Sessions().Count(ctx))
	assert.Equal(t, 1, m.LoggedInCount(ctx))

	_, err = m.SetActiveSession(ctx, "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	active, _ := m.ActiveSession(ctx)
	assert.Equal(t, "userA", active.ID, "failed switch must leave state unchanged")
}

func TestLoggedInInvariant_AcrossOperations(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()

	steps := []func() error{
		func() error { return m.SaveSessionCoexist(ctx, testUser("a")) },
		func() error { return m.SaveSessionCoexist(ctx, testUser("b")) },
		func() error { _, err := m.SetActiveSession(ctx, "a"); return err },
		func() error { return m.SaveSessionExclusive(ctx, testUser("c")) },
		func() error { return m.SaveSessionCoexist(ctx, testUser("d")) },
		func() error { return m.LogoutAll(ctx) },
		func() error { _, err := m.SetActiveSession(ctx, "c"); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		n := m.LoggedInCount(ctx)
		assert.True(t, n == 0 || n == 1, "step %d: %d logged in", i, n)
	}
}

func TestSessions_EmailIndex(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, m.SaveSessionCoexist(ctx, testUser("userA")))

	got := m.Sessions().ByIndex(ctx, "email", "userA@shop.test")
	require.Len(t, got, 1)
	assert.Equal(t, "userA", got[0].ID)
}
