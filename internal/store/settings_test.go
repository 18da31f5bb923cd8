package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/model"
)

func TestClearAllExceptReserved_RoundTrip(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, m.PutSetting(ctx, model.OfflineAuthKey("u1"), map[string]any{"allowed": true}))
	require.NoError(t, m.PutSetting(ctx, model.PolicyAcceptedKey("u1"), true))
	require.NoError(t, m.PutSetting(ctx, "theme", "dark"))
	require.NoError(t, m.PutSetting(ctx, "offline", "not reserved"))
	require.NoError(t, m.PutSetting(ctx, "offline_authX", "not reserved either"))
	require.NoError(t, m.SaveSessionCoexist(ctx, testUser("u1")))
	require.NoError(t, m.Products().Put(ctx, testProduct("p1", "S1", "1", "Soda", at(1))))
	require.NoError(t, m.Companies().Put(ctx, model.Company{ID: "C1"}))
	require.NoError(t, m.Stores().Put(ctx, model.Store{ID: "S1", CompanyID: "C1"}))

	require.NoError(t, m.ClearAllExceptReserved(ctx))

	var auth map[string]any
	require.True(t, m.GetSetting(ctx, model.OfflineAuthKey("u1"), &auth))
	assert.Equal(t, true, auth["allowed"])

	var accepted bool
	require.True(t, m.GetSetting(ctx, model.PolicyAcceptedKey("u1"), &accepted))
	assert.True(t, accepted)

	var s string
	assert.False(t, m.GetSetting(ctx, "theme", &s))
	assert.False(t, m.GetSetting(ctx, "offline", &s))
	assert.False(t, m.GetSetting(ctx, "offline_authX", &s))

	assert.Zero(t, m.Sessions().Count(ctx))
	assert.Zero(t, m.Products().Count(ctx))
	assert.Zero(t, m.Companies().Count(ctx))
	assert.Zero(t, m.Stores().Count(ctx))
}

func TestSettingsWithPrefix(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, m.PutSetting(ctx, model.OfflineAuthKey("a"), 1))
	require.NoError(t, m.PutSetting(ctx, model.OfflineAuthKey("b"), 2))
	require.NoError(t, m.PutSetting(ctx, "theme", "dark"))

	assert.Len(t, m.SettingsWithPrefix(ctx, model.OfflineAuthPrefix), 2)
}
