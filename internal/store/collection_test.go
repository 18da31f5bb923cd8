package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/model"
)

func TestCollection_CRUD(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	c := m.Companies()

	require.NoError(t, c.Put(ctx, model.Company{ID: "C1", Name: "Acme"}))
	require.NoError(t, c.Put(ctx, model.Company{ID: "C1", Name: "Acme Ltd"}))

	got, ok := c.Get(ctx, "C1")
	require.True(t, ok)
	assert.Equal(t, "Acme Ltd", got.Name)
	assert.Equal(t, 1, c.Count(ctx))

	require.NoError(t, c.Delete(ctx, "C1"))
	require.NoError(t, c.Delete(ctx, "C1"))
	_, ok = c.Get(ctx, "C1")
	assert.False(t, ok)
}

func TestCollection_PutRejectsInvalid(t *testing.T) {
	m := createTestStore(t)

	assert.Error(t, m.Stores().Put(t.Context(), model.Store{ID: "S1"}), "companyId is required")
	assert.Error(t, m.Products().Put(t.Context(), model.Product{StoreID: "S1", ProductName: "x"}), "empty key")
}

func TestCollection_PutAllSkipsBadItems(t *testing.T) {
	m := createTestStore(t)

	n, err := m.Stores().PutAll(t.Context(), []model.Store{
		{ID: "S1", CompanyID: "C1"},
		{ID: "S2"},
		{ID: "S3", CompanyID: "C1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, m.StoresForCompany(t.Context(), "C1"), 2)
}

func TestCollection_ByIndexUnknownFieldEmpty(t *testing.T) {
	m := createTestStore(t)
	require.NoError(t, m.Products().Put(t.Context(), testProduct("p1", "S1", "1", "Soda", at(1))))

	assert.Empty(t, m.Products().ByIndex(t.Context(), "productName", "Soda"))
	assert.Len(t, m.Products().ByIndex(t.Context(), "barcode", "1"), 1)
}

func TestCollection_Clear(t *testing.T) {
	m := createTestStore(t)
	require.NoError(t, m.PutSetting(t.Context(), "a", 1))
	require.NoError(t, m.Settings().Clear(t.Context()))
	assert.Zero(t, m.Settings().Count(t.Context()))
}

func TestSaveReferenceSnapshot_StampsLastSync(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, m.SaveReferenceSnapshot(ctx,
		[]model.Company{{ID: "C1"}},
		[]model.Store{{ID: "S1", CompanyID: "C1"}},
		at(9)))

	c, _ := m.Companies().Get(ctx, "C1")
	s, _ := m.Stores().Get(ctx, "S1")
	assert.Equal(t, at(9), c.LastSync)
	assert.Equal(t, at(9), s.LastSync)
}
