package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/model"
)

func seedBatches(t *testing.T, m *Manager) {
	t.Helper()
	other := testBatch("b-other-store", "p1", 10, model.BatchActive, at(0))
	other.StoreID = "S2"
	otherCompany := testBatch("b-other-company", "p1", 10, model.BatchActive, at(0))
	otherCompany.CompanyID = "C2"

	_, err := m.Batches().PutAll(t.Context(), []model.InventoryBatch{
		testBatch("b-new", "p1", 5, model.BatchActive, at(30)),
		testBatch("b-old", "p1", 3, model.BatchActive, at(10)),
		testBatch("b-mid", "p1", 4, model.BatchActive, at(20)),
		testBatch("b-empty", "p1", 0, model.BatchActive, at(5)),
		testBatch("b-expired", "p1", 7, model.BatchExpired, at(1)),
		testBatch("b-inactive", "p1", 7, model.BatchInactive, at(2)),
		testBatch("b-p2", "p2", 8, model.BatchActive, at(0)),
		other,
		otherCompany,
	})
	require.NoError(t, err)
}

func batchIDs(bs []model.InventoryBatch) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestFIFOBatches_OrderAndFilter(t *testing.T) {
	m := createTestStore(t)
	seedBatches(t, m)

	got := m.FIFOBatches(t.Context(), "p1", "S1", "C1")

	assert.Equal(t, []string{"b-old", "b-mid", "b-new"}, batchIDs(got))
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.Before(got[i-1].CreatedAt))
	}
	for _, b := range got {
		assert.Equal(t, model.BatchActive, b.Status)
		assert.Positive(t, b.Quantity)
	}
}

func TestFIFOBatches_TiesBrokenByID(t *testing.T) {
	m := createTestStore(t)
	_, err := m.Batches().PutAll(t.Context(), []model.InventoryBatch{
		testBatch("b2", "p1", 1, model.BatchActive, at(0)),
		testBatch("b1", "p1", 1, model.BatchActive, at(0)),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"b1", "b2"}, batchIDs(m.FIFOBatches(t.Context(), "p1", "S1", "C1")))
}

func TestDeductFIFO_ConsumesOldestFirst(t *testing.T) {
	m := createTestStore(t)
	seedBatches(t, m)
	ctx := t.Context()

	d, err := m.DeductFIFO(ctx, "p1", "S1", "C1", 5, at(60))
	require.NoError(t, err)

	assert.Equal(t, int64(0), d.Shortfall)
	assert.Equal(t, []Allocation{
		{BatchID: "b-old", Quantity: 3, Remaining: 0},
		{BatchID: "b-mid", Quantity: 2, Remaining: 2},
	}, d.Allocations)

	old, _ := m.Batches().Get(ctx, "b-old")
	assert.Equal(t, model.BatchInactive, old.Status)
	assert.Equal(t, int64(0), old.Quantity)
	assert.Equal(t, at(60), old.UpdatedAt)

	mid, _ := m.Batches().Get(ctx, "b-mid")
	assert.Equal(t, model.BatchActive, mid.Status)
	assert.Equal(t, int64(2), mid.Quantity)

	assert.Equal(t, []string{"b-mid", "b-new"}, batchIDs(m.FIFOBatches(ctx, "p1", "S1", "C1")))
}

func TestDeductFIFO_Shortfall(t *testing.T) {
	m := createTestStore(t)
	seedBatches(t, m)

	d, err := m.DeductFIFO(t.Context(), "p1", "S1", "C1", 20, at(60))
	require.NoError(t, err)

	assert.Equal(t, int64(8), d.Shortfall)
	assert.Len(t, d.Allocations, 3)
	assert.Empty(t, m.FIFOBatches(t.Context(), "p1", "S1", "C1"))

	// Other stores and companies are untouched.
	other, _ := m.Batches().Get(t.Context(), "b-other-store")
	assert.Equal(t, int64(10), other.Quantity)
}

func TestDeductFIFO_RejectsNonPositive(t *testing.T) {
	m := createTestStore(t)
	_, err := m.DeductFIFO(t.Context(), "p1", "S1", "C1", 0, at(0))
	assert.Error(t, err)
}

func TestUpdateBatches_FlipsEmptyToInactive(t *testing.T) {
	m := createTestStore(t)
	seedBatches(t, m)
	ctx := t.Context()

	b, _ := m.Batches().Get(ctx, "b-new")
	b.Quantity = 0
	updates := []model.InventoryBatch{b}
	n, err := m.UpdateBatches(ctx, updates)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := m.Batches().Get(ctx, "b-new")
	assert.Equal(t, model.BatchInactive, got.Status)
	assert.Equal(t, model.BatchActive, updates[0].Status, "caller's slice must not be modified")
}
