package store

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/ids"
	"github.com/roach88/tillsync/internal/model"
)

func TestMergeProducts_NewerIDMatchUpdates(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	existing := testProduct("p1", "S1", "123", "Soda", at(1))
	existing.Stock = 5
	require.NoError(t, m.Products().Put(ctx, existing))

	incoming := testProduct("p1", "S1", "123", "Soda", at(2))
	incoming.Stock = 9
	report, err := m.MergeProducts(ctx, []model.Product{incoming}, nil)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Updated: 1}, report)
	got, ok := m.Products().Get(ctx, "p1")
	require.True(t, ok)
	assert.Equal(t, int64(9), got.Stock)
	assert.Equal(t, at(2), got.LastUpdated)
}

func TestMergeProducts_OlderIDMatchUnchanged(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	existing := testProduct("p1", "S1", "123", "Soda", at(2))
	existing.Stock = 5
	require.NoError(t, m.Products().Put(ctx, existing))

	incoming := testProduct("p1", "S1", "123", "Soda", at(1))
	incoming.Stock = 9
	report, err := m.MergeProducts(ctx, []model.Product{incoming}, nil)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Unchanged: 1}, report)
	got, _ := m.Products().Get(ctx, "p1")
	assert.Equal(t, int64(5), got.Stock)
	assert.Equal(t, at(2), got.LastUpdated)
}

func TestMergeProducts_TiePolicy(t *testing.T) {
	cases := []struct {
		name      string
		policy    TiePolicy
		existing  model.Product
		incoming  model.Product
		wantStock int64
	}{
		{"equal timestamps keep existing", KeepExistingOnTie,
			testProduct("p1", "S1", "1", "Soda", at(1)), testProduct("p1", "S1", "1", "Soda", at(1)), 5},
		{"both absent keep existing", KeepExistingOnTie,
			testProduct("p1", "S1", "1", "Soda", time.Time{}), testProduct("p1", "S1", "1", "Soda", time.Time{}), 5},
		{"equal timestamps prefer incoming", PreferIncomingOnTie,
			testProduct("p1", "S1", "1", "Soda", at(1)), testProduct("p1", "S1", "1", "Soda", at(1)), 9},
		{"incoming absent never wins", PreferIncomingOnTie,
			testProduct("p1", "S1", "1", "Soda", at(1)), testProduct("p1", "S1", "1", "Soda", time.Time{}), 5},
		{"existing absent loses", KeepExistingOnTie,
			testProduct("p1", "S1", "1", "Soda", time.Time{}), testProduct("p1", "S1", "1", "Soda", at(1)), 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := createTestStoreWith(t, Options{TiePolicy: tc.policy})
			tc.existing.Stock = 5
			tc.incoming.Stock = 9
			require.NoError(t, m.Products().Put(t.Context(), tc.existing))

			_, err := m.MergeProducts(t.Context(), []model.Product{tc.incoming}, nil)
			require.NoError(t, err)

			got, _ := m.Products().Get(t.Context(), "p1")
			assert.Equal(t, tc.wantStock, got.Stock)
		})
	}
}

func TestMergeProducts_NaturalKeyMatchKeepsExistingID(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	existing := testProduct("existing1", "S1", "123", "Soda", at(1))
	existing.Category = "drinks"
	require.NoError(t, m.Products().Put(ctx, existing))

	incoming := model.Product{StoreID: "S1", Barcode: "123", ProductName: "Soda", Stock: 12}
	report, err := m.MergeProducts(ctx, []model.Product{incoming}, nil)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Merged: 1}, report)
	all := m.Products().All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "existing1", all[0].ID)
	assert.Equal(t, int64(12), all[0].Stock)
	assert.Equal(t, "drinks", all[0].Category)
}

func TestMergeProducts_NaturalKeyMatchWithForeignID(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, m.Products().Put(ctx, testProduct("existing1", "S1", "123", "Soda", at(1))))

	incoming := testProduct("remote-77", "S1", "123", "Soda", at(2))
	_, err := m.MergeProducts(ctx, []model.Product{incoming}, nil)
	require.NoError(t, err)

	all := m.Products().All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "existing1", all[0].ID)
	assert.Equal(t, at(2), all[0].LastUpdated)
}

func TestMergeProducts_InsertsAndGeneratesIDs(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()

	batch := []model.Product{
		testProduct("p1", "S1", "1", "Soda", at(1)),
		{StoreID: "S1", Barcode: "2", ProductName: "Chips"},
	}
	report, err := m.MergeProducts(ctx, batch, ids.NewFixedGenerator("gen-1"))
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Inserted: 2}, report)
	_, ok := m.Products().Get(ctx, "gen-1")
	assert.True(t, ok)
}

func TestMergeProducts_DuplicatesWithinBatchCollapse(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()

	batch := []model.Product{
		{StoreID: "S1", Barcode: "9", ProductName: "Gum", Stock: 1},
		{StoreID: "S1", Barcode: "9", ProductName: "Gum", Stock: 2},
	}
	report, err := m.MergeProducts(ctx, batch, ids.NewFixedGenerator("g1", "g2"))
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Inserted: 1, Merged: 1}, report)
	all := m.Products().All(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "g1", all[0].ID)
	assert.Equal(t, int64(2), all[0].Stock)
}

func TestMergeProducts_InvalidItemSkippedBatchContinues(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()

	batch := []model.Product{
		testProduct("p1", "S1", "1", "Soda", at(1)),
		{ID: "bad", StoreID: "S1"}, // no productName
		testProduct("p3", "S1", "3", "Water", at(1)),
	}
	report, err := m.MergeProducts(ctx, batch, nil)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Inserted: 2, Skipped: 1}, report)
	assert.Equal(t, 2, m.Products().Count(ctx))
}

func TestMergeProducts_UpdateCannotStealNaturalKey(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, m.Products().Put(ctx, testProduct("p1", "S1", "123", "Soda", at(1))))
	require.NoError(t, m.Products().Put(ctx, testProduct("p2", "S1", "456", "Cola", at(1))))

	incoming := testProduct("p2", "S1", "123", "Soda", at(5))
	report, err := m.MergeProducts(ctx, []model.Product{incoming}, nil)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Skipped: 1}, report)
	assertProductInvariants(t, m.Products().All(ctx))
}

func TestMergeProducts_InvariantsHoldUnderRandomBatches(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	rng := rand.New(rand.NewSource(42))

	names := []string{"Soda", "Chips", "Gum", "Water"}
	for round := 0; round < 20; round++ {
		batch := make([]model.Product, 0, 8)
		for i := 0; i < 8; i++ {
			p := model.Product{
				StoreID:     fmt.Sprintf("S%d", rng.Intn(2)),
				Barcode:     fmt.Sprintf("%d", rng.Intn(3)),
				ProductName: names[rng.Intn(len(names))],
				Stock:       int64(rng.Intn(50)),
				LastUpdated: at(rng.Intn(30)),
			}
			if rng.Intn(2) == 0 {
				p.ID = fmt.Sprintf("p%d", rng.Intn(10))
			}
			batch = append(batch, p)
		}
		_, err := m.MergeProducts(ctx, batch, nil)
		require.NoError(t, err)
		assertProductInvariants(t, m.Products().All(ctx))
	}
}

func TestProductsForStore(t *testing.T) {
	m := createTestStore(t)
	ctx := t.Context()
	_, err := m.MergeProducts(ctx, []model.Product{
		testProduct("p1", "S1", "1", "Soda", at(1)),
		testProduct("p2", "S2", "1", "Soda", at(1)),
		testProduct("p3", "S1", "2", "Chips", at(1)),
	}, nil)
	require.NoError(t, err)

	got := m.ProductsForStore(ctx, "S1")
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p3", got[1].ID)
}

func assertProductInvariants(t *testing.T, products []model.Product) {
	t.Helper()
	seenID := map[string]bool{}
	seenKey := map[model.NaturalKey]string{}
	for _, p := range products {
		require.False(t, seenID[p.ID], "duplicate id %s", p.ID)
		seenID[p.ID] = true
		k := p.NaturalKey()
		if other, ok := seenKey[k]; ok {
			t.Fatalf("natural key %+v shared by %s and %s", k, other, p.ID)
		}
		seenKey[k] = p.ID
	}
}
