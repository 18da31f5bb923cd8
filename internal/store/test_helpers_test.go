package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tillsync/internal/model"
)

// createTestStore creates and initializes a store in a temp directory.
func createTestStore(t *testing.T) *Manager {
	t.Helper()
	return createTestStoreWith(t, Options{})
}

func createTestStoreWith(t *testing.T, opts Options) *Manager {
	t.Helper()
	m := New(filepath.Join(t.TempDir(), "test.db"), opts)
	if err := m.Init(t.Context()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func testProduct(id, storeID, barcode, name string, lastUpdated time.Time) model.Product {
	return model.Product{
		ID:          id,
		StoreID:     storeID,
		CompanyID:   "C1",
		Barcode:     barcode,
		ProductName: name,
		LastUpdated: lastUpdated,
	}
}

func testBatch(id, productID string, qty int64, status model.BatchStatus, createdAt time.Time) model.InventoryBatch {
	return model.InventoryBatch{
		ID:        id,
		ProductID: productID,
		StoreID:   "S1",
		CompanyID: "C1",
		Quantity:  qty,
		Status:    status,
		Audit:     model.Audit{CreatedAt: createdAt},
	}
}
