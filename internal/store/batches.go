package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/tillsync/internal/model"
)

// Allocation is the quantity drawn from one batch by DeductFIFO.
type Allocation struct {
	BatchID   string `json:"batchId"`
	Quantity  int64  `json:"quantity"`
	Remaining int64  `json:"remaining"`
}

// Deduction is the outcome of DeductFIFO. Shortfall is the part of the
// requested quantity no active batch could cover.
type Deduction struct {
	Allocations []Allocation `json:"allocations"`
	Shortfall   int64        `json:"shortfall"`
}

// FIFOBatches returns the consumable batches of a product in one store and
// company, oldest first: status active, quantity > 0, sorted by ascending
// createdAt (ties by id).
func (m *Manager) FIFOBatches(ctx context.Context, productID, storeID, companyID string) []model.InventoryBatch {
	db, ok := m.handle(ctx)
	if !ok {
		return []model.InventoryBatch{}
	}
	out, err := fifoBatches(ctx, db, productID, storeID, companyID)
	if err != nil {
		m.log.Warn(m.log.WithField(ctx, "product_id", productID), "fifo lookup failed, returning empty", err)
		return []model.InventoryBatch{}
	}
	return out
}

func fifoBatches(ctx context.Context, q queryer, productID, storeID, companyID string) ([]model.InventoryBatch, error) {
	all, err := byIndex[model.InventoryBatch](ctx, q, CollBatches, "productId", productID)
	if err != nil {
		return nil, err
	}
	out := make([]model.InventoryBatch, 0, len(all))
	for _, b := range all {
		if b.StoreID == storeID && b.CompanyID == companyID && b.Consumable() {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b model.InventoryBatch) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// DeductFIFO draws qty units from the product's batches oldest first, in one
// transaction. Each touched batch has its quantity reduced and flips to
// inactive when it reaches zero. When stock runs out the remainder is
// reported as Shortfall; the covered part is still deducted.
func (m *Manager) DeductFIFO(ctx context.Context, productID, storeID, companyID string, qty int64, now time.Time) (Deduction, error) {
	if qty <= 0 {
		return Deduction{Allocations: []Allocation{}}, errors.New("deduct fifo: quantity must be positive")
	}
	result := Deduction{Allocations: []Allocation{}, Shortfall: qty}
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		d, err := deductTx(ctx, tx, productID, storeID, companyID, qty, now)
		if err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return Deduction{Allocations: []Allocation{}, Shortfall: qty}, fmt.Errorf("deduct fifo: %w", err)
	}
	return result, nil
}

func deductTx(ctx context.Context, tx *sql.Tx, productID, storeID, companyID string, qty int64, now time.Time) (Deduction, error) {
	batches, err := fifoBatches(ctx, tx, productID, storeID, companyID)
	if err != nil {
		return Deduction{}, err
	}
	d := Deduction{Allocations: []Allocation{}}
	remaining := qty
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := min(b.Quantity, remaining)
		b.Quantity -= take
		remaining -= take
		if b.Quantity == 0 {
			b.Status = model.BatchInactive
		}
		b.UpdatedAt = now
		if err := putDoc(ctx, tx, CollBatches, b.ID, b); err != nil {
			return Deduction{}, fmt.Errorf("batch %s: %w", b.ID, err)
		}
		d.Allocations = append(d.Allocations, Allocation{BatchID: b.ID, Quantity: take, Remaining: b.Quantity})
	}
	d.Shortfall = remaining
	return d, nil
}

// UpdateBatches writes a set of batch updates in one transaction, flipping
// any batch at zero quantity to inactive. Individual failures are logged
// and skipped; returns the number written. The caller's slice is not
// modified.
func (m *Manager) UpdateBatches(ctx context.Context, batches []model.InventoryBatch) (int, error) {
	batches = slices.Clone(batches)
	for i := range batches {
		if batches[i].Quantity == 0 && batches[i].Status == model.BatchActive {
			batches[i].Status = model.BatchInactive
		}
	}
	return m.Batches().PutAll(ctx, batches)
}
