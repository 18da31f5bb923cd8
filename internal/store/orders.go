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

// ErrOrderSynced is returned when a write targets an already synced order.
var ErrOrderSynced = errors.New("order already synced")

// ErrOrderNotFound is returned by MarkOrderSynced for an unknown id.
var ErrOrderNotFound = errors.New("order not found")

// PendingOrders returns every unsynced order, oldest timestamp first.
func (m *Manager) PendingOrders(ctx context.Context) []model.Order {
	out := m.Orders().ByIndex(ctx, "synced", false)
	sortOrders(out)
	return out
}

// OrdersForStore returns a store's orders, oldest timestamp first.
func (m *Manager) OrdersForStore(ctx context.Context, storeID string) []model.Order {
	out := m.Orders().ByIndex(ctx, "storeId", storeID)
	sortOrders(out)
	return out
}

// InsertOrder writes a new unsynced order. Refuses to overwrite a synced
// order with the same id.
func (m *Manager) InsertOrder(ctx context.Context, o model.Order) error {
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		cur, found, err := getDoc[model.Order](ctx, tx, CollOrders, o.ID)
		if err != nil {
			return err
		}
		if found && cur.Synced {
			return ErrOrderSynced
		}
		return putDoc(ctx, tx, CollOrders, o.ID, o)
	})
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

// ItemDeduction is the stock drawn for one order line.
type ItemDeduction struct {
	ProductID string `json:"productId"`
	Deduction
}

// Sale is the outcome of RecordSale. Persisted is false when the store
// was unavailable and nothing was written.
type Sale struct {
	Persisted  bool            `json:"persisted"`
	Deductions []ItemDeduction `json:"deductions"`
}

// RecordSale inserts a new unsynced order and, when it names a company,
// draws each line's quantity from the oldest batches, all in one
// transaction. Either the order and every deduction are written or
// nothing is.
func (m *Manager) RecordSale(ctx context.Context, o model.Order, now time.Time) (Sale, error) {
	sale := Sale{Deductions: []ItemDeduction{}}
	ran, err := m.withTx(ctx, func(tx *sql.Tx) error {
		cur, found, err := getDoc[model.Order](ctx, tx, CollOrders, o.ID)
		if err != nil {
			return err
		}
		if found && cur.Synced {
			return ErrOrderSynced
		}
		if err := putDoc(ctx, tx, CollOrders, o.ID, o); err != nil {
			return err
		}
		if o.CompanyID == "" {
			return nil
		}
		for _, item := range o.Items {
			d, err := deductTx(ctx, tx, item.ProductID, o.StoreID, o.CompanyID, item.Quantity, now)
			if err != nil {
				return fmt.Errorf("deduct %s: %w", item.ProductID, err)
			}
			sale.Deductions = append(sale.Deductions, ItemDeduction{ProductID: item.ProductID, Deduction: d})
		}
		return nil
	})
	if err != nil {
		return Sale{Deductions: []ItemDeduction{}}, fmt.Errorf("record sale %s: %w", o.ID, err)
	}
	sale.Persisted = ran
	return sale, nil
}

// MarkOrderSynced performs the only synced false->true transition.
// Marking an already synced order returns ErrOrderSynced and changes nothing.
func (m *Manager) MarkOrderSynced(ctx context.Context, id string, at time.Time) error {
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		o, found, err := getDoc[model.Order](ctx, tx, CollOrders, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrOrderNotFound
		}
		if o.Synced {
			return ErrOrderSynced
		}
		o.Synced = true
		o.SyncedAt = at
		return putDoc(ctx, tx, CollOrders, id, o)
	})
	if err != nil {
		return fmt.Errorf("mark order %s synced: %w", id, err)
	}
	return nil
}

func sortOrders(orders []model.Order) {
	slices.SortStableFunc(orders, func(a, b model.Order) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
