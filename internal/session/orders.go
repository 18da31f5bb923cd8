package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/store"
)

// OrdersCollection is the remote collection orders are reconciled into.
const OrdersCollection = "orders"

// QueueOfflineOrder records a completed sale locally. It assigns a local
// id, marks the order unsynced and stamps audit fields. The order and its
// stock deduction from the oldest inventory batches are written in one
// transaction, then the order is appended to the pending queue. The acting
// identity is required.
func (c *Cache) QueueOfflineOrder(ctx context.Context, o model.Order) (model.Order, error) {
	actor, err := c.enricher.RequireActor(ctx)
	if err != nil {
		return model.Order{}, err
	}
	now := c.now()
	if o.StoreID == "" {
		o.StoreID = c.CurrentStoreID()
	}
	o.ID = c.orderIDs.Generate()
	o.Synced = false
	o.SyncedAt = time.Time{}
	if o.Timestamp.IsZero() {
		o.Timestamp = now
	}
	o.ComputeTotals()
	c.enricher.StampCreate(ctx, &o)
	if err := model.Validate(o); err != nil {
		return model.Order{}, wrapf(err, "queue order")
	}

	sale, err := c.store.RecordSale(ctx, o, now)
	if err != nil {
		return model.Order{}, err
	}

	lctx := c.log.WithFields(c.logCtx(ctx), map[string]any{"order_id": o.ID, "actor": actor})
	if !sale.Persisted {
		c.log.Warn(lctx, "store unavailable, order held in memory only", nil)
	}
	for _, d := range sale.Deductions {
		if d.Shortfall > 0 {
			c.log.Warn(c.log.WithFields(lctx, map[string]any{
				"product_id": d.ProductID, "shortfall": d.Shortfall,
			}), "not enough batch stock for sale", nil)
		}
	}

	c.mu.Lock()
	c.pending = append(c.pending, o)
	if o.StoreID == c.user.CurrentStoreID {
		c.orders = append(c.orders, o)
	}
	c.mu.Unlock()
	c.log.Info(lctx, "order queued")
	return o, nil
}

// ReconcileResult counts one reconciliation pass.
type ReconcileResult struct {
	Skipped   bool `json:"skipped"`
	Attempted int  `json:"attempted"`
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
}

// ReconcilePending pushes every pending order to the remote and marks the
// accepted ones synced. It does nothing while the remote is unreachable.
// State is reloaded from the store afterwards whatever the outcome.
// Concurrent calls run one at a time.
func (c *Cache) ReconcilePending(ctx context.Context) (ReconcileResult, error) {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	if !c.reach.IsReachable() {
		c.log.Debug(ctx, "remote unreachable, reconcile skipped")
		return ReconcileResult{Skipped: true}, nil
	}
	if c.remote == nil {
		return ReconcileResult{Skipped: true}, ErrNoRemote
	}
	defer c.reload(ctx)

	var res ReconcileResult
	synced := make(map[string]bool)
	defer c.dropSynced(synced)
	for _, o := range c.Pending() {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		lctx := c.log.WithField(ctx, "order_id", o.ID)
		if err := c.remote.Put(ctx, OrdersCollection, o.ID, o); err != nil {
			res.Failed++
			c.log.Warn(lctx, "order push failed", err)
			continue
		}
		err := c.store.MarkOrderSynced(ctx, o.ID, c.now())
		if err != nil && !errors.Is(err, store.ErrOrderSynced) {
			res.Failed++
			c.log.Warn(lctx, "order pushed but not marked synced", err)
			continue
		}
		res.Synced++
		synced[o.ID] = true
	}
	c.metrics.ObserveReconcile(res.Synced, res.Failed)
	c.log.Info(c.log.WithFields(ctx, map[string]any{
		"attempted": res.Attempted, "synced": res.Synced, "failed": res.Failed,
	}), "reconcile finished")
	return res, ctx.Err()
}

// dropSynced removes pushed orders from the in-memory queue. It matters
// only when the store is unavailable; otherwise reload rebuilds the queue.
func (c *Cache) dropSynced(synced map[string]bool) {
	if len(synced) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = slices.DeleteFunc(c.pending, func(o model.Order) bool { return synced[o.ID] })
}
