package scheduler

import (
	"context"

	"github.com/roach88/tillsync/internal/session"
	"github.com/roach88/tillsync/internal/store"
)

// Job names.
const (
	JobReconcileOrders = "reconcile-orders"
	JobRefreshProducts = "refresh-products"
)

// Reconciler pushes pending orders.
type Reconciler interface {
	ReconcilePending(ctx context.Context) (session.ReconcileResult, error)
}

// Refresher refreshes the selected store's products.
type Refresher interface {
	CurrentStoreID() string
	RefreshProducts(ctx context.Context, storeID string) (store.MergeReport, error)
}

// ReconcileJob reconciles pending orders. It is a no-op while unreachable.
func ReconcileJob(r Reconciler) Job {
	return NewJob(JobReconcileOrders, func(ctx context.Context) error {
		_, err := r.ReconcilePending(ctx)
		return err
	})
}

// RefreshProductsJob refreshes products of the selected store. Without a
// selected store there is nothing to refresh.
func RefreshProductsJob(r Refresher) Job {
	return NewJob(JobRefreshProducts, func(ctx context.Context) error {
		storeID := r.CurrentStoreID()
		if storeID == "" {
			return nil
		}
		_, err := r.RefreshProducts(ctx, storeID)
		return err
	})
}

// Reachability is the part of the connectivity classifier the trigger
// subscribes to.
type Reachability interface {
	Subscribe(fn func(reachable bool)) (unsubscribe func())
}

// TriggerOnReachable runs the named job whenever the remote becomes
// reachable. The job runs on its own goroutine so the classifier is never
// blocked; Stop waits for it.
func (s *Scheduler) TriggerOnReachable(ctx context.Context, r Reachability, name string) (unsubscribe func()) {
	return r.Subscribe(func(reachable bool) {
		if !reachable {
			return
		}
		if !s.goRun(ctx, name) {
			s.log.Debug(s.log.WithField(ctx, "job", name), "scheduler stopped, trigger ignored")
		}
	})
}
