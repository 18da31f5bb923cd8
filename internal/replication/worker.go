// Package replication copies remote notification documents into the
// local store as they change. The copy is one-directional and additive:
// each change is upserted by id, and remote removals are ignored.
package replication

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/metrics"
	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/remote"
)

// NotificationsCollection is the remote collection replicated.
const NotificationsCollection = "notifications"

// Store is where replicated notifications are written.
type Store interface {
	UpsertNotification(ctx context.Context, n model.Notification) error
}

// Options configures a Worker.
type Options struct {
	Subscriber remote.Subscriber
	Store      Store
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// Worker holds at most one live subscription.
type Worker struct {
	subscriber remote.Subscriber
	store      Store
	log        *logger.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	sub     remote.Subscription
	storeID string
	gen     uint64
}

func New(opts Options) (*Worker, error) {
	if opts.Subscriber == nil {
		return nil, errors.New("replication: subscriber is required")
	}
	if opts.Store == nil {
		return nil, errors.New("replication: store is required")
	}
	return &Worker{
		subscriber: opts.Subscriber,
		store:      opts.Store,
		log:        logger.OrNop(opts.Logger).Named("replication"),
		metrics:    opts.Metrics,
	}, nil
}

// Start subscribes to storeID's notifications, tearing down any previous
// subscription first. A subscription failure is logged and replication
// stops until Start is called again; it is never returned from Start.
func (w *Worker) Start(ctx context.Context, storeID string) error {
	if storeID == "" {
		return errors.New("replication: store id is required")
	}
	w.Stop()

	// Subscribe may deliver a snapshot or an error before it returns, and
	// both callbacks take w.mu, so the lock is not held across it.
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.mu.Unlock()
	lctx := w.log.WithStoreID(context.WithoutCancel(ctx), storeID)

	q := remote.Query{
		Collection: NotificationsCollection,
		Where:      map[string]string{"storeId": storeID},
	}
	sub, err := w.subscriber.Subscribe(ctx, q,
		func(c remote.Change) error { return w.apply(lctx, gen, storeID, c) },
		func(err error) { w.fail(lctx, gen, err) },
	)
	if err != nil {
		w.log.Error(lctx, "subscribe failed, replication stopped", err)
		return nil
	}

	w.mu.Lock()
	if w.gen != gen {
		// Failed during Subscribe, or superseded by Stop or another Start.
		w.mu.Unlock()
		sub.Stop()
		return nil
	}
	w.sub, w.storeID = sub, storeID
	w.mu.Unlock()
	w.log.Info(lctx, "replication started")
	return nil
}

// Stop tears down the active subscription. No change is applied after
// Stop returns.
func (w *Worker) Stop() {
	w.mu.Lock()
	sub := w.sub
	w.sub, w.storeID = nil, ""
	w.gen++
	w.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}

// Active returns the store being replicated.
func (w *Worker) Active() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storeID, w.sub != nil
}

func (w *Worker) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen == gen
}

// apply upserts one change. Only a failed store write is returned, so the
// feed can redeliver it; stale, removed and malformed changes are dropped.
func (w *Worker) apply(ctx context.Context, gen uint64, storeID string, c remote.Change) error {
	if !w.current(gen) {
		return nil
	}
	ctx = w.log.WithField(ctx, "notification_id", c.Doc.ID)
	if c.Type == remote.ChangeRemoved {
		w.log.Debug(ctx, "remote removal ignored")
		return nil
	}
	n, err := Normalize(c.Doc, storeID)
	if err != nil {
		w.log.Warn(ctx, "malformed notification skipped", err)
		return nil
	}
	if err := w.store.UpsertNotification(ctx, n); err != nil {
		w.log.Warn(ctx, "notification upsert failed", err)
		return err
	}
	w.metrics.IncReplicated()
	return nil
}

// fail may run on the subscription's own goroutine, so the subscription is
// released asynchronously.
func (w *Worker) fail(ctx context.Context, gen uint64, err error) {
	w.log.Error(ctx, "subscription failed, replication stopped", err)
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return
	}
	sub := w.sub
	w.sub, w.storeID = nil, ""
	w.gen++
	w.mu.Unlock()
	if sub != nil {
		go sub.Stop()
	}
}
