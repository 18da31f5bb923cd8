// Package session holds the single active user, the working set of the
// selected store, and the queue of orders not yet reconciled with the
// remote. Every change is written through the local store first and the
// in-memory state is then reloaded from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/tillsync/internal/enrich"
	"github.com/roach88/tillsync/internal/ids"
	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/metrics"
	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/remote"
	"github.com/roach88/tillsync/internal/store"
)

var (
	// ErrNoSuchSession is returned when switching to an unknown identity.
	ErrNoSuchSession = errors.New("no such session")
	// ErrNoActiveSession is returned by operations that need a logged-in user.
	ErrNoActiveSession = errors.New("no active session")
	// ErrStoreNotPermitted is returned when switching to a store the user
	// holds no permission for.
	ErrStoreNotPermitted = errors.New("store not permitted for user")
	// ErrNoRemote is returned by refresh operations when no remote client
	// is configured.
	ErrNoRemote = errors.New("no remote configured")
)

// SaveMode selects how SaveSession treats other session records.
type SaveMode int

const (
	// Coexist flips every other session to logged out.
	Coexist SaveMode = iota
	// Exclusive deletes every other session first.
	Exclusive
)

func (m SaveMode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "coexist"
}

// Classifier is the reachability view the cache reads and feeds.
type Classifier interface {
	IsReachable() bool
	ObserveRead(ctx context.Context, meta remote.ReadMeta)
}

// Options configures a Cache. Store, Classifier and Enricher are required.
type Options struct {
	Store      *store.Manager
	Classifier Classifier
	Enricher   *enrich.Enricher
	Remote     remote.Client
	OrderIDs   ids.Generator
	ProductIDs ids.Generator
	Now        func() time.Time
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// Cache is the session and working-set layer.
type Cache struct {
	store    *store.Manager
	reach    Classifier
	enricher *enrich.Enricher
	remote   remote.Client
	orderIDs ids.Generator
	prodIDs  ids.Generator
	now      func() time.Time
	log      *logger.Logger
	metrics  *metrics.Metrics

	reconcileMu sync.Mutex

	mu       sync.RWMutex
	user     model.User
	hasUser  bool
	products []model.Product
	orders   []model.Order
	pending  []model.Order
}

// New builds a Cache. It does not touch the store until LoadActiveSession.
func New(opts Options) (*Cache, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("session: classifier is required")
	}
	if opts.Enricher == nil {
		return nil, errors.New("session: enricher is required")
	}
	c := &Cache{
		store:    opts.Store,
		reach:    opts.Classifier,
		remote:   opts.Remote,
		orderIDs: opts.OrderIDs,
		prodIDs:  opts.ProductIDs,
		now:      opts.Now,
		log:      logger.OrNop(opts.Logger).Named("session"),
		metrics:  opts.Metrics,
	}
	if c.orderIDs == nil {
		c.orderIDs = ids.UUIDv7Generator{Prefix: "local-"}
	}
	if c.prodIDs == nil {
		c.prodIDs = ids.UUIDv7Generator{}
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	c.enricher = opts.Enricher.WithSessions(c)
	return c, nil
}

// User returns the active user.
func (c *Cache) User() (model.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user, c.hasUser
}

// ActiveSession returns the in-memory user, or the store's logged-in
// session when none is held. The in-memory user is the only one left
// while the store is unavailable.
func (c *Cache) ActiveSession(ctx context.Context) (model.User, bool) {
	if u, ok := c.User(); ok {
		return u, true
	}
	return c.store.ActiveSession(ctx)
}

// CurrentStoreID returns the active user's selected store.
func (c *Cache) CurrentStoreID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.CurrentStoreID
}

// Products returns the working-set products of the selected store.
func (c *Cache) Products() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.products)
}

// Orders returns the working-set orders of the selected store.
func (c *Cache) Orders() []model.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.orders)
}

// Pending returns the unsynced order queue, oldest first.
func (c *Cache) Pending() []model.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.pending)
}

// PendingCount returns the length of the unsynced order queue.
func (c *Cache) PendingCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// reload replaces the in-memory state with what the store holds. When the
// store is unavailable the pending queue is kept, since it is the only
// copy of those orders.
func (c *Cache) reload(ctx context.Context) {
	u, ok := c.store.ActiveSession(ctx)
	var products []model.Product
	var orders []model.Order
	if ok && u.CurrentStoreID != "" {
		products = c.store.ProductsForStore(ctx, u.CurrentStoreID)
		orders = c.store.OrdersForStore(ctx, u.CurrentStoreID)
	}
	available := c.store.Availability() == store.Available
	var pending []model.Order
	if available {
		pending = c.store.PendingOrders(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !available {
		c.log.Debug(ctx, "store unavailable, keeping in-memory state")
		return
	}
	c.user, c.hasUser = u, ok
	c.products, c.orders, c.pending = products, orders, pending
}

func (c *Cache) clearMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user, c.hasUser = model.User{}, false
	c.products, c.orders, c.pending = nil, nil, nil
}

func (c *Cache) requireUser() (model.User, error) {
	u, ok := c.User()
	if !ok {
		return model.User{}, ErrNoActiveSession
	}
	return u, nil
}

func (c *Cache) logCtx(ctx context.Context) context.Context {
	u, ok := c.User()
	if !ok {
		return ctx
	}
	ctx = c.log.WithUserID(ctx, u.ID)
	if u.CurrentStoreID != "" {
		ctx = c.log.WithStoreID(ctx, u.CurrentStoreID)
	}
	return ctx
}

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
