// Package connectivity classifies whether the remote system of record is
// actually reachable.
//
// The OS network signal is trusted only in the offline direction. The
// online signal comes from remote reads: a read served fresh means
// reachable, a read served from the client cache means unreachable.
package connectivity

import (
	"context"
	"sync"

	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/metrics"
	"github.com/roach88/tillsync/internal/remote"
)

// Options configures a Classifier.
type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Classifier holds the reachability state. It starts unreachable.
type Classifier struct {
	log     *logger.Logger
	metrics *metrics.Metrics

	mu             sync.Mutex
	reachable      bool
	networkPresent bool
	nextSub        int
	subs           map[int]func(bool)
}

// New returns an unreachable classifier.
func New(opts Options) *Classifier {
	c := &Classifier{
		log:     logger.OrNop(opts.Logger).Named("connectivity"),
		metrics: opts.Metrics,
		subs:    make(map[int]func(bool)),
	}
	c.metrics.SetReachable(false)
	return c
}

// Init seeds the network signal from src. Any failure leaves the
// classifier unreachable; Init never fails.
func (c *Classifier) Init(ctx context.Context, src NetworkSource) {
	if src == nil {
		c.log.Warn(ctx, "no network source; assuming unreachable", nil)
		return
	}
	present, err := src.Present(ctx)
	if err != nil {
		c.log.Warn(ctx, "network probe failed; assuming unreachable", err)
		c.set(ctx, false)
		return
	}
	c.ObserveNetwork(ctx, present)
}

// IsReachable reports the current state.
func (c *Classifier) IsReachable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reachable
}

// NetworkPresent reports the last OS network signal.
func (c *Classifier) NetworkPresent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.networkPresent
}

// Subscribe registers fn for state transitions. fn runs on the goroutine
// that caused the transition and must not block.
func (c *Classifier) Subscribe(fn func(reachable bool)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// ObserveNetwork records the OS network signal. Absence is trusted and
// makes the remote unreachable at once; presence alone changes nothing.
func (c *Classifier) ObserveNetwork(ctx context.Context, present bool) {
	c.mu.Lock()
	c.networkPresent = present
	c.mu.Unlock()
	if !present {
		c.set(ctx, false)
	}
}

// ObserveRead records how a remote read was served.
func (c *Classifier) ObserveRead(ctx context.Context, meta remote.ReadMeta) {
	c.set(ctx, !meta.FromCache)
}

func (c *Classifier) set(ctx context.Context, reachable bool) {
	c.mu.Lock()
	if c.reachable == reachable {
		c.mu.Unlock()
		return
	}
	c.reachable = reachable
	subs := make([]func(bool), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	c.metrics.SetReachable(reachable)
	c.log.Info(c.log.WithField(ctx, "reachable", reachable), "reachability changed")
	for _, fn := range subs {
		fn(reachable)
	}
}
