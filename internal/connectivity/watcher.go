package connectivity

import (
	"context"
	"net"
	"time"

	"github.com/roach88/tillsync/internal/remote"
)

// NetworkSource reports whether the OS has a usable network link.
type NetworkSource interface {
	Present(ctx context.Context) (bool, error)
}

// NetworkSourceFunc adapts a function to NetworkSource.
type NetworkSourceFunc func(ctx context.Context) (bool, error)

func (f NetworkSourceFunc) Present(ctx context.Context) (bool, error) { return f(ctx) }

// InterfaceWatcher reports network presence from the host interfaces: any
// non-loopback interface that is up and has an address counts.
type InterfaceWatcher struct {
	interfaces func() ([]net.Interface, error)
}

// NewInterfaceWatcher reads the host's interfaces.
func NewInterfaceWatcher() *InterfaceWatcher {
	return &InterfaceWatcher{interfaces: net.Interfaces}
}

func (w *InterfaceWatcher) Present(ctx context.Context) (bool, error) {
	ifaces, err := w.interfaces()
	if err != nil {
		return false, err
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err == nil && len(addrs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ProbeFunc performs one cheap remote read and returns how it was served.
type ProbeFunc func(ctx context.Context) (remote.ReadMeta, error)

// ReaderProbe probes with a query against r.
func ReaderProbe(r remote.Reader, q remote.Query) ProbeFunc {
	return func(ctx context.Context) (remote.ReadMeta, error) {
		_, meta, err := r.Query(ctx, q)
		return meta, err
	}
}

// RunOptions configures Run.
type RunOptions struct {
	Network       NetworkSource
	Probe         ProbeFunc
	PollInterval  time.Duration
	ProbeInterval time.Duration
}

// Run polls the network source and probes the remote until ctx is done.
// While the network is present a probe runs on every poll until the
// remote answers fresh, then on every probe tick.
func (c *Classifier) Run(ctx context.Context, opts RunOptions) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 30 * time.Second
	}
	poll := time.NewTicker(opts.PollInterval)
	defer poll.Stop()
	probe := time.NewTicker(opts.ProbeInterval)
	defer probe.Stop()

	c.pollOnce(ctx, opts)
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			c.pollOnce(ctx, opts)
		case <-probe.C:
			if c.NetworkPresent() {
				c.probeOnce(ctx, opts.Probe)
			}
		}
	}
}

func (c *Classifier) pollOnce(ctx context.Context, opts RunOptions) {
	if opts.Network == nil {
		c.probeOnce(ctx, opts.Probe)
		return
	}
	was := c.NetworkPresent()
	present, err := opts.Network.Present(ctx)
	if err != nil {
		c.log.Warn(ctx, "network poll failed", err)
		present = false
	}
	c.ObserveNetwork(ctx, present)
	if present && (!was || !c.IsReachable()) {
		c.probeOnce(ctx, opts.Probe)
	}
}

func (c *Classifier) probeOnce(ctx context.Context, probe ProbeFunc) {
	if probe == nil {
		return
	}
	meta, err := probe(ctx)
	if err != nil && !meta.FromCache {
		if ctx.Err() == nil {
			c.log.Warn(ctx, "reachability probe failed", err)
		}
		return
	}
	c.ObserveRead(ctx, meta)
}
