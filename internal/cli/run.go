package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/connectivity"
	"github.com/roach88/tillsync/internal/remote/pubsubfeed"
	"github.com/roach88/tillsync/internal/replication"
	"github.com/roach88/tillsync/internal/scheduler"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background sync loop",
		Long: `Run the terminal's background loop until interrupted.

  - watches the OS network and probes the remote to classify reachability
  - reconciles pending orders on a schedule and whenever the remote
    becomes reachable
  - refreshes the selected store's products on a schedule
  - replicates the selected store's notifications when a feed is configured
  - serves Prometheus metrics when TILLSYNC_METRICS_ADDR is set

Example:
  tillsync run --db ./till.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return runLoop(ctx, app, cmd)
			})
		},
	}
}

func runLoop(parent context.Context, app *App, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			app.log.Info(app.log.WithField(ctx, "signal", sig.String()), "received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	sched := scheduler.New(scheduler.Params{Logger: app.log, Metrics: app.metrics})
	if err := sched.Add(app.cfg.Scheduler.ReconcileSchedule, scheduler.ReconcileJob(app.cache)); err != nil {
		return WrapExitError(ExitCommandError, "invalid reconcile schedule", err).withKind(CodeInvalidInput)
	}
	if app.remote != nil {
		if err := sched.Add(app.cfg.Scheduler.RefreshSchedule, scheduler.RefreshProductsJob(app.cache)); err != nil {
			return WrapExitError(ExitCommandError, "invalid refresh schedule", err).withKind(CodeInvalidInput)
		}
	}
	unsubscribe := sched.TriggerOnReachable(ctx, app.reach, scheduler.JobReconcileOrders)
	defer unsubscribe()
	sched.Start(ctx)
	defer sched.Stop()

	watchOpts := connectivity.RunOptions{
		Network:       connectivity.NewInterfaceWatcher(),
		PollInterval:  app.cfg.Connectivity.NetworkPollInterval,
		ProbeInterval: app.cfg.Connectivity.ProbeInterval,
	}
	if app.remote != nil {
		watchOpts.Probe = connectivity.ReaderProbe(app.remote, probeQuery)
	}
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		app.reach.Run(ctx, watchOpts)
	}()

	if stop, err := startReplication(ctx, app); err != nil {
		app.log.Warn(ctx, "notification replication disabled", err)
	} else {
		defer stop()
	}

	if app.cfg.Metrics.Addr != "" {
		stop := serveMetrics(ctx, app)
		defer stop()
	}

	app.log.Info(app.log.WithField(ctx, "db", app.cfg.Store.Path), "sync loop started")
	fmt.Fprintln(cmd.OutOrStdout(), "Sync loop started. Press Ctrl-C to stop.")

	<-ctx.Done()
	<-watchDone
	app.log.Info(context.Background(), "sync loop stopped gracefully")
	return nil
}

// startReplication subscribes to the selected store's notifications.
func startReplication(ctx context.Context, app *App) (stop func(), err error) {
	rc := app.cfg.Replication
	if !rc.Enabled() {
		return nil, errors.New("TILLSYNC_GCP_PROJECT and TILLSYNC_NOTIFICATIONS_SUBSCRIPTION are not set")
	}
	feed, err := pubsubfeed.New(ctx, rc.GCPProject, rc.NotificationsSubscription, app.log)
	if err != nil {
		return nil, err
	}
	worker, err := replication.New(replication.Options{
		Subscriber: feed,
		Store:      app.store,
		Logger:     app.log,
		Metrics:    app.metrics,
	})
	if err != nil {
		_ = feed.Close()
		return nil, err
	}
	if storeID := app.cache.CurrentStoreID(); storeID != "" {
		if err := worker.Start(ctx, storeID); err != nil {
			app.log.Warn(ctx, "replication not started", err)
		}
	}
	return func() {
		worker.Stop()
		if err := feed.Close(); err != nil {
			app.log.Error(context.Background(), "error closing notification feed", err)
		}
	}, nil
}

func serveMetrics(ctx context.Context, app *App) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              app.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error(ctx, "metrics server stopped", err)
		}
	}()
	app.log.Info(app.log.WithField(ctx, "addr", srv.Addr), "serving metrics")
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
