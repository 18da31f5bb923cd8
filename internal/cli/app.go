package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/tillsync/internal/auth"
	"github.com/roach88/tillsync/internal/config"
	"github.com/roach88/tillsync/internal/connectivity"
	"github.com/roach88/tillsync/internal/enrich"
	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/metrics"
	"github.com/roach88/tillsync/internal/remote"
	"github.com/roach88/tillsync/internal/remote/httpdoc"
	"github.com/roach88/tillsync/internal/session"
	"github.com/roach88/tillsync/internal/store"
)

// App is the set of components one command works with.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *store.Manager
	reach    *connectivity.Classifier
	remote   remote.Client
	identity *auth.TokenIdentity
	offline  *auth.OfflineAuthenticator
	cache    *session.Cache
	now      func() time.Time
}

// openApp loads configuration, opens the store and restores the active
// session. The store may come up unavailable; commands still run and
// degrade the way the store does.
func openApp(ctx context.Context, opts *RootOptions, stderr io.Writer) (*App, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err).withKind(CodeInvalidInput)
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	log := logger.New(logger.Options{
		Component: "tillsync",
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    stderr,
	})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	tie := store.KeepExistingOnTie
	if cfg.Store.TiePolicy == config.TiePolicyPreferIncoming {
		tie = store.PreferIncomingOnTie
	}
	st := store.New(cfg.Store.Path, store.Options{
		LockRetryDelay: cfg.Store.LockRetryDelay,
		TiePolicy:      tie,
		Logger:         log,
		Metrics:        m,
	})
	if err := st.Init(ctx); err != nil {
		log.Warn(ctx, "store unavailable, continuing degraded", err)
	}

	reach := connectivity.New(connectivity.Options{Logger: log, Metrics: m})
	reach.Init(ctx, connectivity.NewInterfaceWatcher())

	app := &App{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  m,
		store:    st,
		reach:    reach,
		offline:  auth.NewOfflineAuthenticator(st, 0),
		now:      func() time.Time { return time.Now().UTC() },
	}

	if cfg.Remote.BaseURL != "" {
		client, err := httpdoc.New(cfg.Remote.BaseURL, httpdoc.Options{
			Timeout: cfg.Remote.Timeout,
			Token:   cfg.Remote.Token,
			Logger:  log,
		})
		if err != nil {
			_ = st.Close()
			return nil, WrapExitError(ExitCommandError, "invalid remote configuration", err).withKind(CodeInvalidInput)
		}
		app.remote = client
	}

	enrichOpts := enrich.Options{Sessions: st, Reach: reach}
	if cfg.Auth.JWTSecret != "" {
		app.identity = auth.NewTokenIdentity(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if cfg.Remote.Token != "" {
			if _, err := app.identity.SetToken(cfg.Remote.Token); err != nil {
				log.Warn(ctx, "remote token rejected, falling back to the stored session", err)
			}
		}
		enrichOpts.Live = app.identity
	}

	cache, err := session.New(session.Options{
		Store:      st,
		Classifier: reach,
		Enricher:   enrich.New(enrichOpts),
		Remote:     app.remote,
		Logger:     log,
		Metrics:    m,
	})
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to build session cache", err)
	}
	app.cache = cache
	cache.LoadActiveSession(ctx)
	return app, nil
}

// Close releases the store.
func (a *App) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error(context.Background(), "error closing store", err)
	}
}

// probe performs one cheap remote read so the classifier reflects the
// current reachability before a command that depends on it.
func (a *App) probe(ctx context.Context) {
	if a.remote == nil {
		return
	}
	meta, err := connectivity.ReaderProbe(a.remote, probeQuery)(ctx)
	if err != nil && !meta.FromCache {
		a.log.Debug(a.log.WithField(ctx, "error", err.Error()), "probe failed")
		return
	}
	a.reach.ObserveRead(ctx, meta)
}

// probeQuery reads the store reference collection, which is small.
var probeQuery = remote.Query{Collection: session.StoresCollection}

// withApp opens the app for a command, runs fn and closes it.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openApp(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

// classify maps a domain error to an ExitError.
func classify(message string, err error) error {
	var exitErr *ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		return err
	case errors.Is(err, enrich.ErrAuthenticationRequired),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrOfflineAuthNotAllowed),
		errors.Is(err, auth.ErrInvalidToken):
		return WrapExitError(ExitFailure, message, err).withKind(CodeAuthentication)
	case errors.Is(err, session.ErrNoSuchSession),
		errors.Is(err, session.ErrNoActiveSession):
		return WrapExitError(ExitFailure, message, err).withKind(CodeNotFound)
	case errors.Is(err, session.ErrNoRemote),
		errors.Is(err, remote.ErrOffline):
		return WrapExitError(ExitFailure, message, err).withKind(CodeRemote)
	case store.IsPermanent(err), store.IsTransient(err):
		return WrapExitError(ExitCommandError, message, err).withKind(CodeStoreUnavailable)
	default:
		return WrapExitError(ExitFailure, message, err)
	}
}

func invalidInput(format string, args ...any) error {
	return NewExitError(ExitCommandError, fmt.Sprintf(format, args...)).withKind(CodeInvalidInput)
}
