package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/metrics"
)

const defaultLockRetryDelay = 250 * time.Millisecond

// TiePolicy decides a product id match when neither side's lastUpdated is
// strictly newer (both equal, or both absent).
type TiePolicy int

const (
	// KeepExistingOnTie leaves the stored record untouched.
	KeepExistingOnTie TiePolicy = iota
	// PreferIncomingOnTie overwrites the stored record.
	PreferIncomingOnTie
)

// Options configures a Manager.
type Options struct {
	// Driver is the database/sql driver name. Defaults to "sqlite3".
	Driver string

	// LockRetryDelay is how long Init waits before its single retry when
	// the database is locked by another session.
	LockRetryDelay time.Duration

	// BusyTimeout is SQLite's own lock wait per statement. Zero means fail
	// fast and leave retrying to Init.
	BusyTimeout time.Duration

	TiePolicy TiePolicy
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

// Manager owns the on-device database.
//
// Thread-safety: all methods are safe for concurrent use. The database uses
// a single connection, so statements and transactions are serialized.
type Manager struct {
	path string
	opts Options
	log  *logger.Logger

	group  singleflight.Group
	opened atomic.Int64 // open attempts, for tests

	mu      sync.RWMutex
	db      *sql.DB
	state   Availability
	initErr error
	closed  bool
}

// New creates a Manager for the database at path. Nothing is opened until
// Init or the first operation.
func New(path string, opts Options) *Manager {
	if opts.Driver == "" {
		opts.Driver = "sqlite3"
	}
	if opts.LockRetryDelay <= 0 {
		opts.LockRetryDelay = defaultLockRetryDelay
	}
	return &Manager{
		path: path,
		opts: opts,
		log:  logger.OrNop(opts.Logger).Named("store"),
	}
}

// Availability returns the current availability state.
func (m *Manager) Availability() Availability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// InitErr returns the error that made the store unavailable, if any.
func (m *Manager) InitErr() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initErr
}

// Init opens, creates or upgrades the database.
//
// Idempotent once successful. Concurrent callers share a single attempt.
// Permanent failures and schema version mismatches are returned again on
// every later call without touching the database. A lock failure leaves the
// store transient; a later explicit Init tries again.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.RLock()
	state, initErr, closed := m.state, m.initErr, m.closed
	m.mu.RUnlock()

	if closed {
		return errors.New("store closed")
	}
	switch {
	case state == Available:
		return nil
	case state == UnavailablePermanent:
		return initErr
	case state == UnavailableTransient && IsKind(initErr, KindVersionMismatch):
		return initErr
	}

	_, err, _ := m.group.Do("init", func() (any, error) {
		return nil, m.open(ctx)
	})
	return err
}

func (m *Manager) open(ctx context.Context) error {
	m.mu.RLock()
	if m.state == Available {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	db, err := m.attempt(ctx)
	if IsKind(err, KindLocked) {
		m.log.Warn(ctx, "database locked, retrying once", err)
		select {
		case <-ctx.Done():
			return m.fail(ctx, err)
		case <-time.After(m.opts.LockRetryDelay):
		}
		db, err = m.attempt(ctx)
	}
	if err != nil {
		return m.fail(ctx, err)
	}

	m.mu.Lock()
	m.db = db
	m.state = Available
	m.initErr = nil
	m.mu.Unlock()
	m.opts.Metrics.SetStoreAvailable(true)
	m.log.Info(ctx, "store ready")
	return nil
}

// attempt performs one open+pragmas+upgrade pass. Errors come back as
// classified *UnavailableError.
func (m *Manager) attempt(ctx context.Context) (*sql.DB, error) {
	m.opened.Add(1)

	if strings.TrimSpace(m.path) == "" {
		return nil, &UnavailableError{Kind: KindNoCapability, Err: errors.New("no database path configured")}
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_txlock=immediate", m.path, m.opts.BusyTimeout.Milliseconds())
	db, err := sql.Open(m.opts.Driver, dsn)
	if err != nil {
		return nil, m.wrap(fmt.Errorf("open database: %w", err))
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, m.wrap(fmt.Errorf("connect: %w", err))
	}
	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, m.wrap(err)
	}
	from, err := upgrade(ctx, db)
	if err != nil {
		db.Close()
		return nil, m.wrap(err)
	}
	if from != SchemaVersion {
		m.log.Info(m.log.WithFields(ctx, map[string]any{"from": from, "to": SchemaVersion}), "schema upgraded")
	}
	return db, nil
}

func (m *Manager) wrap(err error) error {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		ue.Path = m.path
		return ue
	}
	kind, _ := classify(err)
	return &UnavailableError{Kind: kind, Path: m.path, Err: err}
}

func (m *Manager) fail(ctx context.Context, err error) error {
	state := UnavailableTransient
	if IsPermanent(err) {
		state = UnavailablePermanent
	}
	m.mu.Lock()
	m.state = state
	m.initErr = err
	m.mu.Unlock()
	m.opts.Metrics.SetStoreAvailable(false)
	m.log.Error(m.log.WithField(ctx, "availability", state.String()), "store unavailable, continuing remote-only", err)
	return err
}

// Close closes the database. Later operations degrade as if unavailable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.state = Unknown
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// handle returns the open database, initializing lazily on first use. The
// boolean is false whenever the caller must degrade.
func (m *Manager) handle(ctx context.Context) (*sql.DB, bool) {
	m.mu.RLock()
	db, state, closed := m.db, m.state, m.closed
	m.mu.RUnlock()
	if closed {
		return nil, false
	}
	if state == Unknown {
		if err := m.Init(ctx); err != nil {
			return nil, false
		}
		m.mu.RLock()
		db, state = m.db, m.state
		m.mu.RUnlock()
	}
	return db, state == Available && db != nil
}

// withTx runs fn in one transaction. Skipped with a nil error when the store
// is unavailable; ran reports whether fn executed.
func (m *Manager) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (ran bool, err error) {
	db, ok := m.handle(ctx)
	if !ok {
		return false, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return true, err
	}
	if err := tx.Commit(); err != nil {
		return true, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	// Touch the schema so a damaged or foreign file fails here, not on the
	// first user query.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (m *Manager) verifyPragma(name, expected string) error {
	db, ok := m.handle(context.Background())
	if !ok {
		return errors.New("store not available")
	}
	var value string
	if err := db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
