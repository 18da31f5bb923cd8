package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tillsync/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Collection is a typed view over one collection.
//
// Reads never fail: on an unavailable store or a read error they return
// the zero value / an empty slice and log. Writes return nil when skipped
// because the store is unavailable, and an error only when an available
// store rejected the write.
type Collection[T any] struct {
	m    *Manager
	spec collectionSpec
	key  func(T) string
}

func newCollection[T any](m *Manager, name string, key func(T) string) Collection[T] {
	spec, ok := specFor(name)
	if !ok {
		panic("store: unknown collection " + name)
	}
	return Collection[T]{m: m, spec: spec, key: key}
}

func (m *Manager) Sessions() Collection[model.User] {
	return newCollection(m, CollSessions, func(u model.User) string { return u.ID })
}

func (m *Manager) Products() Collection[model.Product] {
	return newCollection(m, CollProducts, func(p model.Product) string { return p.ID })
}

func (m *Manager) Orders() Collection[model.Order] {
	return newCollection(m, CollOrders, func(o model.Order) string { return o.ID })
}

func (m *Manager) Notifications() Collection[model.Notification] {
	return newCollection(m, CollNotifications, func(n model.Notification) string { return n.ID })
}

func (m *Manager) Settings() Collection[model.Setting] {
	return newCollection(m, CollSettings, func(s model.Setting) string { return s.Key })
}

func (m *Manager) Companies() Collection[model.Company] {
	return newCollection(m, CollCompanies, func(c model.Company) string { return c.ID })
}

func (m *Manager) Stores() Collection[model.Store] {
	return newCollection(m, CollStores, func(s model.Store) string { return s.ID })
}

func (m *Manager) Batches() Collection[model.InventoryBatch] {
	return newCollection(m, CollBatches, func(b model.InventoryBatch) string { return b.ID })
}

// Name returns the collection name.
func (c Collection[T]) Name() string { return c.spec.name }

// Get returns the record stored under key.
func (c Collection[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	db, ok := c.m.handle(ctx)
	if !ok {
		return zero, false
	}
	v, found, err := getDoc[T](ctx, db, c.spec.name, key)
	if err != nil {
		c.m.log.Warn(c.logCtx(ctx), "get failed, returning empty", err)
		return zero, false
	}
	return v, found
}

// All returns every record ordered by key.
func (c Collection[T]) All(ctx context.Context) []T {
	db, ok := c.m.handle(ctx)
	if !ok {
		return []T{}
	}
	out, err := queryDocs[T](ctx, db, fmt.Sprintf("SELECT doc FROM %q ORDER BY key", c.spec.name))
	if err != nil {
		c.m.log.Warn(c.logCtx(ctx), "get all failed, returning empty", err)
		return []T{}
	}
	return out
}

// ByIndex returns every record whose indexed field equals value, ordered by
// key. Unknown index names yield an empty result.
func (c Collection[T]) ByIndex(ctx context.Context, field string, value any) []T {
	if !c.spec.hasIndex(field) {
		c.m.log.Warn(c.logCtx(ctx), "no such index "+field, nil)
		return []T{}
	}
	db, ok := c.m.handle(ctx)
	if !ok {
		return []T{}
	}
	out, err := byIndex[T](ctx, db, c.spec.name, field, value)
	if err != nil {
		c.m.log.Warn(c.logCtx(ctx), "index lookup failed, returning empty", err)
		return []T{}
	}
	return out
}

// Put validates and upserts v.
func (c Collection[T]) Put(ctx context.Context, v T) error {
	db, ok := c.m.handle(ctx)
	if !ok {
		c.m.log.Debug(c.logCtx(ctx), "store unavailable, write skipped")
		return nil
	}
	if err := putDoc(ctx, db, c.spec.name, c.key(v), v); err != nil {
		return fmt.Errorf("put %s: %w", c.spec.name, err)
	}
	return nil
}

// PutAll upserts vs in one transaction. A record that fails validation or
// is rejected is logged and skipped; the rest are still written. Returns
// the number written.
func (c Collection[T]) PutAll(ctx context.Context, vs []T) (int, error) {
	written := 0
	_, err := c.m.withTx(ctx, func(tx *sql.Tx) error {
		for _, v := range vs {
			if err := putDoc(ctx, tx, c.spec.name, c.key(v), v); err != nil {
				c.m.log.Warn(c.m.log.WithField(c.logCtx(ctx), "key", c.key(v)), "item write failed, skipped", err)
				continue
			}
			written++
		}
		return nil
	})
	return written, err
}

// Delete removes the record under key. Missing keys are not an error.
func (c Collection[T]) Delete(ctx context.Context, key string) error {
	db, ok := c.m.handle(ctx)
	if !ok {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q WHERE key = ?", c.spec.name), key); err != nil {
		return fmt.Errorf("delete %s: %w", c.spec.name, err)
	}
	return nil
}

// Clear removes every record in the collection.
func (c Collection[T]) Clear(ctx context.Context) error {
	db, ok := c.m.handle(ctx)
	if !ok {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", c.spec.name)); err != nil {
		return fmt.Errorf("clear %s: %w", c.spec.name, err)
	}
	return nil
}

// Count returns the number of records; 0 when unavailable.
func (c Collection[T]) Count(ctx context.Context) int {
	db, ok := c.m.handle(ctx)
	if !ok {
		return 0
	}
	var n int
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %q", c.spec.name)).Scan(&n); err != nil {
		c.m.log.Warn(c.logCtx(ctx), "count failed", err)
		return 0
	}
	return n
}

func (c Collection[T]) logCtx(ctx context.Context) context.Context {
	return c.m.log.WithField(ctx, "collection", c.spec.name)
}

func getDoc[T any](ctx context.Context, q queryer, coll, key string) (T, bool, error) {
	var zero T
	var data string
	err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT doc FROM %q WHERE key = ?", coll), key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s/%s: %w", coll, key, err)
	}
	v, err := unmarshalDoc[T](data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func byIndex[T any](ctx context.Context, q queryer, coll, field string, value any) ([]T, error) {
	query := fmt.Sprintf("SELECT doc FROM %q WHERE %s = ? ORDER BY key", coll, indexExpr(field))
	return queryDocs[T](ctx, q, query, indexArg(value))
}

func queryDocs[T any](ctx context.Context, q queryer, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		v, err := unmarshalDoc[T](data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func putDoc(ctx context.Context, q queryer, coll, key string, v any) error {
	if key == "" {
		return errors.New("empty key")
	}
	if err := model.Validate(v); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	data, err := marshalDoc(v)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %q (key, doc) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET doc = excluded.doc
	`, coll), key, data)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", coll, key, err)
	}
	return nil
}

func deleteWhere(ctx context.Context, q queryer, coll, where string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q WHERE %s", coll, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", coll, err)
	}
	return res.RowsAffected()
}
