package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Collection names.
const (
	CollSessions      = "sessions"
	CollProducts      = "products"
	CollOrders        = "orders"
	CollNotifications = "notifications"
	CollSettings      = "settings"
	CollCompanies     = "companies"
	CollStores        = "stores"
	CollBatches       = "inventoryBatches"
)

// SchemaVersion is the schema this build writes. Version history:
// 1 - sessions, products, orders, notifications, settings
// 2 - companies, stores, inventoryBatches; products.barcode index
const SchemaVersion = 2

type indexSpec struct {
	field string
	since int
}

type collectionSpec struct {
	name    string
	keyPath string
	since   int
	indexes []indexSpec
}

var schema = []collectionSpec{
	{name: CollSessions, keyPath: "id", since: 1, indexes: []indexSpec{{"email", 1}}},
	{name: CollProducts, keyPath: "id", since: 1, indexes: []indexSpec{{"storeId", 1}, {"category", 1}, {"barcode", 2}}},
	{name: CollOrders, keyPath: "id", since: 1, indexes: []indexSpec{{"storeId", 1}, {"timestamp", 1}, {"synced", 1}}},
	{name: CollNotifications, keyPath: "id", since: 1, indexes: []indexSpec{{"storeId", 1}, {"read", 1}, {"createdAt", 1}}},
	{name: CollSettings, keyPath: "key", since: 1},
	{name: CollCompanies, keyPath: "id", since: 2},
	{name: CollStores, keyPath: "id", since: 2, indexes: []indexSpec{{"companyId", 2}}},
	{name: CollBatches, keyPath: "id", since: 2, indexes: []indexSpec{{"productId", 2}, {"storeId", 2}, {"companyId", 2}, {"status", 2}}},
}

func specFor(name string) (collectionSpec, bool) {
	for _, c := range schema {
		if c.name == name {
			return c, true
		}
	}
	return collectionSpec{}, false
}

func (c collectionSpec) hasIndex(field string) bool {
	for _, ix := range c.indexes {
		if ix.field == field {
			return true
		}
	}
	return false
}

func indexExpr(field string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s')", field)
}

// upgrade brings the database from its stored user_version to SchemaVersion.
// Each version step runs once and only creates what does not already exist;
// nothing is ever dropped. A stored version newer than SchemaVersion is a
// VersionMismatch.
func upgrade(ctx context.Context, db *sql.DB) (from int, err error) {
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&from); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	if from > SchemaVersion {
		return from, &UnavailableError{
			Kind: KindVersionMismatch,
			Err:  fmt.Errorf("database schema v%d is newer than supported v%d; restart with a newer build", from, SchemaVersion),
		}
	}
	if from == SchemaVersion {
		return from, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return from, fmt.Errorf("upgrade: begin tx: %w", err)
	}
	defer tx.Rollback()

	for v := from + 1; v <= SchemaVersion; v++ {
		if err := applyVersion(ctx, tx, v); err != nil {
			return from, fmt.Errorf("upgrade to v%d: %w", v, err)
		}
	}

	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return from, fmt.Errorf("set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return from, fmt.Errorf("upgrade: commit: %w", err)
	}
	return from, nil
}

func applyVersion(ctx context.Context, tx *sql.Tx, version int) error {
	for _, c := range schema {
		if c.since == version {
			stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
				key TEXT PRIMARY KEY NOT NULL,
				doc TEXT NOT NULL CHECK (json_valid(doc))
			)`, c.name)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", c.name, err)
			}
		}
		for _, ix := range c.indexes {
			if ix.since != version {
				continue
			}
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %q ON %q (%s)",
				"idx_"+c.name+"_"+ix.field, c.name, indexExpr(ix.field))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("index %s.%s: %w", c.name, ix.field, err)
			}
		}
	}
	return nil
}
