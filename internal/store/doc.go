// Package store provides the SQLite-backed durable on-device store.
//
// The store holds named collections of JSON documents:
//   - sessions: user session records (at most one logged in)
//   - products: per-store product cache, deduplicated by id and natural key
//   - orders: completed sales, immutable once synced
//   - notifications: replicated remote notifications
//   - settings: key/value pairs, some under reserved prefixes
//   - companies, stores: reference data snapshots
//   - inventoryBatches: stock lots consumed oldest first
//
// # Availability
//
// Init opens or creates the database and upgrades its schema. It is safe to
// call from many goroutines at once; concurrent callers share one attempt.
// Failures are classified into an explicit Availability:
//
//   - UnavailablePermanent: no local database capability, or corruption the
//     application cannot repair. Never retried.
//   - UnavailableTransient: on-disk schema newer than this binary (restart
//     with a newer build), or the file stayed locked by another session after
//     one retry. Surfaced once from Init.
//
// While the store is not Available, reads return empty results and writes
// are skipped without error, so callers keep running in remote-only mode.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - a single connection: the store is the only writer on the device
//
// Each collection is a table of (key, doc) rows; secondary indexes are
// expression indexes over json_extract(doc, '$.<field>').
package store
