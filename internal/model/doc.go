// Package model defines the record types persisted by the on-device store.
//
// This package contains type definitions and small pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - JSON tags use the camelCase field names of the remote system of record, so a
//     document fetched from the remote decodes straight into these types
//   - Money is decimal.Decimal, never float64
//   - Timestamps are wall-clock time.Time in UTC; the merge rules compare them
//     with strict After semantics
package model
