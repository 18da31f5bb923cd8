// Package ids generates record identifiers.
package ids

import (
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique record ids.
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids, optionally prefixed.
//
// Locally created orders use the "local-" prefix so they are recognizable
// on the remote after reconciliation.
type UUIDv7Generator struct {
	Prefix string
}

// Generate returns Prefix followed by a hyphenated UUIDv7.
// Panics if the system random source fails.
func (g UUIDv7Generator) Generate() string {
	return g.Prefix + uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids in order, for tests.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id. Panics when exhausted, to surface a test
// that created more records than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
