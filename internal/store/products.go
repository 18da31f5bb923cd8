package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tillsync/internal/ids"
	"github.com/roach88/tillsync/internal/model"
)

// MergeOutcome is what happened to one incoming product.
type MergeOutcome string

const (
	MergeInserted  MergeOutcome = "inserted"
	MergeUpdated   MergeOutcome = "updated"   // id match, incoming newer
	MergeMerged    MergeOutcome = "merged"    // natural-key match, existing id kept
	MergeUnchanged MergeOutcome = "unchanged" // id match, incoming not newer
	MergeSkipped   MergeOutcome = "skipped"   // invalid or rejected by the store
)

// MergeReport counts outcomes of a MergeProducts call.
type MergeReport struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Merged    int `json:"merged"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

func (r *MergeReport) add(o MergeOutcome) {
	switch o {
	case MergeInserted:
		r.Inserted++
	case MergeUpdated:
		r.Updated++
	case MergeMerged:
		r.Merged++
	case MergeUnchanged:
		r.Unchanged++
	case MergeSkipped:
		r.Skipped++
	}
}

// Total is the number of incoming records processed.
func (r MergeReport) Total() int {
	return r.Inserted + r.Updated + r.Merged + r.Unchanged + r.Skipped
}

// productIndex is the in-memory view of the products collection used to
// match a whole incoming batch without rescanning the table per item.
type productIndex struct {
	byID  map[string]model.Product
	byKey map[model.NaturalKey]string
}

func newProductIndex(existing []model.Product) *productIndex {
	ix := &productIndex{
		byID:  make(map[string]model.Product, len(existing)),
		byKey: make(map[model.NaturalKey]string, len(existing)),
	}
	for _, p := range existing {
		ix.set(p)
	}
	return ix
}

func (ix *productIndex) set(p model.Product) {
	if old, ok := ix.byID[p.ID]; ok {
		if k := old.NaturalKey(); k.Valid() && ix.byKey[k] == p.ID {
			delete(ix.byKey, k)
		}
	}
	ix.byID[p.ID] = p
	if k := p.NaturalKey(); k.Valid() {
		ix.byKey[k] = p.ID
	}
}

// MergeProducts applies a batch of incoming products in one transaction.
//
// For each incoming record:
//  1. id matches a stored record: overwrite only if incoming lastUpdated is
//     strictly newer (ties follow the configured TiePolicy)
//  2. else natural key (storeId, barcode, productName) matches: merge the
//     incoming fields into the stored record, keeping its id
//  3. else insert, generating an id when the record has none
//
// Records that fail validation or are rejected by the database are logged
// and skipped; the batch still succeeds. Returns an empty report when the
// store is unavailable.
func (m *Manager) MergeProducts(ctx context.Context, incoming []model.Product, gen ids.Generator) (MergeReport, error) {
	if gen == nil {
		gen = ids.UUIDv7Generator{}
	}
	var report MergeReport
	ran, err := m.withTx(ctx, func(tx *sql.Tx) error {
		report = MergeReport{}
		existing, err := queryDocs[model.Product](ctx, tx, fmt.Sprintf("SELECT doc FROM %q", CollProducts))
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		ix := newProductIndex(existing)

		for _, in := range incoming {
			target, outcome := m.resolveMerge(ix, in, gen)
			if outcome == MergeUnchanged {
				report.add(outcome)
				continue
			}
			if outcome == MergeSkipped {
				m.log.Warn(m.log.WithField(ctx, "product_id", in.ID), "natural key held by another product, update skipped", nil)
				report.add(outcome)
				continue
			}
			if err := putDoc(ctx, tx, CollProducts, target.ID, target); err != nil {
				m.log.Warn(m.log.WithFields(ctx, map[string]any{
					"product_id": in.ID, "product_name": in.ProductName,
				}), "product merge item failed, skipped", err)
				report.add(MergeSkipped)
				continue
			}
			ix.set(target)
			report.add(outcome)
		}
		return nil
	})
	if err != nil {
		return MergeReport{}, fmt.Errorf("merge products: %w", err)
	}
	if ran {
		m.opts.Metrics.ObserveMerge(report.Inserted, report.Updated, report.Merged, report.Unchanged, report.Skipped)
	}
	return report, nil
}

func (m *Manager) resolveMerge(ix *productIndex, in model.Product, gen ids.Generator) (model.Product, MergeOutcome) {
	if in.ID != "" {
		if cur, ok := ix.byID[in.ID]; ok {
			if !m.incomingWins(cur, in) {
				return cur, MergeUnchanged
			}
			// An update may not take over another record's natural key.
			if k := in.NaturalKey(); k.Valid() {
				if owner, ok := ix.byKey[k]; ok && owner != in.ID {
					return in, MergeSkipped
				}
			}
			return in, MergeUpdated
		}
	}
	if k := in.NaturalKey(); k.Valid() {
		if id, ok := ix.byKey[k]; ok {
			return model.MergeInto(ix.byID[id], in), MergeMerged
		}
	}
	if in.ID == "" {
		in.ID = gen.Generate()
	}
	return in, MergeInserted
}

func (m *Manager) incomingWins(cur, in model.Product) bool {
	if in.LastUpdated.After(cur.LastUpdated) {
		return true
	}
	if in.LastUpdated.Equal(cur.LastUpdated) {
		return m.opts.TiePolicy == PreferIncomingOnTie
	}
	return false
}

// ProductsForStore returns the cached products of one store.
func (m *Manager) ProductsForStore(ctx context.Context, storeID string) []model.Product {
	return m.Products().ByIndex(ctx, "storeId", storeID)
}
