package session

import (
	"context"
	"fmt"

	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/remote"
	"github.com/roach88/tillsync/internal/store"
)

// Remote collections read by refresh operations.
const (
	ProductsCollection  = "products"
	CompaniesCollection = "companies"
	StoresCollection    = "stores"
)

// RefreshProducts reads storeID's products from the remote, reports the
// read to the classifier, and merges the documents into the store. A
// read served from the remote client's cache is not merged.
func (c *Cache) RefreshProducts(ctx context.Context, storeID string) (store.MergeReport, error) {
	if storeID == "" {
		storeID = c.CurrentStoreID()
	}
	docs, fresh, err := c.read(ctx, remote.Query{
		Collection: ProductsCollection,
		Where:      map[string]string{"storeId": storeID},
	})
	if err != nil || !fresh {
		return store.MergeReport{}, err
	}

	products, skipped := decodeAll[model.Product](c, ctx, docs, func(p *model.Product, id string) {
		if p.ID == "" {
			p.ID = id
		}
	})
	report, err := c.store.MergeProducts(ctx, products, c.prodIDs)
	if err != nil {
		return report, err
	}
	report.Skipped += skipped
	if storeID == c.CurrentStoreID() {
		c.reload(ctx)
	}
	return report, nil
}

// RefreshReferenceData refreshes the company and store snapshots of
// companyID, stamping their sync time. Reads served from cache change
// nothing.
func (c *Cache) RefreshReferenceData(ctx context.Context, companyID string) error {
	companyDocs, fresh, err := c.read(ctx, remote.Query{
		Collection: CompaniesCollection,
		Where:      map[string]string{"id": companyID},
	})
	if err != nil || !fresh {
		return err
	}
	storeDocs, fresh, err := c.read(ctx, remote.Query{
		Collection: StoresCollection,
		Where:      map[string]string{"companyId": companyID},
	})
	if err != nil || !fresh {
		return err
	}
	companies, _ := decodeAll[model.Company](c, ctx, companyDocs, func(v *model.Company, id string) {
		if v.ID == "" {
			v.ID = id
		}
	})
	stores, _ := decodeAll[model.Store](c, ctx, storeDocs, func(v *model.Store, id string) {
		if v.ID == "" {
			v.ID = id
		}
		if v.CompanyID == "" {
			v.CompanyID = companyID
		}
	})
	return c.store.SaveReferenceSnapshot(ctx, companies, stores, c.now())
}

// read queries the remote and feeds the read metadata to the classifier.
func (c *Cache) read(ctx context.Context, q remote.Query) ([]remote.Document, bool, error) {
	if c.remote == nil {
		return nil, false, ErrNoRemote
	}
	docs, meta, err := c.remote.Query(ctx, q)
	if err == nil || meta.FromCache {
		c.reach.ObserveRead(ctx, meta)
	}
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	if meta.FromCache {
		c.log.Info(c.log.WithField(ctx, "collection", q.Collection), "remote served from cache, skipping refresh")
	}
	return docs, !meta.FromCache, nil
}

func decodeAll[T any](c *Cache, ctx context.Context, docs []remote.Document, fix func(*T, string)) ([]T, int) {
	out := make([]T, 0, len(docs))
	skipped := 0
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			skipped++
			c.log.Warn(c.log.WithField(ctx, "doc_id", d.ID), "undecodable remote document skipped", err)
			continue
		}
		fix(&v, d.ID)
		out = append(out, v)
	}
	return out, skipped
}
