package store

import (
	"context"
	"time"

	"github.com/roach88/tillsync/internal/model"
)

// SaveReferenceSnapshot stores refreshed company and store snapshots,
// stamping each with the sync time. Item failures are logged and skipped.
func (m *Manager) SaveReferenceSnapshot(ctx context.Context, companies []model.Company, stores []model.Store, at time.Time) error {
	for i := range companies {
		companies[i].LastSync = at
	}
	for i := range stores {
		stores[i].LastSync = at
	}
	if _, err := m.Companies().PutAll(ctx, companies); err != nil {
		return err
	}
	_, err := m.Stores().PutAll(ctx, stores)
	return err
}

// StoresForCompany returns the cached stores of a company.
func (m *Manager) StoresForCompany(ctx context.Context, companyID string) []model.Store {
	return m.Stores().ByIndex(ctx, "companyId", companyID)
}
