package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/connectivity"
	"github.com/roach88/tillsync/internal/enrich"
	"github.com/roach88/tillsync/internal/ids"
	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/remote"
	"github.com/roach88/tillsync/internal/store"
	"github.com/roach88/tillsync/internal/testutil"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.Manager
	reach  *connectivity.Classifier
	remote *testutil.FakeRemote
	clock  *testutil.StepClock
	cache  *Cache
}

func newFixture(t *testing.T, orderIDs ...string) *fixture {
	t.Helper()
	m := store.New(filepath.Join(t.TempDir(), "session.db"), store.Options{})
	require.NoError(t, m.Init(context.Background()))
	return fixtureOn(t, m, orderIDs...)
}

// fixtureOn builds a fixture over m whatever its availability.
func fixtureOn(t *testing.T, m *store.Manager, orderIDs ...string) *fixture {
	t.Helper()
	t.Cleanup(func() { _ = m.Close() })

	f := &fixture{
		store:  m,
		reach:  connectivity.New(connectivity.Options{}),
		remote: testutil.NewFakeRemote(),
		clock:  testutil.NewStepClock(t0, time.Second),
	}
	var gen ids.Generator
	if len(orderIDs) > 0 {
		gen = ids.NewFixedGenerator(orderIDs...)
	}
	c, err := New(Options{
		Store:      m,
		Classifier: f.reach,
		Enricher:   enrich.New(enrich.Options{Sessions: m, Reach: f.reach, Now: f.clock.Now}),
		Remote:     f.remote,
		OrderIDs:   gen,
		Now:        f.clock.Now,
	})
	require.NoError(t, err)
	f.cache = c
	return f
}

func (f *fixture) goOnline(t *testing.T) {
	t.Helper()
	f.reach.ObserveNetwork(context.Background(), true)
	f.reach.ObserveRead(context.Background(), remote.ReadMeta{})
	require.True(t, f.reach.IsReachable())
}

func testUser(id, email string, stores ...string) model.User {
	u := model.User{ID: id, Email: email, DisplayName: id}
	for _, s := range stores {
		u.Permissions = append(u.Permissions, model.Permission{CompanyID: "C1", RoleID: "cashier", StoreID: s})
	}
	return u
}

func testOrder(productID string, qty int64, price string) model.Order {
	return model.Order{
		CompanyID: "C1",
		Items: []model.OrderItem{{
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: decimal.RequireFromString(price),
		}},
	}
}
