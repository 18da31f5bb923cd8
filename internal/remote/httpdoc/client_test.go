package httpdoc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/remote"
)

type fakeOrigin struct {
	down  atomic.Bool
	puts  atomic.Int32
	last  atomic.Value
	token string
}

func (f *fakeOrigin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.down.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodGet:
		store := r.URL.Query().Get("storeId")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{"id": "p1", "data": map[string]any{"storeId": store, "productName": "Milk"}},
			},
		})
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.last.Store(r.URL.Path + " " + string(body))
		f.puts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, origin *fakeOrigin) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(origin)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, Options{Token: origin.token})
	require.NoError(t, err)
	return c, srv
}

func TestQuery_Fresh(t *testing.T) {
	c, _ := newTestClient(t, &fakeOrigin{token: "secret"})
	docs, meta, err := c.Query(context.Background(), remote.Query{
		Collection: "products",
		Where:      map[string]string{"storeId": "S1"},
	})
	require.NoError(t, err)
	assert.False(t, meta.FromCache)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0].ID)
	assert.JSONEq(t, `{"storeId":"S1","productName":"Milk"}`, string(docs[0].Data))
}

func TestQuery_ServedFromCacheWhenOriginDown(t *testing.T) {
	origin := &fakeOrigin{}
	c, _ := newTestClient(t, origin)
	q := remote.Query{Collection: "products", Where: map[string]string{"storeId": "S1"}}

	_, _, err := c.Query(context.Background(), q)
	require.NoError(t, err)

	origin.down.Store(true)
	docs, meta, err := c.Query(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, meta.FromCache)
	assert.Len(t, docs, 1)
}

func TestQuery_OfflineWithoutCache(t *testing.T) {
	origin := &fakeOrigin{}
	origin.down.Store(true)
	c, _ := newTestClient(t, origin)

	_, meta, err := c.Query(context.Background(), remote.Query{Collection: "products"})
	require.ErrorIs(t, err, remote.ErrOffline)
	assert.True(t, meta.FromCache)
}

func TestQuery_TransportFailureUsesCache(t *testing.T) {
	origin := &fakeOrigin{}
	c, srv := newTestClient(t, origin)
	q := remote.Query{Collection: "companies"}
	_, _, err := c.Query(context.Background(), q)
	require.NoError(t, err)

	srv.Close()
	_, meta, err := c.Query(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, meta.FromCache)
}

func TestQuery_ClientErrorIsNotOffline(t *testing.T) {
	origin := &fakeOrigin{token: "secret"}
	srv := httptest.NewServer(origin)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, Options{Token: "wrong"})
	require.NoError(t, err)

	_, meta, err := c.Query(context.Background(), remote.Query{Collection: "products"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.False(t, meta.FromCache)
}

func TestPut(t *testing.T) {
	origin := &fakeOrigin{}
	c, _ := newTestClient(t, origin)

	err := c.Put(context.Background(), "orders", "local-1", map[string]any{"total": "4.50"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), origin.puts.Load())
	assert.Equal(t, `/v1/orders/local-1 {"total":"4.50"}`, origin.last.Load())

	require.Error(t, c.Put(context.Background(), "orders", "", nil))

	origin.down.Store(true)
	require.Error(t, c.Put(context.Background(), "orders", "local-2", map[string]any{}))
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/v1", Options{})
	require.Error(t, err)
}

func TestCacheKey_OrderIndependent(t *testing.T) {
	a := cacheKey(remote.Query{Collection: "x", Where: map[string]string{"a": "1", "b": "2"}})
	b := cacheKey(remote.Query{Collection: "x", Where: map[string]string{"b": "2", "a": "1"}})
	assert.Equal(t, a, b)
}
