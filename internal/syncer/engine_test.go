package syncer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
	"github.com/xenking/catalog-cache/internal/remote"
	"github.com/xenking/catalog-cache/internal/store/boltstore"
)

type stubFetcher struct {
	items []remote.Item
	err   error
}

func (f *stubFetcher) FetchCatalog(context.Context) ([]remote.Item, error) {
	return f.items, f.err
}

func testImageURL(id string) string {
	return "https://api.example.com/items/" + id + "/image"
}

func newTestStore(t *testing.T) *boltstore.Store {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "catalog.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRefresh_PreservesFavorites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAll(ctx, []product.Product{{
		ID:         "p1",
		Name:       "Aspirin",
		Category:   product.CategoryUncategorized,
		Price:      decimal.RequireFromString("5.99"),
		IsFavorite: true,
	}}))

	fetcher := &stubFetcher{items: []remote.Item{{
		ID:    "p1",
		Name:  "Aspirin Forte",
		Price: decimal.RequireFromString("7.99"),
	}}}
	engine := New(store, fetcher, testImageURL, zap.NewNop())

	require.NoError(t, engine.Refresh(ctx))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Aspirin Forte", got[0].Name, "remote owns the name")
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("7.99")), "remote owns the price")
	assert.True(t, got[0].IsFavorite, "favorite survives the refresh")
}

func TestRefresh_NewItemsDefaultToNotFavorite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fetcher := &stubFetcher{items: []remote.Item{{
		ID:    "p9",
		Name:  "Ibuprofen",
		Price: decimal.RequireFromString("3.50"),
	}}}
	engine := New(store, fetcher, testImageURL, zap.NewNop())

	require.NoError(t, engine.Refresh(ctx))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].IsFavorite)
}

func TestRefresh_BuildsProductFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fetcher := &stubFetcher{items: []remote.Item{
		{ID: "p1", Name: "Aspirin", Description: "Pain reliever", Price: decimal.RequireFromString("5.99"), HasImage: true},
		{ID: "p2", Name: "Vitamin C", Price: decimal.RequireFromString("2.50")},
	}}
	engine := New(store, fetcher, testImageURL, zap.NewNop())

	require.NoError(t, engine.Refresh(ctx))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, product.CategoryUncategorized, got[0].Category, "remote supplies no categories")
	assert.Equal(t, "https://api.example.com/items/p1/image", got[0].ImageURL)
	assert.Empty(t, got[1].ImageURL, "no image means empty URL")
}

func TestRefresh_FetchFailureLeavesStoreUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAll(ctx, []product.Product{{
		ID:       "p1",
		Name:     "Aspirin",
		Category: product.CategoryUncategorized,
		Price:    decimal.RequireFromString("5.99"),
	}}))
	before, err := store.List(ctx)
	require.NoError(t, err)

	fetcher := &stubFetcher{err: errors.Wrap(remote.ErrUnavailable, "connection refused")}
	engine := New(store, fetcher, testImageURL, zap.NewNop())

	err = engine.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnavailable, "transport category survives wrapping")

	after, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "refresh is all-or-nothing")
}

func TestRefresh_ConcurrentCallsDoNotCorrupt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fetcher := &stubFetcher{items: []remote.Item{{
		ID:    "p1",
		Name:  "Aspirin",
		Price: decimal.RequireFromString("5.99"),
	}}}
	engine := New(store, fetcher, testImageURL, zap.NewNop())

	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- engine.Refresh(ctx) }()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "last writer wins per id, no duplicates")
}
