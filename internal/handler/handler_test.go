package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/controller"
	"github.com/xenking/catalog-cache/internal/domain/product"
	"github.com/xenking/catalog-cache/internal/store/boltstore"
)

type stubRefresher struct {
	calls atomic.Int32
}

func (r *stubRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return nil
}

type catalogBody struct {
	Products       []productBody `json:"products"`
	IsLoading      bool          `json:"isLoading"`
	SearchQuery    string        `json:"searchQuery"`
	Error          *string       `json:"error"`
	NoResultsFound bool          `json:"noResultsFound"`
}

type productBody struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Price      decimal.Decimal `json:"price"`
	IsFavorite bool            `json:"isFavorite"`
}

func newTestMux(t *testing.T, seed []product.Product) (*http.ServeMux, *boltstore.Store, *stubRefresher) {
	t.Helper()

	store, err := boltstore.Open(filepath.Join(t.TempDir(), "catalog.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	if len(seed) > 0 {
		require.NoError(t, store.UpsertAll(context.Background(), seed))
	}

	lg := zap.NewNop()
	notifier := controller.NewNotifier(8)
	mutator := controller.NewMutator(store, notifier, lg)
	refresher := &stubRefresher{}

	catalog := controller.NewCatalog(store, refresher, mutator, notifier, lg, controller.CatalogOptions{
		Debounce: 10 * time.Millisecond,
	})
	t.Cleanup(catalog.Close)

	favorites := controller.NewFavorites(store, mutator, lg)
	t.Cleanup(favorites.Close)

	mux := http.NewServeMux()
	New(catalog, favorites, store).Register(mux)
	return mux, store, refresher
}

func seedProducts() []product.Product {
	return []product.Product{
		{ID: "p1", Name: "Aspirin", Category: product.CategoryUncategorized, Price: decimal.RequireFromString("5.99")},
		{ID: "p2", Name: "Vitamin C", Category: product.CategoryUncategorized, Price: decimal.RequireFromString("2.50"), IsFavorite: true},
	}
}

// getCatalogBody polls the catalog endpoint. It never fails the test itself,
// so it is safe inside Eventually conditions.
func getCatalogBody(mux *http.ServeMux) (catalogBody, bool) {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	if rec.Code != http.StatusOK {
		return catalogBody{}, false
	}
	var body catalogBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		return catalogBody{}, false
	}
	return body, true
}

func waitCatalog(t *testing.T, mux *http.ServeMux, cond func(catalogBody) bool) catalogBody {
	t.Helper()
	require.Eventually(t, func() bool {
		body, ok := getCatalogBody(mux)
		return ok && cond(body)
	}, 2*time.Second, 10*time.Millisecond)
	body, ok := getCatalogBody(mux)
	require.True(t, ok)
	return body
}

func TestHandler_GetCatalog(t *testing.T) {
	mux, _, _ := newTestMux(t, seedProducts())

	body := waitCatalog(t, mux, func(b catalogBody) bool {
		return !b.IsLoading && len(b.Products) == 2
	})
	assert.Equal(t, "p1", body.Products[0].ID)
	assert.True(t, body.Products[0].Price.Equal(decimal.RequireFromString("5.99")))
	assert.Nil(t, body.Error)
	assert.False(t, body.NoResultsFound)
}

func TestHandler_SearchRequiresQueryParam(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/catalog/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_SearchNarrowsListing(t *testing.T) {
	mux, _, _ := newTestMux(t, seedProducts())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/catalog/search?q=vita", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := waitCatalog(t, mux, func(b catalogBody) bool {
		return !b.IsLoading && b.SearchQuery == "vita" && len(b.Products) == 1
	})
	assert.Equal(t, "p2", body.Products[0].ID)
}

func TestHandler_ToggleFavorite(t *testing.T) {
	mux, store, _ := newTestMux(t, seedProducts())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products/p1/favorite", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		products, err := store.List(context.Background())
		return err == nil && len(products) > 0 && products[0].IsFavorite
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_ToggleUnknownIDStillAccepted(t *testing.T) {
	mux, _, _ := newTestMux(t, seedProducts())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products/ghost/favorite", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code, "missing id surfaces as a notice, not a request failure")
}

func TestHandler_GetFavorites(t *testing.T) {
	mux, _, _ := newTestMux(t, seedProducts())

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/favorites", nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var body struct {
			FavoriteProducts []productBody `json:"favoriteProducts"`
			IsLoading        bool          `json:"isLoading"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			return false
		}
		return !body.IsLoading && len(body.FavoriteProducts) == 1 && body.FavoriteProducts[0].ID == "p2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_ForceRefresh(t *testing.T) {
	mux, _, refresher := newTestMux(t, nil)

	require.Eventually(t, func() bool {
		return refresher.calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return refresher.calls.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_StreamReplaysSnapshotOnConnect(t *testing.T) {
	mux, _, _ := newTestMux(t, seedProducts())

	waitCatalog(t, mux, func(b catalogBody) bool { return !b.IsLoading })

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/api/catalog/stream")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var body catalogBody
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &body))
	assert.Len(t, body.Products, 2)
	assert.False(t, body.IsLoading)
}
