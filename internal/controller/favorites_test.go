package controller

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
)

func newTestFavorites(t *testing.T, store *fakeStore, notifier *Notifier) *Favorites {
	t.Helper()
	if notifier == nil {
		notifier = NewNotifier(8)
	}
	lg := zap.NewNop()
	f := NewFavorites(store, NewMutator(store, notifier, lg), lg)
	t.Cleanup(f.Close)
	return f
}

func favSub(t *testing.T, store *fakeStore) *fakeSub[[]product.Product] {
	t.Helper()
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.favSubs) > 0
	}, 2*time.Second, 5*time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.favSubs[0]
}

func TestFavorites_EmissionsUpdateSnapshot(t *testing.T) {
	store := newFakeStore()
	f := newTestFavorites(t, store, nil)

	assert.True(t, f.Snapshot().IsLoading)

	require.True(t, favSub(t, store).emit(named("p2")))
	require.Eventually(t, func() bool {
		s := f.Snapshot()
		return !s.IsLoading && len(s.FavoriteProducts) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "p2", f.Snapshot().FavoriteProducts[0].ID)
}

func TestFavorites_QueryFailureOnlyClearsLoading(t *testing.T) {
	store := newFakeStore()
	f := newTestFavorites(t, store, nil)

	sub := favSub(t, store)
	require.True(t, sub.emit(named("p2")))
	require.Eventually(t, func() bool {
		return len(f.Snapshot().FavoriteProducts) == 1
	}, 2*time.Second, 5*time.Millisecond)

	sub.fail(errors.New("read failed"))
	require.Eventually(t, func() bool {
		return !f.Snapshot().IsLoading
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, f.Snapshot().FavoriteProducts, 1, "view keeps its last contents")
}

func TestFavorites_ToggleDelegatesToStore(t *testing.T) {
	store := newFakeStore()
	f := newTestFavorites(t, store, nil)

	f.ToggleFavorite("p2", true)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		v, ok := store.favoriteSet["p2"]
		return ok && !v
	}, 2*time.Second, 5*time.Millisecond)
}
