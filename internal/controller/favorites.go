package controller

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
)

// FavoritesSnapshot is the derived state of the favorites view.
type FavoritesSnapshot struct {
	FavoriteProducts []product.Product
	IsLoading        bool
}

// Favorites observes the store's favorites query.
type Favorites struct {
	mutator *Mutator
	lg      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	ctx     context.Context
	updates chan FavoritesSnapshot

	mu  sync.Mutex
	cur FavoritesSnapshot
}

// NewFavorites creates and starts a Favorites controller.
func NewFavorites(watcher product.Watcher, mutator *Mutator, lg *zap.Logger) *Favorites {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Favorites{
		mutator: mutator,
		lg:      lg,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		updates: make(chan FavoritesSnapshot, 1),
		cur:     FavoritesSnapshot{IsLoading: true},
	}
	go f.run(ctx, watcher)
	return f
}

// Close cancels the underlying store subscription.
func (f *Favorites) Close() {
	f.cancel()
	<-f.done
}

// Snapshot returns the current derived state.
func (f *Favorites) Snapshot() FavoritesSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

// Updates delivers a snapshot after every state change, conflated to the
// latest value.
func (f *Favorites) Updates() <-chan FavoritesSnapshot {
	return f.updates
}

// ToggleFavorite flips the favorite flag of a product, fire-and-forget.
func (f *Favorites) ToggleFavorite(id string, current bool) {
	f.mutator.ToggleFavorite(f.ctx, id, current)
}

func (f *Favorites) run(ctx context.Context, watcher product.Watcher) {
	defer close(f.done)

	sub := watcher.WatchFavorites(ctx)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case favorites, ok := <-sub.Updates():
			if !ok {
				// A failed favorites read only clears the loading flag; the
				// view keeps whatever it last showed.
				if err := sub.Err(); err != nil {
					f.lg.Error("favorites query failed", zap.Error(err))
					f.update(func(s *FavoritesSnapshot) { s.IsLoading = false })
				}
				return
			}
			f.update(func(s *FavoritesSnapshot) {
				s.IsLoading = false
				s.FavoriteProducts = favorites
			})
		}
	}
}

func (f *Favorites) update(fn func(*FavoritesSnapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.cur)
	sendLatest(f.updates, f.cur)
}
