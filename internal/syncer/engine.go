// Package syncer reconciles the remote catalog with the local store.
package syncer

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
	"github.com/xenking/catalog-cache/internal/remote"
)

// Engine runs refresh cycles: fetch the remote snapshot, merge it with the
// locally owned favorite flags, and upsert the result in one atomic batch.
//
// Refresh is idempotent and safe to call concurrently with itself: each call
// reads favorites and computes its merge independently, and the last batch to
// commit wins per id.
type Engine struct {
	store    product.Store
	fetcher  remote.Fetcher
	imageURL func(id string) string
	lg       *zap.Logger
}

// New creates an Engine. imageURL builds the image location for an item id;
// it is typically remote.Client.ImageURL.
func New(store product.Store, fetcher remote.Fetcher, imageURL func(id string) string, lg *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		fetcher:  fetcher,
		imageURL: imageURL,
		lg:       lg,
	}
}

// Refresh performs one fetch-merge-upsert cycle. A fetch failure aborts the
// cycle before any write, so the store is never left half-merged. The
// returned error wraps the underlying cause; transport failures satisfy
// errors.Is(err, remote.ErrUnavailable).
func (e *Engine) Refresh(ctx context.Context) error {
	current, err := e.store.List(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh failed: read current catalog")
	}
	favorites := make(map[string]bool, len(current))
	for _, p := range current {
		favorites[p.ID] = p.IsFavorite
	}

	items, err := e.fetcher.FetchCatalog(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh failed")
	}

	merged := make([]product.Product, len(items))
	for i, it := range items {
		merged[i] = e.merge(it, favorites)
	}

	if err := e.store.UpsertAll(ctx, merged); err != nil {
		return errors.Wrap(err, "refresh failed: store catalog")
	}

	e.lg.Info("catalog refreshed", zap.Int("items", len(merged)))
	return nil
}

// merge builds the stored record for one remote item. The remote source owns
// every field except IsFavorite, which is looked up from the pre-refresh
// snapshot and defaults to false for previously unseen ids.
func (e *Engine) merge(it remote.Item, favorites map[string]bool) product.Product {
	imageURL := ""
	if it.HasImage {
		imageURL = e.imageURL(it.ID)
	}
	return product.Product{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Category:    product.CategoryUncategorized,
		Price:       it.Price,
		ImageURL:    imageURL,
		IsFavorite:  favorites[it.ID],
	}
}
