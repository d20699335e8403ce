package controller

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
)

// Mutator applies favorite toggles directly to the store. Failures surface
// only on the transient channel, never in a derived snapshot: the effect of a
// successful toggle reaches consumers through the store's change propagation.
type Mutator struct {
	store    product.Store
	notifier *Notifier
	lg       *zap.Logger
}

// NewMutator creates a Mutator.
func NewMutator(store product.Store, notifier *Notifier, lg *zap.Logger) *Mutator {
	return &Mutator{store: store, notifier: notifier, lg: lg}
}

// ToggleFavorite flips the favorite flag of the given product in the
// background and returns immediately. A missing id is not fatal: the toggle
// may have raced a refresh, so the failure is logged and reported as a
// transient notice only.
func (m *Mutator) ToggleFavorite(ctx context.Context, id string, current bool) {
	go func() {
		if err := m.store.SetFavorite(ctx, id, !current); err != nil {
			m.lg.Warn("toggle favorite failed",
				zap.String("product_id", id),
				zap.Error(err),
			)
			m.notifier.TryNotify(NoticeFavorite)
		}
	}()
}
