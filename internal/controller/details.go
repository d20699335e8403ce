package controller

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
)

// DetailsSnapshot is the derived state of a single-product view. Product is
// nil while loading and when the id is absent from the store.
type DetailsSnapshot struct {
	Product   *product.Product
	IsLoading bool
	Err       string
}

// Details observes one product by id.
type Details struct {
	lg *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	updates chan DetailsSnapshot

	mu  sync.Mutex
	cur DetailsSnapshot
}

// NewDetails creates and starts a Details controller for the given id.
func NewDetails(watcher product.Watcher, id string, lg *zap.Logger) *Details {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Details{
		lg:      lg,
		cancel:  cancel,
		done:    make(chan struct{}),
		updates: make(chan DetailsSnapshot, 1),
		cur:     DetailsSnapshot{IsLoading: true},
	}
	go d.run(ctx, watcher, id)
	return d
}

// Close cancels the underlying store subscription.
func (d *Details) Close() {
	d.cancel()
	<-d.done
}

// Snapshot returns the current derived state.
func (d *Details) Snapshot() DetailsSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur
}

// Updates delivers a snapshot after every state change, conflated to the
// latest value.
func (d *Details) Updates() <-chan DetailsSnapshot {
	return d.updates
}

func (d *Details) run(ctx context.Context, watcher product.Watcher, id string) {
	defer close(d.done)

	sub := watcher.WatchByID(ctx, id)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-sub.Updates():
			if !ok {
				if err := sub.Err(); err != nil {
					d.lg.Error("product details query failed",
						zap.String("product_id", id),
						zap.Error(err),
					)
					d.update(func(s *DetailsSnapshot) {
						s.IsLoading = false
						s.Err = "failed to read local catalog data"
					})
				}
				return
			}
			d.update(func(s *DetailsSnapshot) {
				s.IsLoading = false
				s.Product = p
				s.Err = ""
			})
		}
	}
}

func (d *Details) update(fn func(*DetailsSnapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.cur)
	sendLatest(d.updates, d.cur)
}
