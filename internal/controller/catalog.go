package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
	"github.com/xenking/catalog-cache/internal/remote"
)

// DefaultDebounce is the quiet period after the last search input change
// before the query pipeline acts on it.
const DefaultDebounce = 300 * time.Millisecond

// Refresher triggers one catalog refresh cycle. Implemented by syncer.Engine.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CatalogSnapshot is the derived browsing state. The store stays
// authoritative; this is a disposable view.
type CatalogSnapshot struct {
	Products       []product.Product
	IsLoading      bool
	SearchQuery    string
	Err            string
	NoResultsFound bool
}

// CatalogOptions tunes a Catalog controller.
type CatalogOptions struct {
	// InitialQuery seeds the search term once at construction, exactly as if
	// it had been typed.
	InitialQuery string
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration
}

// Catalog owns the current search term and turns it into a debounced,
// de-duplicated, switch-latest stream of result sets synchronized with store
// mutations. It also kicks off one background refresh at startup; refresh
// failures reach consumers only through the transient channel, because a
// stale-but-present cache beats a blanked view.
type Catalog struct {
	watcher   product.Watcher
	refresher Refresher
	mutator   *Mutator
	notifier  *Notifier
	lg        *zap.Logger
	debounce  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	termCh  chan string
	updates chan CatalogSnapshot

	mu  sync.Mutex
	cur CatalogSnapshot
}

// NewCatalog creates and starts a Catalog controller.
func NewCatalog(
	watcher product.Watcher,
	refresher Refresher,
	mutator *Mutator,
	notifier *Notifier,
	lg *zap.Logger,
	opts CatalogOptions,
) *Catalog {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Catalog{
		watcher:   watcher,
		refresher: refresher,
		mutator:   mutator,
		notifier:  notifier,
		lg:        lg,
		debounce:  debounce,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		termCh:    make(chan string, 1),
		updates:   make(chan CatalogSnapshot, 1),
		cur: CatalogSnapshot{
			IsLoading:   true,
			SearchQuery: opts.InitialQuery,
		},
	}

	// Refresh cycles outlive the controller: a view being torn down must not
	// abort a reconciliation already writing to the store.
	go c.refresh(context.WithoutCancel(ctx))
	go c.run(ctx, opts.InitialQuery)
	return c
}

// Close cancels all outstanding subscriptions and the pending debounce timer.
// An in-flight background refresh is independent and runs to completion; the
// store itself is untouched.
func (c *Catalog) Close() {
	c.cancel()
	<-c.done
}

// Snapshot returns the current derived state.
func (c *Catalog) Snapshot() CatalogSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Updates delivers a snapshot after every state change. The channel is
// conflated: a slow consumer observes the latest state, never a backlog.
func (c *Catalog) Updates() <-chan CatalogSnapshot {
	return c.updates
}

// SetSearchQuery records a new search term. The visible term updates
// immediately; querying waits for the debounce window. The snapshot and the
// debounce input are published under one lock so concurrent callers cannot
// leave them showing different terms.
func (c *Catalog) SetSearchQuery(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.SearchQuery = term
	sendLatest(c.updates, c.cur)
	sendLatest(c.termCh, term)
}

// ForceRefresh triggers another background refresh cycle. Like the startup
// refresh, the cycle is not tied to the controller's lifetime.
func (c *Catalog) ForceRefresh() {
	go c.refresh(context.WithoutCancel(c.ctx))
}

// ToggleFavorite flips the favorite flag of a product, fire-and-forget.
func (c *Catalog) ToggleFavorite(id string, current bool) {
	c.mutator.ToggleFavorite(c.ctx, id, current)
}

// run is the query pipeline: debounce the term, suppress duplicates, switch
// the active store subscription, and fold emissions into the snapshot. Only
// the latest term's subscription may deliver results; superseded ones are
// cancelled and their late emissions discarded.
func (c *Catalog) run(ctx context.Context, initial string) {
	defer close(c.done)

	var (
		active      product.Subscription[[]product.Product]
		activeCh    <-chan []product.Product
		pending     = initial
		lastQueried string
		queried     bool
	)
	defer func() {
		if active != nil {
			active.Cancel()
		}
	}()

	// The initial term goes through the same debounce as typed input.
	timer := time.NewTimer(c.debounce)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case term := <-c.termCh:
			pending = term
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.debounce)

		case <-timer.C:
			term := strings.TrimSpace(pending)
			if queried && term == lastQueried {
				continue
			}
			lastQueried, queried = term, true

			if active != nil {
				active.Cancel()
			}
			c.update(func(s *CatalogSnapshot) {
				s.IsLoading = true
				s.Err = ""
				s.NoResultsFound = false
				s.SearchQuery = term
			})
			c.lg.Debug("switching catalog query", zap.String("term", term))

			if term == "" {
				active = c.watcher.WatchAll(ctx)
			} else {
				active = c.watcher.WatchSearch(ctx, term)
			}
			activeCh = active.Updates()

		case products, ok := <-activeCh:
			if !ok {
				err := active.Err()
				activeCh = nil
				if err == nil {
					continue
				}
				c.lg.Error("catalog query failed", zap.Error(err))
				c.update(func(s *CatalogSnapshot) {
					s.IsLoading = false
					s.Err = "failed to read local catalog data"
					s.Products = nil
					s.NoResultsFound = false
				})
				c.notifier.TryNotify(NoticeLocalRead)
				continue
			}
			term := lastQueried
			c.update(func(s *CatalogSnapshot) {
				s.IsLoading = false
				s.Products = products
				s.Err = ""
				// An empty catalog is not a failed search.
				s.NoResultsFound = len(products) == 0 && term != ""
			})
		}
	}
}

func (c *Catalog) refresh(ctx context.Context) {
	err := c.refresher.Refresh(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, remote.ErrUnavailable):
		c.lg.Error("catalog refresh failed: remote unavailable", zap.Error(err))
		c.notifier.TryNotify(NoticeNetworkError)
	default:
		c.lg.Error("catalog refresh failed", zap.Error(err))
		c.notifier.TryNotify(NoticeRefreshFailed)
	}
}

// update mutates the snapshot and publishes it. The mutex stays held across
// the send so concurrent updaters cannot publish out of state order;
// sendLatest never blocks, so no consumer can stall the lock.
func (c *Catalog) update(f func(*CatalogSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(&c.cur)
	sendLatest(c.updates, c.cur)
}

// sendLatest delivers v on a capacity-1 channel, replacing an undelivered
// older value instead of blocking. Concurrent senders may interleave the
// drain and the send; callers serialize on their state mutex.
func sendLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
