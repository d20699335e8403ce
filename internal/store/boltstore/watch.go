package boltstore

import (
	"context"
	"strings"

	"github.com/xenking/catalog-cache/internal/domain/product"
)

// watcher is the store-side view of an active subscription, independent of
// the emitted result type.
type watcher interface {
	// refresh re-evaluates the query and delivers the result. Called with the
	// store's subscriber lock held, in write-commit order.
	refresh()
	// stop ends the subscription with the given terminal error (nil for a
	// plain cancellation). Called with the subscriber lock held.
	stop(err error)
}

// subscription implements product.Subscription on top of a conflated channel:
// the channel holds at most one pending emission, and a newer result replaces
// an undelivered older one. Slow consumers therefore observe the latest state
// without ever blocking a writer.
type subscription[T any] struct {
	store *Store
	id    uint64
	eval  func() (T, error)

	ch     chan T
	done   chan struct{}
	closed bool
	err    error
}

var _ product.Subscription[[]product.Product] = (*subscription[[]product.Product])(nil)

func (s *subscription[T]) Updates() <-chan T { return s.ch }

// Err reports why the subscription ended. It is meaningful only after the
// Updates channel has been closed.
func (s *subscription[T]) Err() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.err
}

// Cancel ends the subscription and closes the Updates channel. Safe to call
// multiple times and concurrently with store writes.
func (s *subscription[T]) Cancel() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.stop(nil)
}

func (s *subscription[T]) refresh() {
	if s.closed {
		return
	}
	v, err := s.eval()
	if err != nil {
		s.stop(err)
		return
	}
	s.push(v)
}

func (s *subscription[T]) push(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	// Conflate: drop the undelivered emission, then retry once.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

func (s *subscription[T]) stop(err error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	delete(s.store.subs, s.id)
	close(s.ch)
	close(s.done)
}

// register wires a subscription into the store, delivers the initial
// emission, and ties its lifetime to ctx.
func register[T any](ctx context.Context, st *Store, eval func() (T, error)) product.Subscription[T] {
	st.mu.Lock()
	sub := &subscription[T]{
		store: st,
		id:    st.nextSubID,
		eval:  eval,
		ch:    make(chan T, 1),
		done:  make(chan struct{}),
	}
	st.nextSubID++
	st.subs[sub.id] = sub
	sub.refresh()
	st.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-sub.done:
			}
		}()
	}
	return sub
}

// matchesSearch reports whether a product name contains term,
// case-insensitively.
func matchesSearch(name, term string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(term))
}
