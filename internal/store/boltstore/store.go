// Package boltstore implements the durable catalog store on top of bbolt.
//
// A single write transaction backs every mutation, so a batch upsert is
// atomic from the point of view of live queries: subscribers are re-evaluated
// only after the transaction commits, and always in commit order. Reads run
// in bbolt view transactions and never wait behind a writer.
package boltstore

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
)

var bucketProducts = []byte("products")

// Store is a bbolt-backed product.Store.
type Store struct {
	db *bolt.DB
	lg *zap.Logger

	// mu guards the subscriber table and orders change notifications with
	// respect to each other. It is never held during a bbolt write commit.
	mu        sync.Mutex
	subs      map[uint64]watcher
	nextSubID uint64

	// wmu serializes mutation+notify pairs so subscribers observe writes in
	// the order they were applied.
	wmu sync.Mutex
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string, lg *zap.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog db %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProducts)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create products bucket")
	}
	return &Store{
		db:   db,
		lg:   lg,
		subs: make(map[uint64]watcher),
	}, nil
}

// Close ends all active subscriptions and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, sub := range s.subs {
		sub.stop(nil)
	}
	s.mu.Unlock()
	return s.db.Close()
}

var _ product.Store = (*Store)(nil)

// List returns a one-shot snapshot of every product, ordered by id.
func (s *Store) List(_ context.Context) ([]product.Product, error) {
	return s.readAll(nil)
}

// UpsertAll replaces or inserts each product by id in a single write
// transaction. Subscribers are notified once, after commit.
func (s *Store) UpsertAll(_ context.Context, products []product.Product) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		for _, p := range products {
			if err := b.Put([]byte(p.ID), encodeProduct(p)); err != nil {
				return errors.Wrapf(err, "put product %q", p.ID)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "upsert products")
	}

	s.lg.Debug("upserted products", zap.Int("count", len(products)))
	s.notify()
	return nil
}

// SetFavorite updates only the IsFavorite field of the row with the given id.
// It returns product.ErrNotFound when no such row exists; a toggle may race a
// refresh, so callers are expected to log and move on.
func (s *Store) SetFavorite(_ context.Context, id string, favorite bool) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		raw := b.Get([]byte(id))
		if raw == nil {
			return product.ErrNotFound
		}
		p, err := decodeProduct(raw)
		if err != nil {
			return err
		}
		p.IsFavorite = favorite
		return b.Put([]byte(id), encodeProduct(p))
	})
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return err
		}
		return errors.Wrapf(err, "set favorite %q", id)
	}

	s.notify()
	return nil
}

// WatchAll observes the full catalog ordered by id.
func (s *Store) WatchAll(ctx context.Context) product.Subscription[[]product.Product] {
	return register(ctx, s, func() ([]product.Product, error) {
		return s.readAll(nil)
	})
}

// WatchFavorites observes products with IsFavorite set.
func (s *Store) WatchFavorites(ctx context.Context) product.Subscription[[]product.Product] {
	return register(ctx, s, func() ([]product.Product, error) {
		return s.readAll(func(p product.Product) bool { return p.IsFavorite })
	})
}

// WatchSearch observes products whose name contains term, case-insensitively.
func (s *Store) WatchSearch(ctx context.Context, term string) product.Subscription[[]product.Product] {
	return register(ctx, s, func() ([]product.Product, error) {
		return s.readAll(func(p product.Product) bool { return matchesSearch(p.Name, term) })
	})
}

// WatchByID observes a single product. Absence is delivered as nil.
func (s *Store) WatchByID(ctx context.Context, id string) product.Subscription[*product.Product] {
	return register(ctx, s, func() (*product.Product, error) {
		var out *product.Product
		err := s.db.View(func(tx *bolt.Tx) error {
			raw := tx.Bucket(bucketProducts).Get([]byte(id))
			if raw == nil {
				return nil
			}
			p, err := decodeProduct(raw)
			if err != nil {
				return err
			}
			out = &p
			return nil
		})
		return out, err
	})
}

// readAll scans the products bucket in key order, keeping records that pass
// the filter (nil keeps everything).
func (s *Store) readAll(keep func(product.Product) bool) ([]product.Product, error) {
	var out []product.Product
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProducts).ForEach(func(_, v []byte) error {
			p, err := decodeProduct(v)
			if err != nil {
				return err
			}
			if keep == nil || keep(p) {
				out = append(out, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "read products")
	}
	return out, nil
}

// notify re-evaluates every active subscription. A failing evaluation ends
// only that subscription.
func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.refresh()
	}
}
