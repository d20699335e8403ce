package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// CategoryUncategorized is assigned to products whose source does not
// declare a category.
const CategoryUncategorized = "uncategorized"

// Product is a single catalog record. The remote source owns every field
// except IsFavorite, which is set locally and must survive refreshes.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	ImageURL    string
	IsFavorite  bool
}

// Subscription is a live query handle. Updates delivers a fresh result set
// after every store change that could affect the query, starting with one
// emission of the current contents. The channel closes when the subscription
// ends; Err reports why (nil after an explicit Cancel).
type Subscription[T any] interface {
	Updates() <-chan T
	Err() error
	Cancel()
}

// Store is the durable catalog table. It is the single source of truth for
// reads and the only shared mutable resource between the sync engine, query
// controllers, and the mutation gateway.
type Store interface {
	Watcher

	// List returns a one-shot snapshot of every product, ordered by id.
	List(ctx context.Context) ([]Product, error)

	// UpsertAll replaces or inserts each product by id as one atomic batch.
	// Observers see either the pre-batch or the post-batch state, never a mix.
	UpsertAll(ctx context.Context, products []Product) error

	// SetFavorite updates only the IsFavorite field of the row with the given
	// id. It returns ErrNotFound when no such row exists.
	SetFavorite(ctx context.Context, id string, favorite bool) error
}

// Watcher exposes the store's live queries. Each call registers an
// independent subscription that stays active until cancelled.
type Watcher interface {
	// WatchAll observes the full catalog ordered by id.
	WatchAll(ctx context.Context) Subscription[[]Product]

	// WatchFavorites observes products with IsFavorite set.
	WatchFavorites(ctx context.Context) Subscription[[]Product]

	// WatchByID observes a single product. Absence is delivered as nil.
	WatchByID(ctx context.Context, id string) Subscription[*Product]

	// WatchSearch observes products whose name contains term,
	// case-insensitively.
	WatchSearch(ctx context.Context, term string) Subscription[[]Product]
}
