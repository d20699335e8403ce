// Package handler exposes the catalog controllers over HTTP: pull endpoints
// for the current snapshots, an SSE push stream, and fire-and-forget
// mutation/refresh triggers.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/controller"
	"github.com/xenking/catalog-cache/internal/domain/product"
)

// Handler serves the consumer-facing surface.
type Handler struct {
	catalog   *controller.Catalog
	favorites *controller.Favorites
	store     product.Store

	stream *broadcaster
}

// New constructs a Handler around running controllers.
func New(catalog *controller.Catalog, favorites *controller.Favorites, store product.Store) *Handler {
	return &Handler{
		catalog:   catalog,
		favorites: favorites,
		store:     store,
		stream:    newBroadcaster(),
	}
}

// Run pumps catalog snapshot updates into the SSE broadcaster until ctx ends.
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-h.catalog.Updates():
			h.stream.publish(snap)
		}
	}
}

// Register installs all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", h.getCatalog)
	mux.HandleFunc("GET /api/catalog/stream", h.streamCatalog)
	mux.HandleFunc("PUT /api/catalog/search", h.setSearch)
	mux.HandleFunc("GET /api/favorites", h.getFavorites)
	mux.HandleFunc("POST /api/products/{id}/favorite", h.toggleFavorite)
	mux.HandleFunc("POST /api/refresh", h.forceRefresh)
}

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, encodeCatalogSnapshot(h.catalog.Snapshot()))
}

func (h *Handler) getFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, encodeFavoritesSnapshot(h.favorites.Snapshot()))
}

func (h *Handler) setSearch(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("q") {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	h.catalog.SetSearchQuery(r.URL.Query().Get("q"))
	w.WriteHeader(http.StatusAccepted)
}

// toggleFavorite flips the favorite flag based on the stored state. The
// mutation itself is fire-and-forget: a toggle racing a refresh is resolved
// last-writer-wins by the store, and a missing id surfaces only as a
// transient notice.
func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	current := false
	products, err := h.store.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("read store for toggle", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	for _, p := range products {
		if p.ID == id {
			current = p.IsFavorite
			break
		}
	}

	h.catalog.ToggleFavorite(id, current)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) forceRefresh(w http.ResponseWriter, r *http.Request) {
	h.catalog.ForceRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, encodeError(code, msg))
}
