package handler

import (
	"net/http"
	"sync"

	"github.com/xenking/catalog-cache/internal/controller"
)

// broadcaster fans the controller's single conflated update stream out to
// any number of SSE clients. Each client gets its own conflated channel, so
// a stalled connection only ever misses intermediate states.
type broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan controller.CatalogSnapshot
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan controller.CatalogSnapshot)}
}

func (b *broadcaster) publish(snap controller.CatalogSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (b *broadcaster) subscribe() (<-chan controller.CatalogSnapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan controller.CatalogSnapshot, 1)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// streamCatalog serves catalog snapshots as server-sent events. The current
// snapshot is replayed immediately on connect.
func (h *Handler) streamCatalog(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := h.stream.subscribe()
	defer cancel()

	writeEvent := func(snap controller.CatalogSnapshot) bool {
		if _, err := w.Write([]byte("data: ")); err != nil {
			return false
		}
		if _, err := w.Write(encodeCatalogSnapshot(snap)); err != nil {
			return false
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeEvent(h.catalog.Snapshot()) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if !writeEvent(snap) {
				return
			}
		}
	}
}
