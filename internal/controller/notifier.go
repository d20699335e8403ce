// Package controller derives the consumer-facing live views from the catalog
// store and routes mutations and refreshes around them.
package controller

// Notice is a one-shot, non-authoritative message for transient UI feedback.
// It is never part of the derived application state.
type Notice string

// Transient feedback messages. Refresh failures are split so a consumer can
// tell network trouble from everything else.
const (
	NoticeNetworkError  Notice = "network error while refreshing the catalog"
	NoticeRefreshFailed Notice = "catalog refresh failed"
	NoticeLocalRead     Notice = "failed to read local catalog data"
	NoticeFavorite      Notice = "failed to update favorite status"
)

// Notifier is a bounded, lossy, multi-producer notification channel. Send
// never blocks: when no consumer keeps up, notices are dropped silently.
type Notifier struct {
	ch chan Notice
}

// NewNotifier creates a Notifier that buffers up to capacity undelivered
// notices. Capacities below one are raised to one.
func NewNotifier(capacity int) *Notifier {
	if capacity < 1 {
		capacity = 1
	}
	return &Notifier{ch: make(chan Notice, capacity)}
}

// Notices is the consumer side. Zero or one consumer is expected; the channel
// is never closed.
func (n *Notifier) Notices() <-chan Notice {
	return n.ch
}

// TryNotify delivers a notice if buffer space is available and reports
// whether it was accepted.
func (n *Notifier) TryNotify(msg Notice) bool {
	select {
	case n.ch <- msg:
		return true
	default:
		return false
	}
}
