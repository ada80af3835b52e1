// Package abuse implements process-local sliding-window counters used to
// detect message-rate spam and repeated prompt-injection attempts.
//
// Counters are an in-memory fast path only; the blocklist table is the
// source of truth for blocks and survives restarts, the counters do not.
// For horizontally scaled deployments a shared cache (e.g. Redis) should
// back this interface instead.
package abuse

import (
	"sync"
	"time"
)

// Counter records events per identity inside a sliding window.
type Counter interface {
	// Hit records one event for identity and returns the count observed
	// inside the current window, including this event.
	Hit(identity string) int
	// Reset clears the counter for identity (used after a block is applied
	// so the record does not keep growing).
	Reset(identity string)
}

// window holds the running count for one identity.
type window struct {
	count int
	start time.Time
}

// WindowCounter is a mutex-guarded Counter with opportunistic eviction of
// expired windows. Safe for concurrent use.
type WindowCounter struct {
	span time.Duration
	now  func() time.Time

	mu       sync.Mutex
	windows  map[string]*window
	cleanupN uint64
}

// NewWindowCounter returns a counter whose window restarts span after the
// first event of each burst.
func NewWindowCounter(span time.Duration) *WindowCounter {
	return &WindowCounter{
		span:    span,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Hit implements Counter.
func (w *WindowCounter) Hit(identity string) int {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	// Opportunistic cleanup so idle identities do not accumulate. Runs
	// before touching the requested entry so an expired window for this
	// identity is also swept.
	w.cleanupN++
	if w.cleanupN >= 5000 {
		for k, v := range w.windows {
			if now.Sub(v.start) > w.span {
				delete(w.windows, k)
			}
		}
		w.cleanupN = 0
	}

	v, ok := w.windows[identity]
	if !ok || now.Sub(v.start) > w.span {
		w.windows[identity] = &window{count: 1, start: now}
		return 1
	}
	v.count++
	return v.count
}

// Reset implements Counter.
func (w *WindowCounter) Reset(identity string) {
	w.mu.Lock()
	delete(w.windows, identity)
	w.mu.Unlock()
}
