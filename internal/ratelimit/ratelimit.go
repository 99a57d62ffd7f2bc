package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Limiter enforces a per-user fixed-window event budget. Window state is held
// only in memory and advanced lazily on access; there is no background timer
// and state is lost on restart (limiting is best-effort, not a security
// boundary).
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	windows map[int64]*window
}

// window is one user's counter. Check-and-increment is atomic so concurrent
// sends by the same user never double-count or slip past the limit, including
// at the window boundary.
type window struct {
	start atomic.Int64 // unix milliseconds
	count atomic.Int32
}

// New builds a limiter allowing limit events per 1-second window.
func New(limit int) *Limiter {
	return NewWithClock(limit, time.Second, time.Now)
}

// NewWithClock is New with an injectable window length and clock.
func NewWithClock(limit int, windowLen time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  windowLen,
		now:     now,
		windows: make(map[int64]*window),
	}
}

// Allow reports whether the user may send one more event in the current
// window.
func (l *Limiter) Allow(userID int64) bool {
	return l.userWindow(userID).tryAcquire(l.limit, l.window, l.now())
}

// userWindow returns the user's counter, creating it on first contact.
// Double-checked locking keeps concurrent first access from installing two
// counters for one user.
func (l *Limiter) userWindow(userID int64) *window {
	l.mu.RLock()
	w, ok := l.windows[userID]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[userID]; ok {
		return w
	}
	w = &window{}
	w.start.Store(l.now().UnixMilli())
	l.windows[userID] = w
	return w
}

func (w *window) tryAcquire(limit int, windowLen time.Duration, now time.Time) bool {
	nowMs := now.UnixMilli()
	start := w.start.Load()

	// A new window starts lazily on the first event after the old one lapses.
	// Only the caller that wins the CAS resets the counter; everyone else
	// falls through and competes for the fresh budget.
	if nowMs-start >= windowLen.Milliseconds() {
		if w.start.CompareAndSwap(start, nowMs) {
			w.count.Store(1)
			return true
		}
	}

	return int(w.count.Add(1)) <= limit
}
