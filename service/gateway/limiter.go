package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"CollabProject/global"
	"CollabProject/logger"
	"CollabProject/service/storage"
)

// Decision is one limiter verdict. RetryAfter is how long until the
// current window expires, for the rate_limited frame.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type localWindow struct {
	count       int64
	windowStart time.Time
}

// Limiter is a fixed-window counter keyed by user or connection. It
// prefers the shared counter store for fleet-wide accuracy and falls back
// transparently to process-local windows when the store is degraded.
// Fallback is strictly more permissive across the fleet (each process
// only sees its own share of the traffic); that weakening is accepted
// during shared-store outages.
type Limiter struct {
	kind   string
	limit  int64
	window time.Duration

	rates *storage.Rates
	clock Clock

	mu    sync.Mutex
	local map[string]*localWindow

	degraded atomic.Bool
}

func NewLimiter(kind string, limit int64, window time.Duration, rates *storage.Rates, clock Clock) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		kind:   kind,
		limit:  limit,
		window: window,
		rates:  rates,
		clock:  clock,
		local:  make(map[string]*localWindow),
	}
}

// Allow counts one hit for id and reports whether it stays within the
// limit. A limit of zero or below disables the check.
func (l *Limiter) Allow(ctx context.Context, id string) Decision {
	if l.limit <= 0 {
		return Decision{Allowed: true}
	}

	count, remaining, st := l.rates.IncrWindow(ctx, global.RateKey(l.kind, id), l.window)
	if st.Degraded {
		l.noteDegraded(st)
		return l.allowLocal(id)
	}
	l.noteRecovered()
	if count > l.limit {
		return Decision{Allowed: false, RetryAfter: remaining}
	}
	return Decision{Allowed: true}
}

// allowLocal is the in-memory fixed window used while the shared store
// is unreachable.
func (l *Limiter) allowLocal(id string) Decision {
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.local[id]
	if w == nil || now.Sub(w.windowStart) >= l.window {
		l.local[id] = &localWindow{count: 1, windowStart: now}
		return Decision{Allowed: true}
	}
	w.count++
	if w.count > l.limit {
		return Decision{Allowed: false, RetryAfter: w.windowStart.Add(l.window).Sub(now)}
	}
	return Decision{Allowed: true}
}

// Forget drops the window for id, locally and best-effort in the shared
// store. Called during disconnect cleanup.
func (l *Limiter) Forget(ctx context.Context, id string) {
	l.mu.Lock()
	delete(l.local, id)
	l.mu.Unlock()

	if st := l.rates.Clear(ctx, global.RateKey(l.kind, id)); st.Degraded {
		logger.Debugf("limiter clear degraded kind=%s id=%s: %v", l.kind, id, st.Err)
	}
}

// Sweep drops local windows that expired, bounding fallback memory.
func (l *Limiter) Sweep() {
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, w := range l.local {
		if now.Sub(w.windowStart) >= l.window {
			delete(l.local, id)
		}
	}
}

func (l *Limiter) noteDegraded(st storage.Status) {
	if l.degraded.CompareAndSwap(false, true) {
		logger.Warnf("limiter %s falling back to local windows: %v", l.kind, st.Err)
	}
}

func (l *Limiter) noteRecovered() {
	if l.degraded.CompareAndSwap(true, false) {
		logger.Infof("limiter %s recovered shared counters", l.kind)
	}
}
