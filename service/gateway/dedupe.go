package gateway

import (
	"sync"
	"time"
)

// DedupeGuard suppresses re-entrant handling of the same kind of action
// from the same (user, room) for a short cooldown, so a flaky client
// re-sending a submission cannot flood downstream consumers. Cursor and
// liveness frames are exempt; only downstream-forwarding kinds register.
type DedupeGuard struct {
	cooldown time.Duration
	clock    Clock

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDedupeGuard(cooldown time.Duration, clock Clock) *DedupeGuard {
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	if clock == nil {
		clock = time.Now
	}
	return &DedupeGuard{
		cooldown: cooldown,
		clock:    clock,
		seen:     make(map[string]time.Time),
	}
}

// FirstSight reports whether this (kind, user, room) action is the first
// within the cooldown. A repeat inside the window returns false and
// leaves the original deadline untouched.
func (g *DedupeGuard) FirstSight(kind, userID, roomID string) bool {
	key := kind + "|" + userID + "|" + roomID
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if until, ok := g.seen[key]; ok && now.Before(until) {
		return false
	}
	g.seen[key] = now.Add(g.cooldown)

	// opportunistic cleanup keeps the map bounded without a janitor
	if len(g.seen) > 4096 {
		for k, until := range g.seen {
			if now.After(until) {
				delete(g.seen, k)
			}
		}
	}
	return true
}
