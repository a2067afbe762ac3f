package gateway

import (
	"context"
	"sync"

	"CollabProject/logger"
	"CollabProject/service/storage"
)

// Registry is the authoritative local map of this process's connections,
// mirrored best-effort into the shared cache for cross-process visibility
// and crash recovery. Local maps are the source of truth; mirror failures
// degrade visibility, never local correctness.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Conn
	byUser map[string]map[string]*Conn

	sessions  *storage.Sessions
	gatewayID string
}

func NewRegistry(sessions *storage.Sessions, gatewayID string) *Registry {
	return &Registry{
		byConn:    make(map[string]*Conn),
		byUser:    make(map[string]map[string]*Conn),
		sessions:  sessions,
		gatewayID: gatewayID,
	}
}

func (r *Registry) GatewayID() string {
	return r.gatewayID
}

// Register inserts the connection locally and mirrors a session record
// plus the per-user connection set into the shared cache. The returned
// status reports mirror health; local registration always succeeds.
func (r *Registry) Register(ctx context.Context, c *Conn) storage.Status {
	r.mu.Lock()
	r.byConn[c.ID] = c
	if r.byUser[c.UserID] == nil {
		r.byUser[c.UserID] = make(map[string]*Conn)
	}
	r.byUser[c.UserID][c.ID] = c
	r.mu.Unlock()

	st := r.sessions.Mirror(ctx, &storage.SessionRecord{
		ConnID:      c.ID,
		UserID:      c.UserID,
		RoomID:      c.RoomID(),
		WorkspaceID: c.WorkspaceID,
		GatewayID:   r.gatewayID,
		JoinedAt:    c.ConnectedAt,
	})
	if st.Degraded {
		logger.Warnf("session mirror degraded conn=%s user=%s: %v", c.ID, c.UserID, st.Err)
	}
	return st
}

// TryRegister atomically checks the user's tier quota against local
// membership and inserts when allowed. The shared count is read first as
// an advisory cross-process view; two same-user upgrades racing on one
// process serialize on the local lock, racing across processes is bounded
// by the mirror's freshness (accepted, like every degraded-mode weakening).
func (r *Registry) TryRegister(ctx context.Context, c *Conn, limit int) (bool, storage.Status) {
	shared, st := r.sessions.UserConnCount(ctx, c.UserID)
	if st.Degraded {
		logger.Warnf("user conn count degraded user=%s, local-only quota: %v", c.UserID, st.Err)
	}

	r.mu.Lock()
	local := len(r.byUser[c.UserID])
	known := local
	if !st.Degraded && int(shared) > local {
		known = int(shared)
	}
	if limit > 0 && known >= limit {
		r.mu.Unlock()
		return false, st
	}
	r.byConn[c.ID] = c
	if r.byUser[c.UserID] == nil {
		r.byUser[c.UserID] = make(map[string]*Conn)
	}
	r.byUser[c.UserID][c.ID] = c
	r.mu.Unlock()

	if mst := r.sessions.Mirror(ctx, &storage.SessionRecord{
		ConnID:      c.ID,
		UserID:      c.UserID,
		RoomID:      c.RoomID(),
		WorkspaceID: c.WorkspaceID,
		GatewayID:   r.gatewayID,
		JoinedAt:    c.ConnectedAt,
	}); mst.Degraded {
		logger.Warnf("session mirror degraded conn=%s user=%s: %v", c.ID, c.UserID, mst.Err)
		return true, mst
	}
	return true, storage.Ok()
}

// Unregister removes the shared mirror first, then the local entry.
// Mirror failures are logged and swallowed: local deregistration must
// never be blocked by a remote dependency.
func (r *Registry) Unregister(ctx context.Context, connID string) {
	r.mu.RLock()
	c := r.byConn[connID]
	r.mu.RUnlock()
	if c == nil {
		return
	}

	if st := r.sessions.Drop(ctx, &storage.SessionRecord{ConnID: connID, UserID: c.UserID}); st.Degraded {
		logger.Warnf("session drop degraded conn=%s user=%s: %v", connID, c.UserID, st.Err)
	}

	r.mu.Lock()
	delete(r.byConn, connID)
	if mm := r.byUser[c.UserID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
	r.mu.Unlock()
}

func (r *Registry) Get(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byConn[connID]
	return c, ok
}

// LookupByUser returns this process's connections for the user.
func (r *Registry) LookupByUser(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.byUser[userID]
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// CountByUser prefers the shared per-user set so limits hold across the
// fleet, falling back to the local count when the cache is degraded.
func (r *Registry) CountByUser(ctx context.Context, userID string) (int, storage.Status) {
	r.mu.RLock()
	local := len(r.byUser[userID])
	r.mu.RUnlock()

	shared, st := r.sessions.UserConnCount(ctx, userID)
	if st.Degraded {
		return local, st
	}
	if int(shared) > local {
		return int(shared), st
	}
	return local, st
}

// Len is the number of local connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// Snapshot copies the current connection set for iteration without
// holding the lock during I/O.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}
