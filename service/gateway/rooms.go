package gateway

import (
	"context"
	"sync"
	"time"

	"CollabProject/logger"
	"CollabProject/service/storage"
	"CollabProject/tools/safe"
)

// Rooms tracks which local connections are in which room, mirrors
// membership into the shared cache, and fans broadcasts out both locally
// and across gateways via the bus. Rooms exist implicitly: created on
// first join, dropped when their local member set empties.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Conn // roomID -> connID -> conn

	sessions  *storage.Sessions
	bus       Bus
	gatewayID string
}

func NewRooms(sessions *storage.Sessions, bus Bus, gatewayID string) *Rooms {
	return &Rooms{
		rooms:     make(map[string]map[string]*Conn),
		sessions:  sessions,
		bus:       bus,
		gatewayID: gatewayID,
	}
}

// Join adds the connection to a room, leaving its previous room first so
// a connection is never in two rooms locally. Existing local members get
// a member_joined notice; the joiner does not.
func (r *Rooms) Join(ctx context.Context, roomID string, c *Conn) {
	if prev := c.RoomID(); prev != "" && prev != roomID {
		r.Leave(ctx, prev, c.ID)
	}

	r.mu.Lock()
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]*Conn)
	}
	r.rooms[roomID][c.ID] = c
	r.mu.Unlock()
	c.SetRoomID(roomID)

	if st := r.sessions.AddRoomMember(ctx, roomID, storage.RoomMember{
		UserID: c.UserID, ConnID: c.ID, GatewayID: r.gatewayID,
	}); st.Degraded {
		logger.Warnf("room membership mirror degraded room=%s conn=%s: %v", roomID, c.ID, st.Err)
	}

	notice := Outbound(TypeMemberJoined, map[string]any{
		"roomId": roomID,
		"userId": c.UserID,
	})
	r.deliverLocal(roomID, notice, c.ID)
}

// Leave removes the connection from the room. Idempotent: leaving a room
// the connection is not in is a no-op, because cleanup calls it blindly.
func (r *Rooms) Leave(ctx context.Context, roomID, connID string) {
	c := r.removeLocalMember(roomID, connID)
	if c == nil {
		return
	}

	if st := r.sessions.RemoveRoomMember(ctx, roomID, storage.RoomMember{
		UserID: c.UserID, ConnID: connID, GatewayID: r.gatewayID,
	}); st.Degraded {
		logger.Warnf("room membership unmirror degraded room=%s conn=%s: %v", roomID, connID, st.Err)
	}
}

// removeLocalMember is the pure local-map half of Leave. It returns the
// removed connection, or nil when the pair was unknown.
func (r *Rooms) removeLocalMember(roomID, connID string) *Conn {
	var c *Conn
	r.mu.Lock()
	if mm := r.rooms[roomID]; mm != nil {
		c = mm[connID]
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()
	if c != nil && c.RoomID() == roomID {
		c.SetRoomID("")
	}
	return c
}

// Broadcast delivers to local members and republishes on the bus so other
// gateways reach their members of the same room. Returns the local
// delivered count; relay delivery is fire-and-forget.
func (r *Rooms) Broadcast(ctx context.Context, roomID string, message []byte, excludeConnID string) int {
	delivered := r.deliverLocal(roomID, message, excludeConnID)

	env := &Envelope{
		RoomID:              roomID,
		Message:             message,
		ExcludeConnectionID: excludeConnID,
		OriginGatewayID:     r.gatewayID,
	}
	if err := r.bus.PublishBroadcast(ctx, env); err != nil {
		logger.Warnf("relay publish degraded room=%s: %v", roomID, err)
	}
	return delivered
}

// HandleRelay delivers a relayed broadcast to local members. Envelopes
// originating from this process are discarded (loop prevention) and
// nothing is ever re-relayed.
func (r *Rooms) HandleRelay(env *Envelope) {
	if env == nil || env.OriginGatewayID == r.gatewayID {
		return
	}
	r.deliverLocal(env.RoomID, env.Message, env.ExcludeConnectionID)
}

// deliverLocal sends to every local member except the excluded one.
// Members whose send fails are pruned from the room as a self-healing
// side effect; one slow client never aborts delivery to the rest. The
// local prune is synchronous, the mirror cleanup is best-effort async.
func (r *Rooms) deliverLocal(roomID string, message []byte, excludeConnID string) int {
	members := r.localMembers(roomID)
	delivered := 0
	var failed []*Conn
	for _, c := range members {
		if c.ID == excludeConnID {
			continue
		}
		if err := c.Send(message); err != nil {
			logger.Infof("prune member room=%s conn=%s: %v", roomID, c.ID, err)
			failed = append(failed, c)
			continue
		}
		delivered++
	}
	for _, c := range failed {
		conn := r.removeLocalMember(roomID, c.ID)
		if conn == nil {
			continue
		}
		member := storage.RoomMember{UserID: conn.UserID, ConnID: conn.ID, GatewayID: r.gatewayID}
		safe.SafeGo(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if st := r.sessions.RemoveRoomMember(ctx, roomID, member); st.Degraded {
				logger.Warnf("prune unmirror degraded room=%s conn=%s: %v", roomID, member.ConnID, st.Err)
			}
		})
	}
	return delivered
}

func (r *Rooms) localMembers(roomID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.rooms[roomID]
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// LocalMemberIDs lists local member connection ids (tests, stats).
func (r *Rooms) LocalMemberIDs(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm := r.rooms[roomID]
	out := make([]string, 0, len(mm))
	for id := range mm {
		out = append(out, id)
	}
	return out
}

// LocalLen is the number of rooms with at least one local member.
func (r *Rooms) LocalLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Switch moves a connection to another room and updates the shared
// mirror in one pass. Used by room-switch requests.
func (r *Rooms) Switch(ctx context.Context, c *Conn, newRoomID string) {
	oldRoomID := c.RoomID()
	if oldRoomID == newRoomID {
		return
	}

	r.mu.Lock()
	if mm := r.rooms[oldRoomID]; mm != nil {
		delete(mm, c.ID)
		if len(mm) == 0 {
			delete(r.rooms, oldRoomID)
		}
	}
	if r.rooms[newRoomID] == nil {
		r.rooms[newRoomID] = make(map[string]*Conn)
	}
	r.rooms[newRoomID][c.ID] = c
	r.mu.Unlock()
	c.SetRoomID(newRoomID)

	if st := r.sessions.SetRoom(ctx, c.ID, oldRoomID, newRoomID, storage.RoomMember{
		UserID: c.UserID, ConnID: c.ID, GatewayID: r.gatewayID,
	}); st.Degraded {
		logger.Warnf("room switch mirror degraded conn=%s: %v", c.ID, st.Err)
	}

	notice := Outbound(TypeMemberJoined, map[string]any{
		"roomId": newRoomID,
		"userId": c.UserID,
	})
	r.deliverLocal(newRoomID, notice, c.ID)
}
