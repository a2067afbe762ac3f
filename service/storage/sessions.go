package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"CollabProject/global"
	redisdb "CollabProject/service/storage/redis"
)

// SessionRecord is the shared-cache mirror of one local connection. The
// local maps stay the source of truth; the mirror exists for cross-process
// visibility and self-expires on crash.
type SessionRecord struct {
	ConnID      string
	UserID      string
	RoomID      string
	WorkspaceID string
	GatewayID   string
	JoinedAt    time.Time
}

// RoomMember is one entry of a room's cross-process membership set,
// packed as "userID|connID|gatewayID".
type RoomMember struct {
	UserID    string
	ConnID    string
	GatewayID string
}

func (m RoomMember) encode() string {
	return m.UserID + "|" + m.ConnID + "|" + m.GatewayID
}

func decodeMember(s string) (RoomMember, bool) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return RoomMember{}, false
	}
	return RoomMember{UserID: parts[0], ConnID: parts[1], GatewayID: parts[2]}, true
}

// Sessions mirrors session and room membership state to the shared cache.
// Every method returns a Status instead of an error: callers never fail on
// a degraded cache, they only lose cross-process visibility.
type Sessions struct {
	ttl time.Duration
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{ttl: ttl}
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

// Mirror writes the SessionRecord hash and adds the connection to the
// per-user set, both TTL-bounded.
func (s *Sessions) Mirror(ctx context.Context, rec *SessionRecord) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	_, err := rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		sk := global.SessionKey(rec.ConnID)
		p.HSet(ctx, sk,
			"conn_id", rec.ConnID,
			"user_id", rec.UserID,
			"room_id", rec.RoomID,
			"workspace_id", rec.WorkspaceID,
			"gateway_id", rec.GatewayID,
			"joined_at", strconv.FormatInt(rec.JoinedAt.UnixMilli(), 10),
		)
		p.Expire(ctx, sk, s.ttl)

		uk := global.UserConnsKey(rec.UserID)
		p.SAdd(ctx, uk, rec.ConnID)
		p.Expire(ctx, uk, s.ttl)
		return nil
	})
	if err != nil {
		return Degraded(err)
	}
	return Ok()
}

// Drop removes the mirror and the per-user set entry. Best-effort: the
// caller has already removed local state.
func (s *Sessions) Drop(ctx context.Context, rec *SessionRecord) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	_, err := rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, global.SessionKey(rec.ConnID))
		p.SRem(ctx, global.UserConnsKey(rec.UserID), rec.ConnID)
		return nil
	})
	if err != nil {
		return Degraded(err)
	}
	return Ok()
}

// AddRoomMember mirrors a join into the room's membership set.
func (s *Sessions) AddRoomMember(ctx context.Context, roomID string, m RoomMember) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	_, err := rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		rk := global.RoomMembersKey(roomID)
		p.SAdd(ctx, rk, m.encode())
		p.Expire(ctx, rk, s.ttl)
		return nil
	})
	if err != nil {
		return Degraded(err)
	}
	return Ok()
}

// RemoveRoomMember mirrors a leave.
func (s *Sessions) RemoveRoomMember(ctx context.Context, roomID string, m RoomMember) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	if err := rdb.SRem(ctx, global.RoomMembersKey(roomID), m.encode()).Err(); err != nil {
		return Degraded(err)
	}
	return Ok()
}

// SetRoom moves a connection's mirror from one room to another and updates
// the SessionRecord hash, for room-switch requests.
func (s *Sessions) SetRoom(ctx context.Context, connID, oldRoomID, newRoomID string, m RoomMember) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	_, err := rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.SRem(ctx, global.RoomMembersKey(oldRoomID), m.encode())
		nk := global.RoomMembersKey(newRoomID)
		p.SAdd(ctx, nk, m.encode())
		p.Expire(ctx, nk, s.ttl)
		p.HSet(ctx, global.SessionKey(connID), "room_id", newRoomID)
		return nil
	})
	if err != nil {
		return Degraded(err)
	}
	return Ok()
}

// UserConnCount reports the user's fleet-wide connection count (advisory).
func (s *Sessions) UserConnCount(ctx context.Context, userID string) (int64, Status) {
	rdb, ok := redisdb.Client()
	if !ok {
		return 0, Degraded(ErrNotReady)
	}
	n, err := rdb.SCard(ctx, global.UserConnsKey(userID)).Result()
	if err != nil {
		return 0, Degraded(err)
	}
	return n, Ok()
}

// Refresh renews the mirror TTLs; driven by the liveness heartbeat so an
// active connection's mirror never expires under it.
func (s *Sessions) Refresh(ctx context.Context, connID, userID string) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	_, err := rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.Expire(ctx, global.SessionKey(connID), s.ttl)
		p.Expire(ctx, global.UserConnsKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return Degraded(err)
	}
	return Ok()
}

// RoomMembers lists the cross-process membership of a room (diagnostics).
func (s *Sessions) RoomMembers(ctx context.Context, roomID string) ([]RoomMember, Status) {
	rdb, ok := redisdb.Client()
	if !ok {
		return nil, Degraded(ErrNotReady)
	}
	raw, err := rdb.SMembers(ctx, global.RoomMembersKey(roomID)).Result()
	if err != nil {
		return nil, Degraded(err)
	}
	out := make([]RoomMember, 0, len(raw))
	for _, r := range raw {
		if m, ok := decodeMember(r); ok {
			out = append(out, m)
		}
	}
	return out, Ok()
}
