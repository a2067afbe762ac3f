package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabProject/service/storage"
)

func newTestRooms(bus Bus) *Rooms {
	if bus == nil {
		bus = NopBus{}
	}
	return NewRooms(storage.NewSessions(time.Hour), bus, "gw-test-1")
}

func drainQueue(c *Conn) [][]byte {
	var out [][]byte
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func frameTypes(t *testing.T, frames [][]byte) []string {
	t.Helper()
	var types []string
	for _, raw := range frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		types = append(types, m["type"].(string))
	}
	return types
}

func TestRoomsJoinNotifiesExistingMembersOnly(t *testing.T) {
	r := newTestRooms(nil)
	ctx := context.Background()

	a := queueConn("cA", "alice", 8)
	b := queueConn("cB", "bob", 8)

	r.Join(ctx, "room-1", a)
	assert.Empty(t, drainQueue(a), "first member has nobody to hear from")

	r.Join(ctx, "room-1", b)
	assert.Equal(t, []string{TypeMemberJoined}, frameTypes(t, drainQueue(a)))
	assert.Empty(t, drainQueue(b), "joiner gets no notice about itself")

	assert.Equal(t, "room-1", a.RoomID())
	assert.ElementsMatch(t, []string{"cA", "cB"}, r.LocalMemberIDs("room-1"))
}

func TestRoomsJoinMovesConnectionBetweenRooms(t *testing.T) {
	r := newTestRooms(nil)
	ctx := context.Background()

	a := queueConn("cA", "alice", 8)
	r.Join(ctx, "room-1", a)
	r.Join(ctx, "room-2", a)

	assert.Equal(t, "room-2", a.RoomID())
	assert.Empty(t, r.LocalMemberIDs("room-1"))
	assert.Equal(t, []string{"cA"}, r.LocalMemberIDs("room-2"))
}

func TestRoomsBroadcastExcludesSenderAndRelays(t *testing.T) {
	bus := &captureBus{}
	r := newTestRooms(bus)
	ctx := context.Background()

	a := queueConn("cA", "alice", 8)
	b := queueConn("cB", "bob", 8)
	c := queueConn("cC", "carol", 8)
	r.Join(ctx, "room-1", a)
	r.Join(ctx, "room-1", b)
	r.Join(ctx, "room-1", c)
	drainQueue(a)
	drainQueue(b)
	drainQueue(c)

	msg := Outbound(TypeCursorUpdate, map[string]any{"x": 1})
	n := r.Broadcast(ctx, "room-1", msg, "cB")

	assert.Equal(t, 2, n)
	assert.Len(t, drainQueue(a), 1)
	assert.Empty(t, drainQueue(b), "sender is excluded")
	assert.Len(t, drainQueue(c), 1)

	pubs := bus.Published()
	require.Len(t, pubs, 1)
	assert.Equal(t, "room-1", pubs[0].RoomID)
	assert.Equal(t, "cB", pubs[0].ExcludeConnectionID)
	assert.Equal(t, "gw-test-1", pubs[0].OriginGatewayID)
}

func TestRoomsBroadcastPrunesUnresponsiveMembers(t *testing.T) {
	r := newTestRooms(nil)
	ctx := context.Background()

	healthy := queueConn("cA", "alice", 8)
	stuck := queueConn("cB", "bob", 1)
	r.Join(ctx, "room-1", healthy)
	r.Join(ctx, "room-1", stuck)
	drainQueue(healthy)

	// the stuck queue holds exactly one frame; the second send overflows
	msg := Outbound(TypeCursorUpdate, map[string]any{"x": 1})
	r.Broadcast(ctx, "room-1", msg, "")
	n := r.Broadcast(ctx, "room-1", msg, "")

	assert.Equal(t, 1, n, "only the healthy member took the second frame")
	assert.Equal(t, []string{"cA"}, r.LocalMemberIDs("room-1"), "stuck member pruned")
	assert.Len(t, drainQueue(healthy), 2, "delivery to others was not aborted")
}

func TestRoomsHandleRelayDiscardsOwnOrigin(t *testing.T) {
	r := newTestRooms(nil)
	ctx := context.Background()

	a := queueConn("cA", "alice", 8)
	r.Join(ctx, "room-1", a)

	msg := Outbound(TypeCursorUpdate, map[string]any{"x": 1})

	r.HandleRelay(&Envelope{RoomID: "room-1", Message: msg, OriginGatewayID: "gw-test-1"})
	assert.Empty(t, drainQueue(a), "own envelope must be discarded")

	r.HandleRelay(&Envelope{RoomID: "room-1", Message: msg, OriginGatewayID: "gw-other"})
	assert.Len(t, drainQueue(a), 1, "remote envelope delivers locally")

	// exclusion carries across processes
	r.HandleRelay(&Envelope{RoomID: "room-1", Message: msg, OriginGatewayID: "gw-other", ExcludeConnectionID: "cA"})
	assert.Empty(t, drainQueue(a))
}

func TestRoomsJoinThenLeaveRestoresMembership(t *testing.T) {
	r := newTestRooms(nil)
	ctx := context.Background()

	a := queueConn("cA", "alice", 8)
	r.Join(ctx, "room-1", a)
	before := r.LocalMemberIDs("room-1")

	b := queueConn("cB", "bob", 8)
	r.Join(ctx, "room-1", b)
	r.Leave(ctx, "room-1", "cB")

	assert.Equal(t, before, r.LocalMemberIDs("room-1"))
	assert.Empty(t, b.RoomID())
}

func TestRoomsLeaveIsIdempotentAndDropsEmptyRooms(t *testing.T) {
	r := newTestRooms(nil)
	ctx := context.Background()

	a := queueConn("cA", "alice", 8)
	r.Join(ctx, "room-1", a)
	assert.Equal(t, 1, r.LocalLen())

	r.Leave(ctx, "room-1", "cA")
	assert.Zero(t, r.LocalLen(), "empty room evaporates")
	assert.Empty(t, a.RoomID())

	r.Leave(ctx, "room-1", "cA")
	r.Leave(ctx, "never-existed", "cA")
	assert.Zero(t, r.LocalLen())
}

func TestRoomsSwitchMovesAndNotifies(t *testing.T) {
	r := newTestRooms(nil)
	ctx := context.Background()

	a := queueConn("cA", "alice", 8)
	b := queueConn("cB", "bob", 8)
	r.Join(ctx, "room-1", a)
	r.Join(ctx, "room-2", b)
	drainQueue(a)
	drainQueue(b)

	r.Switch(ctx, a, "room-2")

	assert.Equal(t, "room-2", a.RoomID())
	assert.Empty(t, r.LocalMemberIDs("room-1"))
	assert.ElementsMatch(t, []string{"cA", "cB"}, r.LocalMemberIDs("room-2"))
	assert.Equal(t, []string{TypeMemberJoined}, frameTypes(t, drainQueue(b)))
	assert.Empty(t, drainQueue(a), "switcher hears nothing about itself")

	// switching to the current room is a no-op
	r.Switch(ctx, a, "room-2")
	assert.Empty(t, drainQueue(b))
}
