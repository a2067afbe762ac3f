package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomMemberCodec(t *testing.T) {
	m := RoomMember{UserID: "u-1", ConnID: "c-1", GatewayID: "gw-a"}
	got, ok := decodeMember(m.encode())
	assert.True(t, ok)
	assert.Equal(t, m, got)

	_, ok = decodeMember("only|two")
	assert.False(t, ok)
	_, ok = decodeMember("")
	assert.False(t, ok)
}

func TestSessionsDegradeWithoutSharedCache(t *testing.T) {
	// no redis in unit tests: every operation must report degraded with
	// the not-ready cause instead of failing or blocking
	s := NewSessions(time.Hour)
	ctx := context.Background()
	rec := &SessionRecord{ConnID: "c-1", UserID: "u-1", RoomID: "r-1", GatewayID: "gw-a", JoinedAt: time.Now()}

	st := s.Mirror(ctx, rec)
	assert.True(t, st.Degraded)
	assert.True(t, errors.Is(st.Err, ErrNotReady))

	assert.True(t, s.Drop(ctx, rec).Degraded)
	assert.True(t, s.AddRoomMember(ctx, "r-1", RoomMember{}).Degraded)
	assert.True(t, s.RemoveRoomMember(ctx, "r-1", RoomMember{}).Degraded)
	assert.True(t, s.SetRoom(ctx, "c-1", "r-1", "r-2", RoomMember{}).Degraded)
	assert.True(t, s.Refresh(ctx, "c-1", "u-1").Degraded)

	n, st := s.UserConnCount(ctx, "u-1")
	assert.Zero(t, n)
	assert.True(t, st.Degraded)

	members, st := s.RoomMembers(ctx, "r-1")
	assert.Nil(t, members)
	assert.True(t, st.Degraded)
}

func TestSessionsTTLDefault(t *testing.T) {
	assert.Equal(t, time.Hour, NewSessions(0).TTL())
	assert.Equal(t, 30*time.Minute, NewSessions(30*time.Minute).TTL())
}

func TestStatusShapes(t *testing.T) {
	assert.False(t, Ok().Degraded)
	assert.Nil(t, Ok().Err)

	cause := errors.New("boom")
	st := Degraded(cause)
	assert.True(t, st.Degraded)
	assert.Same(t, cause, st.Err)
}
