package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type terminateLog struct {
	mu      sync.Mutex
	reasons map[string]string
}

func (l *terminateLog) record(c *Conn, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reasons == nil {
		l.reasons = make(map[string]string)
	}
	l.reasons[c.ID] = reason
}

func (l *terminateLog) get(id string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reasons[id]
	return r, ok
}

func TestMonitorEvictsAfterTwoSilentTicks(t *testing.T) {
	reg := newTestRegistry()
	clk := newFakeClock()
	evicted := &terminateLog{}
	m := NewMonitor(reg, 30*time.Second, clk.Now, evicted.record)

	c, client := testConn(t, "c1", "alice")
	reg.Register(context.Background(), c)

	// first tick: ping goes out, state arms
	m.Sweep()
	assert.Equal(t, StatePendingPong, c.LivenessState())
	_, ok := evicted.get("c1")
	assert.False(t, ok, "no eviction on the first silent tick")

	// second tick with no pong: eviction with the close reason visible
	m.Sweep()
	assert.Equal(t, StateTerminated, c.LivenessState())
	reason, ok := evicted.get("c1")
	require.True(t, ok)
	assert.Equal(t, "liveness timeout", reason)
	assert.True(t, c.Closed())

	expectClose(t, client, websocket.CloseGoingAway, 2*time.Second)
}

func TestMonitorAnyActivityResetsLiveness(t *testing.T) {
	reg := newTestRegistry()
	clk := newFakeClock()
	evicted := &terminateLog{}
	m := NewMonitor(reg, 30*time.Second, clk.Now, evicted.record)

	c, _ := testConn(t, "c1", "alice")
	reg.Register(context.Background(), c)

	m.Sweep()
	assert.Equal(t, StatePendingPong, c.LivenessState())

	// any inbound frame counts as life, not just a pong
	c.MarkActive(clk.Now())
	assert.Equal(t, StateAlive, c.LivenessState())

	m.Sweep()
	_, ok := evicted.get("c1")
	assert.False(t, ok, "responsive connection survives")
	assert.Equal(t, StatePendingPong, c.LivenessState(), "re-armed for the next tick")
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	reg := newTestRegistry()
	m := NewMonitor(reg, time.Hour, nil, nil)
	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()
	m.Stop()
	m.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func TestConnPingReachesClient(t *testing.T) {
	c, client := testConn(t, "c1", "alice")

	got := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		got <- struct{}{}
		return nil
	})
	go func() {
		// the ping handler only fires inside a read
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		client.ReadMessage()
	}()

	require.NoError(t, c.Ping())
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("ping never reached the peer")
	}
}
