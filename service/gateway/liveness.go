package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"CollabProject/logger"
)

// Monitor drives the liveness state machine:
//
//	ALIVE -(tick)-> PENDING_PONG -(pong or any frame)-> ALIVE
//	PENDING_PONG -(still pending at next tick)-> TERMINATED
//
// One fixed interval drives both transitions: a connection that answers
// nothing across two consecutive ticks is force-closed and fully cleaned
// up through the terminate callback.
type Monitor struct {
	registry *Registry
	interval time.Duration
	clock    Clock

	// onTerminate runs the full disconnect cleanup for an evicted conn.
	onTerminate func(c *Conn, reason string)

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewMonitor(registry *Registry, interval time.Duration, clock Clock, onTerminate func(c *Conn, reason string)) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{
		registry:    registry,
		interval:    interval,
		clock:       clock,
		onTerminate: onTerminate,
		stopCh:      make(chan struct{}),
	}
}

// Run ticks until Stop. Call in its own goroutine.
func (m *Monitor) Run() {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Sweep runs one tick: terminate connections still waiting on a pong
// from the previous tick, then ping the rest. Exported so tests can
// drive ticks manually.
func (m *Monitor) Sweep() {
	conns := m.registry.Snapshot()
	for _, c := range conns {
		switch c.LivenessState() {
		case StatePendingPong:
			logger.Infof("liveness eviction conn=%s user=%s lastSeen=%s",
				c.ID, c.UserID, c.LastSeen().Format(time.RFC3339))
			c.Close(websocket.CloseGoingAway, "liveness timeout")
			if m.onTerminate != nil {
				m.onTerminate(c, "liveness timeout")
			}
		case StateAlive:
			if err := c.Ping(); err != nil {
				logger.Debugf("liveness ping failed conn=%s: %v", c.ID, err)
				// the broken socket surfaces in the read loop; next tick evicts
			}
			c.MarkPendingPong()
		}
	}
}
