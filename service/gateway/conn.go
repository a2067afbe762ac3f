package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"CollabProject/logger"
)

// Liveness states driven by the Monitor tick.
const (
	StateAlive int32 = iota
	StatePendingPong
	StateTerminated
)

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// Conn is one accepted socket. It is owned by the goroutine running its
// read loop; everything other goroutines touch (send queue, counters,
// liveness state, room id) is safe for concurrent use.
type Conn struct {
	ID          string
	UserID      string
	WorkspaceID string
	Tier        string

	ws   *websocket.Conn
	send chan []byte
	quit chan struct{}

	mu     sync.Mutex
	roomID string

	closed    atomic.Bool
	closeOnce sync.Once
	cleaned   atomic.Bool
	state     atomic.Int32
	lastSeen  atomic.Int64 // unix nano

	ConnectedAt time.Time
	msgCount    atomic.Int64
	bytesIn     atomic.Int64
	bytesOut    atomic.Int64

	writeTimeout time.Duration
}

func NewConn(id, userID, workspaceID, tier string, ws *websocket.Conn, queueSize int, writeTimeout time.Duration) *Conn {
	if queueSize <= 0 {
		queueSize = 256
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	c := &Conn{
		ID:           id,
		UserID:       userID,
		WorkspaceID:  workspaceID,
		Tier:         tier,
		ws:           ws,
		send:         make(chan []byte, queueSize),
		quit:         make(chan struct{}),
		ConnectedAt:  time.Now(),
		writeTimeout: writeTimeout,
	}
	c.state.Store(StateAlive)
	c.lastSeen.Store(time.Now().UnixNano())
	return c
}

func (c *Conn) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Conn) SetRoomID(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// Send enqueues one outbound frame. It never blocks: a full queue means
// the client cannot keep up and the caller decides whether to prune.
func (c *Conn) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		c.bytesOut.Add(int64(len(payload)))
		return nil
	default:
		return ErrSendQueueFull
	}
}

// SendFrame builds and enqueues an outbound frame of the given type.
func (c *Conn) SendFrame(typ string, fields map[string]any) error {
	return c.Send(Outbound(typ, fields))
}

// Ping writes a ping control frame. Safe concurrently with the write pump.
func (c *Conn) Ping() error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close sends a close frame with the given code once, then tears the
// socket down. Subsequent calls are no-ops.
func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.state.Store(StateTerminated)
		deadline := time.Now().Add(c.writeTimeout)
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			logger.Debugf("write close conn=%s: %v", c.ID, err)
		}
		close(c.quit)
		_ = c.ws.Close()
	})
}

// writePump drains the send queue onto the socket. It exits when Close
// fires or a write fails; the read loop notices via the broken socket.
func (c *Conn) writePump() {
	for {
		select {
		case <-c.quit:
			return
		case payload := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				logger.Debugf("set write deadline conn=%s: %v", c.ID, err)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("write conn=%s: %v", c.ID, err)
				return
			}
		}
	}
}

// MarkActive resets liveness on any inbound frame or pong.
func (c *Conn) MarkActive(now time.Time) {
	if c.state.Load() != StateTerminated {
		c.state.Store(StateAlive)
	}
	c.lastSeen.Store(now.UnixNano())
}

func (c *Conn) LivenessState() int32 {
	return c.state.Load()
}

// MarkPendingPong transitions ALIVE to PENDING_PONG for one tick cycle.
func (c *Conn) MarkPendingPong() bool {
	return c.state.CompareAndSwap(StateAlive, StatePendingPong)
}

func (c *Conn) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// beginCleanup claims the teardown sequence. The read-loop exit path and
// the liveness/shutdown paths can race here; exactly one wins.
func (c *Conn) beginCleanup() bool {
	return c.cleaned.CompareAndSwap(false, true)
}

// CountInbound records size and count for one inbound frame.
func (c *Conn) CountInbound(n int) {
	c.msgCount.Add(1)
	c.bytesIn.Add(int64(n))
}

// Stats returns message count, bytes in, bytes out.
func (c *Conn) Stats() (msgs, in, out int64) {
	return c.msgCount.Load(), c.bytesIn.Load(), c.bytesOut.Load()
}
