package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"CollabProject/global"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testGatewayConfig() global.GatewayConfig {
	return global.GatewayConfig{
		ID:                 "gw-test-1",
		MaxFrameBytes:      1024,
		SendQueueSize:      16,
		PingInterval:       30 * time.Second,
		WriteTimeout:       time.Second,
		SessionTTL:         time.Hour,
		MessageWindow:      time.Minute,
		MessageLimit:       100,
		ConnAdmissionWin:   time.Minute,
		ConnAdmissionLimit: 100,
		TierLimits:         map[string]int{"free": 1, "pro": 5},
		DedupeCooldown:     2 * time.Second,
		DependencyTimeout:  200 * time.Millisecond,
	}
}

// wsPair opens a live websocket through httptest and hands back both ends.
func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, ""), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never accepted")
	}
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return server, client
}

func wsURL(httpURL, rest string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + rest
}

// testConn builds a registered-style Conn over a real socket pair with the
// write pump running, so Send reaches the client end.
func testConn(t *testing.T, id, userID string) (*Conn, *websocket.Conn) {
	t.Helper()
	server, client := wsPair(t)
	c := NewConn(id, userID, "ws-main", "free", server, 16, time.Second)
	go c.writePump()
	t.Cleanup(func() { c.Close(websocket.CloseNormalClosure, "") })
	return c, client
}

// queueConn builds a Conn whose socket is never pumped, for tests that only
// inspect the send queue.
func queueConn(id, userID string, queue int) *Conn {
	return NewConn(id, userID, "ws-main", "free", nil, queue, time.Second)
}

func readFrame(t *testing.T, ws *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

// expectSilence asserts nothing arrives on ws within the wait.
func expectSilence(t *testing.T, ws *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(wait)))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	netErr, ok := err.(interface{ Timeout() bool })
	require.True(t, ok && netErr.Timeout(), "expected read timeout, got %v", err)
}

func expectClose(t *testing.T, ws *websocket.Conn, code int, timeout time.Duration) {
	t.Helper()
	// swallow pings so the auto-pong never races the dying socket
	ws.SetPingHandler(func(string) error { return nil })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(timeout)))
	for {
		_, _, err := ws.ReadMessage()
		if err == nil {
			continue // drain pending frames until the close arrives
		}
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, code, ce.Code)
		return
	}
}

// fakeClock is a settable Clock for window and liveness tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// captureBus records published envelopes and lets tests inject relays.
type captureBus struct {
	mu        sync.Mutex
	published []*Envelope
	handler   func(*Envelope)
}

func (b *captureBus) PublishBroadcast(_ context.Context, env *Envelope) error {
	b.mu.Lock()
	b.published = append(b.published, env)
	b.mu.Unlock()
	return nil
}

func (b *captureBus) SubscribeBroadcasts(h func(env *Envelope)) error {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
	return nil
}

func (b *captureBus) Published() []*Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Envelope, len(b.published))
	copy(out, b.published)
	return out
}

func (b *captureBus) Relay(env *Envelope) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(env)
	}
}

// startTestGateway boots a Server behind a live httptest endpoint and
// returns the base URL for dialing.
func startTestGateway(t *testing.T, cfg global.GatewayConfig, verifier IdentityVerifier, em Emitter, bus Bus) (*Server, string) {
	t.Helper()
	if em == nil {
		em = NopEmitter{}
	}
	gw, err := NewServer(cfg, Deps{Verifier: verifier, Emitter: em, Bus: bus})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", gw.HandleWS)
	r.GET("/healthz", gw.HandleHealthz)
	r.GET("/stats", gw.HandleStats)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		gw.Close(ctx)
	})
	return gw, srv.URL
}

func dialGateway(t *testing.T, baseURL, token, roomID, workspaceID string) *websocket.Conn {
	t.Helper()
	u := wsURL(baseURL, "/ws?token="+token+"&room_id="+roomID+"&workspace_id="+workspaceID)
	ws, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func staticUsers(pairs ...string) *StaticVerifier {
	v := &StaticVerifier{Tokens: map[string]*Claims{}, Revoked: map[string]bool{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Tokens[pairs[i]] = &Claims{UserID: pairs[i+1], Tier: "free", ExpiresAt: time.Now().Add(time.Hour)}
	}
	return v
}
