package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"CollabProject/global"
	"CollabProject/logger"
	"CollabProject/middleware"
	"CollabProject/service/kafka"
	"CollabProject/service/mgo"
	"CollabProject/service/natsx"
	"CollabProject/service/storage"
	redisdb "CollabProject/service/storage/redis"
	"CollabProject/tools/safe"
)

// Deps carries the server's external collaborators. Verifier is the one
// required dependency; everything else defaults so tests can construct a
// Server from almost nothing.
type Deps struct {
	Sessions *storage.Sessions
	Rates    *storage.Rates
	Verifier IdentityVerifier
	Emitter  Emitter
	Bus      Bus
	Clock    Clock
}

// Server owns one gateway process: the connection registry, room state,
// limiters, liveness monitor and frame router, all sharing one config.
type Server struct {
	cfg   global.GatewayConfig
	clock Clock
	hctx  *Context

	Registry   *Registry
	Rooms      *Rooms
	Sessions   *storage.Sessions
	Router     *Router
	MsgLimiter *Limiter
	AdmLimiter *Limiter
	Monitor    *Monitor
	Dedupe     *DedupeGuard
	Verifier   IdentityVerifier
	Emitter    Emitter
	Bus        Bus

	upgrader websocket.Upgrader
	started  time.Time
}

func NewServer(cfg global.GatewayConfig, d Deps) (*Server, error) {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Sessions == nil {
		d.Sessions = storage.NewSessions(cfg.SessionTTL)
	}
	if d.Rates == nil {
		d.Rates = storage.NewRates()
	}
	if d.Emitter == nil {
		d.Emitter = NopEmitter{}
	}
	if d.Bus == nil {
		d.Bus = NopBus{}
	}

	s := &Server{
		cfg:      cfg,
		clock:    d.Clock,
		Sessions: d.Sessions,
		Verifier: d.Verifier,
		Emitter:  d.Emitter,
		Bus:      d.Bus,
		started:  d.Clock(),
	}
	s.hctx = &Context{S: s}

	s.Registry = NewRegistry(d.Sessions, cfg.ID)
	s.Rooms = NewRooms(d.Sessions, d.Bus, cfg.ID)
	s.MsgLimiter = NewLimiter("msg", cfg.MessageLimit, cfg.MessageWindow, d.Rates, d.Clock)
	s.AdmLimiter = NewLimiter("adm", cfg.ConnAdmissionLimit, cfg.ConnAdmissionWin, d.Rates, d.Clock)
	s.Dedupe = NewDedupeGuard(cfg.DedupeCooldown, d.Clock)
	s.Monitor = NewMonitor(s.Registry, cfg.PingInterval, d.Clock, func(c *Conn, reason string) {
		s.cleanup(c, reason)
	})

	s.Router = NewRouter()
	RegisterDefaultHandlers(s.Router)

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     middleware.CheckOrigin(cfg.AllowedOrigins),
	}

	if err := s.Bus.SubscribeBroadcasts(s.Rooms.HandleRelay); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) GatewayID() string {
	return s.Registry.GatewayID()
}

// depCtx bounds one call into a shared dependency. Dependencies answer
// inside the budget or the caller proceeds degraded.
func (s *Server) depCtx() (context.Context, context.CancelFunc) {
	timeout := s.cfg.DependencyTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// tierLimit maps a subscription tier to its simultaneous connection cap.
// Unknown tiers get the free cap rather than unlimited access.
func (s *Server) tierLimit(tier string) int {
	if n, ok := s.cfg.TierLimits[tier]; ok {
		return n
	}
	if n, ok := s.cfg.TierLimits["free"]; ok {
		return n
	}
	return 1
}

// Start launches the background loops. Route registration stays with the
// caller; the server only owns per-connection goroutines and the monitor.
func (s *Server) Start() {
	safe.SafeGo(s.Monitor.Run)
}

// Close drains the gateway: stop the monitor, then close every live
// connection with the shutdown code and run its cleanup so the shared
// cache empties before the process exits.
func (s *Server) Close(ctx context.Context) {
	s.Monitor.Stop()
	for _, c := range s.Registry.Snapshot() {
		c.Close(CloseShutdown, "server shutdown")
		s.cleanup(c, "server shutdown")
		select {
		case <-ctx.Done():
			logger.Warnf("shutdown deadline hit with %d connections left", s.Registry.Len())
			return
		default:
		}
	}
}

// HandleHealthz reports per-dependency health. The gateway serves while
// degraded, so this always answers 200 and lets the prober read the body.
func (s *Server) HandleHealthz(c *gin.Context) {
	_, mongoUp := mgo.TryGetDB()
	deps := gin.H{
		"redis": redisdb.Ready(),
		"kafka": kafka.Ready(),
		"mongo": mongoUp,
	}
	status := "ok"
	if !redisdb.Ready() {
		status = "degraded"
	}
	// A NopBus means the relay was never configured, not that it is down.
	if _, nop := s.Bus.(NopBus); !nop {
		_, natsErr := natsx.GetNatsManager()
		deps["nats"] = natsErr == nil
		if natsErr != nil {
			status = "degraded"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"gatewayId": s.GatewayID(),
		"deps":      deps,
	})
}

// HandleStats exposes process-local gauges for dashboards.
func (s *Server) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"gatewayId":   s.GatewayID(),
		"connections": s.Registry.Len(),
		"rooms":       s.Rooms.LocalLen(),
		"uptimeSec":   int64(s.clock().Sub(s.started).Seconds()),
	})
}
