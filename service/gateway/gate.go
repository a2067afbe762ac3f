package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"CollabProject/logger"
	midsec "CollabProject/middleware/security"
	"CollabProject/service/mgo"
	"CollabProject/tools/errs"
	"CollabProject/tools/ids"
	"CollabProject/tools/safe"
)

// HandleWS upgrades the request and runs the admission pipeline. Failures
// after the upgrade are reported to the client as close codes, so tooling
// on the other side can tell a bad token from a full quota.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warnf("websocket upgrade failed from=%s: %v", c.ClientIP(), err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("gateway handler panic: %+v", errs.ErrPanic(r))
			s.reject(ws, CloseInternalError, errs.ErrInternal)
		}
	}()

	token := midsec.FromGinContext(c)
	roomID := c.Query("room_id")
	workspaceID := c.Query("workspace_id")

	verifyCtx, cancel := s.depCtx()
	claims, err := s.Verifier.Verify(verifyCtx, token)
	cancel()
	if err != nil {
		s.reject(ws, CloseUnauthorized, err)
		return
	}

	revokedCtx, cancel := s.depCtx()
	revoked, st := s.Verifier.IsRevoked(revokedCtx, token)
	cancel()
	if st.Degraded {
		// Deny-list unavailable: admit rather than lock everyone out.
		logger.Warnf("revocation check degraded user=%s: %v", claims.UserID, st.Err)
	}
	if revoked {
		s.reject(ws, CloseUnauthorized, errs.ErrTokenRevoked)
		return
	}

	limit := s.tierLimit(claims.Tier)
	quotaCtx, cancel := s.depCtx()
	known, _ := s.Registry.CountByUser(quotaCtx, claims.UserID)
	cancel()
	if limit > 0 && known >= limit {
		s.reject(ws, CloseTooManyRequests, errs.ErrTooManyConnections)
		return
	}

	admCtx, cancel := s.depCtx()
	dec := s.AdmLimiter.Allow(admCtx, claims.UserID)
	cancel()
	if !dec.Allowed {
		s.reject(ws, CloseTooManyRequests, errs.ErrAdmissionLimited)
		return
	}

	if !ValidID(roomID) || !ValidID(workspaceID) {
		s.reject(ws, CloseBadRequest, errs.ErrBadRequest.WrapMsg("room_id and workspace_id are required"))
		return
	}

	conn := NewConn(ids.GenerateString(), claims.UserID, workspaceID, claims.Tier, ws,
		s.cfg.SendQueueSize, s.cfg.WriteTimeout)

	// TryRegister re-checks the cap under the registry lock; the precheck
	// above keeps the common rejection off the lock, this one closes the
	// race between two simultaneous upgrades for the same user.
	regCtx, cancel := s.depCtx()
	ok, _ := s.Registry.TryRegister(regCtx, conn, limit)
	cancel()
	if !ok {
		s.reject(ws, CloseTooManyRequests, errs.ErrTooManyConnections)
		return
	}

	joinCtx, cancel := s.depCtx()
	s.Rooms.Join(joinCtx, roomID, conn)
	cancel()

	s.Emitter.Emit(NewEvent(EventClientConnected, conn, s.GatewayID(), map[string]any{
		"roomId":      roomID,
		"workspaceId": workspaceID,
		"remoteAddr":  c.ClientIP(),
	}))
	s.audit(mgo.SessionEventConnected, conn, roomID, "", 0)

	safe.SafeGo(conn.writePump)
	_ = conn.SendFrame(TypeConnectionEstablished, map[string]any{
		"connectionId": conn.ID,
		"gatewayId":    s.GatewayID(),
		"roomId":       roomID,
	})

	logger.Infof("connected conn=%s user=%s room=%s tier=%s", conn.ID, conn.UserID, roomID, conn.Tier)
	s.readLoop(conn)
}

// readLoop owns the socket read side. Size and rate gates run before the
// router sees a frame; gate violations answer in-band and keep the
// connection open. Returning triggers the full cleanup sequence.
func (s *Server) readLoop(conn *Conn) {
	defer s.cleanup(conn, "read loop exit")

	// Hard cap well above the in-band limit; a frame this large is not a
	// chatty client, it is someone probing the buffer.
	conn.ws.SetReadLimit(s.cfg.MaxFrameBytes * 4)
	conn.ws.SetPongHandler(func(string) error {
		conn.MarkActive(s.clock())
		return nil
	})

	for {
		mt, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !conn.Closed() {
				logger.Warnf("read failed conn=%s user=%s: %v", conn.ID, conn.UserID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		conn.MarkActive(s.clock())
		conn.CountInbound(len(raw))

		if int64(len(raw)) > s.cfg.MaxFrameBytes {
			conn.sendError(errs.ErrFrameOversize.WrapMsg("", "limit", s.cfg.MaxFrameBytes, "got", len(raw)))
			continue
		}

		rateCtx, cancel := s.depCtx()
		dec := s.MsgLimiter.Allow(rateCtx, conn.ID)
		cancel()
		if !dec.Allowed {
			_ = conn.SendFrame(TypeRateLimited, map[string]any{
				"retryAfterMs": dec.RetryAfter.Milliseconds(),
				"limit":        s.cfg.MessageLimit,
				"windowMs":     s.cfg.MessageWindow.Milliseconds(),
			})
			continue
		}

		s.Router.Handle(s.hctx, raw, conn)
	}
}

// cleanup runs the teardown sequence for one connection. Every step is
// taken even when an earlier one fails; the session must not survive in
// the shared cache because a room leave errored. Runs at most once per
// connection regardless of which exit path got here first.
func (s *Server) cleanup(conn *Conn, reason string) {
	if !conn.beginCleanup() {
		return
	}
	defer safe.Recover(func(err error) {
		logger.Errorf("cleanup panic conn=%s: %v", conn.ID, err)
	})

	roomID := conn.RoomID()

	ctx, cancel := s.depCtx()
	defer cancel()

	if roomID != "" {
		s.Rooms.Leave(ctx, roomID, conn.ID)
	}
	s.MsgLimiter.Forget(ctx, conn.ID)
	s.Registry.Unregister(ctx, conn.ID)
	conn.Close(websocket.CloseNormalClosure, "")

	duration := s.clock().Sub(conn.ConnectedAt)
	s.Emitter.Emit(Event{
		Type:         EventClientDisconnected,
		UserID:       conn.UserID,
		RoomID:       roomID,
		WorkspaceID:  conn.WorkspaceID,
		ConnectionID: conn.ID,
		GatewayID:    s.GatewayID(),
		At:           s.clock().UnixMilli(),
		Payload: map[string]any{
			"reason":     reason,
			"durationMs": duration.Milliseconds(),
		},
	})
	s.audit(mgo.SessionEventDisconnected, conn, roomID, reason, duration)

	logger.Infof("disconnected conn=%s user=%s room=%s reason=%q dur=%s",
		conn.ID, conn.UserID, roomID, reason, duration.Round(time.Millisecond))
}

// reject closes a freshly upgraded socket with a mapped close code. The
// connection never reached the registry, so there is nothing to clean up.
func (s *Server) reject(ws *websocket.Conn, code int, err error) {
	reason := "rejected"
	var codeErr *errs.CodeError
	if errors.As(err, &codeErr) {
		reason = codeErr.Msg
	}
	logger.Infof("upgrade rejected code=%d reason=%q", code, reason)
	deadline := time.Now().Add(3 * time.Second)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
}

// audit writes the session lifecycle record. The log sink is advisory;
// losing a row never touches the live connection path.
func (s *Server) audit(event string, conn *Conn, roomID, reason string, dur time.Duration) {
	msgs, in, out := conn.Stats()
	rec := &mgo.SessionLog{
		ConnID:      conn.ID,
		UserID:      conn.UserID,
		RoomID:      roomID,
		WorkspaceID: conn.WorkspaceID,
		GatewayID:   s.GatewayID(),
		Event:       event,
		Reason:      reason,
		At:          s.clock(),
		DurationMS:  dur.Milliseconds(),
		MsgCount:    msgs,
		BytesIn:     in,
		BytesOut:    out,
	}
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := mgo.InsertSessionLog(ctx, rec); err != nil {
			logger.Warnf("session audit write failed conn=%s event=%s: %v", conn.ID, event, err)
		}
	})
}
