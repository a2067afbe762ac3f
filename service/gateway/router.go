package gateway

import (
	"CollabProject/logger"
	"CollabProject/tools/errs"
	"CollabProject/tools/safe"
)

// Handler processes one inbound frame type. A handler performs at most
// one externally visible side effect: emit a domain event, trigger a
// room broadcast, or both.
type Handler interface {
	Type() string
	Handle(ctx *Context, f *Frame, c *Conn) error
}

// Context hands the server's collaborators to handlers.
type Context struct {
	S *Server
}

// Router validates inbound frames and dispatches them to typed handlers.
// Size and rate gates run at the edge before frames reach the router.
type Router struct {
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

func (r *Router) Register(h Handler) {
	r.handlers[h.Type()] = h
}

func (r *Router) GetHandler(typ string) (Handler, bool) {
	h, ok := r.handlers[typ]
	return h, ok
}

// Handle parses, validates, and dispatches one frame. Every failure is
// answered with an error frame and the connection stays open; a panic in
// a handler is caught here so one bad frame cannot kill the connection.
func (r *Router) Handle(ctx *Context, raw []byte, c *Conn) {
	frame, err := ParseFrame(raw)
	if err != nil {
		c.sendError(err)
		return
	}

	h, ok := r.GetHandler(frame.Type)
	if !ok {
		c.sendError(errs.ErrUnknownFrameType.WithDetail(frame.Type))
		return
	}

	if ContainsOperatorInjection(frame.Fields) {
		logger.Warnf("operator injection blocked conn=%s user=%s type=%s", c.ID, c.UserID, frame.Type)
		c.sendError(errs.ErrDisallowedContent.Wrap())
		return
	}

	defer safe.Recover(func(perr error) {
		logger.Errorf("frame handler panic conn=%s type=%s: %v", c.ID, frame.Type, perr)
		c.sendError(errs.ErrInternal.Wrap())
	})

	if err := h.Handle(ctx, frame, c); err != nil {
		c.sendError(err)
	}
}

// sendError pushes an error frame, tolerating a dead connection.
func (c *Conn) sendError(err error) {
	if serr := c.Send(ErrorFrame(err)); serr != nil {
		logger.Debugf("send error frame conn=%s: %v", c.ID, serr)
	}
}
