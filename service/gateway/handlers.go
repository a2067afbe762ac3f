package gateway

import (
	"encoding/base64"

	"CollabProject/logger"
	"CollabProject/tools/decode"
	"CollabProject/tools/errs"
	"CollabProject/tools/safe"
)

// RegisterDefaultHandlers wires every known inbound frame type.
func RegisterDefaultHandlers(r *Router) {
	r.Register(userMessageHandler{})
	r.Register(planApprovalHandler{})
	r.Register(feedbackHandler{})
	r.Register(imageUploadHandler{})
	r.Register(switchRoomHandler{})
	r.Register(cursorPositionHandler{})
	r.Register(pingHandler{})
}

// ---- user_message ----

// maxContentBytes caps the content field, separately from the frame-level
// size gate: a frame can fit the read limit while its content is still
// too large for downstream consumers.
const maxContentBytes = 16 << 10

type UserMessagePayload struct {
	Content   string `json:"content"`
	MessageID string `json:"messageId"`
}

type userMessageHandler struct{}

func (userMessageHandler) Type() string { return TypeUserMessage }

func (userMessageHandler) Handle(ctx *Context, f *Frame, c *Conn) error {
	p, err := decode.Payload[UserMessagePayload](f.Fields)
	if err != nil {
		return errs.ErrFrameMalformed.WrapMsg("user_message", "err", err)
	}
	if p.Content == "" {
		return errs.ErrMissingField.WithDetail("content")
	}
	if len(p.Content) > maxContentBytes {
		return errs.ErrFrameOversize.WithDetail("content")
	}
	if !ctx.S.Dedupe.FirstSight(TypeUserMessage, c.UserID, c.RoomID()) {
		logger.Debugf("duplicate user_message suppressed user=%s room=%s", c.UserID, c.RoomID())
		return nil
	}

	ctx.S.Emitter.Emit(NewEvent(EventUserMessageReceived, c, ctx.S.GatewayID(), map[string]any{
		"content":   p.Content,
		"messageId": p.MessageID,
	}))

	out := Outbound(TypeUserMessage, map[string]any{
		"roomId":    c.RoomID(),
		"userId":    c.UserID,
		"content":   p.Content,
		"messageId": p.MessageID,
	})
	dctx, cancel := ctx.S.depCtx()
	defer cancel()
	ctx.S.Rooms.Broadcast(dctx, c.RoomID(), out, c.ID)
	return nil
}

// ---- plan_approval ----

type PlanApprovalPayload struct {
	PlanID   string `json:"planId"`
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

type planApprovalHandler struct{}

func (planApprovalHandler) Type() string { return TypePlanApproval }

func (planApprovalHandler) Handle(ctx *Context, f *Frame, c *Conn) error {
	p, err := decode.Payload[PlanApprovalPayload](f.Fields)
	if err != nil {
		return errs.ErrFrameMalformed.WrapMsg("plan_approval", "err", err)
	}
	if p.PlanID == "" {
		return errs.ErrMissingField.WithDetail("planId")
	}
	if !ValidID(p.PlanID) {
		return errs.ErrBadRequest.WithDetail("planId")
	}
	if _, ok := f.Fields["approved"]; !ok {
		return errs.ErrMissingField.WithDetail("approved")
	}
	if !ctx.S.Dedupe.FirstSight(TypePlanApproval, c.UserID, c.RoomID()) {
		logger.Debugf("duplicate plan_approval suppressed user=%s plan=%s", c.UserID, p.PlanID)
		return nil
	}

	ctx.S.Emitter.Emit(NewEvent(EventPlanApproved, c, ctx.S.GatewayID(), map[string]any{
		"planId":   p.PlanID,
		"approved": p.Approved,
		"comment":  p.Comment,
	}))

	out := Outbound(TypePlanDecision, map[string]any{
		"roomId":   c.RoomID(),
		"userId":   c.UserID,
		"planId":   p.PlanID,
		"approved": p.Approved,
	})
	dctx, cancel := ctx.S.depCtx()
	defer cancel()
	ctx.S.Rooms.Broadcast(dctx, c.RoomID(), out, c.ID)
	return nil
}

// ---- feedback ----

type FeedbackPayload struct {
	Content string `json:"content"`
	Target  string `json:"target"`
}

type feedbackHandler struct{}

func (feedbackHandler) Type() string { return TypeFeedback }

func (feedbackHandler) Handle(ctx *Context, f *Frame, c *Conn) error {
	p, err := decode.Payload[FeedbackPayload](f.Fields)
	if err != nil {
		return errs.ErrFrameMalformed.WrapMsg("feedback", "err", err)
	}
	if p.Content == "" {
		return errs.ErrMissingField.WithDetail("content")
	}
	if !ctx.S.Dedupe.FirstSight(TypeFeedback, c.UserID, c.RoomID()) {
		logger.Debugf("duplicate feedback suppressed user=%s room=%s", c.UserID, c.RoomID())
		return nil
	}

	ctx.S.Emitter.Emit(NewEvent(EventPlanFeedback, c, ctx.S.GatewayID(), map[string]any{
		"content": p.Content,
		"target":  p.Target,
	}))
	return nil
}

// ---- image_upload ----

type ImageUploadPayload struct {
	Data     string `json:"data"` // base64
	MimeType string `json:"mimeType"`
	Name     string `json:"name"`
}

type imageUploadHandler struct{}

func (imageUploadHandler) Type() string { return TypeImageUpload }

func (imageUploadHandler) Handle(ctx *Context, f *Frame, c *Conn) error {
	p, err := decode.Payload[ImageUploadPayload](f.Fields)
	if err != nil {
		return errs.ErrFrameMalformed.WrapMsg("image_upload", "err", err)
	}
	if p.Name == "" {
		return errs.ErrMissingField.WithDetail("name")
	}
	if p.Data == "" {
		return errs.ErrMissingField.WithDetail("data")
	}
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return errs.ErrFrameMalformed.WithDetail("data is not base64")
	}
	if !ctx.S.Dedupe.FirstSight(TypeImageUpload, c.UserID, c.RoomID()) {
		logger.Debugf("duplicate image_upload suppressed user=%s room=%s", c.UserID, c.RoomID())
		return nil
	}

	ctx.S.Emitter.Emit(NewEvent(EventImageUploadReceived, c, ctx.S.GatewayID(), map[string]any{
		"name":      p.Name,
		"mimeType":  p.MimeType,
		"sizeBytes": len(raw),
		"data":      p.Data,
	}))
	return nil
}

// ---- switch_room ----

type SwitchRoomPayload struct {
	RoomID string `json:"roomId"`
}

type switchRoomHandler struct{}

func (switchRoomHandler) Type() string { return TypeSwitchRoom }

func (switchRoomHandler) Handle(ctx *Context, f *Frame, c *Conn) error {
	p, err := decode.Payload[SwitchRoomPayload](f.Fields)
	if err != nil {
		return errs.ErrFrameMalformed.WrapMsg("switch_room", "err", err)
	}
	if p.RoomID == "" {
		return errs.ErrMissingField.WithDetail("roomId")
	}
	if !ValidID(p.RoomID) {
		return errs.ErrBadRequest.WithDetail("roomId")
	}

	dctx, cancel := ctx.S.depCtx()
	defer cancel()
	ctx.S.Rooms.Switch(dctx, c, p.RoomID)

	return c.SendFrame(TypeRoomSwitched, map[string]any{"roomId": p.RoomID})
}

// ---- cursor_position ----

type CursorPositionPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	File      string  `json:"file"`
	Selection string  `json:"selection"`
}

type cursorPositionHandler struct{}

func (cursorPositionHandler) Type() string { return TypeCursorPosition }

func (cursorPositionHandler) Handle(ctx *Context, f *Frame, c *Conn) error {
	if _, ok := f.Fields["x"]; !ok {
		return errs.ErrMissingField.WithDetail("x")
	}
	if _, ok := f.Fields["y"]; !ok {
		return errs.ErrMissingField.WithDetail("y")
	}
	p, err := decode.Payload[CursorPositionPayload](f.Fields)
	if err != nil {
		return errs.ErrFrameMalformed.WrapMsg("cursor_position", "err", err)
	}

	out := Outbound(TypeCursorUpdate, map[string]any{
		"roomId":    c.RoomID(),
		"userId":    c.UserID,
		"x":         p.X,
		"y":         p.Y,
		"file":      p.File,
		"selection": p.Selection,
	})
	dctx, cancel := ctx.S.depCtx()
	defer cancel()
	ctx.S.Rooms.Broadcast(dctx, c.RoomID(), out, c.ID)
	return nil
}

// ---- ping ----

type pingHandler struct{}

func (pingHandler) Type() string { return TypePing }

func (pingHandler) Handle(ctx *Context, f *Frame, c *Conn) error {
	// inbound liveness probe: refresh the shared mirror off the frame path
	s := ctx.S
	safe.SafeGo(func() {
		dctx, cancel := s.depCtx()
		defer cancel()
		if st := s.Sessions.Refresh(dctx, c.ID, c.UserID); st.Degraded {
			logger.Debugf("session refresh degraded conn=%s: %v", c.ID, st.Err)
		}
	})
	return c.SendFrame(TypePong, nil)
}
