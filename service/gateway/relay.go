package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	xcontext "golang.org/x/net/context"

	"CollabProject/service/natsx"
	"CollabProject/tools/errs"
)

// Envelope is the cross-gateway broadcast wire format. OriginGatewayID is
// an explicit field so loop prevention never depends on transport context.
type Envelope struct {
	RoomID              string          `json:"roomId"`
	Message             json.RawMessage `json:"message"`
	ExcludeConnectionID string          `json:"excludeConnectionId,omitempty"`
	OriginGatewayID     string          `json:"originGatewayId"`
}

const relayBiz = "room-broadcast"

// NatsBus relays room broadcasts over a single core NATS subject. Every
// gateway subscribes without a queue group so each process sees every
// envelope; delivery is at-most-once and a dropped relay loses only that
// broadcast for remote members.
type NatsBus struct {
	subject string
}

// NewNatsBus registers the relay route. Call before natsx.StartNats so
// the pending-route cache applies it at start.
func NewNatsBus(subject string) (*NatsBus, error) {
	if subject == "" {
		subject = "collab.room.broadcast"
	}
	b := &NatsBus{subject: subject}
	err := natsx.RegisterRoute(natsx.NatsxRoute{
		Biz:     relayBiz,
		Subject: subject,
		Mode:    natsx.Core,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// PublishBroadcast relays one envelope, tagged with a message id so
// consumers can drop duplicates.
func (b *NatsBus) PublishBroadcast(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errs.WrapMsg(err, "marshal envelope")
	}
	return natsx.PublishOnce(ctx, relayBiz, data, map[string]string{
		"Origin-Gateway": env.OriginGatewayID,
	}, uuid.NewString())
}

// SubscribeBroadcasts wires the handler for relayed envelopes. Malformed
// envelopes are dropped; the handler must do its own origin filtering.
func (b *NatsBus) SubscribeBroadcasts(h func(env *Envelope)) error {
	return natsx.RegisterHandler(relayBiz, func(ctx xcontext.Context, msg natsx.NatsxMessage) error {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return errs.WrapMsg(err, "unmarshal envelope")
		}
		h(&env)
		return nil
	})
}

// NopBus drops relays. Single-process deployments and tests run with it.
type NopBus struct{}

func (NopBus) PublishBroadcast(context.Context, *Envelope) error { return nil }

func (NopBus) SubscribeBroadcasts(func(env *Envelope)) error { return nil }
