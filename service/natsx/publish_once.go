package natsx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

func genMsgID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// PublishOnce publishes with a Nats-Msg-Id header so consumers can
// deduplicate. Empty msgID gets a random one.
func (p *NatsxProducer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	if hdr == nil {
		hdr = map[string]string{}
	}
	if msgID == "" {
		msgID = genMsgID()
	}
	hdr["Nats-Msg-Id"] = msgID
	return p.Publish(ctx, biz, data, hdr)
}
