package natsx

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"CollabProject/logger"
)

func (c *NatsxClient) ToHeader(h map[string]string) nats.Header {
	if len(h) == 0 {
		return nil
	}
	hd := nats.Header{}
	for k, v := range h {
		hd.Add(k, v)
	}
	return hd
}

func (c *NatsxClient) sendCore(subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if h := c.ToHeader(hdr); h != nil {
		msg.Header = h
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (c *NatsxClient) sendJS(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if h := c.ToHeader(hdr); h != nil {
		msg.Header = h
	}
	ack, err := c.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	logger.Debugf("[natsx] published stream=%s seq=%d", ack.Stream, ack.Sequence)
	return nil
}
