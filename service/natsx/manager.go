package natsx

import (
	"context"
	"fmt"
	"time"
)

// NatsManager is the single facade the rest of the code talks to.
type NatsManager struct {
	client   *NatsxClient
	producer *NatsxProducer
	consumer *NatsxConsumer
}

func NewNatsManager(cfg NatsxConfig, middlewares ...NatsxMiddleware) (*NatsManager, error) {
	c, err := NewNatsxClient(cfg)
	if err != nil {
		return nil, err
	}
	m := &NatsManager{
		client:   c,
		producer: NewNatsxProducer(c),
		consumer: NewNatsxConsumer(c, middlewares...),
	}
	return m, nil
}

// Close drains subscriptions and the connection.
func (m *NatsManager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *NatsManager) RegisterRoute(r NatsxRoute) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.client.RegisterRoute(r)
}

func (m *NatsManager) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	if m == nil || m.producer == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.producer.Publish(ctx, biz, data, hdr)
}

// PublishOnce publishes with a Nats-Msg-Id for consumer-side dedupe.
func (m *NatsManager) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	if m == nil || m.producer == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.producer.PublishOnce(ctx, biz, data, hdr, msgID)
}

// Subscribe consumes a Core/JS-push route; an empty Queue means every
// subscriber (every gateway process) receives each message.
func (m *NatsManager) Subscribe(biz string, h NatsxHandler) error {
	if m == nil || m.consumer == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.consumer.Subscribe(biz, h)
}

// PullConsume batch-consumes a JetStream pull route.
func (m *NatsManager) PullConsume(ctx context.Context, biz string, batch int, wait time.Duration, h NatsxHandler) error {
	if m == nil || m.consumer == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.consumer.PullConsume(ctx, biz, batch, wait, h)
}
