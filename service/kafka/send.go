package kafka

import (
	"github.com/Shopify/sarama"

	"CollabProject/tools/errs"
)

// SendEvent publishes one domain event. The key selects the partition,
// so events keyed by room keep their per-room order.
func SendEvent(key string, value []byte) error {
	if Producer == nil {
		return errs.ErrDependencyDegraded.WrapMsg("kafka producer not started")
	}
	msg := &sarama.ProducerMessage{
		Topic: Cfg.Topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	_, _, err := Producer.SendMessage(msg)
	return err
}
