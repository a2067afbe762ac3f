package kafka

import (
	"github.com/Shopify/sarama"

	"CollabProject/logger"
)

var (
	Client   sarama.Client
	Producer sarama.SyncProducer
)

func InitKafkaClient() error {
	cfg := BuildBaseConfig()
	c, err := sarama.NewClient(Cfg.Brokers, cfg)
	if err != nil {
		return err
	}
	Client = c
	return nil
}

func InitSyncProducerFromClient() error {
	p, err := sarama.NewSyncProducerFromClient(Client)
	if err != nil {
		return err
	}
	Producer = p
	return nil
}

// Start wires the whole producer path: client, optional topic ensure,
// sync producer. Call once at boot; SendEvent reports degradation when
// Start never succeeded.
func Start(cfg EventsConfig) error {
	Cfg = cfg
	if err := InitKafkaClient(); err != nil {
		return err
	}
	if Cfg.EnsureTopic {
		if err := EnsureEventsTopic(); err != nil {
			// Non-fatal: brokers with auto.create.topics.enable still work.
			logger.Warnf("ensure topic %s failed: %v", Cfg.Topic, err)
		}
	}
	return InitSyncProducerFromClient()
}

func Ready() bool {
	return Producer != nil
}

func Close() error {
	var firstErr error
	if Producer != nil {
		if err := Producer.Close(); err != nil {
			firstErr = err
		}
		Producer = nil
	}
	if Client != nil {
		if err := Client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		Client = nil
	}
	return firstErr
}
