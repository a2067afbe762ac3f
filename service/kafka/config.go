package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

// EventsConfig configures the domain-event producer.
type EventsConfig struct {
	Brokers           []string
	Topic             string
	Compression       string // none/snappy/lz4/zstd
	Retries           int
	KafkaVersion      sarama.KafkaVersion
	EnsureTopic       bool
	Partitions        int32
	ReplicationFactor int16
}

var Cfg = EventsConfig{
	Brokers:           []string{"127.0.0.1:9092"},
	Topic:             "collab.events",
	Compression:       "snappy",
	Retries:           5,
	KafkaVersion:      sarama.V2_1_0_0,
	EnsureTopic:       true,
	Partitions:        8, // single-node demo; production uses far more
	ReplicationFactor: 1,
}

func BuildBaseConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = Cfg.KafkaVersion

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if Cfg.Retries <= 0 {
		Cfg.Retries = 1
	}
	cfg.Producer.Retry.Max = Cfg.Retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // key keeps one room's events ordered
	switch strings.ToLower(Cfg.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}
