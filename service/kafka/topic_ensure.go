package kafka

import (
	"errors"
	"fmt"

	"github.com/Shopify/sarama"

	"CollabProject/logger"
)

// EnsureEventsTopic creates the events topic when missing, using a
// dedicated admin connection so the shared client stays open.
func EnsureEventsTopic() error {
	admin, err := sarama.NewClusterAdmin(Cfg.Brokers, BuildBaseConfig())
	if err != nil {
		return err
	}
	defer admin.Close()
	return EnsureTopic(admin, Cfg.Topic, &Cfg)
}

// EnsureTopic will:
// 1) create the topic per cfg when it does not exist;
// 2) expand partitions when the broker has fewer than cfg wants
//    (Kafka only supports adding partitions, never removing).
func EnsureTopic(admin sarama.ClusterAdmin, topic string, cfg *EventsConfig) error {
	descs, err := admin.DescribeTopics([]string{topic})
	if err != nil {
		return fmt.Errorf("describe topic %s: %w", topic, err)
	}
	exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError

	minISR := "1"
	if cfg.ReplicationFactor >= 3 {
		minISR = "2"
	}

	if !exists {
		td := &sarama.TopicDetail{
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: cfg.ReplicationFactor,
			ConfigEntries: map[string]*string{
				"cleanup.policy":                 strPtr("delete"),
				"min.insync.replicas":            strPtr(minISR),
				"unclean.leader.election.enable": strPtr("false"),
				"compression.type":               strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(topic, td, false); err != nil {
			var te *sarama.TopicError
			if errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists {
				logger.Infof("[Topic] exists (race): %s", topic)
				return nil
			}
			if errors.Is(err, sarama.ErrTopicAlreadyExists) {
				logger.Infof("[Topic] exists (race): %s", topic)
				return nil
			}
			return fmt.Errorf("create topic %s: %w", topic, err)
		}
		logger.Infof("[Topic] created: %s (partitions=%d, rf=%d)", topic, cfg.Partitions, cfg.ReplicationFactor)
		return nil
	}

	curParts := int32(len(descs[0].Partitions))
	if cfg.Partitions > curParts {
		if err := admin.CreatePartitions(topic, cfg.Partitions, nil, false); err != nil {
			return fmt.Errorf("expand partitions %s from %d to %d: %w", topic, curParts, cfg.Partitions, err)
		}
		logger.Infof("[Topic] partitions expanded: %s (%d -> %d)", topic, curParts, cfg.Partitions)
		return nil
	}
	logger.Infof("[Topic] exists: %s (partitions=%d)", topic, curParts)
	return nil
}

func strPtr(s string) *string { return &s }
