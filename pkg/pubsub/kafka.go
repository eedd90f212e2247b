package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-auction/pkg/log"
)

// channelToTopic converts a Redis-style channel to a Kafka topic name.
//
//	"author:follow:events" → "author-follow-events"
func channelToTopic(channel string) (string, error) {
	if channel == "" || strings.ContainsAny(channel, " *") {
		return "", fmt.Errorf("invalid channel: %q", channel)
	}
	return strings.ReplaceAll(channel, ":", "-"), nil
}

// KafkaPublisher publishes events to Kafka topics, keyed by Event.Key.
type KafkaPublisher struct {
	producer *kafka.Producer
	config   KafkaConfig
	doneCh   chan struct{}
}

// NewKafkaPublisher creates a new Kafka-based publisher.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		config:   cfg,
		doneCh:   make(chan struct{}),
	}
	go kp.deliveryReportHandler()

	return kp, nil
}

// EnsureTopic creates the topic for channel if it does not exist.
func (k *KafkaPublisher) EnsureTopic(ctx context.Context, channel string) error {
	topic, err := channelToTopic(channel)
	if err != nil {
		return err
	}

	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", r.Topic, r.Error)
		}
	}
	return nil
}

// deliveryReportHandler logs failed deliveries reported by the producer.
func (k *KafkaPublisher) deliveryReportHandler() {
	defer close(k.doneCh)
	l := pkglog.L()

	for e := range k.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l.Warn().Err(m.TopicPartition.Error).Msg("kafka publish delivery failed")
		}
	}
}

// Publish enqueues the event on the topic derived from channel.
func (k *KafkaPublisher) Publish(_ context.Context, channel string, event *Event) error {
	topic, err := channelToTopic(channel)
	if err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.Key),
		Value: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the producer.
func (k *KafkaPublisher) Close() error {
	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh
	return nil
}
