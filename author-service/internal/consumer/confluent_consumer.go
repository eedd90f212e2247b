package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-auction/pkg/log"
)

// ConfluentConsumer implements CDCEventConsumer using confluent-kafka-go.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  CDCEventHandler
	doneCh   chan struct{}
}

// NewConfluentConsumer creates a new Kafka consumer for CDC events.
func NewConfluentConsumer(brokers, topic, groupID string, handler CDCEventHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start subscribes to the topic and consumes on a background goroutine until ctx is done.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	go cc.consumeLoop(ctx)
	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka CDC consumer shutting down")
			return
		default:
		}

		msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			l.Error().Err(err).Msg("kafka CDC consumer error")
			continue
		}

		process(context.WithoutCancel(ctx), cc.handler, msg.Value)
	}
}

// Decode parses a Debezium message. Messages produced with schemas disabled
// carry the payload fields at the top level; both forms are accepted.
// Tombstones (empty values) decode to nil without error.
func Decode(value []byte) (*DebeziumMessage, error) {
	if len(value) == 0 {
		return nil, nil
	}

	var event DebeziumMessage
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, err
	}
	if event.Payload.Op != "" {
		return &event, nil
	}

	if err := json.Unmarshal(value, &event.Payload); err != nil {
		return nil, err
	}
	if event.Payload.Op == "" {
		return nil, errors.New("debezium message has no op")
	}
	return &event, nil
}

func process(ctx context.Context, handler CDCEventHandler, value []byte) {
	l := pkglog.L()

	event, err := Decode(value)
	if err != nil {
		l.Error().Err(err).Msg("failed to unmarshal debezium CDC event")
		return
	}
	if event == nil {
		return
	}

	l.Debug().
		Str("op", event.Payload.Op).
		Int64("ts_ms", event.Payload.TsMs).
		Msg("received CDC event")

	if err := handler.HandleCDCEvent(ctx, event); err != nil {
		l.Error().Err(err).Str("op", event.Payload.Op).Msg("failed to handle CDC event")
	}
}

// Close waits for the consume loop to exit, then closes the consumer.
// Cancel the context passed to Start first.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}

var _ CDCEventConsumer = (*ConfluentConsumer)(nil)
