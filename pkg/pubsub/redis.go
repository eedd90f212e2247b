package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events on Redis pub/sub channels.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a new Redis-based publisher.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

// Publish publishes an event to the specified channel.
func (r *RedisPublisher) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns decoded events published on channel until ctx is done.
// Messages that fail to decode are skipped.
func (r *RedisPublisher) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	sub := r.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	eventCh := make(chan *Event, 100)
	go func() {
		defer close(eventCh)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case eventCh <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return eventCh, nil
}

// Close closes the Redis client.
func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
