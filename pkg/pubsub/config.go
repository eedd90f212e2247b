package pubsub

import (
	"fmt"
	"time"
)

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	Partitions int    `mapstructure:"partitions"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Config holds the configuration for the event bus.
type Config struct {
	Driver string      `mapstructure:"driver"` // "redis", "kafka", "none"
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// NewPublisher creates a Publisher based on the configuration.
func NewPublisher(cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka)
	case "redis":
		return NewRedisPublisher(cfg.Redis)
	case "none", "":
		return Nop(), nil
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.Driver)
	}
}
