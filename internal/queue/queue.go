package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is one delivered queue entry. Data holds the original payload
// bytes exactly as pushed; the queue never mutates it.
type Message struct {
	ID    string
	Topic string
	Data  []byte
}

// Handler processes one delivered message. A nil return acknowledges the
// entry; an error leaves it pending for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Queue is an at-least-once, multi-consumer work distribution primitive
// over named topics. Consume blocks until the context is cancelled; a
// single handler failure never terminates the loop.
type Queue interface {
	Push(ctx context.Context, topic string, payload []byte) (string, error)
	Consume(ctx context.Context, topic string, h Handler) error
	Close() error
}

// ErrClosed is returned when operating on a closed queue.
var ErrClosed = errors.New("queue is closed")

// RedisConfig holds Redis Streams driver configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Group        string        `mapstructure:"group"`
	ReadBlock    time.Duration `mapstructure:"read_block"`
	ReadCount    int64         `mapstructure:"read_count"`
	ClaimMinIdle time.Duration `mapstructure:"claim_min_idle"`
}

// KafkaConfig holds Kafka driver configuration.
type KafkaConfig struct {
	Brokers         string `mapstructure:"brokers"`
	GroupID         string `mapstructure:"group_id"`
	AutoOffsetReset string `mapstructure:"auto_offset_reset"`
	Partitions      int    `mapstructure:"partitions"`
}

// Config selects and configures the queue driver.
type Config struct {
	Driver string      `mapstructure:"driver"` // "redis", "kafka"
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Driver: "redis",
		Redis: RedisConfig{
			Address:      "localhost:6379",
			Group:        "replyguy-workers",
			ReadBlock:    2 * time.Second,
			ReadCount:    1,
			ClaimMinIdle: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:         "localhost:9092",
			GroupID:         "replyguy-workers",
			AutoOffsetReset: "latest",
			Partitions:      1,
		},
	}
}

// New creates a Queue based on the configured driver.
func New(cfg Config) (Queue, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaQueue(cfg.Kafka)
	case "redis", "":
		return NewRedisQueue(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Driver)
	}
}
