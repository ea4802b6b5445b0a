package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
)

// KafkaQueue implements Queue on Kafka. Acknowledgment maps onto the
// consumer's auto-commit, so a handler failure only holds the entry back
// until the next commit interval; the Redis driver gives stricter
// per-entry ack semantics and is the default.
type KafkaQueue struct {
	cfg      KafkaConfig
	producer *kafka.Producer
	doneCh   chan struct{}
	closed   atomic.Bool
}

// NewKafkaQueue creates a Kafka-backed queue. The producer is created
// eagerly; consumers are created per Consume call.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	q := &KafkaQueue{
		cfg:      cfg,
		producer: p,
		doneCh:   make(chan struct{}),
	}

	go q.deliveryReportHandler()

	return q, nil
}

func (q *KafkaQueue) deliveryReportHandler() {
	l := pkglog.L()
	for e := range q.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Error().Err(ev.TopicPartition.Error).Msg("kafka delivery failed")
			}
		}
	}
	close(q.doneCh)
}

// Push produces the payload to the topic and waits for the delivery
// report so callers get a stable entry id (partition/offset).
func (q *KafkaQueue) Push(ctx context.Context, topic string, payload []byte) (string, error) {
	if q.closed.Load() {
		return "", ErrClosed
	}

	deliveryCh := make(chan kafka.Event, 1)
	err := q.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value: payload,
	}, deliveryCh)
	if err != nil {
		return "", fmt.Errorf("failed to push to queue %s: %w", topic, err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case e := <-deliveryCh:
		m, ok := e.(*kafka.Message)
		if !ok {
			return "", fmt.Errorf("unexpected kafka delivery event: %v", e)
		}
		if m.TopicPartition.Error != nil {
			return "", fmt.Errorf("failed to push to queue %s: %w", topic, m.TopicPartition.Error)
		}
		return fmt.Sprintf("%d-%d", m.TopicPartition.Partition, m.TopicPartition.Offset), nil
	}
}

// Consume subscribes a group consumer to the topic and polls until ctx
// is cancelled. Handler errors are logged and the loop continues.
func (q *KafkaQueue) Consume(ctx context.Context, topic string, h Handler) error {
	if q.closed.Load() {
		return ErrClosed
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       q.cfg.Brokers,
		"group.id":                q.cfg.GroupID,
		"auto.offset.reset":       q.cfg.AutoOffsetReset,
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	defer c.Close()

	if err := c.Subscribe(topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	l := pkglog.L().With().
		Str(pkglog.FieldTopic, topic).
		Str(pkglog.FieldGroup, q.cfg.GroupID).
		Logger()
	l.Info().Msg("kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka consumer stopping")
			return ctx.Err()
		default:
		}

		ev := c.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			id := fmt.Sprintf("%d-%d", e.TopicPartition.Partition, e.TopicPartition.Offset)
			msg := Message{ID: id, Topic: topic, Data: e.Value}
			hctx := pkglog.WithLogger(ctx, l.With().Str(pkglog.FieldJobID, id).Logger())
			if err := h(hctx, msg); err != nil {
				l.Error().Err(err).Str(pkglog.FieldJobID, id).Msg("error processing message")
			}
		case kafka.Error:
			l.Error().Err(e).Bool("fatal", e.IsFatal()).Msg("kafka error")
			if e.IsFatal() {
				return fmt.Errorf("fatal kafka error: %w", e)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readErrorBackoff):
			}
		case kafka.OffsetsCommitted:
			// Normal auto-commit acknowledgement
		default:
			// Ignore other events (rebalance, etc.)
		}
	}
}

// Close flushes pending produce requests and releases the producer.
func (q *KafkaQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}

	q.producer.Flush(5000)
	q.producer.Close()
	<-q.doneCh
	return nil
}

// Ensure interface is satisfied at compile time.
var _ Queue = (*KafkaQueue)(nil)
