package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
)

const (
	streamKeyPrefix = "queue:"
	dataField       = "data"

	// Backoff after a transient read error; the loop is designed to run
	// until process shutdown, never to die on a flaky read.
	readErrorBackoff = time.Second
)

// RedisQueue implements Queue on Redis Streams with consumer groups.
// Each entry is a stream record with a single "data" field holding the
// JSON-serialized payload.
type RedisQueue struct {
	client   *redis.Client
	group    string
	consumer string
	cfg      RedisConfig
	closed   atomic.Bool
}

// NewRedisQueue creates a Redis Streams queue and verifies connectivity.
func NewRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	group := cfg.Group
	if group == "" {
		group = "replyguy-workers"
	}

	return &RedisQueue{
		client:   client,
		group:    group,
		consumer: "worker-" + uuid.New().String()[:8],
		cfg:      cfg,
	}, nil
}

// NewRedisQueueWithClient wraps an existing client. Used by tests.
func NewRedisQueueWithClient(client *redis.Client, cfg RedisConfig) *RedisQueue {
	group := cfg.Group
	if group == "" {
		group = "replyguy-workers"
	}
	return &RedisQueue{
		client:   client,
		group:    group,
		consumer: "worker-" + uuid.New().String()[:8],
		cfg:      cfg,
	}
}

func streamKey(topic string) string {
	return streamKeyPrefix + topic
}

// Push appends an immutable entry to the topic's stream and returns the
// generated entry id. It never blocks on consumers.
func (q *RedisQueue) Push(ctx context.Context, topic string, payload []byte) (string, error) {
	if q.closed.Load() {
		return "", ErrClosed
	}

	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		Values: map[string]interface{}{dataField: string(payload)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to push to queue %s: %w", topic, err)
	}

	l := pkglog.Ctx(ctx)
	l.Debug().Str(pkglog.FieldTopic, topic).Str(pkglog.FieldJobID, id).Msg("pushed message to queue")
	return id, nil
}

// ensureGroup creates the consumer group at the tail of the stream.
// Entries produced before group creation are not replayed. A group that
// already exists is reused idempotently.
func (q *RedisQueue) ensureGroup(ctx context.Context, key string) error {
	err := q.client.XGroupCreateMkStream(ctx, key, q.group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("failed to create consumer group %s: %w", q.group, err)
	}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldGroup, q.group).Str("stream", key).Msg("created consumer group")
	return nil
}

// Consume binds this process as a named consumer in the shared group and
// processes entries until ctx is cancelled. The loop runs through four
// states per iteration: idle (cancellation check), polling (blocking
// read with bounded timeout), handling (handler invocation), and acking.
// Handler errors leave the entry pending and the loop alive.
func (q *RedisQueue) Consume(ctx context.Context, topic string, h Handler) error {
	if q.closed.Load() {
		return ErrClosed
	}

	key := streamKey(topic)
	if err := q.ensureGroup(ctx, key); err != nil {
		return err
	}

	l := pkglog.L().With().
		Str(pkglog.FieldTopic, topic).
		Str(pkglog.FieldGroup, q.group).
		Str(pkglog.FieldConsumer, q.consumer).
		Logger()

	if q.cfg.ClaimMinIdle > 0 {
		q.claimStale(ctx, key, topic, h, l)
	}

	l.Info().Msg("started consuming from queue")

	readBlock := q.cfg.ReadBlock
	if readBlock <= 0 {
		readBlock = 2 * time.Second
	}
	readCount := q.cfg.ReadCount
	if readCount <= 0 {
		readCount = 1
	}

	for {
		// Idle: observe shutdown between polls.
		select {
		case <-ctx.Done():
			l.Info().Msg("consume loop stopping")
			return ctx.Err()
		default:
		}

		// Polling: blocking read with bounded timeout so cancellation
		// is observed even on an empty stream.
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{key, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Timeout with no entries is not an error.
				continue
			}
			if ctx.Err() != nil {
				l.Info().Msg("consume loop stopping")
				return ctx.Err()
			}
			l.Error().Err(err).Msg("error reading from stream")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				q.handleEntry(ctx, key, topic, entry, h, l)
			}
		}
	}
}

// handleEntry runs the handler for one delivered entry and acknowledges
// it on success. Malformed entries and handler failures are logged and
// left pending.
func (q *RedisQueue) handleEntry(ctx context.Context, key, topic string, entry redis.XMessage, h Handler, l zerolog.Logger) {
	raw, ok := entry.Values[dataField]
	if !ok {
		l.Error().Str(pkglog.FieldJobID, entry.ID).Msg("entry missing data field, skipping")
		return
	}
	data, ok := raw.(string)
	if !ok {
		l.Error().Str(pkglog.FieldJobID, entry.ID).Msg("entry data field is not a string, skipping")
		return
	}

	msg := Message{ID: entry.ID, Topic: topic, Data: []byte(data)}

	// Handling: a failure must not kill the worker; the entry stays
	// pending for redelivery.
	hctx := pkglog.WithLogger(ctx, l.With().Str(pkglog.FieldJobID, entry.ID).Logger())
	if err := h(hctx, msg); err != nil {
		l.Error().Err(err).Str(pkglog.FieldJobID, entry.ID).Msg("error processing message")
		return
	}

	// Acking: only explicit acknowledgment removes the entry from the
	// pending set.
	if err := q.client.XAck(ctx, key, q.group, entry.ID).Err(); err != nil {
		l.Error().Err(err).Str(pkglog.FieldJobID, entry.ID).Msg("failed to ack message")
	}
}

// claimStale transfers entries that have been pending longer than
// ClaimMinIdle from dead consumers to this one and processes them.
func (q *RedisQueue) claimStale(ctx context.Context, key, topic string, h Handler, l zerolog.Logger) {
	start := "0-0"
	for {
		entries, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   key,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  q.cfg.ClaimMinIdle,
			Start:    start,
			Count:    100,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				l.Warn().Err(err).Msg("failed to claim stale entries")
			}
			return
		}

		for _, entry := range entries {
			l.Info().Str(pkglog.FieldJobID, entry.ID).Msg("claimed stale entry")
			q.handleEntry(ctx, key, topic, entry, h, l)
		}

		if next == "0-0" || len(entries) == 0 {
			return
		}
		start = next
	}
}

// Close releases the underlying connection. In-flight Consume loops exit
// on their next poll.
func (q *RedisQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}

	l := pkglog.L()
	l.Info().Msg("redis queue connection closing")
	return q.client.Close()
}

// Ensure interface is satisfied at compile time.
var _ Queue = (*RedisQueue)(nil)
