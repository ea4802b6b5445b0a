package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
)

// TopicProcessCast is the topic the worker pool consumes.
const TopicProcessCast = "process-cast"

// Producer enqueues processing jobs for validated cast events. It is a
// thin adapter over the queue; the only business rule is dropping
// obviously-empty casts before they cost a job.
type Producer struct {
	queue queue.Queue
}

// New creates a Producer.
func New(q queue.Queue) *Producer {
	return &Producer{queue: q}
}

// EnqueueCast pushes a cast.created event onto the processing topic.
// Events with no cast text are filtered out; enqueueing is
// fire-and-forget relative to the consumer.
func (p *Producer) EnqueueCast(ctx context.Context, cast *domain.Cast) (bool, error) {
	l := pkglog.Ctx(ctx)

	if cast == nil || cast.Text == "" {
		l.Debug().Msg("skipping empty cast")
		return false, nil
	}

	event := domain.CastEvent{
		Type:       domain.EventTypeCastCreated,
		Cast:       cast,
		ReceivedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(&event)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cast event: %w", err)
	}

	id, err := p.queue.Push(ctx, TopicProcessCast, payload)
	if err != nil {
		return false, err
	}

	l.Info().
		Str(pkglog.FieldCastHash, cast.Hash).
		Str(pkglog.FieldJobID, id).
		Msg("queued cast for processing")
	return true, nil
}
