package worker

import (
	"context"
	"errors"

	"github.com/Hojaeaga/replyguy-monorepo/internal/producer"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
)

// Runner binds the pipeline to the queue. It consumes the process-cast
// topic exactly once per process and blocks until shutdown; horizontal
// scaling is more worker processes sharing the consumer group.
type Runner struct {
	queue   queue.Queue
	handler queue.Handler
}

// NewRunner creates a Runner for the given handler.
func NewRunner(q queue.Queue, h queue.Handler) *Runner {
	return &Runner{queue: q, handler: h}
}

// Run consumes until ctx is cancelled. Cancellation is the only clean
// exit: in-flight handler calls finish before the loop returns.
func (r *Runner) Run(ctx context.Context) error {
	l := pkglog.L()
	l.Info().Str(pkglog.FieldTopic, producer.TopicProcessCast).Msg("worker starting")

	err := r.queue.Consume(ctx, producer.TopicProcessCast, r.handler)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	l.Info().Msg("worker stopped")
	return nil
}
