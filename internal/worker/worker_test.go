package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Hojaeaga/replyguy-monorepo/internal/producer"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
)

type fakeQueue struct {
	consumedTopic string
	consumeErr    error
}

func (f *fakeQueue) Push(ctx context.Context, topic string, payload []byte) (string, error) {
	return "", nil
}

func (f *fakeQueue) Consume(ctx context.Context, topic string, h queue.Handler) error {
	f.consumedTopic = topic
	return f.consumeErr
}

func (f *fakeQueue) Close() error { return nil }

func TestRunConsumesProcessCastTopic(t *testing.T) {
	q := &fakeQueue{}
	r := NewRunner(q, func(ctx context.Context, msg queue.Message) error { return nil })

	err := r.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, producer.TopicProcessCast, q.consumedTopic)
}

func TestRunTreatsCancellationAsCleanExit(t *testing.T) {
	q := &fakeQueue{consumeErr: context.Canceled}
	r := NewRunner(q, func(ctx context.Context, msg queue.Message) error { return nil })

	assert.NoError(t, r.Run(context.Background()))
}

func TestRunPropagatesFatalErrors(t *testing.T) {
	fatal := errors.New("group creation failed")
	q := &fakeQueue{consumeErr: fatal}
	r := NewRunner(q, func(ctx context.Context, msg queue.Message) error { return nil })

	assert.ErrorIs(t, r.Run(context.Background()), fatal)
}
