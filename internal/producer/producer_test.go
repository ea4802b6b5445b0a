package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hojaeaga/replyguy-monorepo/internal/domain"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
)

type fakeQueue struct {
	pushed []queue.Message
	err    error
}

func (f *fakeQueue) Push(ctx context.Context, topic string, payload []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.pushed = append(f.pushed, queue.Message{ID: "1-0", Topic: topic, Data: payload})
	return "1-0", nil
}

func (f *fakeQueue) Consume(ctx context.Context, topic string, h queue.Handler) error {
	return nil
}

func (f *fakeQueue) Close() error { return nil }

func TestEnqueueCastFiltersEmptyCasts(t *testing.T) {
	q := &fakeQueue{}
	p := New(q)
	ctx := context.Background()

	queued, err := p.EnqueueCast(ctx, nil)
	require.NoError(t, err)
	assert.False(t, queued)

	queued, err = p.EnqueueCast(ctx, &domain.Cast{Hash: "0xabc", Author: domain.Author{FID: 42}})
	require.NoError(t, err)
	assert.False(t, queued)

	assert.Empty(t, q.pushed)
}

func TestEnqueueCastPushesEvent(t *testing.T) {
	q := &fakeQueue{}
	p := New(q)

	cast := &domain.Cast{
		Hash:   "0xabc",
		Text:   "hello",
		Author: domain.Author{FID: 42},
	}

	queued, err := p.EnqueueCast(context.Background(), cast)
	require.NoError(t, err)
	assert.True(t, queued)

	require.Len(t, q.pushed, 1)
	assert.Equal(t, TopicProcessCast, q.pushed[0].Topic)

	var event domain.CastEvent
	require.NoError(t, json.Unmarshal(q.pushed[0].Data, &event))
	assert.Equal(t, domain.EventTypeCastCreated, event.Type)
	require.NotNil(t, event.Cast)
	assert.Equal(t, "0xabc", event.Cast.Hash)
	assert.Equal(t, int64(42), event.Cast.Author.FID)
	assert.False(t, event.ReceivedAt.IsZero())
	assert.NoError(t, event.Validate())
}
