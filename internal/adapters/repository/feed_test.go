package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/perfboard/internal/domain/model"
)

type fakeQueue struct {
	mu     sync.Mutex
	accept bool
	events []model.ChangeEvent
}

func (q *fakeQueue) Enqueue(_ context.Context, ev model.ChangeEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.accept {
		return false
	}
	q.events = append(q.events, ev)
	return true
}

func TestFeed_PublishThroughQueue(t *testing.T) {
	q := &fakeQueue{accept: true}
	f := NewFeed(WithQueue(q))

	var calls atomic.Int32
	cancel := f.Watch(context.Background(), "goals",
		func(context.Context) ([]Document, error) { return nil, nil },
		func([]Document, error) { calls.Add(1) })
	defer cancel()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	f.Publish(context.Background(), model.ChangeEvent{Collection: "goals", DocumentID: "g1", Op: model.OpCreate})
	q.mu.Lock()
	require.Len(t, q.events, 1)
	assert.False(t, q.events[0].TS.IsZero())
	q.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "queued events wait for a dispatcher")

	f.Dispatch(model.ChangeEvent{Collection: "goals"})
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestFeed_FullQueueDispatchesInline(t *testing.T) {
	f := NewFeed(WithQueue(&fakeQueue{accept: false}))

	var calls atomic.Int32
	cancel := f.Watch(context.Background(), "goals",
		func(context.Context) ([]Document, error) { return nil, nil },
		func([]Document, error) { calls.Add(1) })
	defer cancel()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	f.Publish(context.Background(), model.ChangeEvent{Collection: "goals"})
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(1), f.Stats().Published)
}

func TestFeed_OtherCollectionsIgnored(t *testing.T) {
	f := NewFeed()
	var calls atomic.Int32
	cancel := f.Watch(context.Background(), "goals",
		func(context.Context) ([]Document, error) { return nil, nil },
		func([]Document, error) { calls.Add(1) })
	defer cancel()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	f.Dispatch(model.ChangeEvent{Collection: "feedbacks"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFeed_ContextCancellationDetaches(t *testing.T) {
	f := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	f.Watch(ctx, "users",
		func(context.Context) ([]Document, error) { return nil, nil },
		func([]Document, error) {})
	assert.Equal(t, 1, f.Watchers())

	cancel()
	assert.Eventually(t, func() bool { return f.Watchers() == 0 }, time.Second, time.Millisecond)
}

func TestFeed_Closed(t *testing.T) {
	f := NewFeed()
	f.Close()

	var got error
	f.Watch(context.Background(), "users",
		func(context.Context) ([]Document, error) { return nil, nil },
		func(_ []Document, err error) { got = err })
	assert.ErrorIs(t, got, ErrClosed)
	assert.Equal(t, 0, f.Watchers())
}
