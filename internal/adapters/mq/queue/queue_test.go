package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/perfboard/internal/domain/model"
)

func change(collection, id string) Event {
	return model.ChangeEvent{Collection: collection, DocumentID: id, Op: model.OpCreate}
}

func TestChangeQueue_EnqueueDequeue(t *testing.T) {
	q := New(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, change(model.CollectionFeedbacks, "f1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	ev := <-q.Dequeue(ctx)
	if ev.DocumentID != "f1" || ev.Collection != model.CollectionFeedbacks {
		t.Errorf("unexpected event %+v", ev)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestChangeQueue_FullQueueCountsRejections(t *testing.T) {
	q := New(WithCapacity(2))
	ctx := context.Background()

	if q.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", q.Capacity())
	}
	q.Enqueue(ctx, change(model.CollectionGoals, "g1"))
	q.Enqueue(ctx, change(model.CollectionFeedbacks, "f1"))
	if q.Enqueue(ctx, change(model.CollectionFeedbacks, "f2")) {
		t.Fatal("expected enqueue to fail when full")
	}

	s := q.Stats()
	if s.Length != 2 || s.Capacity != 2 {
		t.Errorf("unexpected size %d/%d", s.Length, s.Capacity)
	}
	if s.Accepted[model.CollectionGoals] != 1 || s.Accepted[model.CollectionFeedbacks] != 1 {
		t.Errorf("unexpected accepted counts %v", s.Accepted)
	}
	if s.Rejected[model.CollectionFeedbacks] != 1 || s.RejectedBy[ReasonFull] != 1 {
		t.Errorf("unexpected rejections %v %v", s.Rejected, s.RejectedBy)
	}

	s.Accepted[model.CollectionGoals] = 99
	if q.Stats().Accepted[model.CollectionGoals] != 1 {
		t.Error("stats must be a copy")
	}
}

func TestChangeQueue_CancelledContext(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, change(model.CollectionEmployees, "e1")) {
		t.Fatal("expected enqueue with cancelled context to fail")
	}
	if q.Stats().RejectedBy[ReasonCancelled] != 1 {
		t.Error("expected a cancelled rejection")
	}
}

func TestChangeQueue_ConcurrentProducers(t *testing.T) {
	q := New(WithCapacity(1000))
	ctx := context.Background()
	const producers, perProducer = 10, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if !q.Enqueue(ctx, change(model.CollectionFeedbacks, fmt.Sprintf("doc-%d-%d", id, j))) {
					t.Errorf("enqueue %d/%d failed", id, j)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := q.Stats().Accepted[model.CollectionFeedbacks]; got != producers*perProducer {
		t.Fatalf("expected %d accepted, got %d", producers*perProducer, got)
	}

	seen := make(map[string]bool)
	ch := q.Dequeue(ctx)
	for i := 0; i < producers*perProducer; i++ {
		ev := <-ch
		if seen[ev.DocumentID] {
			t.Fatalf("duplicate event %s", ev.DocumentID)
		}
		seen[ev.DocumentID] = true
	}
}

func TestChangeQueue_CloseDrains(t *testing.T) {
	q := New(WithCapacity(4))
	ctx := context.Background()
	q.Enqueue(ctx, change(model.CollectionGoals, "kept"))

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, change(model.CollectionGoals, "late")) {
		t.Error("expected enqueue after close to fail")
	}
	if q.Stats().RejectedBy[ReasonClosed] != 1 {
		t.Error("expected a closed rejection")
	}

	ch := q.Dequeue(ctx)
	if ev, ok := <-ch; !ok || ev.DocumentID != "kept" {
		t.Errorf("expected buffered event to drain, got %v %v", ev, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after drain")
	}
}
