package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"admin-alerts/domain"
	"admin-alerts/storage"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages []*Message
	deleted  []string
	err      error
}

func (q *fakeQueue) Dequeue(context.Context) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	if len(q.messages) == 0 {
		return nil, nil
	}
	m := q.messages[0]
	q.messages = q.messages[1:]
	return m, nil
}

func (q *fakeQueue) Delete(_ context.Context, id, _ string) error {
	q.mu.Lock()
	q.deleted = append(q.deleted, id)
	q.mu.Unlock()
	return nil
}

func (q *fakeQueue) deletedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

type fakeAnnouncer struct {
	mu  sync.Mutex
	ids []int64
	err map[int64]error
}

func (a *fakeAnnouncer) AnnounceNewOrder(_ context.Context, id int64) (domain.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.err[id]; err != nil {
		return domain.Order{}, err
	}
	a.ids = append(a.ids, id)
	return domain.Order{ID: id}, nil
}

func TestPollAnnouncesAndDeletes(t *testing.T) {
	q := &fakeQueue{messages: []*Message{{ID: "m1", Text: `{"order_id":42}`, DequeueCount: 1}}}
	a := &fakeAnnouncer{}
	c := NewConsumer(q, a)

	got, err := c.Poll(context.Background())
	if err != nil || !got {
		t.Fatalf("poll: got=%v err=%v", got, err)
	}
	if len(a.ids) != 1 || a.ids[0] != 42 {
		t.Fatalf("unexpected announcements %v", a.ids)
	}
	if d := q.deletedIDs(); len(d) != 1 || d[0] != "m1" {
		t.Fatalf("unexpected deletions %v", d)
	}
	if got, _ := c.Poll(context.Background()); got {
		t.Fatalf("empty queue must report no message")
	}
}

func TestPollDropsPoisonMessages(t *testing.T) {
	q := &fakeQueue{messages: []*Message{
		{ID: "bad-json", Text: `nope`},
		{ID: "no-id", Text: `{}`},
		{ID: "unknown", Text: `{"order_id":7}`},
	}}
	a := &fakeAnnouncer{err: map[int64]error{7: storage.ErrNotFound}}
	c := NewConsumer(q, a)
	for i := 0; i < 3; i++ {
		if _, err := c.Poll(context.Background()); err != nil {
			t.Fatalf("poll: %v", err)
		}
	}
	if d := q.deletedIDs(); len(d) != 3 {
		t.Fatalf("expected all poison messages deleted, got %v", d)
	}
}

func TestPollRetriesTransientFailure(t *testing.T) {
	boom := errors.New("redis down")
	q := &fakeQueue{messages: []*Message{
		{ID: "retry", Text: `{"order_id":1}`, DequeueCount: 1},
		{ID: "give-up", Text: `{"order_id":1}`, DequeueCount: 5},
	}}
	c := NewConsumer(q, &fakeAnnouncer{err: map[int64]error{1: boom}})

	if _, err := c.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if d := q.deletedIDs(); len(d) != 0 {
		t.Fatalf("transient failure must leave the message, got %v", d)
	}
	if _, err := c.Poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if d := q.deletedIDs(); len(d) != 1 || d[0] != "give-up" {
		t.Fatalf("expected exhausted message deleted, got %v", d)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := &fakeQueue{messages: []*Message{{ID: "m1", Text: `{"order_id":3}`}}}
	a := &fakeAnnouncer{}
	c := NewConsumer(q, a)
	c.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(time.Second)
	for len(q.deletedIDs()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("message never processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
