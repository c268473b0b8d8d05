package broadcast

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"admin-alerts/domain"
)

func recv(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case frame := <-ch:
		return string(frame)
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
	return ""
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub(1)
	id1, ch1 := h.Subscribe()
	_, ch2 := h.Subscribe()
	if h.Len() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", h.Len())
	}

	upd := domain.StatusUpdate{OrderID: 42, NewStatus: domain.StatusConfirmed}
	if err := h.Publish(context.Background(), domain.OrderStatusUpdated, upd); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := "event: order_status_updated\ndata: {\"order_id\":42,\"new_status\":\"confirmed\"}\n\n"
	if got := recv(t, ch1); got != want {
		t.Fatalf("unexpected frame %q", got)
	}
	if got := recv(t, ch2); got != want {
		t.Fatalf("unexpected frame %q", got)
	}

	h.Unsubscribe(id1)
	h.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Fatalf("unsubscribed channel must be closed")
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Len())
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(1)
	_, ch := h.Subscribe()
	h.Broadcast([]byte("first"))
	h.Broadcast([]byte("second"))
	if got := recv(t, ch); got != "first" {
		t.Fatalf("expected first frame, got %q", got)
	}
	select {
	case f := <-ch:
		t.Fatalf("expected dropped frame, got %q", f)
	default:
	}
}

func TestRedisBridgeRelays(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()

	hub := NewHub(4)
	_, ch := hub.Subscribe()
	bridge := NewRedisBridge(rc, hub, "test-events")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(done)
	}()
	// wait for subscription to start
	time.Sleep(50 * time.Millisecond)

	if err := bridge.Publish(context.Background(), domain.OrderStatusUpdated,
		domain.StatusUpdate{OrderID: 7, NewStatus: domain.StatusDelivered, UpdatedBy: "admin"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := recv(t, ch)
	if !strings.HasPrefix(got, "event: order_status_updated\ndata: ") || !strings.Contains(got, `"updated_by":"admin"`) {
		t.Fatalf("unexpected frame %q", got)
	}

	if err := rc.Publish(context.Background(), "test-events", "garbage").Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case f := <-ch:
		t.Fatalf("garbage must not be relayed, got %q", f)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}
