package client

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"admin-alerts/domain"
)

type manualTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

// manualScheduler fires due callbacks synchronously from Advance.
type manualScheduler struct {
	now    time.Time
	timers []*manualTimer
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (m *manualScheduler) Now() time.Time { return m.now }

func (m *manualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	t := &manualTimer{at: m.now.Add(d), fn: fn}
	m.timers = append(m.timers, t)
	return func() bool {
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

func (m *manualScheduler) Advance(d time.Duration) {
	m.now = m.now.Add(d)
	for _, t := range m.timers {
		if t.stopped || t.fired || t.at.After(m.now) {
			continue
		}
		t.fired = true
		t.fn()
	}
}

func (m *manualScheduler) pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func hasNote(e *Emitter, id string) bool {
	for _, n := range e.Active() {
		if n.ID == id {
			return true
		}
	}
	return false
}

func TestEmitterExpiry(t *testing.T) {
	sched := newManualScheduler()
	e := NewEmitter(sched)

	order := domain.Order{ID: 42, CustomerName: "Ana", TotalAmount: decimal.RequireFromString("19.5")}
	created := e.NewOrder(order)
	updated := e.StatusChanged(domain.StatusUpdate{OrderID: 42, NewStatus: domain.StatusConfirmed})

	if created.Kind != KindInfo || updated.Kind != KindSuccess {
		t.Fatalf("unexpected kinds %s %s", created.Kind, updated.Kind)
	}
	if !created.ExpiresAt.Equal(sched.now.Add(8 * time.Second)) {
		t.Fatalf("unexpected expiry %v", created.ExpiresAt)
	}

	sched.Advance(time.Second)
	if !hasNote(e, created.ID) || !hasNote(e, updated.ID) {
		t.Fatalf("both notifications must be present at t+1")
	}

	sched.Advance(4 * time.Second)
	if hasNote(e, updated.ID) {
		t.Fatalf("status notification must be gone at t+5")
	}
	if !hasNote(e, created.ID) {
		t.Fatalf("new order notification must survive t+5")
	}

	sched.Advance(3 * time.Second)
	if hasNote(e, created.ID) {
		t.Fatalf("new order notification must be gone at t+8")
	}
	if e.Len() != 0 {
		t.Fatalf("expected no notifications, got %d", e.Len())
	}
}

func TestEmitterNotificationsAreIndependent(t *testing.T) {
	sched := newManualScheduler()
	e := NewEmitter(sched)

	first := e.StatusChanged(domain.StatusUpdate{OrderID: 1, NewStatus: domain.StatusDelivered})
	sched.Advance(3 * time.Second)
	second := e.StatusChanged(domain.StatusUpdate{OrderID: 1, NewStatus: domain.StatusDelivered})

	sched.Advance(2 * time.Second)
	if hasNote(e, first.ID) {
		t.Fatalf("first notification should have expired")
	}
	if !hasNote(e, second.ID) {
		t.Fatalf("second notification expired with the first")
	}
	sched.Advance(3 * time.Second)
	if hasNote(e, second.ID) {
		t.Fatalf("second notification should have expired")
	}
}

func TestEmitterDismissIsIdempotent(t *testing.T) {
	sched := newManualScheduler()
	e := NewEmitter(sched)

	n := e.NewOrder(domain.Order{ID: 1, CustomerName: "A"})
	if !e.Dismiss(n.ID) {
		t.Fatalf("expected dismiss to remove notification")
	}
	if e.Dismiss(n.ID) {
		t.Fatalf("second dismiss must be a no-op")
	}
	if sched.pending() != 0 {
		t.Fatalf("dismiss must cancel the expiry timer")
	}
	sched.Advance(10 * time.Second)
	if e.Len() != 0 {
		t.Fatalf("unexpected notifications after dismiss")
	}
	if e.Dismiss("unknown") {
		t.Fatalf("dismissing unknown id must be a no-op")
	}
}

func TestEmitterDismissAfterExpiry(t *testing.T) {
	sched := newManualScheduler()
	e := NewEmitter(sched)

	n := e.StatusChanged(domain.StatusUpdate{OrderID: 1, NewStatus: domain.StatusCancelled})
	sched.Advance(StatusUpdateTTL)
	if e.Dismiss(n.ID) {
		t.Fatalf("dismissing an expired notification must be a no-op")
	}
}

func TestEmitterMessages(t *testing.T) {
	e := NewEmitter(newManualScheduler())
	n := e.NewOrder(domain.Order{ID: 42, CustomerName: "Ana", TotalAmount: decimal.RequireFromString("19.5")})
	if n.Message != "Order #42 from Ana for $19.50." {
		t.Fatalf("unexpected message %q", n.Message)
	}
	s := e.StatusChanged(domain.StatusUpdate{OrderID: 42, NewStatus: domain.StatusConfirmed, UpdatedBy: "root"})
	if !strings.Contains(s.Message, "Confirmed") || !strings.Contains(s.Message, "root") {
		t.Fatalf("unexpected message %q", s.Message)
	}
}
