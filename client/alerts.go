package client

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"admin-alerts/domain"
)

// Kind is the visual class of a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
)

const (
	NewOrderTTL     = 8 * time.Second
	StatusUpdateTTL = 5 * time.Second
)

// Notification is an ephemeral alert derived from one inbound event.
type Notification struct {
	ID        string
	Kind      Kind
	Title     string
	Message   string
	OrderID   int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Scheduler provides the clock notifications expire against. AfterFunc
// callbacks must run on the same loop that owns the Emitter.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type activeNotification struct {
	note Notification
	stop func() bool
}

// Emitter owns the set of live notifications. Each one removes itself when
// its own timer fires; dismissing early cancels the timer.
type Emitter struct {
	sched       Scheduler
	newOrderTTL time.Duration
	statusTTL   time.Duration
	newID       func() string

	active map[string]*activeNotification
	seq    []string
}

func NewEmitter(sched Scheduler) *Emitter {
	return &Emitter{
		sched:       sched,
		newOrderTTL: NewOrderTTL,
		statusTTL:   StatusUpdateTTL,
		newID:       uuid.NewString,
		active:      make(map[string]*activeNotification),
	}
}

// NewOrder emits the info notification for a new_order_alert.
func (e *Emitter) NewOrder(o domain.Order) Notification {
	return e.emit(Notification{
		Kind:    KindInfo,
		Title:   "New order received!",
		Message: fmt.Sprintf("Order #%d from %s for %s.", o.ID, o.CustomerName, domain.FormatTotal(o.TotalAmount)),
		OrderID: o.ID,
	}, e.newOrderTTL)
}

// StatusChanged emits the success notification for an order_status_updated.
func (e *Emitter) StatusChanged(u domain.StatusUpdate) Notification {
	msg := fmt.Sprintf("Order #%d is now: %s.", u.OrderID, u.NewStatus.Label())
	if u.UpdatedBy != "" {
		msg = fmt.Sprintf("Order #%d is now: %s (by %s).", u.OrderID, u.NewStatus.Label(), u.UpdatedBy)
	}
	return e.emit(Notification{
		Kind:    KindSuccess,
		Title:   "Status updated!",
		Message: msg,
		OrderID: u.OrderID,
	}, e.statusTTL)
}

func (e *Emitter) emit(n Notification, ttl time.Duration) Notification {
	n.ID = e.newID()
	n.CreatedAt = e.sched.Now()
	n.ExpiresAt = n.CreatedAt.Add(ttl)
	id := n.ID
	entry := &activeNotification{note: n}
	e.active[id] = entry
	e.seq = append(e.seq, id)
	entry.stop = e.sched.AfterFunc(ttl, func() { e.remove(id) })
	return n
}

// Dismiss removes a notification before it expires. Dismissing an unknown
// or already removed notification is a no-op; it reports whether one was
// removed.
func (e *Emitter) Dismiss(id string) bool {
	entry, ok := e.active[id]
	if !ok {
		return false
	}
	if entry.stop != nil {
		entry.stop()
	}
	return e.remove(id)
}

func (e *Emitter) remove(id string) bool {
	if _, ok := e.active[id]; !ok {
		return false
	}
	delete(e.active, id)
	for i, v := range e.seq {
		if v == id {
			e.seq = append(e.seq[:i], e.seq[i+1:]...)
			break
		}
	}
	return true
}

// Active returns the live notifications, oldest first.
func (e *Emitter) Active() []Notification {
	out := make([]Notification, 0, len(e.seq))
	for _, id := range e.seq {
		out = append(out, e.active[id].note)
	}
	return out
}

func (e *Emitter) Len() int { return len(e.seq) }

// realScheduler fires callbacks by posting them back onto the loop.
type realScheduler struct {
	post func(func()) bool
}

func (realScheduler) Now() time.Time { return time.Now() }

func (s realScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, func() { s.post(fn) })
	return t.Stop
}
