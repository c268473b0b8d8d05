package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"admin-alerts/codec"
	"admin-alerts/domain"
)

// SignalSource is implemented by Session.
type SignalSource interface {
	Signals() <-chan Signal
}

// State is what the rendering surface shows after each reaction.
type State struct {
	Connected     bool
	Orders        []domain.Order
	Notifications []Notification
}

// View renders console state. It is called from the console loop only.
type View interface {
	Render(State)
}

// Console is the single logical thread of the admin client. Session signals,
// notification expiries and user actions are each applied as one reaction,
// in arrival order, so the order list and notifications need no locking.
type Console struct {
	src    SignalSource
	view   View
	log    *log.Logger
	orders *OrderList
	alerts *Emitter

	tasks     chan func()
	done      chan struct{}
	doneOnce  sync.Once
	connected bool
}

// Option customizes a Console.
type Option func(*Console)

// WithScheduler replaces the wall clock notifications expire against.
func WithScheduler(s Scheduler) Option {
	return func(c *Console) { c.alerts.sched = s }
}

// WithNotificationTTLs overrides the notification lifetimes.
func WithNotificationTTLs(newOrder, statusUpdate time.Duration) Option {
	return func(c *Console) {
		if newOrder > 0 {
			c.alerts.newOrderTTL = newOrder
		}
		if statusUpdate > 0 {
			c.alerts.statusTTL = statusUpdate
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Console) { c.log = l }
}

func NewConsole(src SignalSource, view View, opts ...Option) *Console {
	c := &Console{
		src:    src,
		view:   view,
		log:    log.StandardLogger(),
		orders: NewOrderList(),
		tasks:  make(chan func(), 32),
		done:   make(chan struct{}),
	}
	c.alerts = NewEmitter(realScheduler{post: c.Post})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post schedules fn on the console loop. It returns false once the loop
// has stopped.
func (c *Console) Post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tasks <- fn:
		return true
	case <-c.done:
		return false
	}
}

// Dismiss closes a notification early. id may be a unique prefix of the
// notification id. Safe to call from any goroutine.
func (c *Console) Dismiss(id string) {
	c.Post(func() {
		if full, ok := c.resolveNotification(id); ok {
			c.alerts.Dismiss(full)
		}
	})
}

func (c *Console) resolveNotification(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	match := ""
	for _, n := range c.alerts.Active() {
		if n.ID == prefix {
			return n.ID, true
		}
		if strings.HasPrefix(n.ID, prefix) {
			if match != "" {
				return "", false
			}
			match = n.ID
		}
	}
	return match, match != ""
}

// Run processes reactions until ctx is done or the signal source closes.
func (c *Console) Run(ctx context.Context) error {
	defer c.doneOnce.Do(func() { close(c.done) })
	c.render()
	signals := c.src.Signals()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			c.handle(sig)
		case fn := <-c.tasks:
			fn()
		}
		c.render()
	}
}

func (c *Console) handle(sig Signal) {
	switch sig.Kind {
	case SignalConnected:
		c.connected = true
	case SignalDisconnected:
		c.connected = false
		c.log.WithError(sig.Err).Warn("alert stream disconnected; events sent meanwhile will not be replayed")
	case SignalEvent:
		c.apply(sig.Name, sig.Payload)
	}
}

func (c *Console) apply(name string, payload []byte) {
	ev, err := codec.Decode(name, payload)
	if err != nil {
		if errors.Is(err, codec.ErrUnknownEvent) {
			c.log.WithField("event", name).Debug("ignoring event")
			return
		}
		c.log.WithError(err).WithField("event", name).Warn("discarding malformed event")
		return
	}
	switch e := ev.(type) {
	case domain.Order:
		if !c.orders.ApplyNewOrder(e) {
			c.log.WithField("order_id", e.ID).Debug("duplicate new order alert merged")
		}
		c.alerts.NewOrder(e)
	case domain.StatusUpdate:
		if !c.orders.ApplyStatusUpdate(e) {
			c.log.WithField("order_id", e.OrderID).Debug("status update for unknown order dropped")
		}
		c.alerts.StatusChanged(e)
	default:
		c.log.WithField("event", name).Debug("ignoring outbound event on inbound stream")
	}
}

func (c *Console) state() State {
	return State{
		Connected:     c.connected,
		Orders:        c.orders.Snapshot(),
		Notifications: c.alerts.Active(),
	}
}

func (c *Console) render() {
	if c.view != nil {
		c.view.Render(c.state())
	}
}
