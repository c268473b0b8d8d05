package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"admin-alerts/domain"
	"admin-alerts/orders"
	"admin-alerts/storage"
)

// Announcer is implemented by orders.Service.
type Announcer interface {
	AnnounceNewOrder(ctx context.Context, id int64) (domain.Order, error)
}

type orderMessage struct {
	OrderID *int64 `json:"order_id"`
}

// Consumer drains {"order_id": N} messages and announces each order once.
type Consumer struct {
	queue     Queue
	announcer Announcer
	// PollInterval is the pause after an empty or failed dequeue.
	PollInterval time.Duration
	// MaxDequeue drops a message that keeps failing after this many
	// deliveries.
	MaxDequeue int64
}

func NewConsumer(queue Queue, announcer Announcer) *Consumer {
	return &Consumer{queue: queue, announcer: announcer, PollInterval: time.Second, MaxDequeue: 5}
}

// Run processes messages until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := c.Poll(ctx)
		if err != nil {
			log.WithError(err).Warn("order queue receive failed")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.PollInterval):
		}
	}
}

// Poll handles at most one message and reports whether one was received.
func (c *Consumer) Poll(ctx context.Context) (bool, error) {
	msg, err := c.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}
	fields := log.Fields{"message_id": msg.ID, "dequeue_count": msg.DequeueCount}

	var m orderMessage
	if err := sonic.ConfigStd.UnmarshalFromString(msg.Text, &m); err != nil || m.OrderID == nil {
		log.WithError(err).WithFields(fields).Error("dropping malformed order message")
		return true, c.delete(ctx, msg)
	}
	fields["order_id"] = *m.OrderID

	if _, err := c.announcer.AnnounceNewOrder(ctx, *m.OrderID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, orders.ErrInvalidRequest):
			log.WithError(err).WithFields(fields).Warn("dropping order message")
			return true, c.delete(ctx, msg)
		case c.MaxDequeue > 0 && msg.DequeueCount >= c.MaxDequeue:
			log.WithError(err).WithFields(fields).Error("order message exceeded delivery attempts")
			return true, c.delete(ctx, msg)
		default:
			// left in the queue; it becomes visible again after the timeout
			log.WithError(err).WithFields(fields).Warn("order announcement failed, will retry")
			return true, nil
		}
	}
	return true, c.delete(ctx, msg)
}

func (c *Consumer) delete(ctx context.Context, msg *Message) error {
	if err := c.queue.Delete(ctx, msg.ID, msg.PopReceipt); err != nil {
		log.WithError(err).WithField("message_id", msg.ID).Error("unable to delete order message")
		return err
	}
	return nil
}
