package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"admin-alerts/codec"
	"admin-alerts/domain"
)

// DefaultChannel is the Redis pub/sub channel shared by all server instances.
const DefaultChannel = "admin-alerts:events"

// RedisBridge publishes events through Redis so that every server instance,
// including the publishing one, re-broadcasts them to its local Hub.
type RedisBridge struct {
	rc      *redis.Client
	hub     *Hub
	channel string
	// RetryDelay is the pause before resubscribing after the pub/sub
	// channel closes.
	RetryDelay time.Duration
}

func NewRedisBridge(rc *redis.Client, hub *Hub, channel string) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{rc: rc, hub: hub, channel: channel, RetryDelay: time.Second}
}

// Publish sends the event to every instance subscribed to the channel.
func (b *RedisBridge) Publish(ctx context.Context, name string, payload any) error {
	msg, err := codec.EncodeEnvelope(name, payload)
	if err != nil {
		return err
	}
	if err := b.rc.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// Run relays channel messages to the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) {
	for {
		sub := b.rc.Subscribe(ctx, b.channel)
		ch := sub.Channel()
		b.relay(ctx, ch)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		log.WithField("channel", b.channel).Error("pubsub channel closed, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.RetryDelay):
		}
	}
}

func (b *RedisBridge) relay(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env domain.Envelope
			if err := sonic.ConfigStd.UnmarshalFromString(msg.Payload, &env); err != nil || env.Event == "" {
				log.WithError(err).WithField("channel", b.channel).Warn("unable to parse relayed event")
				continue
			}
			b.hub.Broadcast(codec.FrameRaw(env.Event, env.Data))
		}
	}
}
