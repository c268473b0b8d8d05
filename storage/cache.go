package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"admin-alerts/domain"
)

// Cache wraps an OrderStore with Redis-backed caching of order snapshots.
type Cache struct {
	base  OrderStore
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper. A nil client or zero ttl disables
// caching.
func NewCache(base OrderStore, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	if o, ok := c.load(ctx, id); ok {
		return o, nil
	}
	o, err := c.base.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	c.store(ctx, o)
	return o, nil
}

func (c *Cache) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Order, bool, error) {
	o, changed, err := c.base.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.Order{}, false, err
	}
	if changed {
		c.evict(ctx, id)
	}
	return o, changed, nil
}

func (c *Cache) load(ctx context.Context, id int64) (domain.Order, bool) {
	if c.redis == nil {
		return domain.Order{}, false
	}
	data, err := c.redis.Get(ctx, orderCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("order_id", id).Debug("order cache read failed")
			_ = c.redis.Del(ctx, orderCacheKey(id)).Err()
		}
		return domain.Order{}, false
	}
	var o domain.Order
	if err := sonic.ConfigStd.Unmarshal(data, &o); err != nil {
		_ = c.redis.Del(ctx, orderCacheKey(id)).Err()
		return domain.Order{}, false
	}
	return o, true
}

func (c *Cache) store(ctx context.Context, o domain.Order) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.ConfigStd.Marshal(o)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, orderCacheKey(o.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id int64) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, orderCacheKey(id)).Result()
}

func orderCacheKey(id int64) string {
	return "order:" + strconv.FormatInt(id, 10)
}
