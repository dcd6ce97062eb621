package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

// NewFromClient 复用已有连接（token store 与缓存共用一个 client）
func NewFromClient(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	// 先读缓存；redis 不可用时直接回源
	if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		return b, nil
	}
	// single flight 合并回源
	v, err, _ := c.sf.Do(key, func() (any, error) {
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		_ = c.RDB.Set(ctx, key, b, ttl).Err()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	c.sfForget(keys...)
	return c.RDB.Del(ctx, keys...).Err()
}

func (c *Cache) sfForget(keys ...string) {
	for _, k := range keys {
		c.sf.Forget(k)
	}
}
